package wire

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed indicates a payload that is not valid protobuf wire format
// for the expected message.
var ErrMalformed = errors.New("malformed payload")

// Field numbers are part of the host contract and must never be renumbered.
const (
	fieldHandle = 1

	fieldCreateCategory = 1
	fieldCreateName     = 2
	fieldCreatePings    = 3
	fieldCreateLifetime = 4
	fieldCreateDisabled = 5
	fieldCreateTimeUnit = 6

	fieldTimestamp = 2
	fieldRawNanos  = 2
	fieldQueryPing = 2

	fieldBoolValue  = 1
	fieldValueNanos = 1
)

// TimespanCreate registers a timespan metric with the host and yields its
// storage handle.
type TimespanCreate struct {
	Category    string
	Name        string
	SendInPings []string
	Lifetime    uint32
	Disabled    bool
	TimeUnit    uint32
}

// Marshal encodes the message into protobuf wire format.
func (m *TimespanCreate) Marshal() []byte {
	var b []byte
	b = appendString(b, fieldCreateCategory, m.Category)
	b = appendString(b, fieldCreateName, m.Name)
	for _, ping := range m.SendInPings {
		b = appendString(b, fieldCreatePings, ping)
	}
	b = appendVarint(b, fieldCreateLifetime, uint64(m.Lifetime))
	b = appendBool(b, fieldCreateDisabled, m.Disabled)
	b = appendVarint(b, fieldCreateTimeUnit, uint64(m.TimeUnit))
	return b
}

// Unmarshal decodes the message from protobuf wire format.
func (m *TimespanCreate) Unmarshal(data []byte) error {
	*m = TimespanCreate{}
	return walk(data, func(num protowire.Number, typ protowire.Type, v value) error {
		switch num {
		case fieldCreateCategory:
			return v.str(typ, &m.Category)
		case fieldCreateName:
			return v.str(typ, &m.Name)
		case fieldCreatePings:
			var ping string
			if err := v.str(typ, &ping); err != nil {
				return err
			}
			m.SendInPings = append(m.SendInPings, ping)
			return nil
		case fieldCreateLifetime:
			return v.uint32(typ, &m.Lifetime)
		case fieldCreateDisabled:
			return v.boolean(typ, &m.Disabled)
		case fieldCreateTimeUnit:
			return v.uint32(typ, &m.TimeUnit)
		}
		return nil
	})
}

// HandleRequest addresses an operation at a metric handle with no further
// arguments (destroy, cancel, should-record).
type HandleRequest struct {
	Handle uint64
}

func (m *HandleRequest) Marshal() []byte {
	return appendVarint(nil, fieldHandle, m.Handle)
}

func (m *HandleRequest) Unmarshal(data []byte) error {
	*m = HandleRequest{}
	return walk(data, func(num protowire.Number, typ protowire.Type, v value) error {
		if num == fieldHandle {
			return v.uint64(typ, &m.Handle)
		}
		return nil
	})
}

// HandleResponse carries the handle assigned by a create operation.
type HandleResponse struct {
	Handle uint64
}

func (m *HandleResponse) Marshal() []byte {
	return appendVarint(nil, fieldHandle, m.Handle)
}

func (m *HandleResponse) Unmarshal(data []byte) error {
	*m = HandleResponse{}
	return walk(data, func(num protowire.Number, typ protowire.Type, v value) error {
		if num == fieldHandle {
			return v.uint64(typ, &m.Handle)
		}
		return nil
	})
}

// TimestampRequest carries a caller-thread timestamp to a set-start or
// set-stop operation. Timestamps are monotonic nanosecond counts.
type TimestampRequest struct {
	Handle         uint64
	TimestampNanos int64
}

func (m *TimestampRequest) Marshal() []byte {
	b := appendVarint(nil, fieldHandle, m.Handle)
	b = appendVarint(b, fieldTimestamp, uint64(m.TimestampNanos))
	return b
}

func (m *TimestampRequest) Unmarshal(data []byte) error {
	*m = TimestampRequest{}
	return walk(data, func(num protowire.Number, typ protowire.Type, v value) error {
		switch num {
		case fieldHandle:
			return v.uint64(typ, &m.Handle)
		case fieldTimestamp:
			return v.int64(typ, &m.TimestampNanos)
		}
		return nil
	})
}

// RawRequest carries an explicit nanosecond duration for a raw set.
type RawRequest struct {
	Handle uint64
	Nanos  int64
}

func (m *RawRequest) Marshal() []byte {
	b := appendVarint(nil, fieldHandle, m.Handle)
	b = appendVarint(b, fieldRawNanos, uint64(m.Nanos))
	return b
}

func (m *RawRequest) Unmarshal(data []byte) error {
	*m = RawRequest{}
	return walk(data, func(num protowire.Number, typ protowire.Type, v value) error {
		switch num {
		case fieldHandle:
			return v.uint64(typ, &m.Handle)
		case fieldRawNanos:
			return v.int64(typ, &m.Nanos)
		}
		return nil
	})
}

// QueryRequest addresses a test query at one ping of a metric.
type QueryRequest struct {
	Handle uint64
	Ping   string
}

func (m *QueryRequest) Marshal() []byte {
	b := appendVarint(nil, fieldHandle, m.Handle)
	b = appendString(b, fieldQueryPing, m.Ping)
	return b
}

func (m *QueryRequest) Unmarshal(data []byte) error {
	*m = QueryRequest{}
	return walk(data, func(num protowire.Number, typ protowire.Type, v value) error {
		switch num {
		case fieldHandle:
			return v.uint64(typ, &m.Handle)
		case fieldQueryPing:
			return v.str(typ, &m.Ping)
		}
		return nil
	})
}

// BoolResponse answers should-record and test-has-value queries.
type BoolResponse struct {
	Value bool
}

func (m *BoolResponse) Marshal() []byte {
	return appendBool(nil, fieldBoolValue, m.Value)
}

func (m *BoolResponse) Unmarshal(data []byte) error {
	*m = BoolResponse{}
	return walk(data, func(num protowire.Number, typ protowire.Type, v value) error {
		if num == fieldBoolValue {
			return v.boolean(typ, &m.Value)
		}
		return nil
	})
}

// ValueResponse answers a test-get-value query with the stored value in the
// metric's configured time unit.
type ValueResponse struct {
	Nanos int64
}

func (m *ValueResponse) Marshal() []byte {
	return appendVarint(nil, fieldValueNanos, uint64(m.Nanos))
}

func (m *ValueResponse) Unmarshal(data []byte) error {
	*m = ValueResponse{}
	return walk(data, func(num protowire.Number, typ protowire.Type, v value) error {
		if num == fieldValueNanos {
			return v.int64(typ, &m.Nanos)
		}
		return nil
	})
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// value lets a field handler consume exactly one wire value from the walk.
type value struct {
	data     []byte
	consumed *int
}

func (v value) varint(typ protowire.Type) (uint64, error) {
	if typ != protowire.VarintType {
		return 0, fmt.Errorf("%w: unexpected wire type %d for varint field", ErrMalformed, typ)
	}
	u, n := protowire.ConsumeVarint(v.data)
	if n < 0 {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
	}
	*v.consumed = n
	return u, nil
}

func (v value) uint64(typ protowire.Type, dst *uint64) error {
	u, err := v.varint(typ)
	if err != nil {
		return err
	}
	*dst = u
	return nil
}

func (v value) int64(typ protowire.Type, dst *int64) error {
	u, err := v.varint(typ)
	if err != nil {
		return err
	}
	*dst = int64(u)
	return nil
}

func (v value) uint32(typ protowire.Type, dst *uint32) error {
	u, err := v.varint(typ)
	if err != nil {
		return err
	}
	*dst = uint32(u)
	return nil
}

func (v value) boolean(typ protowire.Type, dst *bool) error {
	u, err := v.varint(typ)
	if err != nil {
		return err
	}
	*dst = protowire.DecodeBool(u)
	return nil
}

func (v value) str(typ protowire.Type, dst *string) error {
	if typ != protowire.BytesType {
		return fmt.Errorf("%w: unexpected wire type %d for string field", ErrMalformed, typ)
	}
	s, n := protowire.ConsumeString(v.data)
	if n < 0 {
		return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
	}
	*v.consumed = n
	*dst = s
	return nil
}

// walk iterates the fields of data, invoking handle for each. Unknown fields
// are skipped so the contract can grow without breaking older guests.
func walk(data []byte, handle func(protowire.Number, protowire.Type, value) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		data = data[n:]

		consumed := 0
		if err := handle(num, typ, value{data: data, consumed: &consumed}); err != nil {
			return err
		}

		if consumed == 0 {
			// Field was not claimed by the handler; skip it.
			consumed = protowire.ConsumeFieldValue(num, typ, data)
			if consumed < 0 {
				return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(consumed))
			}
		}
		data = data[consumed:]
	}
	return nil
}
