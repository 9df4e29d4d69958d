package wire

import (
	"errors"
	"reflect"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func TestTimespanCreateRoundTrip(t *testing.T) {
	t.Parallel()

	tt := []struct {
		name string
		msg  TimespanCreate
	}{
		{
			name: "all fields",
			msg: TimespanCreate{
				Category:    "engine.startup",
				Name:        "first_paint",
				SendInPings: []string{"baseline", "metrics"},
				Lifetime:    2,
				Disabled:    true,
				TimeUnit:    5,
			},
		},
		{
			name: "zero values survive",
			msg: TimespanCreate{
				Category:    "io",
				Name:        "read",
				SendInPings: []string{"baseline"},
			},
		},
	}

	for _, tc := range tt {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var got TimespanCreate
			if err := got.Unmarshal(tc.msg.Marshal()); err != nil {
				t.Fatalf("Unmarshal returned error: %v", err)
			}
			if !reflect.DeepEqual(got, tc.msg) {
				t.Fatalf("round trip mismatch: want %+v, got %+v", tc.msg, got)
			}
		})
	}
}

func TestTimestampRequestRoundTrip(t *testing.T) {
	t.Parallel()

	msg := TimestampRequest{Handle: 7, TimestampNanos: 1_500_000_000}

	var got TimestampRequest
	if err := got.Unmarshal(msg.Marshal()); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if got != msg {
		t.Fatalf("round trip mismatch: want %+v, got %+v", msg, got)
	}
}

func TestUnknownFieldsAreSkipped(t *testing.T) {
	t.Parallel()

	// A future host may append fields this guest does not know about.
	b := (&QueryRequest{Handle: 3, Ping: "baseline"}).Marshal()
	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendString(b, "from the future")
	b = protowire.AppendTag(b, 100, protowire.VarintType)
	b = protowire.AppendVarint(b, 12345)

	var got QueryRequest
	if err := got.Unmarshal(b); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if got.Handle != 3 || got.Ping != "baseline" {
		t.Fatalf("known fields lost around unknown ones: %+v", got)
	}
}

func TestMalformedPayloads(t *testing.T) {
	t.Parallel()

	valid := (&RawRequest{Handle: 9, Nanos: 42}).Marshal()

	tt := []struct {
		name string
		data []byte
	}{
		{"truncated value", valid[:len(valid)-1]},
		{"bare tag", valid[:1]},
		{"wrong wire type for varint field", append(protowire.AppendTag(nil, 1, protowire.BytesType), protowire.AppendString(nil, "nope")...)},
	}

	for _, tc := range tt {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var got RawRequest
			if err := got.Unmarshal(tc.data); !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestEmptyPayloadDecodesToZeroValue(t *testing.T) {
	t.Parallel()

	var got HandleResponse
	if err := got.Unmarshal(nil); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if got.Handle != 0 {
		t.Fatalf("expected the zero value, got %+v", got)
	}
}
