/*
Package wire defines the payload encoding for the metrics host contract.

Messages use protobuf wire format, hand-encoded with the protowire package.
The host side of the contract owns the schema; field numbers declared here
are stable and unknown fields are skipped on decode so host and guest can
evolve independently.
*/
package wire
