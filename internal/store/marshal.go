package store

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/roach88/reteflow/internal/ir"
	"github.com/roach88/reteflow/internal/topology"
)

// descriptorFormat prefixes every stored descriptor blob so the encoding
// can change without guessing.
const descriptorFormat byte = 1

// marshalDescriptor encodes a descriptor for the descriptor BLOB column.
func marshalDescriptor(d *topology.Descriptor) ([]byte, error) {
	raw, err := msgpack.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal descriptor: %w", err)
	}
	return append([]byte{descriptorFormat}, raw...), nil
}

// unmarshalDescriptor decodes a descriptor BLOB.
func unmarshalDescriptor(data []byte) (*topology.Descriptor, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("unmarshal descriptor: empty blob")
	}
	if data[0] != descriptorFormat {
		return nil, fmt.Errorf("unmarshal descriptor: unknown format %d", data[0])
	}
	var d topology.Descriptor
	if err := msgpack.Unmarshal(data[1:], &d); err != nil {
		return nil, fmt.Errorf("unmarshal descriptor: %w", err)
	}
	return &d, nil
}

// marshalTriple encodes one reference fact for the triple BLOB column.
func marshalTriple(t ir.Triple) ([]byte, error) {
	raw, err := msgpack.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal triple: %w", err)
	}
	return raw, nil
}

// unmarshalTriple decodes a triple BLOB.
func unmarshalTriple(data []byte) (ir.Triple, error) {
	var t ir.Triple
	if err := msgpack.Unmarshal(data, &t); err != nil {
		return ir.Triple{}, fmt.Errorf("unmarshal triple: %w", err)
	}
	return t, nil
}
