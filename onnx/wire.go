package onnx

import (
	"fmt"

	"github.com/nvr-ai/go-matte/common"
	"google.golang.org/protobuf/encoding/protowire"
)

// field is one decoded protobuf field. raw holds the complete encoding, tag included, so
// untouched fields can be re-emitted byte for byte.
type field struct {
	num    protowire.Number
	typ    protowire.Type
	varint uint64
	bytes  []byte
	raw    []byte
}

// parseFields splits a message into its top-level fields.
func parseFields(b []byte) ([]field, error) {
	var fields []field
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %w", common.ErrInvalidModel, protowire.ParseError(n))
		}
		m := protowire.ConsumeFieldValue(num, typ, b[n:])
		if m < 0 {
			return nil, fmt.Errorf("%w: field %d: %w", common.ErrInvalidModel, num, protowire.ParseError(m))
		}

		f := field{num: num, typ: typ, raw: b[:n+m]}
		switch typ {
		case protowire.VarintType:
			f.varint, _ = protowire.ConsumeVarint(b[n:])
		case protowire.BytesType:
			f.bytes, _ = protowire.ConsumeBytes(b[n:])
		}
		fields = append(fields, f)
		b = b[n+m:]
	}
	return fields, nil
}

// varints decodes a repeated integer field that may be packed or unpacked.
func varints(fields []field, num protowire.Number) ([]uint64, error) {
	var out []uint64
	for _, f := range fields {
		if f.num != num {
			continue
		}
		switch f.typ {
		case protowire.VarintType:
			out = append(out, f.varint)
		case protowire.BytesType:
			b := f.bytes
			for len(b) > 0 {
				v, n := protowire.ConsumeVarint(b)
				if n < 0 {
					return nil, fmt.Errorf("%w: packed field %d: %w", common.ErrInvalidModel, num, protowire.ParseError(n))
				}
				out = append(out, v)
				b = b[n:]
			}
		default:
			return nil, fmt.Errorf("%w: field %d has wire type %d", common.ErrInvalidModel, num, f.typ)
		}
	}
	return out, nil
}

// last returns the final occurrence of a singular field, which is the value protobuf keeps.
func last(fields []field, num protowire.Number) (field, bool) {
	var found field
	ok := false
	for _, f := range fields {
		if f.num == num {
			found, ok = f, true
		}
	}
	return found, ok
}

func stringField(fields []field, num protowire.Number) string {
	f, ok := last(fields, num)
	if !ok {
		return ""
	}
	return string(f.bytes)
}

func varintField(fields []field, num protowire.Number) (uint64, bool) {
	f, ok := last(fields, num)
	if !ok || f.typ != protowire.VarintType {
		return 0, false
	}
	return f.varint, true
}
