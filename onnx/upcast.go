package onnx

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/nvr-ai/go-matte/common"
	"github.com/pkg/errors"
	"github.com/x448/float16"
	"google.golang.org/protobuf/encoding/protowire"
)

// UpcastPath returns the default destination for an upcast copy of in.
func UpcastPath(in string) string {
	return strings.TrimSuffix(in, filepath.Ext(in)) + "_fp32_tmp.onnx"
}

// UpcastFile rewrites every FLOAT16 initializer of the model at in as FLOAT and writes the
// result to out.
//
// Arguments:
//   - in: Source model path.
//   - out: Destination model path.
//
// Returns:
//   - int: The number of converted initializers.
//   - error: common.ErrInvalidModel when the model cannot be parsed or fails validation.
func UpcastFile(in, out string) (int, error) {
	data, err := os.ReadFile(in)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: model %s", common.ErrNotFound, in)
		}
		return 0, errors.Wrapf(err, "reading %s", in)
	}

	upcast, n, err := Upcast(data)
	if err != nil {
		return 0, errors.Wrap(err, in)
	}

	if err := os.WriteFile(out, upcast, 0o644); err != nil {
		return 0, errors.Wrapf(err, "writing %s", out)
	}

	slog.Info("fp16 initializers upcast", "count", n, "out", out)
	return n, nil
}

// Upcast rewrites every FLOAT16 graph initializer of a serialized model as FLOAT.
//
// Converted tensors keep their name and position; values are widened exactly and stored as
// little-endian raw_data. Every other byte of the model is preserved. The result is checked
// with Check before it is returned.
//
// Arguments:
//   - model: A serialized ModelProto.
//
// Returns:
//   - []byte: The rewritten model.
//   - int: The number of converted initializers.
//   - error: common.ErrInvalidModel for unparsable models, external tensor data or a failed check.
func Upcast(model []byte) ([]byte, int, error) {
	fields, err := parseFields(model)
	if err != nil {
		return nil, 0, err
	}

	out := make([]byte, 0, len(model)+len(model)/2)
	count := 0
	for _, f := range fields {
		if f.num != modelGraph || f.typ != protowire.BytesType {
			out = append(out, f.raw...)
			continue
		}

		graph, n, err := upcastGraph(f.bytes)
		if err != nil {
			return nil, 0, err
		}
		count += n
		out = protowire.AppendTag(out, modelGraph, protowire.BytesType)
		out = protowire.AppendBytes(out, graph)
	}

	if err := Check(out); err != nil {
		return nil, 0, err
	}
	return out, count, nil
}

func upcastGraph(graph []byte) ([]byte, int, error) {
	fields, err := parseFields(graph)
	if err != nil {
		return nil, 0, err
	}

	out := make([]byte, 0, len(graph))
	count := 0
	for _, f := range fields {
		if f.num != graphInitializer || f.typ != protowire.BytesType {
			out = append(out, f.raw...)
			continue
		}

		tensor, changed, err := upcastTensor(f.bytes)
		if err != nil {
			return nil, 0, err
		}
		if !changed {
			out = append(out, f.raw...)
			continue
		}
		count++
		out = protowire.AppendTag(out, graphInitializer, protowire.BytesType)
		out = protowire.AppendBytes(out, tensor)
	}
	return out, count, nil
}

// upcastTensor converts one FLOAT16 TensorProto. Tensors of any other type are reported
// unchanged.
func upcastTensor(b []byte) ([]byte, bool, error) {
	fields, err := parseFields(b)
	if err != nil {
		return nil, false, err
	}

	dt, _ := varintField(fields, tensorDataType)
	if DataType(dt) != Float16 {
		return nil, false, nil
	}

	name := stringField(fields, tensorName)
	if loc, ok := varintField(fields, tensorDataLocation); ok && loc == dataLocationExternal {
		return nil, false, fmt.Errorf("%w: initializer %q uses external data", common.ErrInvalidModel, name)
	}
	if _, ok := last(fields, tensorExternalData); ok {
		return nil, false, fmt.Errorf("%w: initializer %q uses external data", common.ErrInvalidModel, name)
	}

	dims, err := varints(fields, tensorDims)
	if err != nil {
		return nil, false, err
	}

	halves, err := halfValues(fields)
	if err != nil {
		return nil, false, fmt.Errorf("initializer %q: %w", name, err)
	}
	if want := elementCount(dims); uint64(len(halves)) != want {
		return nil, false, fmt.Errorf("%w: initializer %q has %d values, dims %v need %d",
			common.ErrInvalidModel, name, len(halves), dims, want)
	}

	raw := make([]byte, 4*len(halves))
	for i, h := range halves {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(float16.Frombits(h).Float32()))
	}

	out := make([]byte, 0, len(b)+len(raw))
	for _, f := range fields {
		switch f.num {
		case tensorDataType:
			out = protowire.AppendTag(out, tensorDataType, protowire.VarintType)
			out = protowire.AppendVarint(out, uint64(Float))
		case tensorInt32Data, tensorRawData:
		default:
			out = append(out, f.raw...)
		}
	}
	out = protowire.AppendTag(out, tensorRawData, protowire.BytesType)
	out = protowire.AppendBytes(out, raw)

	return out, true, nil
}

// halfValues reads FLOAT16 payloads from raw_data, or from the low 16 bits of int32_data.
func halfValues(fields []field) ([]uint16, error) {
	if raw, ok := last(fields, tensorRawData); ok {
		if len(raw.bytes)%2 != 0 {
			return nil, fmt.Errorf("%w: raw_data has odd length %d", common.ErrInvalidModel, len(raw.bytes))
		}
		halves := make([]uint16, len(raw.bytes)/2)
		for i := range halves {
			halves[i] = binary.LittleEndian.Uint16(raw.bytes[2*i:])
		}
		return halves, nil
	}

	ints, err := varints(fields, tensorInt32Data)
	if err != nil {
		return nil, err
	}
	halves := make([]uint16, len(ints))
	for i, v := range ints {
		halves[i] = uint16(v)
	}
	return halves, nil
}

func elementCount(dims []uint64) uint64 {
	n := uint64(1)
	for _, d := range dims {
		n *= d
	}
	return n
}
