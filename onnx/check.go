package onnx

import (
	"fmt"

	"github.com/nvr-ai/go-matte/common"
	"google.golang.org/protobuf/encoding/protowire"
)

// Check validates the parts of a serialized model that an initializer rewrite can break.
//
// The model must carry an ir_version and a graph. Initializer names must be non-empty and
// unique, no FLOAT16 initializer may remain, and FLOAT raw_data must match its dims.
//
// Returns:
//   - error: common.ErrInvalidModel describing the first violation.
func Check(model []byte) error {
	fields, err := parseFields(model)
	if err != nil {
		return err
	}
	if _, ok := varintField(fields, modelIRVersion); !ok {
		return fmt.Errorf("%w: missing ir_version", common.ErrInvalidModel)
	}
	graph, ok := last(fields, modelGraph)
	if !ok || graph.typ != protowire.BytesType {
		return fmt.Errorf("%w: missing graph", common.ErrInvalidModel)
	}

	gfields, err := parseFields(graph.bytes)
	if err != nil {
		return err
	}

	seen := make(map[string]bool)
	for _, f := range gfields {
		if f.num != graphInitializer {
			continue
		}
		tfields, err := parseFields(f.bytes)
		if err != nil {
			return err
		}

		name := stringField(tfields, tensorName)
		if name == "" {
			return fmt.Errorf("%w: initializer without a name", common.ErrInvalidModel)
		}
		if seen[name] {
			return fmt.Errorf("%w: duplicate initializer %q", common.ErrInvalidModel, name)
		}
		seen[name] = true

		dt, _ := varintField(tfields, tensorDataType)
		switch DataType(dt) {
		case Float16:
			return fmt.Errorf("%w: initializer %q is still FLOAT16", common.ErrInvalidModel, name)
		case Float:
			raw, ok := last(tfields, tensorRawData)
			if !ok {
				continue
			}
			dims, err := varints(tfields, tensorDims)
			if err != nil {
				return err
			}
			if want := 4 * elementCount(dims); uint64(len(raw.bytes)) != want {
				return fmt.Errorf("%w: initializer %q has %d raw bytes, dims %v need %d",
					common.ErrInvalidModel, name, len(raw.bytes), dims, want)
			}
		}
	}
	return nil
}
