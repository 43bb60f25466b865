package onnx

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/nvr-ai/go-matte/common"
	"github.com/pkg/errors"
)

// Dim is one tensor dimension: a fixed size or a symbolic name.
type Dim struct {
	Value int64  `json:"value,omitempty"`
	Param string `json:"param,omitempty"`
}

// String renders the dimension as its size, its symbol, or "?" when unknown.
func (d Dim) String() string {
	switch {
	case d.Param != "":
		return d.Param
	case d.Value > 0:
		return strconv.FormatInt(d.Value, 10)
	default:
		return "?"
	}
}

// ValueInfo describes a graph input or output.
type ValueInfo struct {
	Name     string   `json:"name"`
	ElemType DataType `json:"elem_type"`
	// Dims is nil when the shape is unknown.
	Dims []Dim `json:"dims"`
}

// Shape renders the dims as "[1,3,height,width]".
func (v ValueInfo) Shape() string {
	parts := make([]string, len(v.Dims))
	for i, d := range v.Dims {
		parts[i] = d.String()
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// ModelInfo summarizes a model.
type ModelInfo struct {
	IRVersion    int64            `json:"ir_version"`
	Opsets       map[string]int64 `json:"opsets"`
	GraphName    string           `json:"graph_name"`
	Inputs       []ValueInfo      `json:"inputs"`
	Outputs      []ValueInfo      `json:"outputs"`
	Initializers map[DataType]int `json:"initializers"`
}

// Inspect reads the model metadata relevant to inference and quantization.
//
// Arguments:
//   - model: A serialized ModelProto.
//
// Returns:
//   - *ModelInfo: Inputs, outputs, opsets and initializer counts by data type.
//   - error: common.ErrInvalidModel when the model cannot be parsed or has no graph.
func Inspect(model []byte) (*ModelInfo, error) {
	fields, err := parseFields(model)
	if err != nil {
		return nil, err
	}

	info := &ModelInfo{
		Opsets:       make(map[string]int64),
		Initializers: make(map[DataType]int),
	}
	if v, ok := varintField(fields, modelIRVersion); ok {
		info.IRVersion = int64(v)
	}

	hasGraph := false
	for _, f := range fields {
		switch f.num {
		case modelOpset:
			ofields, err := parseFields(f.bytes)
			if err != nil {
				return nil, err
			}
			version, _ := varintField(ofields, opsetVersion)
			info.Opsets[stringField(ofields, opsetDomain)] = int64(version)
		case modelGraph:
			hasGraph = true
			if err := inspectGraph(f.bytes, info); err != nil {
				return nil, err
			}
		}
	}
	if !hasGraph {
		return nil, fmt.Errorf("%w: missing graph", common.ErrInvalidModel)
	}
	return info, nil
}

// InspectFile reads and inspects the model at path.
func InspectFile(path string) (*ModelInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: model %s", common.ErrNotFound, path)
		}
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	info, err := Inspect(data)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return info, nil
}

func inspectGraph(graph []byte, info *ModelInfo) error {
	fields, err := parseFields(graph)
	if err != nil {
		return err
	}

	info.GraphName = stringField(fields, graphName)
	for _, f := range fields {
		switch f.num {
		case graphInput, graphOutput:
			vi, err := parseValueInfo(f.bytes)
			if err != nil {
				return err
			}
			if f.num == graphInput {
				info.Inputs = append(info.Inputs, vi)
			} else {
				info.Outputs = append(info.Outputs, vi)
			}
		case graphInitializer:
			tfields, err := parseFields(f.bytes)
			if err != nil {
				return err
			}
			dt, _ := varintField(tfields, tensorDataType)
			info.Initializers[DataType(dt)]++
		}
	}
	return nil
}

func parseValueInfo(b []byte) (ValueInfo, error) {
	fields, err := parseFields(b)
	if err != nil {
		return ValueInfo{}, err
	}
	vi := ValueInfo{Name: stringField(fields, valueInfoName)}

	typ, ok := last(fields, valueInfoType)
	if !ok {
		return vi, nil
	}
	tfields, err := parseFields(typ.bytes)
	if err != nil {
		return ValueInfo{}, err
	}
	tensorType, ok := last(tfields, typeTensor)
	if !ok {
		return vi, nil
	}
	ttfields, err := parseFields(tensorType.bytes)
	if err != nil {
		return ValueInfo{}, err
	}
	if elem, ok := varintField(ttfields, tensorTypeElem); ok {
		vi.ElemType = DataType(elem)
	}

	shape, ok := last(ttfields, tensorTypeShape)
	if !ok {
		return vi, nil
	}
	sfields, err := parseFields(shape.bytes)
	if err != nil {
		return ValueInfo{}, err
	}
	vi.Dims = []Dim{}
	for _, f := range sfields {
		if f.num != shapeDim {
			continue
		}
		dfields, err := parseFields(f.bytes)
		if err != nil {
			return ValueInfo{}, err
		}
		var d Dim
		if v, ok := varintField(dfields, dimensionValue); ok {
			d.Value = int64(v)
		}
		d.Param = stringField(dfields, dimensionParam)
		vi.Dims = append(vi.Dims, d)
	}
	return vi, nil
}

// DetectInput returns the name of the image input of the model at path: the first graph input
// of rank 3 or 4, falling back to the first input.
//
// Returns:
//   - string: The input name.
//   - error: common.ErrInvalidModel when the graph has no inputs.
func DetectInput(path string) (string, error) {
	info, err := InspectFile(path)
	if err != nil {
		return "", err
	}
	return info.ImageInput()
}

// ImageInput applies the DetectInput rule to already inspected metadata.
func (m *ModelInfo) ImageInput() (string, error) {
	if len(m.Inputs) == 0 {
		return "", fmt.Errorf("%w: graph has no inputs", common.ErrInvalidModel)
	}
	for _, in := range m.Inputs {
		if r := len(in.Dims); r == 3 || r == 4 {
			return in.Name, nil
		}
	}
	return m.Inputs[0].Name, nil
}
