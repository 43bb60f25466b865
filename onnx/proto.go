// Package onnx - Wire-level reading and rewriting of ONNX model files.
//
// Models are handled as raw protobuf so that every field this package does not touch,
// including ones added by newer opsets, is written back unchanged.
package onnx

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ModelProto fields.
const (
	modelIRVersion protowire.Number = 1
	modelGraph     protowire.Number = 7
	modelOpset     protowire.Number = 8
)

// GraphProto fields.
const (
	graphName        protowire.Number = 2
	graphInitializer protowire.Number = 5
	graphInput       protowire.Number = 11
	graphOutput      protowire.Number = 12
)

// TensorProto fields.
const (
	tensorDims         protowire.Number = 1
	tensorDataType     protowire.Number = 2
	tensorFloatData    protowire.Number = 4
	tensorInt32Data    protowire.Number = 5
	tensorName         protowire.Number = 8
	tensorRawData      protowire.Number = 9
	tensorExternalData protowire.Number = 13
	tensorDataLocation protowire.Number = 14
)

// ValueInfoProto, TypeProto and TensorShapeProto fields.
const (
	valueInfoName   protowire.Number = 1
	valueInfoType   protowire.Number = 2
	typeTensor      protowire.Number = 1
	tensorTypeElem  protowire.Number = 1
	tensorTypeShape protowire.Number = 2
	shapeDim        protowire.Number = 1
	dimensionValue  protowire.Number = 1
	dimensionParam  protowire.Number = 2
	opsetDomain     protowire.Number = 1
	opsetVersion    protowire.Number = 2
)

// dataLocationExternal is TensorProto.DataLocation EXTERNAL.
const dataLocationExternal = 1

// DataType is TensorProto.DataType.
type DataType int32

// Tensor element types.
const (
	Undefined  DataType = 0
	Float      DataType = 1
	Uint8      DataType = 2
	Int8       DataType = 3
	Uint16     DataType = 4
	Int16      DataType = 5
	Int32      DataType = 6
	Int64      DataType = 7
	String     DataType = 8
	Bool       DataType = 9
	Float16    DataType = 10
	Double     DataType = 11
	Uint32     DataType = 12
	Uint64     DataType = 13
	Complex64  DataType = 14
	Complex128 DataType = 15
	BFloat16   DataType = 16
)

var dataTypeNames = map[DataType]string{
	Undefined:  "UNDEFINED",
	Float:      "FLOAT",
	Uint8:      "UINT8",
	Int8:       "INT8",
	Uint16:     "UINT16",
	Int16:      "INT16",
	Int32:      "INT32",
	Int64:      "INT64",
	String:     "STRING",
	Bool:       "BOOL",
	Float16:    "FLOAT16",
	Double:     "DOUBLE",
	Uint32:     "UINT32",
	Uint64:     "UINT64",
	Complex64:  "COMPLEX64",
	Complex128: "COMPLEX128",
	BFloat16:   "BFLOAT16",
}

// String returns the ONNX enum name.
func (d DataType) String() string {
	if s, ok := dataTypeNames[d]; ok {
		return s
	}
	return fmt.Sprintf("DataType(%d)", int32(d))
}
