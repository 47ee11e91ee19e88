package ua

import (
	"fmt"
	"time"
)

// TypeID is the builtin scalar type discriminant carried by a Variant.
type TypeID uint8

const (
	TypeNull TypeID = iota
	TypeBoolean
	TypeSByte
	TypeByte
	TypeInt16
	TypeUInt16
	TypeInt32
	TypeUInt32
	TypeInt64
	TypeUInt64
	TypeFloat
	TypeDouble
	TypeString
	TypeDateTime
	TypeGuid
	TypeByteString
	TypeXmlElement
	TypeNodeId
	TypeExpandedNodeId
	TypeStatusCode
	TypeQualifiedName
	TypeLocalizedText
	TypeExtensionObject
	TypeDataValue
	TypeVariant
	TypeDiagnosticInfo
)

// maxBuiltinType bounds the wire type-id byte (bits 0-5 of the Variant
// encoding byte, per the OPC UA binary encoding of part 6).
const maxBuiltinType = 25

// Variant is a typed value slot (spec §3). An array of length 1 is
// distinct from a scalar: Array != nil, len(Array) == 1 is not the same
// value as Scalar set with Array == nil.
type Variant struct {
	Type             TypeID
	ArrayDimensions  []uint32
	Scalar           any
	Array            []any
	arrayDimsPresent bool
}

func NewScalarVariant(t TypeID, v any) Variant {
	return Variant{Type: t, Scalar: v}
}

func NewArrayVariant(t TypeID, v []any, dims []uint32) Variant {
	vr := Variant{Type: t, Array: v}
	if dims != nil {
		vr.ArrayDimensions = dims
		vr.arrayDimsPresent = true
	}
	return vr
}

func (v Variant) IsArray() bool { return v.Array != nil }

func (v Variant) HasArrayDimensions() bool { return v.arrayDimsPresent }

// IsNull reports the "no value" Variant (TypeNull, no scalar/array data).
func (v Variant) IsNull() bool {
	return v.Type == TypeNull && v.Scalar == nil && v.Array == nil
}

func (v Variant) String() string {
	if v.IsArray() {
		return fmt.Sprintf("Variant{type=%d, array(%d)}", v.Type, len(v.Array))
	}
	return fmt.Sprintf("Variant{type=%d, value=%v}", v.Type, v.Scalar)
}

// DataValue wraps a Variant with its quality and timestamps (spec §3).
// Missing optional fields are tracked with explicit flags rather than
// zero-value sentinels so a present-but-zero timestamp is distinguishable
// from an absent one.
type DataValue struct {
	Value               Variant
	Status              StatusCode
	SourceTimestamp     time.Time
	HasSourceTimestamp  bool
	SourcePicoseconds   uint16
	ServerTimestamp     time.Time
	HasServerTimestamp  bool
	ServerPicoseconds   uint16
}

func NewGoodDataValue(v Variant) DataValue {
	return DataValue{Value: v, Status: Good}
}

func (d DataValue) WithServerTimestamp(t time.Time) DataValue {
	d.ServerTimestamp = t
	d.HasServerTimestamp = true
	return d
}

func (d DataValue) WithSourceTimestamp(t time.Time) DataValue {
	d.SourceTimestamp = t
	d.HasSourceTimestamp = true
	return d
}
