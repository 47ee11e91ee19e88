package pubsub

import (
	"fmt"

	"github.com/uastack/uacore/pkg/nodestore"
	"github.com/uastack/uacore/pkg/ua"
)

// DataSetFieldTarget resolves one published field's current value. A
// field backed by a ValueSource::External node (spec §4.I's realtime
// requirement) is resolved without going through the service layer.
type DataSetFieldTarget struct {
	Name string
	Node *nodestore.Node
}

// Resolve reads the field's current Value attribute, preferring an
// installed ValueSource (so External-backed fields never pay for a
// service-layer Read).
func (f DataSetFieldTarget) Resolve() ua.DataValue {
	if vs := f.Node.ValueSource(); vs != nil {
		return vs.Read()
	}
	v, ok := f.Node.Attribute(ua.AttrValue)
	if !ok {
		return ua.DataValue{Status: ua.BadAttributeIdInvalid}
	}
	return ua.DataValue{Value: v, Status: ua.Good}
}

// IsRealtimeEligible reports whether this field can participate in the
// fixed-offset realtime path: it must be backed by a ValueSource of
// kind External, and its current Value must be a fixed-length scalar
// (spec §4.I: "every DataSetField to point to a ValueSource::External
// and every scalar field to be numeric or fixed-length").
func (f DataSetFieldTarget) IsRealtimeEligible() bool {
	vs := f.Node.ValueSource()
	if vs == nil || vs.Kind != nodestore.SourceExternal {
		return false
	}
	return fixedWidth(vs.Read().Value.Type) > 0
}

// PublishedDataSet is a named bundle of fields a DataSetWriter turns
// into one DataSet entry of a NetworkMessage.
type PublishedDataSet struct {
	Name   string
	Fields []DataSetFieldTarget
}

// Snapshot reads every field's current value, in field order.
func (ds *PublishedDataSet) Snapshot() []ua.DataValue {
	out := make([]ua.DataValue, len(ds.Fields))
	for i, f := range ds.Fields {
		out[i] = f.Resolve()
	}
	return out
}

// fixedWidth returns the wire width in bytes of a fixed-length scalar
// Variant type, or 0 if the type is not fixed-length (strings, byte
// strings, arrays, extension objects).
func fixedWidth(t ua.TypeID) int {
	switch t {
	case ua.TypeBoolean, ua.TypeSByte, ua.TypeByte:
		return 1
	case ua.TypeInt16, ua.TypeUInt16:
		return 2
	case ua.TypeInt32, ua.TypeUInt32, ua.TypeFloat:
		return 4
	case ua.TypeInt64, ua.TypeUInt64, ua.TypeDouble:
		return 8
	default:
		return 0
	}
}

func (ds *PublishedDataSet) validateRealtime() error {
	for _, f := range ds.Fields {
		if !f.IsRealtimeEligible() {
			return fmt.Errorf("pubsub: field %q is not realtime-eligible (needs ValueSource::External and a fixed-length scalar)", f.Name)
		}
	}
	return nil
}
