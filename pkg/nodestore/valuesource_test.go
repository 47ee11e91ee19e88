package nodestore

import (
	"testing"

	"github.com/uastack/uacore/pkg/ua"
)

func TestExternalValueSourceCellIsSharedPointer(t *testing.T) {
	vs := NewExternalValueSource(ua.DataValue{Value: ua.NewScalarVariant(ua.TypeDouble, 1.0)})
	cell := vs.Cell()
	cell.Value = ua.NewScalarVariant(ua.TypeDouble, 2.0)

	got := vs.Read()
	if got.Value.Scalar.(float64) != 2.0 {
		t.Fatalf("want cell mutation visible through Read, got %v", got.Value.Scalar)
	}
}

func TestCallbackValueSourceInvokesHandlers(t *testing.T) {
	var written ua.DataValue
	vs := NewCallbackValueSource(
		func() ua.DataValue { return ua.DataValue{Value: ua.NewScalarVariant(ua.TypeInt32, int32(7))} },
		func(v ua.DataValue) ua.StatusCode { written = v; return ua.Good },
	)
	if got := vs.Read(); got.Value.Scalar.(int32) != 7 {
		t.Fatalf("want 7, got %v", got.Value.Scalar)
	}
	if status := vs.Write(ua.DataValue{Value: ua.NewScalarVariant(ua.TypeInt32, int32(9))}); status != ua.Good {
		t.Fatalf("want Good, got %v", status)
	}
	if written.Value.Scalar.(int32) != 9 {
		t.Fatalf("callback did not observe write, got %v", written.Value.Scalar)
	}
}

func TestNodeValueSourceOverridesAttributeRead(t *testing.T) {
	n := NewNode(ua.NewNumericNodeId(1, 1), ua.ClassVariable, ua.QualifiedName{NamespaceIndex: 1, Name: "X"})
	n.SetValueSource(NewInternalValueSource(ua.DataValue{Value: ua.NewScalarVariant(ua.TypeBoolean, true)}))
	if n.ValueSource() == nil {
		t.Fatal("expected ValueSource to be set")
	}
	got := n.ValueSource().Read()
	if got.Value.Scalar.(bool) != true {
		t.Fatalf("unexpected value: %v", got.Value.Scalar)
	}
}
