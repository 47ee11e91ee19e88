package services

import (
	"context"
	"testing"

	"github.com/uastack/uacore/pkg/nodestore"
	"github.com/uastack/uacore/pkg/ua"
)

func newTestServer(t *testing.T) (*Server, *nodestore.Node) {
	t.Helper()
	store := nodestore.NewStore()
	n := nodestore.NewNode(ua.NewNumericNodeId(1, 1), ua.ClassVariable, ua.QualifiedName{NamespaceIndex: 1, Name: "Temp"})
	n.SetAttribute(ua.AttrValue, ua.NewScalarVariant(ua.TypeDouble, 21.5))
	if err := store.AddNode(n); err != nil {
		t.Fatal(err)
	}
	return NewServer(store), n
}

func TestReadKnownAndUnknownNode(t *testing.T) {
	s, n := newTestServer(t)
	results := s.Read([]ReadValueId{
		{NodeId: n.NodeId, AttributeId: ua.AttrValue},
		{NodeId: ua.NewNumericNodeId(1, 999), AttributeId: ua.AttrValue},
	})
	if results[0].Status != ua.Good {
		t.Fatalf("want Good, got %v", results[0].Status)
	}
	if results[1].Status != ua.BadNodeIdUnknown {
		t.Fatalf("want BadNodeIdUnknown, got %v", results[1].Status)
	}
}

func TestWriteValue(t *testing.T) {
	s, n := newTestServer(t)
	statuses := s.Write([]WriteValue{
		{NodeId: n.NodeId, AttributeId: ua.AttrValue, Value: ua.DataValue{Value: ua.NewScalarVariant(ua.TypeDouble, 22.0)}},
	})
	if statuses[0] != ua.Good {
		t.Fatalf("want Good, got %v", statuses[0])
	}
	got, _ := n.Attribute(ua.AttrValue)
	if got.Scalar.(float64) != 22.0 {
		t.Fatalf("write did not apply, got %v", got.Scalar)
	}
}

func TestWriteRejectsNodeId(t *testing.T) {
	s, n := newTestServer(t)
	statuses := s.Write([]WriteValue{
		{NodeId: n.NodeId, AttributeId: ua.AttrNodeId, Value: ua.DataValue{}},
	})
	if statuses[0] != ua.BadNotWritable {
		t.Fatalf("want BadNotWritable, got %v", statuses[0])
	}
}

func TestCallInvokesRegisteredMethod(t *testing.T) {
	s, n := newTestServer(t)
	methodId := ua.NewNumericNodeId(1, 50)
	s.RegisterMethod(methodId, func(ctx context.Context, objectId ua.NodeId, args []ua.Variant) ([]ua.Variant, ua.StatusCode) {
		return []ua.Variant{ua.NewScalarVariant(ua.TypeString, "ok")}, ua.Good
	})
	results := s.Call(context.Background(), []CallMethodRequest{
		{ObjectId: n.NodeId, MethodId: methodId},
	})
	if results[0].StatusCode != ua.Good {
		t.Fatalf("want Good, got %v", results[0].StatusCode)
	}
	if results[0].OutputArguments[0].Scalar.(string) != "ok" {
		t.Fatalf("unexpected output: %v", results[0].OutputArguments)
	}
}

func TestCallUnregisteredMethodFails(t *testing.T) {
	s, n := newTestServer(t)
	results := s.Call(context.Background(), []CallMethodRequest{
		{ObjectId: n.NodeId, MethodId: ua.NewNumericNodeId(1, 999)},
	})
	if results[0].StatusCode != ua.BadMethodInvalid {
		t.Fatalf("want BadMethodInvalid, got %v", results[0].StatusCode)
	}
}

func TestAsyncQueueEnqueueComplete(t *testing.T) {
	q := NewAsyncQueue()
	op := &AsyncOp{RequestID: 1, Done: make(chan struct{})}
	q.Enqueue(op)
	if q.Pending() != 1 {
		t.Fatalf("want 1 pending, got %d", q.Pending())
	}
	got, ok := q.Complete(1)
	if !ok || got != op {
		t.Fatal("expected to complete the enqueued op")
	}
	if q.Pending() != 0 {
		t.Fatalf("want 0 pending after complete, got %d", q.Pending())
	}
}
