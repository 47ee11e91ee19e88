package pubsub

import (
	"testing"
	"time"

	"github.com/uastack/uacore/pkg/eventloop"
	"github.com/uastack/uacore/pkg/nodestore"
	"github.com/uastack/uacore/pkg/ua"
)

// memTransport is an in-process Transport used by tests: Publish on one
// end delivers synchronously to every Subscribe callback registered for
// the same topic, standing in for a real broker/UDP socket.
type memTransport struct {
	state eventloop.SourceState
	subs  map[string][]func([]byte)
}

func newMemTransport() *memTransport {
	return &memTransport{state: eventloop.SourceStopped, subs: make(map[string][]func([]byte))}
}

func (t *memTransport) Name() string                 { return "mem" }
func (t *memTransport) State() eventloop.SourceState { return t.state }
func (t *memTransport) Start() error                  { t.state = eventloop.SourceStarted; return nil }
func (t *memTransport) Stop()                         { t.state = eventloop.SourceStopped }

func (t *memTransport) Publish(topic string, data []byte) error {
	for _, cb := range t.subs[topic] {
		cb(data)
	}
	return nil
}

func (t *memTransport) Subscribe(topic string, onMessage func(data []byte)) error {
	t.subs[topic] = append(t.subs[topic], onMessage)
	return nil
}

func newVariableNode(id ua.NodeId, t ua.TypeID, initial any, external bool) *nodestore.Node {
	n := nodestore.NewNode(id, ua.ClassVariable, ua.QualifiedName{NamespaceIndex: 1, Name: "Field"})
	dv := ua.DataValue{Value: ua.NewScalarVariant(t, initial), Status: ua.Good}
	if external {
		n.SetValueSource(nodestore.NewExternalValueSource(dv))
	} else {
		n.SetAttribute(ua.AttrValue, dv.Value)
	}
	return n
}

func TestUADPEncodeDecodeRoundTrip(t *testing.T) {
	msg := NetworkMessage{
		WriterGroupID:   1,
		DataSetWriterID: 2,
		Fields: []ua.DataValue{
			{Value: ua.NewScalarVariant(ua.TypeDouble, 3.25), Status: ua.Good},
			{Value: ua.NewScalarVariant(ua.TypeInt32, int32(-7)), Status: ua.Good},
		},
	}
	data, err := Encode(msg, EncodingUADP)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(data, EncodingUADP)
	if err != nil {
		t.Fatal(err)
	}
	if got.WriterGroupID != 1 || got.DataSetWriterID != 2 {
		t.Fatalf("header mismatch: %+v", got)
	}
	if got.Fields[0].Value.Scalar.(float64) != 3.25 {
		t.Fatalf("field 0 mismatch: %v", got.Fields[0].Value.Scalar)
	}
	if got.Fields[1].Value.Scalar.(int32) != -7 {
		t.Fatalf("field 1 mismatch: %v", got.Fields[1].Value.Scalar)
	}
}

func TestJSONEncodeDecodeRoundTrip(t *testing.T) {
	msg := NetworkMessage{
		WriterGroupID:   5,
		DataSetWriterID: 9,
		Fields: []ua.DataValue{
			{Value: ua.NewScalarVariant(ua.TypeString, "hello"), Status: ua.Good},
		},
	}
	data, err := Encode(msg, EncodingJSON)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(data, EncodingJSON)
	if err != nil {
		t.Fatal(err)
	}
	if got.Fields[0].Value.Scalar.(string) != "hello" {
		t.Fatalf("unexpected field: %v", got.Fields[0].Value.Scalar)
	}
}

func TestPublishCycleDeliversToReader(t *testing.T) {
	transport := newMemTransport()
	conn := NewPubSubConnection("conn1", ProfileBroker, transport)
	if err := conn.Open(); err != nil {
		t.Fatal(err)
	}

	field := newVariableNode(ua.NewNumericNodeId(1, 1), ua.TypeDouble, 21.5, false)
	ds := &PublishedDataSet{Name: "temps", Fields: []DataSetFieldTarget{{Name: "temp", Node: field}}}
	wg := NewWriterGroup(1, 100*time.Millisecond, EncodingUADP, "topic.temps")
	wg.AddDataSetWriter(NewDataSetWriter(1, ds, false))
	conn.AddWriterGroup(wg)

	rg := NewReaderGroup(1, EncodingUADP, "topic.temps")
	var received ua.DataValue
	rg.AddDataSetReader(&DataSetReader{
		WriterGroupID:   1,
		DataSetWriterID: 1,
		Targets:         []TargetVariable{func(v ua.DataValue) { received = v }},
	})
	conn.AddReaderGroup(rg)
	if err := rg.Start(); err != nil {
		t.Fatal(err)
	}

	if err := wg.PublishCycle(); err != nil {
		t.Fatal(err)
	}
	if received.Value.Scalar.(float64) != 21.5 {
		t.Fatalf("reader did not receive published value, got %v", received.Value.Scalar)
	}
	if conn.State() != StateOperational {
		t.Fatalf("want connection Operational after first delivery, got %s", conn.State())
	}
}

func TestRealtimeWriterRejectsNonExternalField(t *testing.T) {
	transport := newMemTransport()
	conn := NewPubSubConnection("conn2", ProfileBroker, transport)
	if err := conn.Open(); err != nil {
		t.Fatal(err)
	}
	field := newVariableNode(ua.NewNumericNodeId(1, 2), ua.TypeDouble, 1.0, false) // internal, not external
	ds := &PublishedDataSet{Name: "rt", Fields: []DataSetFieldTarget{{Name: "x", Node: field}}}
	wg := NewWriterGroup(2, 10*time.Millisecond, EncodingUADP, "topic.rt")
	wg.AddDataSetWriter(NewDataSetWriter(1, ds, true))
	conn.AddWriterGroup(wg)

	if err := wg.PublishCycle(); err == nil {
		t.Fatal("expected realtime publish to reject a non-External field")
	}
}

func TestRealtimeWriterOverwritesAtFixedOffsets(t *testing.T) {
	transport := newMemTransport()
	conn := NewPubSubConnection("conn3", ProfileBroker, transport)
	if err := conn.Open(); err != nil {
		t.Fatal(err)
	}
	field := newVariableNode(ua.NewNumericNodeId(1, 3), ua.TypeDouble, 1.0, true)
	ds := &PublishedDataSet{Name: "rt", Fields: []DataSetFieldTarget{{Name: "x", Node: field}}}
	writer := NewDataSetWriter(1, ds, true)
	wg := NewWriterGroup(3, 10*time.Millisecond, EncodingUADP, "topic.rt2")
	wg.AddDataSetWriter(writer)
	conn.AddWriterGroup(wg)

	rg := NewReaderGroup(1, EncodingUADP, "topic.rt2")
	var received float64
	rg.AddDataSetReader(&DataSetReader{
		WriterGroupID:   3,
		DataSetWriterID: 1,
		Targets:         []TargetVariable{func(v ua.DataValue) { received = v.Value.Scalar.(float64) }},
	})
	conn.AddReaderGroup(rg)
	if err := rg.Start(); err != nil {
		t.Fatal(err)
	}

	if err := wg.PublishCycle(); err != nil {
		t.Fatal(err)
	}
	if received != 1.0 {
		t.Fatalf("want 1.0 on first cycle, got %v", received)
	}

	field.ValueSource().Cell().Value = ua.NewScalarVariant(ua.TypeDouble, 99.0)
	if err := wg.PublishCycle(); err != nil {
		t.Fatal(err)
	}
	if received != 99.0 {
		t.Fatalf("want 99.0 after updating external cell, got %v", received)
	}
	if !writer.offsetsBuilt {
		t.Fatal("expected realtime offsets to be computed once")
	}
}
