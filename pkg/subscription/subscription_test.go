package subscription

import (
	"testing"
	"time"

	"github.com/uastack/uacore/pkg/ua"
)

func TestMonitoredItemReportsOnlyOnChange(t *testing.T) {
	mi := &MonitoredItem{Mode: ModeReporting, QueueSize: 10}
	v1 := ua.DataValue{Value: ua.NewScalarVariant(ua.TypeDouble, 1.0)}
	v2 := ua.DataValue{Value: ua.NewScalarVariant(ua.TypeDouble, 1.0)}
	v3 := ua.DataValue{Value: ua.NewScalarVariant(ua.TypeDouble, 2.0)}

	mi.Sample(v1)
	mi.Sample(v2) // same value, should not queue again
	mi.Sample(v3)

	got := mi.Drain()
	if len(got) != 2 {
		t.Fatalf("want 2 queued notifications, got %d", len(got))
	}
}

func TestMonitoredItemDiscardsOldestWhenFull(t *testing.T) {
	mi := &MonitoredItem{Mode: ModeReporting, QueueSize: 2, DiscardOldest: true}
	for i := 0; i < 4; i++ {
		mi.Sample(ua.DataValue{Value: ua.NewScalarVariant(ua.TypeInt32, int32(i))})
	}
	got := mi.Drain()
	if len(got) != 2 {
		t.Fatalf("want 2 (queue capped), got %d", len(got))
	}
	if got[len(got)-1].Value.Scalar.(int32) != 3 {
		t.Fatalf("expected latest sample retained, got %v", got[len(got)-1].Value.Scalar)
	}
}

func TestSubscriptionPublishCycleKeepAlive(t *testing.T) {
	s := NewSubscription(1, 100*time.Millisecond, 3, 10)
	for i := 0; i < 2; i++ {
		_, keepAlive, expired := s.PublishCycle()
		if keepAlive || expired {
			t.Fatalf("unexpected keepAlive=%v expired=%v on cycle %d", keepAlive, expired, i)
		}
	}
	_, keepAlive, expired := s.PublishCycle()
	if !keepAlive || expired {
		t.Fatalf("want keepAlive on 3rd empty cycle, got keepAlive=%v expired=%v", keepAlive, expired)
	}
}

func TestSubscriptionPublishCycleDeliversNotifications(t *testing.T) {
	s := NewSubscription(1, 100*time.Millisecond, 3, 10)
	mi := s.CreateMonitoredItem(ua.NewNumericNodeId(1, 1), ua.AttrValue, 50*time.Millisecond, 10, false)
	mi.Sample(ua.DataValue{Value: ua.NewScalarVariant(ua.TypeDouble, 5.0)})

	notes, keepAlive, expired := s.PublishCycle()
	if keepAlive || expired {
		t.Fatal("unexpected keepAlive/expired with pending data")
	}
	if len(notes) != 1 || notes[0].MonitoredItemID != mi.ID {
		t.Fatalf("unexpected notifications: %+v", notes)
	}
}

func TestSubscriptionExpiresAfterLifetimeCount(t *testing.T) {
	s := NewSubscription(1, time.Millisecond, 100, 2)
	s.PublishCycle()
	_, _, expired := s.PublishCycle()
	if !expired {
		t.Fatal("expected subscription to expire after lifetime count reached")
	}
}

func TestContentFilterEqualsOperator(t *testing.T) {
	f := ContentFilter{Elements: []ContentFilterElement{
		{Operator: OpEquals, Operands: []Operand{
			{FieldPath: "Severity"},
			{Literal: 500},
		}},
	}}
	cf, err := Compile(f)
	if err != nil {
		t.Fatal(err)
	}
	ok, err := cf.Eval(map[string]any{"Severity": 500})
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected filter to pass for matching severity")
	}
	ok, err = cf.Eval(map[string]any{"Severity": 100})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected filter to reject non-matching severity")
	}
}

func TestContentFilterAndOperator(t *testing.T) {
	f := ContentFilter{Elements: []ContentFilterElement{
		{Operator: OpAnd, Operands: []Operand{
			{IsElementRef: true, ElementIndex: 1},
			{IsElementRef: true, ElementIndex: 2},
		}},
		{Operator: OpGreaterThan, Operands: []Operand{{FieldPath: "Severity"}, {Literal: 100}}},
		{Operator: OpEquals, Operands: []Operand{{FieldPath: "SourceName"}, {Literal: "Boiler"}}},
	}}
	cf, err := Compile(f)
	if err != nil {
		t.Fatal(err)
	}
	ok, err := cf.Eval(map[string]any{"Severity": 500, "SourceName": "Boiler"})
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected AND filter to pass")
	}
}
