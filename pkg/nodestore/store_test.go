package nodestore

import (
	"errors"
	"testing"

	"github.com/uastack/uacore/pkg/ua"
)

func TestAddGetDeleteNode(t *testing.T) {
	s := NewStore()
	n := NewNode(ua.NewNumericNodeId(1, 100), ua.ClassObject, ua.QualifiedName{NamespaceIndex: 1, Name: "Thing"})
	if err := s.AddNode(n); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(n.NodeId)
	if err != nil {
		t.Fatal(err)
	}
	if got.BrowseName.Name != "Thing" {
		t.Fatalf("got %q", got.BrowseName.Name)
	}
	if err := s.DeleteNode(n.NodeId, false); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(n.NodeId); !errors.Is(err, ErrNodeNotFound) {
		t.Fatalf("want ErrNodeNotFound, got %v", err)
	}
}

func TestAddNodeRejectsDuplicate(t *testing.T) {
	s := NewStore()
	id := ua.NewNumericNodeId(1, 1)
	n1 := NewNode(id, ua.ClassObject, ua.QualifiedName{NamespaceIndex: 1, Name: "A"})
	n2 := NewNode(id, ua.ClassObject, ua.QualifiedName{NamespaceIndex: 1, Name: "B"})
	if err := s.AddNode(n1); err != nil {
		t.Fatal(err)
	}
	if err := s.AddNode(n2); err == nil {
		t.Fatal("expected duplicate insert to fail")
	}
}

func TestBidirectionalReference(t *testing.T) {
	s := NewStore()
	parent := NewNode(ua.NewNumericNodeId(1, 1), ua.ClassObject, ua.QualifiedName{NamespaceIndex: 1, Name: "Parent"})
	child := NewNode(ua.NewNumericNodeId(1, 2), ua.ClassObject, ua.QualifiedName{NamespaceIndex: 1, Name: "Child"})
	if err := s.AddNode(parent); err != nil {
		t.Fatal(err)
	}
	if err := s.AddNode(child); err != nil {
		t.Fatal(err)
	}
	kind := ReferenceKind{TypeId: ua.NewNumericNodeId(0, ua.IdOrganizes)}
	if err := s.AddReference(parent.NodeId, kind, ua.ExpandedNodeId{NodeId: child.NodeId}); err != nil {
		t.Fatal(err)
	}
	if len(parent.References(&kind)) != 1 {
		t.Fatal("parent should have forward reference")
	}
	inverse := ReferenceKind{TypeId: kind.TypeId, IsInverse: true}
	refs := child.References(&inverse)
	if len(refs) != 1 || !refs[0].Target.NodeId.Equal(parent.NodeId) {
		t.Fatalf("child should have mirrored inverse reference, got %v", refs)
	}
}

func TestDeleteNodeRejectsBorrowed(t *testing.T) {
	s := NewStore()
	n := NewNode(ua.NewNumericNodeId(1, 1), ua.ClassObject, ua.QualifiedName{NamespaceIndex: 1, Name: "X"})
	if err := s.AddNode(n); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Borrow(n.NodeId); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteNode(n.NodeId, false); !errors.Is(err, ErrNodeBorrowed) {
		t.Fatalf("want ErrNodeBorrowed, got %v", err)
	}
	s.Release(n)
	if err := s.DeleteNode(n.NodeId, false); err != nil {
		t.Fatalf("delete after release should succeed: %v", err)
	}
}

type recordingHook struct {
	constructed []ua.NodeId
	destructed  []ua.NodeId
}

func (h *recordingHook) OnConstruct(n *Node) error {
	h.constructed = append(h.constructed, n.NodeId)
	return nil
}
func (h *recordingHook) OnDestruct(n *Node) {
	h.destructed = append(h.destructed, n.NodeId)
}

func TestConstructorDestructorHooksFire(t *testing.T) {
	s := NewStore()
	hook := &recordingHook{}
	s.RegisterHook(hook)

	n := NewNode(ua.NewNumericNodeId(1, 1), ua.ClassObject, ua.QualifiedName{NamespaceIndex: 1, Name: "X"})
	if err := s.AddNode(n); err != nil {
		t.Fatal(err)
	}
	if len(hook.constructed) != 1 {
		t.Fatalf("want 1 construct call, got %d", len(hook.constructed))
	}
	if err := s.DeleteNode(n.NodeId, false); err != nil {
		t.Fatal(err)
	}
	if len(hook.destructed) != 1 {
		t.Fatalf("want 1 destruct call, got %d", len(hook.destructed))
	}
}

func TestAddNodesRejectsAbstractType(t *testing.T) {
	s := NewStore()
	abstractType := NewNode(ua.NewNumericNodeId(0, 999), ua.ClassObjectType, ua.QualifiedName{Name: "AbstractThingType"})
	abstractType.SetAttribute(ua.AttrIsAbstract, ua.NewScalarVariant(ua.TypeBoolean, true))
	if err := s.AddNode(abstractType); err != nil {
		t.Fatal(err)
	}

	item := AddNodesItem{
		RequestedNewNodeId: ua.NewNumericNodeId(1, 1),
		BrowseName:         ua.QualifiedName{NamespaceIndex: 1, Name: "Instance"},
		NodeClass:          ua.ClassObject,
		TypeDefinition:     abstractType.NodeId,
	}
	if _, err := s.AddNodes(item); err == nil {
		t.Fatal("expected abstract type instantiation to be rejected")
	}
}

func TestAddNodesInstantiatesMandatoryChild(t *testing.T) {
	s := NewStore()

	objType := NewNode(ua.NewNumericNodeId(0, 1000), ua.ClassObjectType, ua.QualifiedName{Name: "ThingType"})
	if err := s.AddNode(objType); err != nil {
		t.Fatal(err)
	}

	mandatoryChild := NewNode(ua.NewNumericNodeId(0, 1001), ua.ClassVariable, ua.QualifiedName{Name: "Temperature"})
	if err := s.AddNode(mandatoryChild); err != nil {
		t.Fatal(err)
	}
	if err := s.AddReference(objType.NodeId, refAggregates, ua.ExpandedNodeId{NodeId: mandatoryChild.NodeId}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddReference(mandatoryChild.NodeId, refHasModellingRule, ua.ExpandedNodeId{NodeId: modellingRuleMandatory}); err != nil {
		t.Fatal(err)
	}

	item := AddNodesItem{
		RequestedNewNodeId: ua.NewNumericNodeId(1, 1),
		BrowseName:         ua.QualifiedName{NamespaceIndex: 1, Name: "Thing1"},
		NodeClass:          ua.ClassObject,
		TypeDefinition:     objType.NodeId,
	}
	inst, err := s.AddNodes(item)
	if err != nil {
		t.Fatal(err)
	}

	children := inst.References(&refAggregates)
	if len(children) != 1 {
		t.Fatalf("want 1 instantiated child, got %d", len(children))
	}
	childNode, err := s.Get(children[0].Target.NodeId)
	if err != nil {
		t.Fatal(err)
	}
	if childNode.BrowseName.Name != "Temperature" {
		t.Fatalf("got child named %q", childNode.BrowseName.Name)
	}
}
