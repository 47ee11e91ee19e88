package nodestore

import (
	"fmt"

	"github.com/uastack/uacore/pkg/ua"
)

// AddNodesItem is one entry of an AddNodes service call: the node to
// create plus the TypeDefinition it should be instantiated from (spec
// §4.F / services AddNodes).
type AddNodesItem struct {
	RequestedNewNodeId ua.NodeId
	BrowseName         ua.QualifiedName
	NodeClass          ua.NodeClass
	TypeDefinition     ua.NodeId // zero NodeId (IsNull) for References/Views without a type
	ParentNodeId       ua.NodeId
	ReferenceTypeId    ua.NodeId
}

// refHasTypeDefinition, refHasModellingRule and their siblings are the ReferenceKinds
// used while walking a type's declaration during instantiation.
var (
	refHasTypeDefinition = ReferenceKind{TypeId: ua.NewNumericNodeId(0, ua.IdHasTypeDefinition)}
	refHasModellingRule  = ReferenceKind{TypeId: ua.NewNumericNodeId(0, ua.IdHasModellingRule)}
	refHasSubtype        = ReferenceKind{TypeId: ua.NewNumericNodeId(0, ua.IdHasSubtype)}
	refAggregates        = ReferenceKind{TypeId: ua.NewNumericNodeId(0, ua.IdAggregates)}
	refOrganizes         = ReferenceKind{TypeId: ua.NewNumericNodeId(0, ua.IdOrganizes)}
)

var modellingRuleMandatory = ua.NewNumericNodeId(0, ua.IdModellingRuleMandatory)
var modellingRuleOptional = ua.NewNumericNodeId(0, ua.IdModellingRuleOptional)

// AddNodes instantiates item against s: it creates the requested node,
// links it under its parent, and — if item.TypeDefinition names an
// ObjectType/VariableType — recursively instantiates every Mandatory
// child, plus any Optional child s.optionalChildFilter opts into,
// declared on the type and its supertypes, per the ModellingRule rules
// (spec §4.F, "AddNodes type-instantiation rules").
//
// Instantiating an abstract type directly (IsAbstract attribute true)
// is rejected; abstract types exist only to be subtyped.
func (s *Store) AddNodes(item AddNodesItem) (*Node, error) {
	if !item.TypeDefinition.IsNull() {
		typeNode, err := s.Get(item.TypeDefinition)
		if err != nil {
			return nil, fmt.Errorf("nodestore: type definition %s: %w", item.TypeDefinition, err)
		}
		if abstractAttr, ok := typeNode.Attribute(ua.AttrIsAbstract); ok {
			if b, ok := abstractAttr.Scalar.(bool); ok && b {
				return nil, fmt.Errorf("%w: %s", ErrTypeAbstract, item.TypeDefinition)
			}
		}
	}

	n := NewNode(item.RequestedNewNodeId, item.NodeClass, item.BrowseName)
	n.DisplayName = ua.LocalizedText{Text: item.BrowseName.Name}
	if err := s.AddNode(n); err != nil {
		return nil, err
	}

	if !item.ParentNodeId.IsNull() {
		refKind := ReferenceKind{TypeId: item.ReferenceTypeId}
		if err := s.AddReference(item.ParentNodeId, refKind, ua.ExpandedNodeId{NodeId: n.NodeId}); err != nil {
			return nil, fmt.Errorf("nodestore: link to parent: %w", err)
		}
	}

	if !item.TypeDefinition.IsNull() {
		if err := s.AddReference(n.NodeId, refHasTypeDefinition, ua.ExpandedNodeId{NodeId: item.TypeDefinition}); err != nil {
			return nil, fmt.Errorf("nodestore: link type definition: %w", err)
		}
		if err := s.instantiateChildren(n, item.TypeDefinition, map[ua.NodeIdKey]bool{}); err != nil {
			return nil, err
		}
	}

	return n, nil
}

// instantiateChildren walks typeId and its supertype chain, creating a
// copy of every Mandatory child component/property under instance, plus
// any Optional child s.optionalChildFilter opts into. seen guards
// against supertype cycles.
func (s *Store) instantiateChildren(instance *Node, typeId ua.NodeId, seen map[ua.NodeIdKey]bool) error {
	if seen[typeId.MapKey()] {
		return nil
	}
	seen[typeId.MapKey()] = true

	typeNode, err := s.Get(typeId)
	if err != nil {
		return fmt.Errorf("nodestore: walk type %s: %w", typeId, err)
	}

	for _, childRefKind := range []ReferenceKind{refAggregates, refOrganizes} {
		for _, ref := range typeNode.References(&childRefKind) {
			if ref.Kind.IsInverse || !ref.Target.IsLocal() {
				continue
			}
			childType, err := s.Get(ref.Target.NodeId)
			if err != nil {
				continue
			}
			rule, mandatory := modellingRuleOf(childType)
			if !mandatory && rule.Equal(ua.Null) {
				continue // no ModellingRule: the child is type-only metadata, not instantiated
			}
			if !mandatory && !rule.Equal(modellingRuleOptional) {
				continue
			}
			if !mandatory && (s.optionalChildFilter == nil || !s.optionalChildFilter(typeNode, childType)) {
				continue // Optional child: only copied if a filter opts in (spec §4.F step 3)
			}

			childId, err := freshInstanceId(instance.NodeId, childType.BrowseName)
			if err != nil {
				return err
			}
			if _, err := s.Get(childId); err == nil {
				continue // already instantiated from a subtype's declaration of the same BrowseName
			}
			item := AddNodesItem{
				RequestedNewNodeId: childId,
				BrowseName:         childType.BrowseName,
				NodeClass:          childType.Class,
				ParentNodeId:       instance.NodeId,
				ReferenceTypeId:    childRefKind.TypeId,
			}
			if _, err := s.AddNodes(item); err != nil {
				return fmt.Errorf("nodestore: instantiate child %s: %w", childType.BrowseName, err)
			}
		}
	}

	for _, ref := range typeNode.References(&refHasSubtypeInverse) {
		if ref.Kind.IsInverse && ref.Target.IsLocal() {
			if err := s.instantiateChildren(instance, ref.Target.NodeId, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

// refHasSubtypeInverse is the "I am a subtype of" edge: AddReference
// mirrors every forward HasSubtype edge onto the target node with
// IsInverse flipped, so walking from a type upward via this kind
// reaches its declared supertype.
var refHasSubtypeInverse = ReferenceKind{TypeId: ua.NewNumericNodeId(0, ua.IdHasSubtype), IsInverse: true}

// IsSubtypeOrEqual reports whether nodeId names ancestorId itself, or
// reaches it by walking HasSubtype edges upward through the type
// hierarchy. Used to validate an EventFilter select clause's
// TypeDefinition against BaseEventType (spec §4.H / S6): a clause whose
// TypeDefinition is not BaseEventType or a subtype of it is invalid.
func (s *Store) IsSubtypeOrEqual(nodeId, ancestorId ua.NodeId) bool {
	seen := map[ua.NodeIdKey]bool{}
	cur := nodeId
	for {
		if cur.Equal(ancestorId) {
			return true
		}
		if seen[cur.MapKey()] {
			return false
		}
		seen[cur.MapKey()] = true

		node, err := s.Get(cur)
		if err != nil {
			return false
		}
		parents := node.References(&refHasSubtypeInverse)
		if len(parents) == 0 || !parents[0].Target.IsLocal() {
			return false
		}
		cur = parents[0].Target.NodeId
	}
}

// modellingRuleOf returns the ModellingRule NodeId the child carries (or
// ua.Null if none) and whether it is exactly Mandatory.
func modellingRuleOf(child *Node) (rule ua.NodeId, mandatory bool) {
	for _, ref := range child.References(&refHasModellingRule) {
		if ref.Kind.IsInverse || !ref.Target.IsLocal() {
			continue
		}
		if ref.Target.NodeId.Equal(modellingRuleMandatory) {
			return modellingRuleMandatory, true
		}
		return ref.Target.NodeId, false
	}
	return ua.Null, false
}

// freshInstanceId derives a deterministic string-form NodeId for an
// instantiated child from the instance's NodeId and the child's
// BrowseName, so a second child of the same BrowseName under the same
// instance gets the same id (AddNode then rejects it with ErrNodeExists).
func freshInstanceId(parent ua.NodeId, browseName ua.QualifiedName) (ua.NodeId, error) {
	return ua.NewStringNodeId(browseName.NamespaceIndex, parent.String()+"/"+browseName.Name), nil
}
