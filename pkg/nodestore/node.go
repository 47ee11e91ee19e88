// Package nodestore implements the in-memory address space (spec §4.F):
// Node variants, bidirectional References, reference-counted borrows,
// constructor/destructor lifecycle hooks and AddNodes type-instantiation
// (ModellingRule Mandatory/Optional, abstract-type rejection).
package nodestore

import (
	"github.com/uastack/uacore/pkg/ua"
)

// Node is the common shape shared by every NodeClass; class-specific
// attributes live in the Attributes map keyed by ua.AttributeId, which
// keeps this type flat instead of needing one Go struct per NodeClass
// (mirrors how the wire AttributeId/Variant pairing already works in
// pkg/ua).
type Node struct {
	NodeId      ua.NodeId
	Class       ua.NodeClass
	BrowseName  ua.QualifiedName
	DisplayName ua.LocalizedText
	Description ua.LocalizedText

	Attributes map[ua.AttributeId]ua.Variant

	// refs holds both forward and inverse references; ReferenceKind
	// carries the direction.
	refs []Reference

	// constructed is set once the type's constructor hook has run,
	// mirroring the open62541 node lifecycle's "node is only readable
	// once constructed" rule (spec §4.F).
	constructed bool

	// refcount tracks live borrows (Store.Borrow/Release); a node is
	// only eligible for deletion once it reaches zero.
	refcount int

	// valueSource backs the Value attribute of a Variable node when it
	// needs callback or external-pointer semantics instead of a plain
	// Attributes-map entry (see valuesource.go).
	valueSource *ValueSource
}

// ReferenceKind pairs a reference type with its direction.
type ReferenceKind struct {
	TypeId    ua.NodeId
	IsInverse bool
}

// Equal compares two ReferenceKinds by value; NodeId carries a []byte
// field so ReferenceKind cannot use built-in == (not comparable).
func (k ReferenceKind) Equal(o ReferenceKind) bool {
	return k.IsInverse == o.IsInverse && k.TypeId.Equal(o.TypeId)
}

// Reference is one edge of the address-space graph.
type Reference struct {
	Kind   ReferenceKind
	Target ua.ExpandedNodeId
}

func NewNode(id ua.NodeId, class ua.NodeClass, browseName ua.QualifiedName) *Node {
	return &Node{
		NodeId:     id,
		Class:      class,
		BrowseName: browseName,
		Attributes: make(map[ua.AttributeId]ua.Variant),
	}
}

// AddReference appends a reference edge; the caller is responsible for
// adding the mirrored inverse reference on the target node (Store.AddReference
// does both sides atomically).
func (n *Node) AddReference(kind ReferenceKind, target ua.ExpandedNodeId) {
	n.refs = append(n.refs, Reference{Kind: kind, Target: target})
}

// RemoveReference deletes the first matching reference edge, if present.
func (n *Node) RemoveReference(kind ReferenceKind, target ua.ExpandedNodeId) bool {
	for i, r := range n.refs {
		if r.Kind.Equal(kind) && r.Target.Equal(target.NodeId) && r.Target.NamespaceUri == target.NamespaceUri {
			n.refs = append(n.refs[:i], n.refs[i+1:]...)
			return true
		}
	}
	return false
}

// References returns all reference edges, optionally filtered to a
// single ReferenceKind when filter.TypeId is non-null.
func (n *Node) References(filter *ReferenceKind) []Reference {
	if filter == nil {
		return append([]Reference(nil), n.refs...)
	}
	var out []Reference
	for _, r := range n.refs {
		if r.Kind.Equal(*filter) {
			out = append(out, r)
		}
	}
	return out
}

func (n *Node) Attribute(id ua.AttributeId) (ua.Variant, bool) {
	v, ok := n.Attributes[id]
	return v, ok
}

func (n *Node) SetAttribute(id ua.AttributeId, v ua.Variant) {
	n.Attributes[id] = v
}
