// Package ua implements the OPC UA binary wire codec and core data model:
// NodeId, ExpandedNodeId, QualifiedName, LocalizedText, Variant, DataValue,
// StatusCode and the ExtensionObject encoding used throughout the stack.
package ua

import (
	"encoding/hex"
	"fmt"
)

// IdKind discriminates the four NodeId identifier encodings.
type IdKind uint8

const (
	IdNumeric IdKind = iota
	IdString
	IdGuid
	IdByteString
)

func (k IdKind) String() string {
	switch k {
	case IdNumeric:
		return "Numeric"
	case IdString:
		return "String"
	case IdGuid:
		return "Guid"
	case IdByteString:
		return "ByteString"
	default:
		return "Unknown"
	}
}

// Guid is a 16-byte OPC UA GUID. The codec writes and reads the 16 bytes
// in array order; it applies no Data1-Data3 byte-order permutation.
type Guid [16]byte

func (g Guid) String() string { return hex.EncodeToString(g[:]) }

// NodeId is the tagged identifier described in spec §3. Equality and hash
// are defined over all fields (namespaceIndex + kind + value).
type NodeId struct {
	NamespaceIndex uint16
	Kind           IdKind
	Numeric        uint32
	Str            string
	Guid           Guid
	Bytes          []byte
}

// NewNumericNodeId builds a Numeric-kind NodeId, the common case for
// namespace-0 identifiers and server-assigned ids.
func NewNumericNodeId(ns uint16, id uint32) NodeId {
	return NodeId{NamespaceIndex: ns, Kind: IdNumeric, Numeric: id}
}

func NewStringNodeId(ns uint16, id string) NodeId {
	return NodeId{NamespaceIndex: ns, Kind: IdString, Str: id}
}

func NewGuidNodeId(ns uint16, id Guid) NodeId {
	return NodeId{NamespaceIndex: ns, Kind: IdGuid, Guid: id}
}

func NewByteStringNodeId(ns uint16, id []byte) NodeId {
	return NodeId{NamespaceIndex: ns, Kind: IdByteString, Bytes: append([]byte(nil), id...)}
}

// Null is the zero NodeId: namespace 0, Numeric 0.
var Null = NodeId{}

// IsNull reports whether this is the null NodeId per spec §3.
func (n NodeId) IsNull() bool {
	return n.NamespaceIndex == 0 && n.Kind == IdNumeric && n.Numeric == 0
}

// Equal compares all fields, as required for use as a map key's logical
// identity (the Go map key itself is the comparable key() below).
func (n NodeId) Equal(o NodeId) bool {
	return n.key() == o.key()
}

// key returns a value usable directly as a Go map key. Bytes are excluded
// from the struct comparison (slices aren't comparable) and folded in via
// a string conversion instead.
type nodeIdKey struct {
	ns   uint16
	kind IdKind
	num  uint32
	str  string
	guid Guid
}

func (n NodeId) key() nodeIdKey {
	k := nodeIdKey{ns: n.NamespaceIndex, kind: n.Kind, num: n.Numeric, guid: n.Guid}
	switch n.Kind {
	case IdString:
		k.str = n.Str
	case IdByteString:
		k.str = string(n.Bytes)
	}
	return k
}

// NodeIdKey is the comparable type usable directly in a Go map.
type NodeIdKey = nodeIdKey

func (n NodeId) MapKey() NodeIdKey { return n.key() }

func (n NodeId) String() string {
	switch n.Kind {
	case IdNumeric:
		return fmt.Sprintf("ns=%d;i=%d", n.NamespaceIndex, n.Numeric)
	case IdString:
		return fmt.Sprintf("ns=%d;s=%s", n.NamespaceIndex, n.Str)
	case IdGuid:
		return fmt.Sprintf("ns=%d;g=%s", n.NamespaceIndex, n.Guid)
	case IdByteString:
		return fmt.Sprintf("ns=%d;b=%s", n.NamespaceIndex, hex.EncodeToString(n.Bytes))
	default:
		return "ns=?;?"
	}
}

// ExpandedNodeId is a NodeId plus an optional out-of-band namespace
// resolution, used at boundaries where the index into the local namespace
// array isn't known yet (spec §3).
type ExpandedNodeId struct {
	NodeId
	NamespaceUri string
	ServerIndex  uint32
}

func (e ExpandedNodeId) IsLocal() bool {
	return e.NamespaceUri == "" && e.ServerIndex == 0
}

// QualifiedName is a BrowseName: a namespace-scoped name, immutable once a
// node carrying it is inserted into a NodeStore.
type QualifiedName struct {
	NamespaceIndex uint16
	Name           string
}

func (q QualifiedName) String() string {
	return fmt.Sprintf("%d:%s", q.NamespaceIndex, q.Name)
}

// LocalizedText backs DisplayName/Description attributes.
type LocalizedText struct {
	Locale string
	Text   string
}
