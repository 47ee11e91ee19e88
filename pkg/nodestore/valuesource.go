package nodestore

import "github.com/uastack/uacore/pkg/ua"

// ValueSourceKind distinguishes the three backings a VariableNode's Value
// attribute can have (spec §4.B/§4.F): a plain in-memory cell, a
// read/write callback pair, or an external pointer shared with a
// realtime PubSub writer.
type ValueSourceKind int

const (
	SourceInternal ValueSourceKind = iota
	SourceCallback
	SourceExternal
)

// OnReadFunc/OnWriteFunc back SourceCallback and SourceExternal value
// sources; External additionally keeps its own DataValue cell so a
// realtime writer can read it without calling back into user code.
type OnReadFunc func() ua.DataValue
type OnWriteFunc func(ua.DataValue) ua.StatusCode

// ValueSource is the storage backing a VariableNode's Value attribute.
// The External kind is what makes the PubSub realtime (FixedSize) path
// possible: the writer reads cell directly, with no service-layer call
// and no encode pass, since the bytes already live at the offsets the
// NetworkMessage template expects.
type ValueSource struct {
	Kind ValueSourceKind

	cell ua.DataValue // SourceInternal and SourceExternal

	OnRead  OnReadFunc  // SourceCallback, SourceExternal (optional override)
	OnWrite OnWriteFunc // SourceCallback, SourceExternal (optional override)
}

func NewInternalValueSource(v ua.DataValue) *ValueSource {
	return &ValueSource{Kind: SourceInternal, cell: v}
}

func NewCallbackValueSource(onRead OnReadFunc, onWrite OnWriteFunc) *ValueSource {
	return &ValueSource{Kind: SourceCallback, OnRead: onRead, OnWrite: onWrite}
}

func NewExternalValueSource(initial ua.DataValue) *ValueSource {
	return &ValueSource{Kind: SourceExternal, cell: initial}
}

// Read returns the current DataValue without taking the Store's locks;
// callers (Server.Read, the PubSub realtime writer) are responsible for
// any higher-level serialization.
func (s *ValueSource) Read() ua.DataValue {
	switch s.Kind {
	case SourceCallback:
		if s.OnRead != nil {
			return s.OnRead()
		}
		return ua.DataValue{Status: ua.BadNotReadable}
	default: // SourceInternal, SourceExternal
		if s.Kind == SourceExternal && s.OnRead != nil {
			return s.OnRead()
		}
		return s.cell
	}
}

// Write updates the backing cell (Internal/External) or invokes the
// registered callback.
func (s *ValueSource) Write(v ua.DataValue) ua.StatusCode {
	switch s.Kind {
	case SourceCallback:
		if s.OnWrite != nil {
			return s.OnWrite(v)
		}
		return ua.BadNotWritable
	default:
		if s.Kind == SourceExternal && s.OnWrite != nil {
			return s.OnWrite(v)
		}
		s.cell = v
		return ua.Good
	}
}

// Cell exposes the External variant's backing DataValue pointer so a
// realtime PubSub DataSetWriter can read it directly on every publish
// cycle without going through Read/the service layer.
func (s *ValueSource) Cell() *ua.DataValue {
	return &s.cell
}

// ValueSource returns the node's Value-attribute ValueSource, if one was
// installed via SetValueSource; Variable nodes created without one read
// purely from the Attributes map (the common, non-realtime case).
func (n *Node) ValueSource() *ValueSource {
	return n.valueSource
}

func (n *Node) SetValueSource(vs *ValueSource) {
	n.valueSource = vs
}
