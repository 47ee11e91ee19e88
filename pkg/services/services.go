// Package services implements the core OPC UA service set (spec §4.G):
// Read, Write, Call, AddNodes, AddReferences, DeleteNodes,
// DeleteReferences, plus a discovery stub and an async-operation queue
// for services whose handlers run outside the calling goroutine.
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/uastack/uacore/pkg/nodestore"
	"github.com/uastack/uacore/pkg/ua"
)

// Server bundles the dependencies every service handler needs: the
// address space and, eventually, the session the call arrived on (not
// threaded through here to keep these handlers testable in isolation;
// callers in the SecureChannel/Session dispatch layer check session
// validity before invoking a Server method).
type Server struct {
	Store  *nodestore.Store
	Queue  *AsyncQueue
	Limits Limits

	methodsMu sync.RWMutex
	methods   map[ua.NodeIdKey]MethodHandler
}

// Limits bounds the number of items a single Read/Write/Call/
// NodeManagement request may carry (spec §4.G "Per-request limits").
// A batch exceeding its bound fails the whole request with
// BadTooManyOperations rather than executing part of it; a zero field
// means "unbounded", the default for a Server built without an
// explicit Limits (e.g. in unit tests).
type Limits struct {
	MaxNodesPerRead           int
	MaxNodesPerWrite          int
	MaxNodesPerBrowse         int
	MaxNodesPerMethodCall     int
	MaxNodesPerNodeManagement int
}

func exceeds(n, limit int) bool {
	return limit > 0 && n > limit
}

func NewServer(store *nodestore.Store) *Server {
	return &Server{Store: store, Queue: NewAsyncQueue()}
}

// SetLimits installs the per-request operation limits a running server
// enforces; cmd/uaserver wires this from internal/config.ServerConfig.
func (s *Server) SetLimits(l Limits) {
	s.Limits = l
}

// ReadValueId selects one attribute of one node, the unit of work in a
// Read service call.
type ReadValueId struct {
	NodeId      ua.NodeId
	AttributeId ua.AttributeId
}

// Read executes spec §4.G's Read service: independently resolves each
// ReadValueId and returns a DataValue per item, continuing past
// per-item failures (a bad NodeId in item 3 does not fail items 1-2).
func (s *Server) Read(items []ReadValueId) []ua.DataValue {
	out := make([]ua.DataValue, len(items))
	if exceeds(len(items), s.Limits.MaxNodesPerRead) {
		for i := range out {
			out[i] = ua.DataValue{Status: ua.BadTooManyOperations}
		}
		return out
	}
	for i, item := range items {
		out[i] = s.readOne(item)
	}
	return out
}

func (s *Server) readOne(item ReadValueId) ua.DataValue {
	n, err := s.Store.Get(item.NodeId)
	if err != nil {
		return ua.DataValue{Status: ua.BadNodeIdUnknown}
	}
	if item.AttributeId == ua.AttrValue {
		if vs := n.ValueSource(); vs != nil {
			return vs.Read().WithServerTimestamp(time.Now())
		}
	}
	if v, ok := intrinsicAttribute(n, item.AttributeId); ok {
		return ua.DataValue{Value: v, Status: ua.Good}.WithServerTimestamp(time.Now())
	}
	v, ok := n.Attribute(item.AttributeId)
	if !ok {
		return ua.DataValue{Status: ua.BadAttributeIdInvalid}
	}
	return ua.DataValue{Value: v, Status: ua.Good}.WithServerTimestamp(time.Now())
}

// intrinsicAttribute answers the handful of attributes every Node
// carries as a struct field rather than an Attributes map entry
// (NodeId, NodeClass, BrowseName, DisplayName, Description) — set once
// at construction time and not otherwise writable (writeOne rejects
// NodeId/NodeClass outright; the rest this stack treats as effectively
// fixed after AddNodes, spec §4.F).
func intrinsicAttribute(n *nodestore.Node, attr ua.AttributeId) (ua.Variant, bool) {
	switch attr {
	case ua.AttrNodeId:
		return ua.NewScalarVariant(ua.TypeNodeId, n.NodeId), true
	case ua.AttrNodeClass:
		return ua.NewScalarVariant(ua.TypeInt32, int32(n.Class)), true
	case ua.AttrBrowseName:
		return ua.NewScalarVariant(ua.TypeQualifiedName, n.BrowseName), true
	case ua.AttrDisplayName:
		return ua.NewScalarVariant(ua.TypeLocalizedText, n.DisplayName), true
	case ua.AttrDescription:
		return ua.NewScalarVariant(ua.TypeLocalizedText, n.Description), true
	default:
		return ua.Variant{}, false
	}
}

// WriteValue is one item of a Write service call.
type WriteValue struct {
	NodeId      ua.NodeId
	AttributeId ua.AttributeId
	Value       ua.DataValue
}

// Write executes spec §4.G's Write service, returning one StatusCode per
// item in request order.
func (s *Server) Write(items []WriteValue) []ua.StatusCode {
	out := make([]ua.StatusCode, len(items))
	if exceeds(len(items), s.Limits.MaxNodesPerWrite) {
		for i := range out {
			out[i] = ua.BadTooManyOperations
		}
		return out
	}
	for i, item := range items {
		out[i] = s.writeOne(item)
	}
	return out
}

func (s *Server) writeOne(item WriteValue) ua.StatusCode {
	n, err := s.Store.Get(item.NodeId)
	if err != nil {
		return ua.BadNodeIdUnknown
	}
	if item.AttributeId == ua.AttrNodeId || item.AttributeId == ua.AttrNodeClass {
		return ua.BadNotWritable
	}
	if item.AttributeId == ua.AttrValue {
		if dt, ok := n.Attribute(ua.AttrDataType); ok {
			if dtId, ok := dt.Scalar.(ua.NodeId); ok {
				if want, known := scalarTypeForDataType(dtId); known && item.Value.Value.Type != want {
					return ua.BadTypeMismatch
				}
			}
		}
		if vs := n.ValueSource(); vs != nil {
			return vs.Write(item.Value)
		}
	}
	n.SetAttribute(item.AttributeId, item.Value.Value)
	return ua.Good
}

// scalarTypeForDataType maps a VariableNode's DataType attribute (a
// NodeId) to the builtin ua.TypeID its Value attribute must carry,
// for the handful of builtin scalar DataTypes this stack names (spec
// §4.G / S4: "Write rejected on mismatched type"). Returns known=false
// for any DataType this mapping does not recognize (structured/
// ExtensionObject-typed variables, or NS0 ids not seeded by
// nodestore.SeedMinimalNamespace0), in which case no mismatch check is
// applied.
func scalarTypeForDataType(dataType ua.NodeId) (want ua.TypeID, known bool) {
	if dataType.NamespaceIndex != 0 || dataType.Kind != ua.IdNumeric {
		return 0, false
	}
	switch dataType.Numeric {
	case ua.IdBooleanDataType:
		return ua.TypeBoolean, true
	case ua.IdInt32DataType:
		return ua.TypeInt32, true
	case ua.IdDoubleDataType:
		return ua.TypeDouble, true
	case ua.IdStringDataType:
		return ua.TypeString, true
	case ua.IdDateTimeDataType:
		return ua.TypeDateTime, true
	default:
		return 0, false
	}
}

// CallMethodRequest is one item of a Call service request: invoke a
// Method node on an Object/ObjectType instance.
type CallMethodRequest struct {
	ObjectId     ua.NodeId
	MethodId     ua.NodeId
	InputArguments []ua.Variant
}

// MethodHandler implements one Method node's behavior. Handlers are
// registered per MethodId (spec §4.G: the NodeStore only stores the
// Method node's metadata, not its executable body).
type MethodHandler func(ctx context.Context, objectId ua.NodeId, args []ua.Variant) ([]ua.Variant, ua.StatusCode)

// CallMethodResult is one item of a Call service response.
type CallMethodResult struct {
	StatusCode     ua.StatusCode
	OutputArguments []ua.Variant
}

func (s *Server) RegisterMethod(methodId ua.NodeId, h MethodHandler) {
	s.methodsMu.Lock()
	defer s.methodsMu.Unlock()
	if s.methods == nil {
		s.methods = make(map[ua.NodeIdKey]MethodHandler)
	}
	s.methods[methodId.MapKey()] = h
}

// Call executes spec §4.G's Call service against the registered method
// handlers.
func (s *Server) Call(ctx context.Context, items []CallMethodRequest) []CallMethodResult {
	out := make([]CallMethodResult, len(items))
	if exceeds(len(items), s.Limits.MaxNodesPerMethodCall) {
		for i := range out {
			out[i] = CallMethodResult{StatusCode: ua.BadTooManyOperations}
		}
		return out
	}
	for i, item := range items {
		out[i] = s.callOne(ctx, item)
	}
	return out
}

func (s *Server) callOne(ctx context.Context, item CallMethodRequest) CallMethodResult {
	if _, err := s.Store.Get(item.ObjectId); err != nil {
		return CallMethodResult{StatusCode: ua.BadNodeIdUnknown}
	}
	s.methodsMu.RLock()
	h, ok := s.methods[item.MethodId.MapKey()]
	s.methodsMu.RUnlock()
	if !ok {
		return CallMethodResult{StatusCode: ua.BadMethodInvalid}
	}
	outArgs, status := h(ctx, item.ObjectId, item.InputArguments)
	return CallMethodResult{StatusCode: status, OutputArguments: outArgs}
}

// AddNodes executes spec §4.G's AddNodes service for a batch of items,
// delegating the actual type-instantiation work to the NodeStore.
func (s *Server) AddNodes(items []nodestore.AddNodesItem) ([]ua.NodeId, []ua.StatusCode) {
	ids := make([]ua.NodeId, len(items))
	statuses := make([]ua.StatusCode, len(items))
	if exceeds(len(items), s.Limits.MaxNodesPerNodeManagement) {
		for i := range statuses {
			statuses[i] = ua.BadTooManyOperations
		}
		return ids, statuses
	}
	for i, item := range items {
		n, err := s.Store.AddNodes(item)
		if err != nil {
			statuses[i] = ua.BadNodeIdExists
			continue
		}
		ids[i] = n.NodeId
		statuses[i] = ua.Good
	}
	return ids, statuses
}

// AddReferencesItem is one item of an AddReferences service call.
type AddReferencesItem struct {
	SourceNodeId    ua.NodeId
	ReferenceTypeId ua.NodeId
	IsForward       bool
	TargetNodeId    ua.ExpandedNodeId
}

func (s *Server) AddReferences(items []AddReferencesItem) []ua.StatusCode {
	out := make([]ua.StatusCode, len(items))
	if exceeds(len(items), s.Limits.MaxNodesPerNodeManagement) {
		for i := range out {
			out[i] = ua.BadTooManyOperations
		}
		return out
	}
	for i, item := range items {
		kind := nodestore.ReferenceKind{TypeId: item.ReferenceTypeId, IsInverse: !item.IsForward}
		if err := s.Store.AddReference(item.SourceNodeId, kind, item.TargetNodeId); err != nil {
			out[i] = ua.BadNodeIdUnknown
			continue
		}
		out[i] = ua.Good
	}
	return out
}

// DeleteNodesItem is one item of a DeleteNodes service call.
type DeleteNodesItem struct {
	NodeId                    ua.NodeId
	DeleteTargetReferences    bool
}

func (s *Server) DeleteNodes(items []DeleteNodesItem) []ua.StatusCode {
	out := make([]ua.StatusCode, len(items))
	if exceeds(len(items), s.Limits.MaxNodesPerNodeManagement) {
		for i := range out {
			out[i] = ua.BadTooManyOperations
		}
		return out
	}
	for i, item := range items {
		if err := s.Store.DeleteNode(item.NodeId, item.DeleteTargetReferences); err != nil {
			out[i] = statusForDeleteErr(err)
			continue
		}
		out[i] = ua.Good
	}
	return out
}

// DeleteReferencesItem is one item of a DeleteReferences service call.
type DeleteReferencesItem struct {
	SourceNodeId         ua.NodeId
	ReferenceTypeId      ua.NodeId
	IsForward            bool
	TargetNodeId         ua.ExpandedNodeId
	DeleteBidirectional  bool
}

func (s *Server) DeleteReferences(items []DeleteReferencesItem) []ua.StatusCode {
	out := make([]ua.StatusCode, len(items))
	if exceeds(len(items), s.Limits.MaxNodesPerNodeManagement) {
		for i := range out {
			out[i] = ua.BadTooManyOperations
		}
		return out
	}
	for i, item := range items {
		kind := nodestore.ReferenceKind{TypeId: item.ReferenceTypeId, IsInverse: !item.IsForward}
		if err := s.Store.DeleteReference(item.SourceNodeId, kind, item.TargetNodeId, item.DeleteBidirectional); err != nil {
			out[i] = ua.BadNodeIdUnknown
			continue
		}
		out[i] = ua.Good
	}
	return out
}

func statusForDeleteErr(err error) ua.StatusCode {
	switch {
	case errors.Is(err, nodestore.ErrNodeBorrowed):
		return ua.BadInternalError
	default:
		return ua.BadNodeIdUnknown
	}
}
