package nodestore

import (
	"errors"
	"fmt"
	"sync"

	"github.com/uastack/uacore/pkg/ua"
)

var (
	ErrNodeNotFound   = errors.New("nodestore: node not found")
	ErrNodeExists     = errors.New("nodestore: node already exists")
	ErrNodeBorrowed   = errors.New("nodestore: node still has live borrows")
	ErrTypeAbstract   = errors.New("nodestore: cannot instantiate an abstract type")
)

// Hook mirrors the teacher's JobHook pattern (internal/repository/jobHooks.go):
// a constructor/destructor pair invoked around a node's lifecycle. Every
// registered Hook runs for every node, whatever its NodeClass.
type Hook interface {
	OnConstruct(n *Node) error
	OnDestruct(n *Node)
}

// Store is the in-memory, reference-counted, hash-map address space
// (spec §4.F). Keys are ua.NodeIdKey, the comparable struct that
// NodeId.MapKey derives from a NodeId, so NodeIds of every identifier
// type share one map.
type Store struct {
	mu    sync.RWMutex
	nodes map[ua.NodeIdKey]*Node

	hooksOnce sync.Once
	hooks     []Hook

	optionalChildFilter OptionalChildFilter
}

func NewStore() *Store {
	return &Store{nodes: make(map[ua.NodeIdKey]*Node)}
}

// OptionalChildFilter decides whether an Optional-modelling-rule child
// (typeNode's childType component/property) should be instantiated
// alongside typeNode's Mandatory children. Mandatory children are
// always instantiated regardless of this filter (spec §4.F step 3).
type OptionalChildFilter func(typeNode, childType *Node) bool

// SetOptionalChildFilter installs the callback AddNodes consults before
// copying an Optional child; a Store with no filter installed copies no
// Optional children at all (the conservative default).
func (s *Store) SetOptionalChildFilter(f OptionalChildFilter) {
	s.optionalChildFilter = f
}

// RegisterHook adds a constructor/destructor hook run for every node
// added/deleted after this call, mirroring RegisterJobHook's
// append-only, call-everyone-every-time semantics.
func (s *Store) RegisterHook(h Hook) {
	s.hooksOnce.Do(func() { s.hooks = make([]Hook, 0) })
	s.mu.Lock()
	defer s.mu.Unlock()
	if h != nil {
		s.hooks = append(s.hooks, h)
	}
}

func (s *Store) callConstruct(n *Node) error {
	for _, h := range s.hooks {
		if h != nil {
			if err := h.OnConstruct(n); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) callDestruct(n *Node) {
	for _, h := range s.hooks {
		if h != nil {
			h.OnDestruct(n)
		}
	}
}

// AddNode inserts n, running the registered constructor hooks before
// marking it constructed (spec §4.F: a node is only visible to Read/
// Browse once construction succeeds).
func (s *Store) AddNode(n *Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := n.NodeId.MapKey()
	if _, exists := s.nodes[key]; exists {
		return fmt.Errorf("%w: %s", ErrNodeExists, n.NodeId)
	}
	if err := s.callConstruct(n); err != nil {
		return fmt.Errorf("nodestore: constructor for %s: %w", n.NodeId, err)
	}
	n.constructed = true
	s.nodes[key] = n
	return nil
}

// Get returns the node for id without borrowing it.
func (s *Store) Get(id ua.NodeId) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id.MapKey()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return n, nil
}

// Borrow returns the node for id and increments its refcount; callers
// must pair every Borrow with a Release. This is the mechanism that
// lets Services hold a node across an async operation without it being
// deleted out from under them (spec §4.F).
func (s *Store) Borrow(id ua.NodeId) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id.MapKey()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	n.refcount++
	return n, nil
}

// Release decrements a previously-Borrowed node's refcount.
func (s *Store) Release(n *Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.refcount > 0 {
		n.refcount--
	}
}

// DeleteNode removes a node, running destructor hooks first. If
// deleteTargetReferences is true, inverse references held by other
// nodes pointing at id are also removed (spec §4.F DeleteNodes op).
func (s *Store) DeleteNode(id ua.NodeId, deleteTargetReferences bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := id.MapKey()
	n, ok := s.nodes[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if n.refcount > 0 {
		return fmt.Errorf("%w: %s", ErrNodeBorrowed, id)
	}
	s.callDestruct(n)
	delete(s.nodes, key)

	if deleteTargetReferences {
		for _, other := range s.nodes {
			kept := other.refs[:0]
			for _, r := range other.refs {
				if r.Target.NodeId.Equal(id) {
					continue
				}
				kept = append(kept, r)
			}
			other.refs = kept
		}
	}
	return nil
}

// AddReference links src -> dst with kind, and adds the mirrored inverse
// reference on dst so every edge is traversable from both ends (spec
// §4.F "bidirectional references").
func (s *Store) AddReference(src ua.NodeId, kind ReferenceKind, dst ua.ExpandedNodeId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	srcNode, ok := s.nodes[src.MapKey()]
	if !ok {
		return fmt.Errorf("%w: source %s", ErrNodeNotFound, src)
	}
	srcNode.AddReference(kind, dst)

	if dst.IsLocal() {
		if dstNode, ok := s.nodes[dst.NodeId.MapKey()]; ok {
			inverse := ReferenceKind{TypeId: kind.TypeId, IsInverse: !kind.IsInverse}
			dstNode.AddReference(inverse, ua.ExpandedNodeId{NodeId: src})
		}
	}
	return nil
}

// DeleteReference is the inverse of AddReference, optionally also
// removing the mirrored edge on the target (spec §4.F DeleteReferences).
func (s *Store) DeleteReference(src ua.NodeId, kind ReferenceKind, dst ua.ExpandedNodeId, deleteBidirectional bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	srcNode, ok := s.nodes[src.MapKey()]
	if !ok {
		return fmt.Errorf("%w: source %s", ErrNodeNotFound, src)
	}
	srcNode.RemoveReference(kind, dst)

	if deleteBidirectional && dst.IsLocal() {
		if dstNode, ok := s.nodes[dst.NodeId.MapKey()]; ok {
			inverse := ReferenceKind{TypeId: kind.TypeId, IsInverse: !kind.IsInverse}
			dstNode.RemoveReference(inverse, ua.ExpandedNodeId{NodeId: src})
		}
	}
	return nil
}

// Count reports the total number of nodes, for diagnostics/admin
// surfaces.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// Range calls fn once for every node currently in the store, stopping
// early if fn returns false. Intended for diagnostics/admin surfaces
// that need to enumerate nodes (for example by namespace index); it is
// not a substitute for Browse, which applies the reference-filtering
// rules spec §4.F names.
func (s *Store) Range(fn func(*Node) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.nodes {
		if !fn(n) {
			return
		}
	}
}
