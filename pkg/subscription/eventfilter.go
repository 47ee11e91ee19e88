package subscription

import (
	"github.com/uastack/uacore/pkg/nodestore"
	"github.com/uastack/uacore/pkg/ua"
)

// baseEventType is NS0's BaseEventType (i=2041), the root every
// EventFilter select clause's TypeDefinition must name or subtype.
var baseEventType = ua.NewNumericNodeId(0, ua.IdBaseEventType)

// SelectClause names one field of a qualifying event: BrowsePath is the
// path of QualifiedNames read off the event (e.g. ["Message"],
// ["Severity"]), TypeDefinition is the EventType the field is declared
// on (spec §4.H SimpleAttributeOperand).
type SelectClause struct {
	TypeDefinition ua.NodeId
	BrowsePath     []ua.QualifiedName
}

// EventFilter couples a set of field selections with a boolean
// ContentFilter evaluated over those fields (spec §4.H).
type EventFilter struct {
	Select []SelectClause
	Where  ContentFilter
}

// ValidateSelectClauses checks each clause's TypeDefinition against
// BaseEventType, returning one status per clause. A clause whose
// TypeDefinition is not BaseEventType or a declared subtype of it gets
// BadTypeDefinitionInvalid and must be dropped by the caller before the
// filter is installed; the EventFilter itself (and the Subscription it
// is attached to) is still created with the remaining clauses (S6).
func ValidateSelectClauses(store *nodestore.Store, clauses []SelectClause) []ua.StatusCode {
	out := make([]ua.StatusCode, len(clauses))
	for i, c := range clauses {
		if c.TypeDefinition.IsNull() || !store.IsSubtypeOrEqual(c.TypeDefinition, baseEventType) {
			out[i] = ua.BadTypeDefinitionInvalid
			continue
		}
		out[i] = ua.Good
	}
	return out
}

// DropInvalid filters f.Select down to the clauses statuses marks Good,
// in order; statuses must be the result of ValidateSelectClauses(f.Select).
func (f EventFilter) DropInvalid(statuses []ua.StatusCode) EventFilter {
	out := EventFilter{Where: f.Where}
	for i, c := range f.Select {
		if i < len(statuses) && statuses[i] == ua.Good {
			out.Select = append(out.Select, c)
		}
	}
	return out
}
