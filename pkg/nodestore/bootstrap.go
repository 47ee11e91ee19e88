package nodestore

import (
	"time"

	"github.com/uastack/uacore/pkg/ua"
)

// Well-known NodeIds this bootstrap seeds, matching their real OPC UA
// Namespace 0 numeric ids so fixtures written against the official
// NodeId numbers (spec S1's 2258, S2's 63) resolve correctly — without
// generating the full Namespace-0 table, which SPEC_FULL.md's
// Non-goals explicitly exclude.
var (
	ObjectsFolder        = ua.NewNumericNodeId(0, 85)
	ServerObject         = ua.NewNumericNodeId(0, 2253)
	ServerCurrentTime    = ua.NewNumericNodeId(0, ua.IdServerCurrentTime)
	BaseDataVariableType = ua.NewNumericNodeId(0, 63)
	BaseObjectType       = ua.NewNumericNodeId(0, 58)
	BaseEventTypeId      = ua.NewNumericNodeId(0, ua.IdBaseEventType)
	NumberDataType       = ua.NewNumericNodeId(0, 26)

	refOrganizesFwd    = ReferenceKind{TypeId: ua.NewNumericNodeId(0, ua.IdOrganizes)}
	refHasComponentFwd = ReferenceKind{TypeId: ua.NewNumericNodeId(0, ua.IdHasComponent)}
)

// SeedMinimalNamespace0 populates s with just enough of Namespace 0 for
// the server to answer the scenarios spec §8 names: the Objects
// folder, a Server object with a live CurrentTime variable,
// BaseDataVariableType (what S2 instantiates from), BaseObjectType and
// BaseEventType (the type hierarchy S6 validates event-select clauses
// against) and NumberDataType (a non-event type for S6's negative
// case). Every node is plain and mutable; OPC UA does not require
// Namespace-0-seeded nodes to be read-only (Open Question #3 in
// DESIGN.md), and nothing downstream asks for that restriction.
func SeedMinimalNamespace0(s *Store) error {
	objects := NewNode(ObjectsFolder, ua.ClassObject, ua.QualifiedName{Name: "Objects"})
	objects.DisplayName = ua.LocalizedText{Text: "Objects"}
	if err := s.AddNode(objects); err != nil {
		return err
	}

	server := NewNode(ServerObject, ua.ClassObject, ua.QualifiedName{Name: "Server"})
	server.DisplayName = ua.LocalizedText{Text: "Server"}
	if err := s.AddNode(server); err != nil {
		return err
	}
	if err := s.AddReference(ObjectsFolder, refOrganizesFwd, ua.ExpandedNodeId{NodeId: ServerObject}); err != nil {
		return err
	}

	currentTime := NewNode(ServerCurrentTime, ua.ClassVariable, ua.QualifiedName{Name: "CurrentTime"})
	currentTime.DisplayName = ua.LocalizedText{Text: "CurrentTime"}
	currentTime.SetAttribute(ua.AttrDataType, ua.NewScalarVariant(ua.TypeNodeId, ua.NewNumericNodeId(0, ua.IdDateTimeDataType)))
	currentTime.SetAttribute(ua.AttrValueRank, ua.NewScalarVariant(ua.TypeInt32, int32(-1)))
	currentTime.SetValueSource(NewCallbackValueSource(func() ua.DataValue {
		return ua.DataValue{
			Value:  ua.NewScalarVariant(ua.TypeDateTime, time.Now()),
			Status: ua.Good,
		}.WithServerTimestamp(time.Now())
	}, nil))
	if err := s.AddNode(currentTime); err != nil {
		return err
	}
	if err := s.AddReference(ServerObject, refHasComponentFwd, ua.ExpandedNodeId{NodeId: ServerCurrentTime}); err != nil {
		return err
	}

	baseDataVariableType := NewNode(BaseDataVariableType, ua.ClassVariableType, ua.QualifiedName{Name: "BaseDataVariableType"})
	baseDataVariableType.DisplayName = ua.LocalizedText{Text: "BaseDataVariableType"}
	baseDataVariableType.SetAttribute(ua.AttrIsAbstract, ua.NewScalarVariant(ua.TypeBoolean, false))
	if err := s.AddNode(baseDataVariableType); err != nil {
		return err
	}

	baseObjectType := NewNode(BaseObjectType, ua.ClassObjectType, ua.QualifiedName{Name: "BaseObjectType"})
	baseObjectType.DisplayName = ua.LocalizedText{Text: "BaseObjectType"}
	baseObjectType.SetAttribute(ua.AttrIsAbstract, ua.NewScalarVariant(ua.TypeBoolean, true))
	if err := s.AddNode(baseObjectType); err != nil {
		return err
	}

	baseEventType := NewNode(BaseEventTypeId, ua.ClassObjectType, ua.QualifiedName{Name: "BaseEventType"})
	baseEventType.DisplayName = ua.LocalizedText{Text: "BaseEventType"}
	baseEventType.SetAttribute(ua.AttrIsAbstract, ua.NewScalarVariant(ua.TypeBoolean, true))
	if err := s.AddNode(baseEventType); err != nil {
		return err
	}
	if err := s.AddReference(BaseObjectType, refHasSubtype, ua.ExpandedNodeId{NodeId: BaseEventTypeId}); err != nil {
		return err
	}

	numberType := NewNode(NumberDataType, ua.ClassDataType, ua.QualifiedName{Name: "Number"})
	numberType.DisplayName = ua.LocalizedText{Text: "Number"}
	numberType.SetAttribute(ua.AttrIsAbstract, ua.NewScalarVariant(ua.TypeBoolean, true))
	if err := s.AddNode(numberType); err != nil {
		return err
	}

	return nil
}
