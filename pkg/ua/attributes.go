package ua

// AttributeId is a numeric selector over node properties (spec §6).
type AttributeId uint32

const (
	AttrNodeId                  AttributeId = 1
	AttrNodeClass                AttributeId = 2
	AttrBrowseName                AttributeId = 3
	AttrDisplayName              AttributeId = 4
	AttrDescription              AttributeId = 5
	AttrWriteMask                AttributeId = 6
	AttrUserWriteMask            AttributeId = 7
	AttrIsAbstract               AttributeId = 8
	AttrSymmetric                AttributeId = 9
	AttrInverseName              AttributeId = 10
	AttrContainsNoLoops          AttributeId = 11
	AttrEventNotifier            AttributeId = 12
	AttrValue                    AttributeId = 13
	AttrDataType                 AttributeId = 14
	AttrValueRank                AttributeId = 15
	AttrArrayDimensions          AttributeId = 16
	AttrAccessLevel              AttributeId = 17
	AttrUserAccessLevel          AttributeId = 18
	AttrMinimumSamplingInterval  AttributeId = 19
	AttrHistorizing              AttributeId = 20
	AttrExecutable               AttributeId = 21
	AttrUserExecutable           AttributeId = 22
)

// NodeClass enumerates the eight node classes (spec §3).
type NodeClass uint32

const (
	ClassUnspecified NodeClass = iota
	ClassObject
	ClassVariable
	ClassMethod
	ClassObjectType
	ClassVariableType
	ClassReferenceType
	ClassDataType
	ClassView
)

func (c NodeClass) String() string {
	names := [...]string{"Unspecified", "Object", "Variable", "Method",
		"ObjectType", "VariableType", "ReferenceType", "DataType", "View"}
	if int(c) < len(names) {
		return names[c]
	}
	return "Invalid"
}

// ReferenceTypeSet is a fixed-width bitmask over known reference-type
// indices, permitting O(1) union/contains tests (spec §3).
type ReferenceTypeSet uint64

func (s ReferenceTypeSet) Contains(idx uint8) bool { return s&(1<<uint(idx)) != 0 }
func (s ReferenceTypeSet) With(idx uint8) ReferenceTypeSet {
	return s | (1 << uint(idx))
}
func (s ReferenceTypeSet) Union(o ReferenceTypeSet) ReferenceTypeSet { return s | o }
func (s ReferenceTypeSet) Without(idx uint8) ReferenceTypeSet {
	return s &^ (1 << uint(idx))
}

// Well-known reference type indices for namespace 0 (subset used by the
// core services and the NodeStore type-instantiation logic).
const (
	RefIndexReferences          uint8 = 0
	RefIndexHierarchicalRefs    uint8 = 1
	RefIndexHasChild            uint8 = 2
	RefIndexOrganizes           uint8 = 3
	RefIndexHasEventSource      uint8 = 4
	RefIndexHasModellingRule    uint8 = 5
	RefIndexHasEncoding         uint8 = 6
	RefIndexHasDescription      uint8 = 7
	RefIndexHasTypeDefinition   uint8 = 8
	RefIndexGeneratesEvent      uint8 = 9
	RefIndexAggregates          uint8 = 10
	RefIndexHasSubtype          uint8 = 11
	RefIndexHasProperty         uint8 = 12
	RefIndexHasComponent        uint8 = 13
	RefIndexHasNotifier         uint8 = 14
	RefIndexHasOrderedComponent uint8 = 15
)

// Well-known namespace-0 numeric ids used throughout the services and
// NodeStore bootstrap.
const (
	IdReferences           uint32 = 31
	IdHierarchicalRefs     uint32 = 33
	IdOrganizes            uint32 = 35
	IdHasComponent         uint32 = 47
	IdHasProperty          uint32 = 46
	IdHasSubtype           uint32 = 45
	IdAggregates           uint32 = 44
	IdHasTypeDefinition    uint32 = 40
	IdHasModellingRule     uint32 = 37
	IdModellingRuleMandatory uint32 = 78
	IdModellingRuleOptional  uint32 = 80
	IdBaseObjectType       uint32 = 58
	IdFolderType           uint32 = 61
	IdBaseDataVariableType uint32 = 63
	IdBaseVariableType     uint32 = 62
	IdBaseEventType        uint32 = 2041
	IdObjectsFolder        uint32 = 85
	IdServer               uint32 = 2253
	IdServerCurrentTime    uint32 = 2258

	// Builtin scalar DataType ids, used to validate a Write's Value
	// against a VariableNode's declared DataType attribute.
	IdBooleanDataType  uint32 = 1
	IdInt32DataType    uint32 = 6
	IdDoubleDataType   uint32 = 11
	IdStringDataType   uint32 = 12
	IdDateTimeDataType uint32 = 13
	IdNumberDataType   uint32 = 26
)
