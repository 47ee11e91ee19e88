// Package pubsub implements the PubSub publisher/subscriber pipeline
// (spec §4.I): PubSubConnection, WriterGroup/DataSetWriter,
// ReaderGroup/DataSetReader, UADP/JSON NetworkMessage encoding, and the
// realtime fixed-offset publish path.
package pubsub

// State is the PubSub entity lifecycle shared by connections, writer
// groups, and reader groups.
type State int

const (
	StateDisabled State = iota
	StatePreOperational
	StateOperational
	StatePaused
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "Disabled"
	case StatePreOperational:
		return "PreOperational"
	case StateOperational:
		return "Operational"
	case StatePaused:
		return "Paused"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

var transitions = map[State][]State{
	StateDisabled:       {StatePreOperational},
	StatePreOperational: {StateOperational, StateError, StateDisabled},
	StateOperational:    {StatePaused, StateError, StateDisabled},
	StatePaused:         {StateOperational, StateError, StateDisabled},
	StateError:          {StateDisabled},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
