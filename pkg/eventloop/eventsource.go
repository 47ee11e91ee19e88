package eventloop

// SourceState is the lifecycle state of an EventSource (spec §4.C: every
// ConnectionManager and InterruptManager attached to the loop moves
// through the same Stopped/Starting/Started/Stopping states).
type SourceState int

const (
	SourceStopped SourceState = iota
	SourceStarting
	SourceStarted
	SourceStopping
)

func (s SourceState) String() string {
	switch s {
	case SourceStopped:
		return "Stopped"
	case SourceStarting:
		return "Starting"
	case SourceStarted:
		return "Started"
	case SourceStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// EventSource is anything the loop polls for I/O on each Run cycle:
// ConnectionManagers (pkg/connection) and, in principle, interrupt
// sources. The loop only needs lifecycle + a name; polling itself goes
// through EventLoop.SetPollFunc, since the concrete I/O mechanism
// (epoll/kqueue equivalent, or Go's net poller) is owned by whatever
// ConnectionManager registers the callback.
type EventSource interface {
	Name() string
	State() SourceState
	Start() error
	Stop()
}
