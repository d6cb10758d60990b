package bridge

import "context"

// Dialer opens sessions with the remote mixer
type Dialer interface {
	Connect(ctx context.Context, address string, port uint16, credential string) (Session, error)
}

// Session is one authenticated connection to the mixer.
// It is only ever touched by the driver goroutine.
type Session interface {
	ListInputs(ctx context.Context) ([]Input, error)
	ListOutputs(ctx context.Context) ([]Output, error)
	ListScenes(ctx context.Context) (SceneInventory, error)
	ListSceneCollections(ctx context.Context) (SceneCollectionInventory, error)

	SetMute(ctx context.Context, sourceID string, muted bool) error
	SetVolume(ctx context.Context, sourceID string, factor float64) error

	// Done is closed once the underlying connection is gone
	Done() <-chan struct{}

	Close() error
}

// Status is the lifecycle state of the driver's session
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is a report from the driver meant for the operator
type Event interface {
	eventMarker()
}

// StatusChanged is emitted on every lifecycle transition
type StatusChanged struct {
	From Status
	To   Status
}

// CommandFailed carries a ConnectError, QueryError or OperationError
type CommandFailed struct {
	Command Command
	Err     error
}

// CommandDropped reports a command the driver refused to act on
type CommandDropped struct {
	Command Command
	Reason  error
}

func (StatusChanged) eventMarker()  {}
func (CommandFailed) eventMarker()  {}
func (CommandDropped) eventMarker() {}

// Recorder observes driver activity, typically for metrics
type Recorder interface {
	CommandExecuted(cmd Command, err error)
	CommandDropped(cmd Command, reason error)
	StatusChanged(status Status)
}

type nopRecorder struct{}

func (nopRecorder) CommandExecuted(Command, error) {}
func (nopRecorder) CommandDropped(Command, error)  {}
func (nopRecorder) StatusChanged(Status)           {}
