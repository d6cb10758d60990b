// Package bridge decouples a frame-driven control panel, which must never block,
// from the asynchronous session with the remote mixer.
//
// New builds three bounded queues and hands one end of each to the panel and the
// other to a single driver goroutine started with Run. The panel submits Commands
// with SubmitCommand (never blocking; false means the queue was full) and polls
// Snapshots and Events once per frame. The driver owns the only Session, executes
// commands in submission order and turns every remote failure into a reported
// Event instead of tearing anything down.
package bridge

import (
	"context"

	"go.uber.org/zap"
)

// Bridge is the panel-side handle of the session bridge
type Bridge struct {
	logger *zap.SugaredLogger

	commands  *Queue[Command]
	snapshots *Queue[Snapshot]
	events    *Queue[Event]

	driver *driver
}

func New(logger *zap.SugaredLogger, dialer Dialer, opts Options) *Bridge {
	logger = logger.Named("bridge")
	opts = opts.withDefaults()

	b := &Bridge{
		logger:    logger,
		commands:  NewQueue[Command](opts.QueueCapacity),
		snapshots: NewQueue[Snapshot](opts.QueueCapacity),
		events:    NewQueue[Event](opts.QueueCapacity),
	}

	b.driver = &driver{
		logger:    logger.Named("driver"),
		dialer:    dialer,
		opts:      opts,
		commands:  b.commands,
		snapshots: b.snapshots,
		events:    b.events,
	}

	logger.Debugw("Created bridge instance",
		"queueCapacity", opts.QueueCapacity,
		"inventories", opts.Inventories,
		"relogin", opts.Relogin)

	return b
}

// Run executes the driver loop until ctx is done. The active session, if any,
// is closed before Run returns.
func (b *Bridge) Run(ctx context.Context) error {
	return b.driver.run(ctx)
}

// TrySubmit enqueues cmd without blocking, returning a *QueueFullError when the queue is at capacity
func (b *Bridge) TrySubmit(cmd Command) error {
	if !b.commands.TrySend(cmd) {
		b.logger.Warnw("Command queue full, dropping command", "command", cmd, "capacity", b.commands.Cap())
		return &QueueFullError{Command: cmd, Capacity: b.commands.Cap()}
	}

	return nil
}

// SubmitCommand reports whether cmd was accepted into the queue
func (b *Bridge) SubmitCommand(cmd Command) bool {
	return b.TrySubmit(cmd) == nil
}

// PollSnapshot returns the next inventory snapshot, if one is waiting
func (b *Bridge) PollSnapshot() (Snapshot, bool) {
	return b.snapshots.Poll()
}

// PollEvent returns the next driver report, if one is waiting
func (b *Bridge) PollEvent() (Event, bool) {
	return b.events.Poll()
}

// Pending is the number of commands not yet picked up by the driver
func (b *Bridge) Pending() int {
	return b.commands.Len()
}
