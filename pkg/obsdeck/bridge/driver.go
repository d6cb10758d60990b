package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ReloginPolicy decides what a LogIn does while a session is already established
type ReloginPolicy int

const (
	// ReloginReplace closes the current session, then logs in with the new parameters
	ReloginReplace ReloginPolicy = iota
	// ReloginReject keeps the current session and drops the LogIn
	ReloginReject
)

func (p ReloginPolicy) String() string {
	if p == ReloginReject {
		return "reject"
	}
	return "replace"
}

func ParseReloginPolicy(s string) (ReloginPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "replace":
		return ReloginReplace, nil
	case "reject":
		return ReloginReject, nil
	default:
		return ReloginReplace, fmt.Errorf("unknown relogin policy %q", s)
	}
}

const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultRequestTimeout = 5 * time.Second
)

// Options configures a Bridge. Zero values fall back to sensible defaults.
type Options struct {
	QueueCapacity int

	// Inventories is the refresh set, emitted in the given order.
	// Empty means DefaultInventories.
	Inventories []InventoryKind

	Relogin ReloginPolicy

	ConnectTimeout time.Duration
	RequestTimeout time.Duration

	Recorder Recorder
}

func (o Options) withDefaults() Options {
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = DefaultQueueCapacity
	}
	if len(o.Inventories) == 0 {
		o.Inventories = DefaultInventories
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.Recorder == nil {
		o.Recorder = nopRecorder{}
	}
	return o
}

// driver owns the one Session for its whole lifetime and executes commands strictly in order
type driver struct {
	logger *zap.SugaredLogger
	dialer Dialer
	opts   Options

	commands  *Queue[Command]
	snapshots *Queue[Snapshot]
	events    *Queue[Event]

	status      Status
	session     Session
	sessionDone <-chan struct{}
}

func (d *driver) run(ctx context.Context) error {
	d.logger.Debug("Driver loop starting")

	// whatever happens, the session does not outlive the loop
	defer d.closeSession()

	for {
		select {
		case <-ctx.Done():
			d.logger.Debugw("Driver loop stopping", "reason", ctx.Err())
			return ctx.Err()

		case <-d.sessionDone:
			d.onConnectionLost(ctx)

		case cmd := <-d.commands.C():
			d.execute(ctx, cmd)
		}
	}
}

func (d *driver) execute(ctx context.Context, cmd Command) {
	// a command and a closed connection can become ready together, handle the loss first
	if d.sessionLost() {
		d.onConnectionLost(ctx)
	}

	d.logger.Debugw("Executing command", "command", cmd, "status", d.status)

	switch c := cmd.(type) {
	case LogIn:
		d.logIn(ctx, c)

	case SetMute:
		if !d.requireConnected(ctx, cmd) {
			return
		}
		reqCtx, cancel := context.WithTimeout(ctx, d.opts.RequestTimeout)
		defer cancel()
		d.operationDone(ctx, cmd, d.session.SetMute(reqCtx, c.SourceID, c.Muted))

	case SetVolume:
		if !d.requireConnected(ctx, cmd) {
			return
		}
		reqCtx, cancel := context.WithTimeout(ctx, d.opts.RequestTimeout)
		defer cancel()
		d.operationDone(ctx, cmd, d.session.SetVolume(reqCtx, c.SourceID, c.Factor()))

	case Refresh:
		if !d.requireConnected(ctx, cmd) {
			return
		}
		if err := d.refresh(ctx, cmd); err == nil {
			d.opts.Recorder.CommandExecuted(cmd, nil)
		}

	default:
		d.logger.Warnw("Ignoring unknown command", "command", cmd)
	}
}

func (d *driver) logIn(ctx context.Context, cmd LogIn) {
	if d.status == StatusConnected {
		if d.opts.Relogin == ReloginReject {
			d.drop(ctx, cmd, ErrAlreadyConnected)
			return
		}

		d.logger.Infow("Replacing active session", "command", cmd)
		d.closeSession()
		d.setStatus(ctx, StatusDisconnected)
	}

	d.setStatus(ctx, StatusConnecting)

	connectCtx, cancel := context.WithTimeout(ctx, d.opts.ConnectTimeout)
	session, err := d.dialer.Connect(connectCtx, cmd.Address, cmd.Port, cmd.Credential)
	cancel()

	if err != nil {
		if ctx.Err() != nil {
			// shutting down, nobody is listening anymore
			return
		}
		d.fail(ctx, cmd, &ConnectError{Address: cmd.Address, Port: cmd.Port, Err: err})
		return
	}

	d.session = session
	d.sessionDone = session.Done()
	d.logger.Infow("Session established", "command", cmd)
	d.setStatus(ctx, StatusConnected)

	if err := d.refresh(ctx, cmd); err == nil {
		d.opts.Recorder.CommandExecuted(cmd, nil)
	}
}

// refresh fetches the whole inventory set first and only then emits it,
// so the consumer sees either every kind or none.
func (d *driver) refresh(ctx context.Context, cmd Command) error {
	snapshots := make([]Snapshot, 0, len(d.opts.Inventories))

	for _, kind := range d.opts.Inventories {
		snapshot, err := d.fetch(ctx, kind)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			queryErr := &QueryError{Kind: kind, Err: err}
			d.fail(ctx, cmd, queryErr)
			return queryErr
		}
		snapshots = append(snapshots, snapshot)
	}

	for _, snapshot := range snapshots {
		if err := d.snapshots.Send(ctx, snapshot); err != nil {
			return err
		}
	}

	d.logger.Debugw("Emitted inventory snapshots", "count", len(snapshots))

	return nil
}

func (d *driver) fetch(ctx context.Context, kind InventoryKind) (Snapshot, error) {
	reqCtx, cancel := context.WithTimeout(ctx, d.opts.RequestTimeout)
	defer cancel()

	switch kind {
	case KindInputs:
		inputs, err := d.session.ListInputs(reqCtx)
		return InputInventory{Inputs: inputs}, err
	case KindOutputs:
		outputs, err := d.session.ListOutputs(reqCtx)
		return OutputInventory{Outputs: outputs}, err
	case KindScenes:
		return d.session.ListScenes(reqCtx)
	case KindSceneCollections:
		return d.session.ListSceneCollections(reqCtx)
	default:
		return nil, fmt.Errorf("unsupported inventory kind %s", kind)
	}
}

func (d *driver) requireConnected(ctx context.Context, cmd Command) bool {
	if d.status == StatusConnected {
		return true
	}

	d.drop(ctx, cmd, ErrNotConnected)
	return false
}

func (d *driver) operationDone(ctx context.Context, cmd Command, err error) {
	d.opts.Recorder.CommandExecuted(cmd, err)

	if err == nil {
		return
	}

	opErr := &OperationError{Command: cmd, Err: err}
	d.logger.Warnw("Command failed, session kept", "error", opErr)
	d.emit(ctx, CommandFailed{Command: cmd, Err: opErr})
}

// fail reports a connect or query failure and walks the session back to Disconnected
func (d *driver) fail(ctx context.Context, cmd Command, err error) {
	d.logger.Warnw("Session failure", "command", cmd, "error", err)

	d.opts.Recorder.CommandExecuted(cmd, err)
	d.emit(ctx, CommandFailed{Command: cmd, Err: err})

	d.closeSession()
	d.setStatus(ctx, StatusFailed)
	d.setStatus(ctx, StatusDisconnected)
}

func (d *driver) drop(ctx context.Context, cmd Command, reason error) {
	d.logger.Debugw("Dropping command", "command", cmd, "reason", reason, "status", d.status)

	d.opts.Recorder.CommandDropped(cmd, reason)
	d.emit(ctx, CommandDropped{Command: cmd, Reason: reason})
}

func (d *driver) sessionLost() bool {
	if d.sessionDone == nil {
		return false
	}

	select {
	case <-d.sessionDone:
		return true
	default:
		return false
	}
}

func (d *driver) onConnectionLost(ctx context.Context) {
	d.logger.Warnw("Connection to mixer lost", "status", d.status)

	d.closeSession()
	d.setStatus(ctx, StatusDisconnected)
}

func (d *driver) setStatus(ctx context.Context, to Status) {
	if d.status == to {
		return
	}

	from := d.status
	d.status = to

	d.logger.Infow("Session status changed", "from", from, "to", to)
	d.opts.Recorder.StatusChanged(to)
	d.emit(ctx, StatusChanged{From: from, To: to})
}

func (d *driver) emit(ctx context.Context, event Event) {
	if err := d.events.Send(ctx, event); err != nil && !errors.Is(err, context.Canceled) {
		d.logger.Warnw("Failed to report event", "event", event, "error", err)
	}
}

func (d *driver) closeSession() {
	if d.session == nil {
		return
	}

	if err := d.session.Close(); err != nil {
		d.logger.Debugw("Failed to close session cleanly", "error", err)
	}

	d.session = nil
	d.sessionDone = nil

	d.logger.Debug("Session released")
}
