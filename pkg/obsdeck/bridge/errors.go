package bridge

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// ErrNotConnected is the drop reason for commands that need an established session
var ErrNotConnected = errors.New("not connected")

// ErrAlreadyConnected is the drop reason for a LogIn refused by ReloginReject
var ErrAlreadyConnected = errors.New("already connected")

// ConnectError is a failure to connect or authenticate during LogIn
type ConnectError struct {
	Address string
	Port    uint16
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %s: %v", net.JoinHostPort(e.Address, strconv.Itoa(int(e.Port))), e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// QueryError is a failed inventory fetch on an established session
type QueryError struct {
	Kind InventoryKind
	Err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("list %s: %v", e.Kind, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// OperationError is a single rejected or failed mute/volume command.
// The session is assumed to remain valid.
type OperationError struct {
	Command Command
	Err     error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// QueueFullError means the command was not enqueued because the queue was at capacity
type QueueFullError struct {
	Command  Command
	Capacity int
}

func (e *QueueFullError) Error() string {
	return fmt.Sprintf("command queue full (%d pending), dropped %s", e.Capacity, e.Command)
}

func IsConnectError(err error) bool {
	var target *ConnectError
	return errors.As(err, &target)
}

func IsQueryError(err error) bool {
	var target *QueryError
	return errors.As(err, &target)
}

func IsOperationError(err error) bool {
	var target *OperationError
	return errors.As(err, &target)
}

func IsQueueFullError(err error) bool {
	var target *QueueFullError
	return errors.As(err, &target)
}
