// Package obsws talks to OBS Studio through its built-in websocket server (protocol v5).
// A Client is one authenticated connection; it implements bridge.Session.
package obsws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/MixyLabs/obsdeck/pkg/obsdeck/bridge"
)

const (
	defaultHandshakeTimeout = 5 * time.Second
	closeWriteTimeout       = time.Second
)

// Dialer opens Clients. Its zero value is not usable, see NewDialer.
type Dialer struct {
	logger *zap.SugaredLogger

	HandshakeTimeout time.Duration

	// EventSubscriptions is the bitmask sent in Identify; the bridge needs none
	EventSubscriptions int
}

func NewDialer(logger *zap.SugaredLogger) *Dialer {
	return &Dialer{
		logger:           logger.Named("obsws"),
		HandshakeTimeout: defaultHandshakeTimeout,
	}
}

// Client is an identified obs-websocket connection
type Client struct {
	logger *zap.SugaredLogger
	conn   *websocket.Conn

	writeLock sync.Mutex

	pendingLock sync.Mutex
	pending     map[string]chan requestResponse

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error

	shutdownOnce sync.Once
	shutdownErr  error

	serverVersion string
}

// Connect satisfies bridge.Dialer
func (d *Dialer) Connect(ctx context.Context, address string, port uint16, credential string) (bridge.Session, error) {
	client, err := d.Dial(ctx, address, port, credential)
	if err != nil {
		return nil, err
	}

	return client, nil
}

// Dial connects to ws://address:port and completes the Hello/Identify handshake
func (d *Dialer) Dial(ctx context.Context, address string, port uint16, credential string) (*Client, error) {
	endpoint := url.URL{Scheme: "ws", Host: net.JoinHostPort(address, strconv.Itoa(int(port)))}
	logger := d.logger.With("endpoint", endpoint.String())

	wsDialer := websocket.Dialer{HandshakeTimeout: d.HandshakeTimeout}

	conn, _, err := wsDialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		logger.Debugw("Failed to open websocket", "error", err)
		return nil, fmt.Errorf("open websocket: %w", err)
	}

	c := &Client{
		logger:  logger,
		conn:    conn,
		pending: make(map[string]chan requestResponse),
		done:    make(chan struct{}),
	}

	if err := c.identify(ctx, credential, d.EventSubscriptions); err != nil {
		_ = conn.Close()
		logger.Debugw("Handshake failed", "error", err)
		return nil, err
	}

	go c.readPump()

	logger.Infow("Identified with OBS", "obsWebSocketVersion", c.serverVersion)

	return c, nil
}

func (c *Client) identify(ctx context.Context, credential string, subscriptions int) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(deadline)
		_ = c.conn.SetWriteDeadline(deadline)
		defer func() {
			_ = c.conn.SetReadDeadline(time.Time{})
			_ = c.conn.SetWriteDeadline(time.Time{})
		}()
	}

	var greeting hello
	if err := c.expect(opHello, &greeting); err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	c.serverVersion = greeting.ObsWebSocketVersion

	msg := identify{RPCVersion: rpcVersion, EventSubscriptions: subscriptions}
	if greeting.Authentication != nil {
		if credential == "" {
			return ErrPasswordRequired
		}
		msg.Authentication = authenticationString(credential, greeting.Authentication.Salt, greeting.Authentication.Challenge)
	}

	out, err := encode(opIdentify, msg)
	if err != nil {
		return err
	}
	if err := c.conn.WriteJSON(out); err != nil {
		return fmt.Errorf("send identify: %w", err)
	}

	var ack identified
	if err := c.expect(opIdentified, &ack); err != nil {
		return fmt.Errorf("read identified: %w", err)
	}

	return nil
}

// expect reads one message and decodes it, failing on any other opcode
func (c *Client) expect(op int, into any) error {
	var in envelope
	if err := c.conn.ReadJSON(&in); err != nil {
		if websocket.IsCloseError(err, closeAuthenticationFailed) {
			return ErrAuthenticationFailed
		}
		return err
	}

	if in.Op != op {
		return fmt.Errorf("unexpected op %d, wanted %d", in.Op, op)
	}

	return json.Unmarshal(in.D, into)
}

func (c *Client) readPump() {
	for {
		var in envelope
		if err := c.conn.ReadJSON(&in); err != nil {
			c.terminate(err)
			return
		}

		switch in.Op {
		case opRequestResponse:
			var resp requestResponse
			if err := json.Unmarshal(in.D, &resp); err != nil {
				c.logger.Warnw("Failed to decode request response", "error", err)
				continue
			}
			c.deliver(resp)

		case opEvent:
			// not subscribed to anything, but servers may still send some
			c.logger.Debugw("Ignoring event", "payload", string(in.D))

		default:
			c.logger.Debugw("Ignoring message", "op", in.Op)
		}
	}
}

func (c *Client) deliver(resp requestResponse) {
	c.pendingLock.Lock()
	ch, ok := c.pending[resp.RequestID]
	delete(c.pending, resp.RequestID)
	c.pendingLock.Unlock()

	if !ok {
		c.logger.Debugw("Response for unknown request", "requestId", resp.RequestID, "requestType", resp.RequestType)
		return
	}

	ch <- resp
}

// request sends requestType and decodes responseData into out, if out is not nil
func (c *Client) request(ctx context.Context, requestType string, data any, out any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("send %s: %w", requestType, err)
	}

	id := uuid.NewString()
	ch := make(chan requestResponse, 1)

	c.pendingLock.Lock()
	c.pending[id] = ch
	c.pendingLock.Unlock()

	defer func() {
		c.pendingLock.Lock()
		delete(c.pending, id)
		c.pendingLock.Unlock()
	}()

	msg, err := encode(opRequest, request{RequestType: requestType, RequestID: id, RequestData: data})
	if err != nil {
		return err
	}

	if err := c.write(ctx, msg); err != nil {
		return fmt.Errorf("send %s: %w", requestType, err)
	}

	var resp requestResponse
	select {
	case resp = <-ch:
	case <-ctx.Done():
		return fmt.Errorf("await %s: %w", requestType, ctx.Err())
	case <-c.done:
		return fmt.Errorf("await %s: %w", requestType, c.Err())
	}

	if !resp.RequestStatus.Result {
		return &RequestError{
			Type:    requestType,
			Code:    resp.RequestStatus.Code,
			Comment: resp.RequestStatus.Comment,
		}
	}

	if out == nil || len(resp.ResponseData) == 0 {
		return nil
	}

	if err := json.Unmarshal(resp.ResponseData, out); err != nil {
		return fmt.Errorf("decode %s response: %w", requestType, err)
	}

	return nil
}

func (c *Client) write(ctx context.Context, msg envelope) error {
	select {
	case <-c.done:
		return c.Err()
	default:
	}

	c.writeLock.Lock()
	defer c.writeLock.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	_ = c.conn.SetWriteDeadline(deadline)

	return c.conn.WriteJSON(msg)
}

func (c *Client) terminate(err error) {
	c.closeOnce.Do(func() {
		c.closeErr = err
		close(c.done)

		if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			c.logger.Infow("Connection ended", "error", err)
		}
	})
}

// Done is closed when the connection is gone, whoever closed it
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err explains why Done was closed
func (c *Client) Err() error {
	select {
	case <-c.done:
	default:
		return nil
	}

	if c.closeErr == nil {
		return ErrConnectionClosed
	}
	return fmt.Errorf("%w: %v", ErrConnectionClosed, c.closeErr)
}

// Close says goodbye to the server and waits for the read pump to stop.
// Calling it again is a no-op.
func (c *Client) Close() error {
	c.shutdownOnce.Do(func() {
		c.writeLock.Lock()
		err := c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeWriteTimeout))
		c.writeLock.Unlock()

		if closeErr := c.conn.Close(); closeErr != nil && err == nil {
			err = closeErr
		}

		if err != nil && (errors.Is(err, websocket.ErrCloseSent) || errors.Is(err, net.ErrClosed)) {
			err = nil
		}
		c.shutdownErr = err
	})

	<-c.done

	return c.shutdownErr
}
