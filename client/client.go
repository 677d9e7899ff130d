// Package mbclient implements the client side of the MODBUS TCP protocol
// engine: a transaction multiplexer that pipelines concurrent requests
// over a single connection and correlates responses by transaction id.
package mbclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/fieldbus-go/modbus"
)

// pendingResult is what the background reader delivers to a waiting
// caller: either the decoded response Message, or a terminal error that
// also means every other pending caller is about to receive the same
// error.
type pendingResult struct {
	msg *modbus.Message
	err error
}

// Option configures a Client at construction time.
type Option func(*Client) error

// WithLogger overrides the client's default logger.
func WithLogger(logger modbus.LeveledLogger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// WithUnitID sets the unit id placed on every request. SetUnitID changes
// it for subsequent requests; individual operations take no unit id
// argument.
func WithUnitID(unitID uint8) Option {
	return func(c *Client) error {
		c.unitID = unitID
		return nil
	}
}

// Client is a MODBUS TCP client multiplexing concurrent requests over a
// single net.Conn.
type Client struct {
	conn   *modbus.Connection
	logger modbus.LeveledLogger
	unitID uint8

	nextTxnID atomic.Uint32

	mu      sync.Mutex
	pending map[uint16]chan pendingResult
	closed  bool

	group      *errgroup.Group
	cancelRead context.CancelFunc
}

// NewClient wraps conn as a MODBUS client and starts its background
// reader goroutine. The caller is responsible for dialing conn; this
// package deals only in framed requests and responses.
func NewClient(conn net.Conn, opts ...Option) (*Client, error) {
	c := &Client{
		conn:    modbus.NewConnection(conn),
		logger:  modbus.NewStdLogger(fmt.Sprintf("mbclient(%s)", conn.RemoteAddr())),
		unitID:  1,
		pending: make(map[uint16]chan pendingResult),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancelRead = cancel
	group, _ := errgroup.WithContext(ctx)
	c.group = group
	group.Go(c.runReader)

	return c, nil
}

// Close shuts down the underlying connection and waits for the reader
// goroutine to unwind. Pending callers are woken with an error as part of
// that unwind, not by Close directly.
func (c *Client) Close() error {
	c.cancelRead()
	err := c.conn.Close()
	_ = c.group.Wait()
	return err
}

// runReader owns Connection.ReadMessage in a loop and delivers each
// decoded Message to the waiter registered under its transaction id. A
// terminal read error, or a response with no matching waiter, ends the
// loop and fans the same error out to every still-pending caller.
func (c *Client) runReader() error {
	for {
		msg, err := c.conn.ReadMessage()
		if err != nil {
			classified := classifyReadError(err)
			c.failAll(classified)
			return classified
		}

		ch, ok := c.takePending(msg.TransactionID)
		if !ok {
			err := &InvalidResponseError{Reason: fmt.Sprintf("no pending request for transaction id 0x%04x", msg.TransactionID)}
			c.logger.Warningf("%v", err)
			c.failAll(err)
			return err
		}

		ch <- pendingResult{msg: msg}
	}
}

// classifyReadError sorts a Connection.ReadMessage failure by taxonomy:
// modbus.ErrProtocolError is a decode-terminal framing fault, not a
// transport failure, so it surfaces as *InvalidResponseError; everything
// else (EOF, *net.OpError, ...) is a genuine *IOError.
func classifyReadError(err error) error {
	if errors.Is(err, modbus.ErrProtocolError) {
		return &InvalidResponseError{Reason: err.Error()}
	}
	return &IOError{Cause: err}
}

func (c *Client) takePending(txnID uint16) (chan pendingResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.pending[txnID]
	if ok {
		delete(c.pending, txnID)
	}
	return ch, ok
}

func (c *Client) failAll(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, ch := range c.pending {
		ch <- pendingResult{err: err}
		delete(c.pending, id)
	}
}

// sendRequest allocates a transaction id, registers a waiter, writes the
// framed request and awaits the matching response (or ctx cancellation).
func (c *Client) sendRequest(ctx context.Context, unitID uint8, fc modbus.FunctionCode, body []byte) (*modbus.Message, error) {
	txnID := uint16(c.nextTxnID.Add(1))
	respCh := make(chan pendingResult, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, &IOError{Cause: errClientClosed}
	}
	c.pending[txnID] = respCh
	c.mu.Unlock()

	req := &modbus.Message{
		TransactionID: txnID,
		ProtocolID:    0,
		UnitID:        unitID,
		FunctionCode:  fc,
		Body:          body,
	}

	if err := c.conn.WriteMessage(req); err != nil {
		c.mu.Lock()
		delete(c.pending, txnID)
		c.mu.Unlock()
		return nil, &IOError{Cause: err}
	}

	select {
	case res := <-respCh:
		if res.err != nil {
			// res.err is already one of *IOError / *InvalidResponseError,
			// classified by runReader (or failAll's caller) before it was
			// fanned out; return it as-is rather than re-wrapping it.
			return nil, res.err
		}
		if err := checkResponse(req, res.msg); err != nil {
			return nil, err
		}
		return res.msg, nil

	case <-ctx.Done():
		// The pending entry is left in place: it will be reaped either
		// by a late response landing on this now-unread channel, or by
		// runReader's fail-all on connection teardown.
		return nil, ctx.Err()
	}
}

// checkResponse validates the parts of a response common to every
// operation: the echoed protocol id and unit id, and whether the reply is
// an exception.
func checkResponse(req, res *modbus.Message) error {
	if res.ProtocolID != 0 {
		return &InvalidResponseError{Reason: "unexpected protocol id"}
	}
	if res.UnitID != req.UnitID {
		return &InvalidResponseError{Reason: "unit id does not match the request"}
	}

	if res.FunctionCode.IsException() {
		if res.FunctionCode.WithoutException() != req.FunctionCode {
			return &InvalidResponseError{Reason: "exception function code does not match the request"}
		}
		if len(res.Body) != 1 {
			return &InvalidResponseError{Reason: "exception body is not exactly one byte"}
		}
		return modbus.ModbusException(res.Body[0])
	}

	if res.FunctionCode != req.FunctionCode {
		return &InvalidResponseError{Reason: fmt.Sprintf("unexpected function code %v", res.FunctionCode)}
	}

	return nil
}
