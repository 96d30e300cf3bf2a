package sqlclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/tuannm99/novamem/internal/sql/executor"
	"github.com/tuannm99/novamem/server/novamemwire"
)

var (
	// ErrServer wraps errors reported by the server for a request. The
	// connection stays usable after one.
	ErrServer = errors.New("server error")

	errNilClient = errors.New("sqlclient: nil client")
)

// Client is a simple synchronous client for novamemd.
// Requests on one Client are serialized; open several clients to run
// requests in parallel.
type Client struct {
	conn net.Conn
	mu   sync.Mutex
	id   uint64 // guarded by mu

	// Optional per-request timeout (0 = no timeout).
	rwTimeout time.Duration
}

func Dial(addr string, timeout time.Duration) (*Client, error) {
	return DialContext(context.Background(), addr, timeout)
}

func DialContext(ctx context.Context, addr string, timeout time.Duration) (*Client, error) {
	d := net.Dialer{Timeout: timeout}
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Client{conn: c}, nil
}

// SetRWTimeout bounds every later request that has no context deadline.
func (c *Client) SetRWTimeout(d time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.rwTimeout = d
	c.mu.Unlock()
}

func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Exec sends one request (any number of ';'-terminated statements, run as a
// single transaction) and returns the result of its last statement.
func (c *Client) Exec(sql string) (*executor.Result, error) {
	return c.ExecContext(context.Background(), sql)
}

// ExecContext is Exec bounded by ctx's deadline. A transport error leaves
// the connection in an unknown state; close it and dial again.
func (c *Client) ExecContext(ctx context.Context, sql string) (*executor.Result, error) {
	if c == nil || c.conn == nil {
		return nil, errNilClient
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.id++
	resp, err := c.roundTrip(ctx, novamemwire.ExecuteRequest{ID: c.id, SQL: sql})
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrServer, resp.Error)
	}
	return resp.Result, nil
}

// roundTrip writes req and reads its response. Caller holds c.mu.
func (c *Client) roundTrip(ctx context.Context, req novamemwire.ExecuteRequest) (*novamemwire.ExecuteResponse, error) {
	deadline, ok := ctx.Deadline()
	if !ok && c.rwTimeout > 0 {
		deadline = time.Now().Add(c.rwTimeout)
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	// Clear deadline after request so idle connection doesn't expire.
	defer func() { _ = c.conn.SetDeadline(time.Time{}) }()

	if err := novamemwire.WriteFrame(c.conn, req); err != nil {
		return nil, fmt.Errorf("sqlclient: send: %w", err)
	}
	var resp novamemwire.ExecuteResponse
	if err := novamemwire.ReadFrame(c.conn, &resp); err != nil {
		return nil, fmt.Errorf("sqlclient: receive: %w", err)
	}
	if resp.ID != req.ID {
		return nil, fmt.Errorf("sqlclient: response id mismatch: got=%d want=%d", resp.ID, req.ID)
	}
	return &resp, nil
}
