package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/audiolibrelab/robocapture/internal/device"
)

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("broker connection closed")

const (
	defaultDialTimeout = 5 * time.Second
	defaultCallTimeout = 2 * time.Second
)

// Options tune the transport.
type Options struct {
	// DialTimeout bounds the TCP connect.
	DialTimeout time.Duration
	// CallTimeout bounds each request/response round trip. A timeout is
	// reported like any other call failure.
	CallTimeout time.Duration
	// Trace logs every call at debug level.
	Trace bool
}

// Dialer implements device.Dialer over TCP.
type Dialer struct {
	opts Options
}

// NewDialer returns a Dialer, filling zero options with defaults.
func NewDialer(opts Options) *Dialer {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	return &Dialer{opts: opts}
}

// Dial connects to the platform broker.
func (d *Dialer) Dial(ctx context.Context, address string, port int) (device.Broker, error) {
	target := net.JoinHostPort(address, strconv.Itoa(port))
	nd := net.Dialer{Timeout: d.opts.DialTimeout}
	conn, err := nd.DialContext(ctx, "tcp", target)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	slog.Debug("Broker connection opened", "address", target)
	client := NewClient(conn, d.opts)
	client.redial = func(ctx context.Context) (net.Conn, error) {
		return nd.DialContext(ctx, "tcp", target)
	}
	return client, nil
}

// Client multiplexes module proxies over one connection. Calls are
// serialized. A transport failure, a timeout included, fails that call and
// drops the connection, since a late response would otherwise be read as
// the answer to the next call. The next call dials again when the client
// came from a Dialer.
type Client struct {
	conn        net.Conn
	enc         *cbor.Encoder
	dec         *cbor.Decoder
	callTimeout time.Duration
	trace       bool
	redial      func(ctx context.Context) (net.Conn, error)

	mu     sync.Mutex
	nextID uint64
	closed bool
	broken error
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn, opts Options) *Client {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	return &Client{
		conn:        conn,
		enc:         NewEncoder(conn),
		dec:         NewDecoder(conn),
		callTimeout: opts.CallTimeout,
		trace:       opts.Trace,
	}
}

// Call invokes method on module and decodes the result into result when
// it is non-nil.
func (c *Client) Call(ctx context.Context, module, method string, result any, args ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.broken != nil {
		if err := c.reconnect(ctx); err != nil {
			return fmt.Errorf("%s.%s: connection unusable: %w", module, method, err)
		}
	}

	c.nextID++
	request := Request{ID: c.nextID, Module: module, Method: method, Args: args}

	deadline := time.Now().Add(c.callTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.conn.SetDeadline(deadline)
	defer c.conn.SetDeadline(time.Time{})

	started := time.Now()
	response, err := c.roundTrip(request)
	if c.trace {
		slog.Debug("Broker call", "module", module, "method", method, "args", args,
			"duration", time.Since(started), "error", err)
	}
	if err != nil {
		c.broken = err
		c.conn.Close()
		slog.Warn("Broker call failed, dropping connection", "module", module, "method", method, "error", err)
		return fmt.Errorf("%s.%s: %w", module, method, err)
	}

	if !response.OK {
		return &RemoteError{Module: module, Method: method, Message: response.Error}
	}

	if result != nil && len(response.Result) > 0 {
		if err := Unmarshal(response.Result, result); err != nil {
			return fmt.Errorf("%s.%s: decoding result: %w", module, method, err)
		}
	}
	return nil
}

// reconnect replaces a dropped connection. Callers hold c.mu.
func (c *Client) reconnect(ctx context.Context) error {
	if c.redial == nil {
		return c.broken
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	conn, err := c.redial(dialCtx)
	if err != nil {
		return fmt.Errorf("reconnect after %v: %w", c.broken, err)
	}

	slog.Info("Broker connection re-established", "address", conn.RemoteAddr().String())
	c.conn = conn
	c.enc = NewEncoder(conn)
	c.dec = NewDecoder(conn)
	c.broken = nil
	return nil
}

func (c *Client) roundTrip(request Request) (*Response, error) {
	if err := c.enc.Encode(request); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}

	var response Response
	if err := c.dec.Decode(&response); err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if response.ID != request.ID {
		return nil, fmt.Errorf("response id %d does not match request %d", response.ID, request.ID)
	}
	return &response, nil
}

// Close shuts the connection. Proxies obtained from the client fail with
// ErrClosed afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.broken != nil {
		// Already closed when it broke.
		return nil
	}
	return c.conn.Close()
}

// lookup confirms the platform exposes module.
func (c *Client) lookup(ctx context.Context, module string) error {
	return c.Call(ctx, ModuleBroker, MethodService, nil, module)
}

func (c *Client) VideoRecorder(ctx context.Context) (device.VideoBackend, error) {
	if err := c.lookup(ctx, ModuleVideoRecorder); err != nil {
		return nil, err
	}
	return &videoProxy{c: c}, nil
}

func (c *Client) AudioDevice(ctx context.Context) (device.AudioBackend, error) {
	if err := c.lookup(ctx, ModuleAudioDevice); err != nil {
		return nil, err
	}
	return &audioProxy{c: c}, nil
}

func (c *Client) Sonar(ctx context.Context) (device.SonarBackend, error) {
	if err := c.lookup(ctx, ModuleSonar); err != nil {
		return nil, err
	}
	return &sonarProxy{c: c}, nil
}

func (c *Client) Memory(ctx context.Context) (device.MemoryBackend, error) {
	if err := c.lookup(ctx, ModuleMemory); err != nil {
		return nil, err
	}
	return &memoryProxy{c: c}, nil
}
