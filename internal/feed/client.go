package feed

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"
)

// MaxLineLength bounds a single feed line. A longer line without a newline
// ends the session with ConnectionReset.
const MaxLineLength = 4096

// State is the connection state of a Client.
type State int32

const (
	Disconnected State = iota
	Connecting
	LoggedIn
	Streaming
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case LoggedIn:
		return "logged_in"
	case Streaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// Config describes how to reach and log in to a cluster node.
type Config struct {
	Addr         string
	Login        string   // callsign sent after connecting; empty skips the handshake
	Commands     []string // sent after the banner, e.g. "set/ve7cc 1"
	DialTimeout  time.Duration
	LoginTimeout time.Duration
	IdleTimeout  time.Duration
}

// Dialer opens network connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Stream yields lines from one connection.
type Stream interface {
	// ReadLine blocks until the next non-empty line, the idle timeout, or ctx
	// cancellation. Any error is a *Error and closes the stream.
	ReadLine(ctx context.Context) (string, error)
	Close() error
}

// Client dials a cluster node and tracks the connection state.
type Client struct {
	cfg    Config
	dialer Dialer
	logger *slog.Logger
	state  atomic.Int32
}

// NewClient creates a Client that dials with a plain TCP dialer.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	return NewClientWithDialer(cfg, &net.Dialer{KeepAlive: 30 * time.Second}, logger)
}

// NewClientWithDialer creates a Client using the given dialer.
func NewClientWithDialer(cfg Config, dialer Dialer, logger *slog.Logger) *Client {
	return &Client{cfg: cfg, dialer: dialer, logger: logger}
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

// Connect dials the node and performs the login handshake. The returned
// stream's socket is closed as soon as ctx is cancelled.
func (c *Client) Connect(ctx context.Context) (Stream, error) {
	c.setState(Connecting)

	dialCtx := ctx
	if c.cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.cfg.DialTimeout)
		defer cancel()
	}

	conn, err := c.dialer.DialContext(dialCtx, "tcp", c.cfg.Addr)
	if err != nil {
		c.setState(Disconnected)
		return nil, &Error{Reason: ConnectFailed, Err: fmt.Errorf("dial %s: %w", c.cfg.Addr, err)}
	}

	s := &session{
		conn:   conn,
		reader: bufio.NewReaderSize(conn, MaxLineLength),
		client: c,
	}
	s.stopAfter = context.AfterFunc(ctx, func() { _ = conn.Close() })

	if err := s.login(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	c.setState(LoggedIn)
	c.logger.Debug("feed logged in", "addr", c.cfg.Addr, "login", c.cfg.Login)
	return s, nil
}

// session is the Stream for one TCP connection.
type session struct {
	conn      net.Conn
	reader    *bufio.Reader
	client    *Client
	stopAfter func() bool
	closeOnce sync.Once
	streaming bool
	err       error
}

// login sends the callsign, waits for the node's banner line, then sends the
// configured commands.
func (s *session) login(ctx context.Context) error {
	cfg := s.client.cfg
	if cfg.Login == "" {
		return s.sendCommands(ctx, cfg.Commands)
	}

	if err := s.writeLine(cfg.Login); err != nil {
		return s.loginError(ctx, fmt.Errorf("send login: %w", err))
	}
	if cfg.LoginTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(cfg.LoginTimeout))
	}
	banner, err := s.readRaw()
	if err != nil {
		return s.loginError(ctx, fmt.Errorf("await banner: %w", err))
	}
	s.client.logger.Debug("feed banner", "text", sanitizeLine(banner))

	return s.sendCommands(ctx, cfg.Commands)
}

func (s *session) sendCommands(ctx context.Context, cmds []string) error {
	for _, cmd := range cmds {
		if err := s.writeLine(cmd); err != nil {
			return s.loginError(ctx, fmt.Errorf("send command %q: %w", cmd, err))
		}
	}
	return nil
}

func (s *session) loginError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return &Error{Reason: Closed, Err: ctx.Err()}
	}
	return &Error{Reason: ConnectFailed, Err: err}
}

func (s *session) writeLine(text string) error {
	if t := s.client.cfg.LoginTimeout; t > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(t))
	}
	_, err := s.conn.Write([]byte(text + "\n"))
	return err
}

// ReadLine implements Stream.
func (s *session) ReadLine(ctx context.Context) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	for {
		if ctx.Err() != nil {
			return "", s.fail(ctx, ctx.Err())
		}
		var deadline time.Time
		if t := s.client.cfg.IdleTimeout; t > 0 {
			deadline = time.Now().Add(t)
		}
		_ = s.conn.SetReadDeadline(deadline)

		raw, err := s.readRaw()
		if err != nil {
			return "", s.fail(ctx, err)
		}
		if !s.streaming {
			s.streaming = true
			s.client.setState(Streaming)
		}
		if line := sanitizeLine(raw); line != "" {
			return line, nil
		}
	}
}

// readRaw returns the next newline-terminated chunk, failing with
// bufio.ErrBufferFull once MaxLineLength bytes arrive without a newline.
func (s *session) readRaw() (string, error) {
	b, err := s.reader.ReadSlice('\n')
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// fail classifies err, closes the session and remembers the error for later calls.
func (s *session) fail(ctx context.Context, err error) error {
	var reason Reason
	var netErr net.Error
	switch {
	case ctx.Err() != nil, errors.Is(err, net.ErrClosed):
		reason = Closed
	case errors.Is(err, os.ErrDeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		reason = ReadTimeout
		err = fmt.Errorf("no line within %s: %w", s.client.cfg.IdleTimeout, err)
	case errors.Is(err, bufio.ErrBufferFull):
		reason = ConnectionReset
		err = fmt.Errorf("line longer than %d bytes: %w", MaxLineLength, err)
	default:
		reason = ConnectionReset
	}
	s.err = &Error{Reason: reason, Err: err}
	_ = s.Close()
	return s.err
}

// Close implements Stream.
func (s *session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.stopAfter()
		err = s.conn.Close()
		if s.err == nil {
			s.err = &Error{Reason: Closed, Err: net.ErrClosed}
		}
		s.client.setState(Disconnected)
	})
	return err
}

// sanitizeLine strips line endings and control characters (clusters append
// BEL to some spots) and replaces invalid UTF-8.
func sanitizeLine(raw string) string {
	line := strings.ToValidUTF8(raw, "\uFFFD")
	return strings.TrimFunc(line, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	})
}
