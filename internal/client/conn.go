package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mark3labs/specdash/internal/logger"
	"github.com/mark3labs/specdash/internal/wire"
)

// ErrNotConnected is returned by Send while no session is open.
var ErrNotConnected = errors.New("not connected")

const writeWait = 10 * time.Second

// State describes the connection as last observed.
type State struct {
	Connected   bool
	Attempts    int    // consecutive failed dials
	LastError   string // last transport error
	ServerError string // last error message sent by the server
	RetryIn     time.Duration
}

// Conn keeps a session with the sync server open and feeds every message
// into its Reconciler.
type Conn struct {
	url      string
	projects []string
	dialer   *websocket.Dialer
	backoff  Backoff
	log      *logger.Logger
	rec      *Reconciler

	changed chan struct{}

	mu    sync.Mutex
	ws    *websocket.Conn
	state State
}

// Option configures a Conn.
type Option func(*Conn)

// WithProjects limits the subscription to the given project IDs.
func WithProjects(ids ...string) Option {
	return func(c *Conn) { c.projects = ids }
}

// WithBackoff overrides the reconnect backoff.
func WithBackoff(b Backoff) Option {
	return func(c *Conn) { c.backoff = b }
}

// WithDialer overrides the WebSocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Conn) { c.dialer = d }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Conn) { c.log = l }
}

// New creates a connection to the /ws endpoint at rawURL. Nothing is dialed
// until Run.
func New(rawURL string, opts ...Option) *Conn {
	c := &Conn{
		url:     rawURL,
		dialer:  websocket.DefaultDialer,
		backoff: DefaultBackoff(),
		log:     logger.Named("client"),
		rec:     NewReconciler(),
		changed: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reconciler returns the local mirror of the server's collections.
func (c *Conn) Reconciler() *Reconciler {
	return c.rec
}

// Changed fires after the state or the reconciler changed. Notifications
// coalesce; readers should re-read everything they display.
func (c *Conn) Changed() <-chan struct{} {
	return c.changed
}

// State returns the current connection state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Send writes a client message on the open session.
func (c *Conn) Send(m wire.Message) error {
	data, err := wire.Encode(m)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil {
		return ErrNotConnected
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Run dials, reads and reconnects until ctx is done. It always returns
// ctx's error.
func (c *Conn) Run(ctx context.Context) error {
	target, err := c.target()
	if err != nil {
		return err
	}
	for {
		err := c.session(ctx, target)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := c.backoff.Next()
		c.update(func(s *State) {
			s.Connected = false
			s.Attempts++
			s.LastError = err.Error()
			s.RetryIn = delay
		})
		c.log.Warn("connection to %s lost: %v; retrying in %v", c.url, err, delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Conn) target() (string, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return "", fmt.Errorf("parsing server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	if len(c.projects) > 0 {
		q := u.Query()
		for _, p := range c.projects {
			q.Add("project", p)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// session runs one connection until it fails.
func (c *Conn) session(ctx context.Context, target string) error {
	ws, _, err := c.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return err
	}

	c.backoff.Reset()
	c.rec.Reset()
	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()
	c.update(func(s *State) {
		s.Connected = true
		s.Attempts = 0
		s.LastError = ""
		s.RetryIn = 0
	})
	c.log.Info("connected to %s", target)

	stop := context.AfterFunc(ctx, func() { _ = ws.Close() })
	defer func() {
		stop()
		c.mu.Lock()
		c.ws = nil
		c.mu.Unlock()
		_ = ws.Close()
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		m, err := c.rec.Handle(data)
		switch {
		case errors.Is(err, ErrResyncRequired):
			c.log.Warn("%v; requesting resync", err)
			if err := c.Send(wire.Resync()); err != nil {
				return err
			}
			continue
		case err != nil:
			return err
		}
		if m.Type == wire.TypeError {
			c.update(func(s *State) { s.ServerError = m.Error })
			continue
		}
		c.notify()
	}
}

func (c *Conn) update(fn func(*State)) {
	c.mu.Lock()
	fn(&c.state)
	c.mu.Unlock()
	c.notify()
}

func (c *Conn) notify() {
	select {
	case c.changed <- struct{}{}:
	default:
	}
}
