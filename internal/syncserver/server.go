// Package syncserver keeps an in-memory view of every subscribed project,
// re-parses single items as their files change and pushes snapshots and
// incremental updates to connected dashboard clients.
//
// All mutable state is owned by one event-loop goroutine. HTTP handlers,
// WebSocket pumps, parse workers and the event bus communicate with it by
// posting closures.
package syncserver

import (
	"context"
	"errors"
	"sync"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"golang.org/x/sync/semaphore"

	"github.com/mark3labs/specdash/internal/collection"
	"github.com/mark3labs/specdash/internal/config"
	ierr "github.com/mark3labs/specdash/internal/errors"
	"github.com/mark3labs/specdash/internal/hooks"
	"github.com/mark3labs/specdash/internal/logger"
	"github.com/mark3labs/specdash/internal/nats"
	"github.com/mark3labs/specdash/internal/workitem"
)

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("sync server closed")

// ErrUnknownProject is returned for project IDs not in the registry.
var ErrUnknownProject = errors.New("unknown project")

// Options tunes a Server.
type Options struct {
	Layout       workitem.Layout
	Debounce     time.Duration
	Ignore       []string
	ParseWorkers int
	ClientBuffer int
	Logger       *logger.Logger
}

// OptionsFromConfig maps loaded configuration onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Layout:       workitem.Layout{WorkflowDir: cfg.WorkflowDir},
		Debounce:     cfg.Debounce,
		Ignore:       cfg.Ignore,
		ParseWorkers: cfg.ParseWorkers,
		ClientBuffer: cfg.ClientBuffer,
	}
}

func (o *Options) defaults() {
	if o.Layout.WorkflowDir == "" {
		o.Layout.WorkflowDir = config.DefaultWorkflowDir
	}
	if o.Debounce <= 0 {
		o.Debounce = config.DefaultDebounce
	}
	if o.ParseWorkers < 1 {
		o.ParseWorkers = config.DefaultParseWorkers
	}
	if o.ClientBuffer < 1 {
		o.ClientBuffer = config.DefaultClientBuffer
	}
	if o.Logger == nil {
		o.Logger = logger.Named("syncserver")
	}
}

// Server is the synchronization server.
type Server struct {
	opts      Options
	log       *logger.Logger
	bus       *nats.Bus
	assembler *collection.Assembler
	hooks     *hooks.Runner
	parseSem  *semaphore.Weighted

	projects []Project // immutable after New

	// Loop-owned.
	states  map[string]*projectState
	clients map[*client]struct{}
	seq     uint64

	cmds      chan func()
	ctx       context.Context
	cancel    context.CancelFunc
	stopped   chan struct{}
	busSub    *natsgo.Subscription
	startOnce sync.Once
	closeOnce sync.Once
}

// MinClientBuffer is the smallest per-client queue that holds a full
// resync: one snapshot per kind for every project, plus one message. A
// resync always starts from an emptied queue, so it can never overflow.
func MinClientBuffer(projects int) int {
	return len(workitem.Kinds)*projects + 1
}

// New creates a server for projects. Change events travel over bus.
// A ClientBuffer smaller than MinClientBuffer is raised to it.
func New(projects []Project, bus *nats.Bus, opts Options) *Server {
	opts.defaults()
	if need := MinClientBuffer(len(projects)); opts.ClientBuffer < need {
		opts.Logger.Warn("client_buffer %d cannot hold a resync of %d projects; using %d", opts.ClientBuffer, len(projects), need)
		opts.ClientBuffer = need
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		opts: opts,
		log:  opts.Logger,
		bus:  bus,
		assembler: collection.New(opts.Layout,
			collection.WithWorkers(opts.ParseWorkers),
			collection.WithLogger(opts.Logger.Named("collection"))),
		hooks:    hooks.NewRunner(),
		parseSem: semaphore.NewWeighted(int64(opts.ParseWorkers)),
		projects: projects,
		states:   make(map[string]*projectState, len(projects)),
		clients:  make(map[*client]struct{}),
		cmds:     make(chan func(), 256),
		ctx:      ctx,
		cancel:   cancel,
		stopped:  make(chan struct{}),
	}
	for _, p := range projects {
		s.states[p.ID] = newProjectState(p)
	}
	return s
}

// Projects returns the registry in configuration order.
func (s *Server) Projects() []Project {
	return append([]Project(nil), s.projects...)
}

// Start subscribes to the event bus and starts the event loop.
func (s *Server) Start() error {
	var err error
	s.startOnce.Do(func() {
		s.busSub, err = s.bus.Subscribe("", func(e workitem.ChangeEvent) {
			s.post(func() { s.handleChange(e) })
		})
		if err != nil {
			return
		}
		go s.loop()
		s.log.Info("sync server started with %d projects", len(s.projects))
	})
	return err
}

// Close disconnects every client, stops all watchers and the loop, and
// waits for running hooks.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		if s.busSub != nil {
			_ = s.busSub.Unsubscribe()
		}
		s.cancel()
		if s.busSub != nil {
			<-s.stopped
		}
		s.hooks.Close()
	})
	return nil
}

func (s *Server) loop() {
	defer close(s.stopped)
	for {
		select {
		case fn := <-s.cmds:
			if err := ierr.Recover(func() error { fn(); return nil }); err != nil {
				s.log.Error("event loop: %v", err)
			}
		case <-s.ctx.Done():
			s.shutdown()
			return
		}
	}
}

func (s *Server) shutdown() {
	for c := range s.clients {
		s.dropClient(c)
	}
	for _, st := range s.states {
		s.deactivate(st)
	}
}

// post queues fn for the event loop. It reports false once the server is
// closing.
func (s *Server) post(fn func()) bool {
	select {
	case s.cmds <- fn:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// call runs fn on the loop and waits for it to finish.
func (s *Server) call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !s.post(func() { defer close(done); fn() }) {
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return ErrClosed
	}
}
