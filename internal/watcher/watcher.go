// Package watcher turns filesystem activity under a project's workflow
// directory into one debounced ChangeEvent per affected work item.
package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mark3labs/specdash/internal/config"
	"github.com/mark3labs/specdash/internal/logger"
	"github.com/mark3labs/specdash/internal/workitem"
)

// IgnoreFileName is an optional file of extra ignore patterns in the
// workflow directory. Its patterns are relative to that directory.
const IgnoreFileName = ".specdashignore"

// Handler receives change events. It is called from the watcher's event
// loop and must not block for long.
type Handler func(workitem.ChangeEvent)

// Watcher watches one project root. Create it with New, then Start and Stop
// it exactly once.
type Watcher struct {
	project  string
	root     string
	layout   workitem.Layout
	debounce time.Duration
	ignore   *Ignore
	handler  Handler
	log      *logger.Logger

	fsw *fsnotify.Watcher

	// Owned by the event loop.
	known       map[workitem.Key]bool
	pending     map[workitem.Key]*pendingFlush
	gen         uint64
	rootWatched bool

	flushC   chan flushRequest
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

type pendingFlush struct {
	timer *time.Timer
	gen   uint64
}

type flushRequest struct {
	key workitem.Key
	gen uint64
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the per-item quiet period before an event is emitted.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithIgnore adds gitignore-style patterns on top of DefaultIgnore.
func WithIgnore(patterns ...string) Option {
	return func(w *Watcher) {
		for _, p := range patterns {
			w.ignore.Add(p)
		}
	}
}

// WithHandler sets the destination for change events.
func WithHandler(h Handler) Option {
	return func(w *Watcher) { w.handler = h }
}

// WithLogger overrides the component logger.
func WithLogger(l *logger.Logger) Option {
	return func(w *Watcher) { w.log = l }
}

// New creates a watcher for the project rooted at root. project is the
// identifier stamped on emitted events.
func New(project, root string, layout workitem.Layout, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	w := &Watcher{
		project:  project,
		root:     root,
		layout:   layout,
		debounce: config.DefaultDebounce,
		ignore:   NewIgnore(DefaultIgnore...),
		handler:  func(workitem.ChangeEvent) {},
		log:      logger.Named("watcher"),
		fsw:      fsw,
		known:    make(map[workitem.Key]bool),
		pending:  make(map[workitem.Key]*pendingFlush),
		flushC:   make(chan flushRequest),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if err := w.ignore.LoadFile(filepath.Join(layout.WorkflowPath(root), IgnoreFileName)); err != nil {
		w.log.Warn("reading %s: %v", IgnoreFileName, err)
	}
	return w, nil
}

// Start seeds the known item set, adds watches and starts the event loop.
func (w *Watcher) Start() error {
	for _, key := range w.scan() {
		w.known[key] = true
	}

	workflow := w.layout.WorkflowPath(w.root)
	if isDir(workflow) {
		if err := w.addRecursive(workflow); err != nil {
			w.fsw.Close()
			return err
		}
	} else {
		// Pick the workflow directory up when it is created.
		if err := w.fsw.Add(w.root); err != nil {
			w.fsw.Close()
			return fmt.Errorf("watching project root: %w", err)
		}
		w.rootWatched = true
	}

	go w.eventLoop()
	w.log.Info("watching %s (%d items, %d ignore patterns)", workflow, len(w.known), w.ignore.Len())
	return nil
}

// Stop shuts the event loop down and releases the fsnotify watcher.
// Pending debounced events are discarded.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		<-w.stopped
		err = w.fsw.Close()
	})
	return err
}

// Known returns the keys of the items currently tracked. Only safe to call
// before Start or after Stop.
func (w *Watcher) Known() []workitem.Key {
	keys := make([]workitem.Key, 0, len(w.known))
	for k := range w.known {
		keys = append(keys, k)
	}
	return keys
}

func (w *Watcher) eventLoop() {
	defer close(w.stopped)
	defer w.cancelPending()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("fsnotify error: %v", err)

		case req := <-w.flushC:
			p, ok := w.pending[req.key]
			if !ok || p.gen != req.gen {
				continue // superseded by a later event
			}
			delete(w.pending, req.key)
			w.flush(req.key)
		}
	}
}

func (w *Watcher) cancelPending() {
	for key, p := range w.pending {
		p.timer.Stop()
		delete(w.pending, key)
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) {
		return
	}

	workflow := w.layout.WorkflowPath(w.root)
	if event.Name == workflow {
		w.handleWorkflowDir(event)
		return
	}

	rel, err := filepath.Rel(workflow, event.Name)
	if err != nil {
		return
	}
	info, ok := ClassifyPath(rel)
	if !ok {
		return
	}
	created := event.Has(fsnotify.Create)
	dir := created && isDir(event.Name)
	if w.ignore.Match(info.Rel(), dir) {
		return
	}

	switch {
	case info.Slug == "":
		// The kind directory itself.
		if created && dir {
			w.watchAndSchedule(event.Name, info.Kind)
		} else if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
			w.scheduleKnown(func(k workitem.Key) bool { return k.Kind == info.Kind })
		}

	case info.File == "":
		// An item directory.
		if created && dir {
			if err := w.addRecursive(event.Name); err != nil {
				w.log.Warn("watching new item %s: %v", info.Slug, err)
			}
		}
		w.schedule(info.Key())

	case info.Kind.IsDocument(info.File):
		w.schedule(info.Key())

	case dir:
		// Nested directory inside an item; watch it but nothing to parse.
		if err := w.addRecursive(event.Name); err != nil {
			w.log.Debug("watching %s: %v", info.Rel(), err)
		}
	}
}

// handleWorkflowDir reacts to the workflow directory itself appearing or
// disappearing while the project root is watched.
func (w *Watcher) handleWorkflowDir(event fsnotify.Event) {
	switch {
	case event.Has(fsnotify.Create) && isDir(event.Name):
		if err := w.addRecursive(event.Name); err != nil {
			w.log.Warn("watching workflow dir: %v", err)
		}
		for _, key := range w.scan() {
			w.schedule(key)
		}
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		w.scheduleKnown(func(workitem.Key) bool { return true })
		if !w.rootWatched {
			if err := w.fsw.Add(w.root); err == nil {
				w.rootWatched = true
			}
		}
	}
}

func (w *Watcher) watchAndSchedule(dir string, kind workitem.Kind) {
	if err := w.addRecursive(dir); err != nil {
		w.log.Warn("watching %s: %v", dir, err)
	}
	for _, key := range w.scanKind(kind) {
		w.schedule(key)
	}
}

func (w *Watcher) scheduleKnown(match func(workitem.Key) bool) {
	for key := range w.known {
		if match(key) {
			w.schedule(key)
		}
	}
}

// schedule (re)arms the trailing debounce timer for key.
func (w *Watcher) schedule(key workitem.Key) {
	if p, ok := w.pending[key]; ok {
		p.timer.Stop()
	}
	w.gen++
	req := flushRequest{key: key, gen: w.gen}
	w.pending[key] = &pendingFlush{
		gen: req.gen,
		timer: time.AfterFunc(w.debounce, func() {
			select {
			case w.flushC <- req:
			case <-w.done:
			}
		}),
	}
}

// flush inspects the item directory and emits at most one event.
func (w *Watcher) flush(key workitem.Key) {
	present := hasDocuments(w.layout.ItemPath(w.root, key.Kind, key.Slug), key.Kind)
	wasKnown := w.known[key]

	var change workitem.ChangeType
	switch {
	case present && !wasKnown:
		change = workitem.ChangeAdded
		w.known[key] = true
	case present:
		change = workitem.ChangeChanged
	case wasKnown:
		change = workitem.ChangeRemoved
		delete(w.known, key)
	default:
		return
	}

	event := workitem.ChangeEvent{
		Project:     w.project,
		ProjectPath: w.root,
		Kind:        key.Kind,
		Slug:        key.Slug,
		Type:        change,
		At:          time.Now(),
	}
	w.log.Debug("%s", event)
	w.handler(event)
}

// scan lists every item with at least one recognized document.
func (w *Watcher) scan() []workitem.Key {
	var keys []workitem.Key
	for _, kind := range workitem.Kinds {
		keys = append(keys, w.scanKind(kind)...)
	}
	return keys
}

func (w *Watcher) scanKind(kind workitem.Kind) []workitem.Key {
	entries, err := os.ReadDir(w.layout.KindPath(w.root, kind))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			w.log.Warn("scanning %s: %v", kind.Dir(), err)
		}
		return nil
	}
	var keys []workitem.Key
	for _, e := range entries {
		if !e.IsDir() || w.ignore.Match(kind.Dir()+"/"+e.Name(), true) {
			continue
		}
		if hasDocuments(w.layout.ItemPath(w.root, kind, e.Name()), kind) {
			keys = append(keys, workitem.Key{Kind: kind, Slug: e.Name()})
		}
	}
	return keys
}

// addRecursive adds watches for dir and every non-ignored directory below.
func (w *Watcher) addRecursive(dir string) error {
	workflow := w.layout.WorkflowPath(w.root)
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if rel, relErr := filepath.Rel(workflow, p); relErr == nil && rel != "." {
			if w.ignore.Match(filepath.ToSlash(rel), true) {
				return filepath.SkipDir
			}
		}
		if err := w.fsw.Add(p); err != nil {
			w.log.Warn("failed to watch %s: %v", p, err)
			if strings.Contains(err.Error(), "no space left on device") ||
				strings.Contains(err.Error(), "too many open files") {
				w.log.Error("inotify watch limit reached; increase fs.inotify.max_user_watches")
				return filepath.SkipDir
			}
		}
		return nil
	})
}

// PathInfo locates a path relative to the workflow directory.
type PathInfo struct {
	Kind workitem.Kind
	Slug string // empty for the kind directory itself
	File string // remainder below the item directory, slash-separated
}

// Key returns the item key.
func (p PathInfo) Key() workitem.Key {
	return workitem.Key{Kind: p.Kind, Slug: p.Slug}
}

// Rel reassembles the normalized relative path.
func (p PathInfo) Rel() string {
	parts := []string{p.Kind.Dir()}
	if p.Slug != "" {
		parts = append(parts, p.Slug)
	}
	if p.File != "" {
		parts = append(parts, p.File)
	}
	return strings.Join(parts, "/")
}

// ClassifyPath maps a path relative to the workflow directory to its item.
// Both / and \ separators are accepted.
func ClassifyPath(rel string) (PathInfo, bool) {
	rel = strings.ReplaceAll(rel, `\`, "/")
	rel = path.Clean(rel)
	rel = strings.TrimPrefix(rel, "./")
	if rel == "." || rel == "" || rel == ".." || strings.HasPrefix(rel, "../") || strings.HasPrefix(rel, "/") {
		return PathInfo{}, false
	}

	kindDir, rest, _ := strings.Cut(rel, "/")
	kind, ok := workitem.KindForDir(kindDir)
	if !ok {
		return PathInfo{}, false
	}
	slug, file, _ := strings.Cut(rest, "/")
	return PathInfo{Kind: kind, Slug: slug, File: file}, true
}

func hasDocuments(dir string, kind workitem.Kind) bool {
	for _, name := range kind.Documents() {
		if info, err := os.Stat(filepath.Join(dir, name)); err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
