package syncserver

import (
	"context"

	"github.com/mark3labs/specdash/internal/hooks"
	"github.com/mark3labs/specdash/internal/logger"
	"github.com/mark3labs/specdash/internal/watcher"
	"github.com/mark3labs/specdash/internal/wire"
	"github.com/mark3labs/specdash/internal/workitem"
)

// seedResult is what an activation gathers off the loop.
type seedResult struct {
	watcher *watcher.Watcher
	all     map[workitem.Kind][]workitem.WorkItem
	hooks   *hooks.Config
	err     error
}

func (r seedResult) stop(log *logger.Logger) {
	if r.watcher == nil {
		return
	}
	if err := r.watcher.Stop(); err != nil {
		log.Warn("stopping discarded watcher: %v", err)
	}
}

// activate seeds st off the loop. The watcher starts before the collection
// is assembled so no change between the scan and the watch is lost; changes
// seen while seeding are re-parsed once the view is installed. Runs on the
// loop.
func (s *Server) activate(st *projectState) {
	st.gen++
	gen := st.gen
	st.activating = true
	st.pending = make(map[workitem.Key]bool)
	id, root := st.ID, st.Path

	go func() {
		res := s.seed(id, root)
		installed := make(chan struct{})
		if !s.post(func() {
			defer close(installed)
			s.install(st, gen, res)
		}) {
			res.stop(s.log)
			return
		}
		// A posted closure may never run if the loop exits first.
		select {
		case <-installed:
		case <-s.stopped:
			select {
			case <-installed:
			default:
				res.stop(s.log)
			}
		}
	}()
}

func (s *Server) seed(id, root string) seedResult {
	w, err := watcher.New(id, root, s.opts.Layout,
		watcher.WithDebounce(s.opts.Debounce),
		watcher.WithIgnore(s.opts.Ignore...),
		watcher.WithLogger(s.log.Named("watcher")),
		watcher.WithHandler(func(e workitem.ChangeEvent) {
			if err := s.bus.Publish(e); err != nil {
				s.log.Warn("publishing %s: %v", e, err)
			}
		}),
	)
	if err != nil {
		return seedResult{err: err}
	}
	if err := w.Start(); err != nil {
		return seedResult{err: err}
	}

	all, err := s.assembler.AssembleAll(s.ctx, root)
	if err != nil {
		_ = w.Stop()
		return seedResult{err: err}
	}

	cfg, err := hooks.LoadConfig(root)
	if err != nil {
		s.log.Warn("%s: %v", id, err)
	}
	return seedResult{watcher: w, all: all, hooks: cfg}
}

// install applies a finished seed unless the activation was superseded,
// then sends snapshots to every waiting subscriber. Runs on the loop.
func (s *Server) install(st *projectState, gen uint64, res seedResult) {
	if !st.activating || st.gen != gen {
		res.stop(s.log)
		return
	}
	st.activating = false
	pending := st.pending
	st.pending = nil

	if res.err != nil {
		s.log.Error("activating %s: %v", st.ID, res.err)
		for c := range st.subscribers {
			s.enqueue(c, wire.Errorf("project %s unavailable: %v", st.ID, res.err))
			delete(c.subscribed, st.ID)
		}
		clear(st.subscribers)
		return
	}

	st.watcher = res.watcher
	st.hooks = res.hooks
	st.versions = make(map[workitem.Key]uint64)
	st.items = make(map[workitem.Kind]map[string]workitem.WorkItem, len(workitem.Kinds))
	for _, kind := range workitem.Kinds {
		byslug := make(map[string]workitem.WorkItem, len(res.all[kind]))
		for _, it := range res.all[kind] {
			byslug[it.Slug] = it
		}
		st.items[kind] = byslug
	}
	s.log.Info("activated %s (%d specs, %d bugs)", st.ID, len(res.all[workitem.KindSpec]), len(res.all[workitem.KindBug]))

	for c := range st.subscribers {
		s.sendSnapshots(c, st)
	}
	for key := range pending {
		s.reparse(st, key)
	}
}

// deactivate stops the watcher and drops the view. A seed still in flight
// is discarded when it lands.
func (s *Server) deactivate(st *projectState) {
	st.gen++
	st.activating = false
	st.pending = nil
	if st.watcher != nil {
		if err := st.watcher.Stop(); err != nil {
			s.log.Warn("stopping watcher for %s: %v", st.ID, err)
		}
	}
	st.watcher = nil
	st.hooks = nil
	st.items = nil
	st.versions = nil
	s.log.Info("deactivated %s", st.ID)
}

// handleChange runs on the loop for every bus event. Only the touched item
// is re-parsed.
func (s *Server) handleChange(e workitem.ChangeEvent) {
	st, ok := s.states[e.Project]
	if !ok {
		return
	}
	if st.activating {
		st.pending[e.Key()] = true
		return
	}
	if st.active() {
		s.reparse(st, e.Key())
	}
}

// reparse stamps a new version for key and parses the item off the loop.
func (s *Server) reparse(st *projectState, key workitem.Key) {
	s.seq++
	version := s.seq
	st.versions[key] = version

	root := st.Path
	go func() {
		if err := s.parseSem.Acquire(s.ctx, 1); err != nil {
			return
		}
		item, found := s.assembler.Parse(root, key.Kind, key.Slug)
		s.parseSem.Release(1)
		s.post(func() { s.applyParse(st, key, version, item, found) })
	}()
}

// applyParse installs a parse result if it is still the latest for the
// item and broadcasts the resulting update.
func (s *Server) applyParse(st *projectState, key workitem.Key, version uint64, item workitem.WorkItem, found bool) {
	if !st.active() || st.versions[key] != version {
		return
	}
	delete(st.versions, key)

	items := st.items[key.Kind]
	prev, existed := items[key.Slug]

	switch {
	case !found && !existed:
		return
	case !found:
		delete(items, key.Slug)
		s.broadcast(st, wire.Update(st.ID, key.Kind, workitem.ChangeRemoved, key.Slug, nil))
		return
	}

	items[key.Slug] = item
	change := workitem.ChangeChanged
	if !existed {
		change = workitem.ChangeAdded
	}
	s.broadcast(st, wire.Update(st.ID, key.Kind, change, key.Slug, &item))

	if existed && prev.Status != item.Status {
		s.log.Info("%s %s: %s -> %s", st.ID, key, prev.Status, item.Status)
		s.hooks.OnStatusChange(st.hooks, st.Path, hooks.Variables{
			Project:        st.ID,
			Kind:           string(key.Kind),
			Slug:           key.Slug,
			Status:         string(item.Status),
			PreviousStatus: string(prev.Status),
		})
	}
}

// Snapshot returns a project's ordered collection of kind. Active projects
// answer from the live view; others are assembled from disk.
func (s *Server) Snapshot(ctx context.Context, projectID string, kind workitem.Kind) ([]workitem.WorkItem, error) {
	st, ok := s.states[projectID]
	if !ok {
		return nil, ErrUnknownProject
	}

	var (
		items  []workitem.WorkItem
		active bool
	)
	if err := s.call(ctx, func() {
		if active = st.active(); active {
			items = st.sorted(kind)
		}
	}); err != nil {
		return nil, err
	}
	if active {
		return items, nil
	}
	return s.assembler.Assemble(ctx, st.Path, kind)
}

// Item returns one item of a project.
func (s *Server) Item(ctx context.Context, projectID string, kind workitem.Kind, slug string) (workitem.WorkItem, bool, error) {
	items, err := s.Snapshot(ctx, projectID, kind)
	if err != nil {
		return workitem.WorkItem{}, false, err
	}
	for _, it := range items {
		if it.Slug == slug {
			return it, true, nil
		}
	}
	return workitem.WorkItem{}, false, nil
}
