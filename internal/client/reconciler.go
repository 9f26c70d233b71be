// Package client is the dashboard side of the sync protocol: a Reconciler
// that mirrors the server's ordered collections and a Conn that keeps a
// WebSocket session alive.
package client

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mark3labs/specdash/internal/wire"
	"github.com/mark3labs/specdash/internal/workitem"
)

// ErrResyncRequired reports that local state can no longer be trusted and
// fresh snapshots must be requested.
var ErrResyncRequired = errors.New("resync required")

type listKey struct {
	project string
	kind    workitem.Kind
}

// Reconciler holds one ordered list per (project, kind). Every mutation
// re-sorts with workitem.Sort, the comparator the server uses.
type Reconciler struct {
	mu       sync.RWMutex
	clientID string
	projects []wire.Project
	lists    map[listKey][]workitem.WorkItem
}

// NewReconciler returns an empty reconciler.
func NewReconciler() *Reconciler {
	return &Reconciler{lists: make(map[listKey][]workitem.WorkItem)}
}

// Handle decodes and applies one raw server message. Malformed input leaves
// the state untouched and returns an error wrapping ErrResyncRequired.
func (r *Reconciler) Handle(data []byte) (wire.Message, error) {
	m, err := wire.Decode(data)
	if err != nil {
		return wire.Message{}, fmt.Errorf("%w: %v", ErrResyncRequired, err)
	}
	return m, r.Apply(m)
}

// Apply applies a decoded server message.
func (r *Reconciler) Apply(m wire.Message) error {
	switch m.Type {
	case wire.TypeHello:
		r.mu.Lock()
		r.clientID = m.ClientID
		r.projects = append([]wire.Project(nil), m.Projects...)
		r.mu.Unlock()
	case wire.TypeSnapshot:
		r.ApplySnapshot(m.Project, m.Kind, m.Items)
	case wire.TypeUpdate:
		return r.ApplyUpdate(m.Project, m.Kind, m.Change, m.Slug, m.Item)
	case wire.TypeError:
	default:
		return fmt.Errorf("%w: unexpected %s from server", ErrResyncRequired, m.Type)
	}
	return nil
}

// ApplySnapshot replaces a whole list. The server sends it ordered; sorting
// again keeps the invariant even if it did not.
func (r *Reconciler) ApplySnapshot(project string, kind workitem.Kind, items []workitem.WorkItem) {
	list := workitem.Sorted(items)
	r.mu.Lock()
	r.lists[listKey{project, kind}] = list
	r.mu.Unlock()
}

// ApplyUpdate upserts or removes one item by slug, then re-sorts the list so
// the item lands where its new status and modification time put it.
func (r *Reconciler) ApplyUpdate(project string, kind workitem.Kind, change workitem.ChangeType, slug string, item *workitem.WorkItem) error {
	if err := change.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrResyncRequired, err)
	}
	if change != workitem.ChangeRemoved && item == nil {
		return fmt.Errorf("%w: %s update for %s without item", ErrResyncRequired, change, slug)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := listKey{project, kind}
	list, ok := r.lists[key]
	if !ok {
		return fmt.Errorf("%w: update for %s/%s before its snapshot", ErrResyncRequired, project, kind)
	}

	next := make([]workitem.WorkItem, 0, len(list)+1)
	for _, it := range list {
		if it.Slug != slug {
			next = append(next, it)
		}
	}
	if change != workitem.ChangeRemoved {
		next = append(next, *item)
	}
	workitem.Sort(next)
	r.lists[key] = next
	return nil
}

// Items returns a copy of the ordered list and whether a snapshot for it
// has arrived.
func (r *Reconciler) Items(project string, kind workitem.Kind) ([]workitem.WorkItem, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list, ok := r.lists[listKey{project, kind}]
	return append([]workitem.WorkItem(nil), list...), ok
}

// Item looks up one item by slug.
func (r *Reconciler) Item(project string, kind workitem.Kind, slug string) (workitem.WorkItem, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, it := range r.lists[listKey{project, kind}] {
		if it.Slug == slug {
			return it, true
		}
	}
	return workitem.WorkItem{}, false
}

// Projects returns the project list from the last hello.
func (r *Reconciler) Projects() []wire.Project {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]wire.Project(nil), r.projects...)
}

// ClientID is the ID the server assigned in its hello.
func (r *Reconciler) ClientID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clientID
}

// Reset forgets every list, used when a connection is lost.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	r.lists = make(map[listKey][]workitem.WorkItem)
	r.mu.Unlock()
}
