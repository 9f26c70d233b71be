package syncserver

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/gosimple/slug"

	"github.com/mark3labs/specdash/internal/hooks"
	"github.com/mark3labs/specdash/internal/watcher"
	"github.com/mark3labs/specdash/internal/wire"
	"github.com/mark3labs/specdash/internal/workitem"
)

// Project is a configured project root with its stable identifier.
type Project struct {
	ID   string
	Name string
	Path string
}

// Wire converts p to its protocol record.
func (p Project) Wire() wire.Project {
	return wire.Project{ID: p.ID, Name: p.Name, Path: p.Path}
}

// NewProjects resolves project roots to absolute paths and assigns each a
// slug of its directory name. Duplicate paths are dropped; colliding names
// get -2, -3, ... suffixes in input order.
func NewProjects(paths []string) ([]Project, error) {
	var (
		projects []Project
		seenPath = make(map[string]bool)
		seenID   = make(map[string]bool)
	)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolving project %s: %w", p, err)
		}
		if seenPath[abs] {
			continue
		}
		seenPath[abs] = true

		name := filepath.Base(abs)
		base := slug.Make(name)
		if base == "" {
			base = "project"
		}
		id := base
		for n := 2; seenID[id]; n++ {
			id = base + "-" + strconv.Itoa(n)
		}
		seenID[id] = true
		projects = append(projects, Project{ID: id, Name: name, Path: abs})
	}
	return projects, nil
}

// projectState is the loop-owned view of one project. A project is active
// while at least one client subscribes to it.
type projectState struct {
	Project

	watcher *watcher.Watcher
	hooks   *hooks.Config
	items   map[workitem.Kind]map[string]workitem.WorkItem
	// versions stamps the latest change seen per item; parse results that
	// carry an older stamp are discarded.
	versions    map[workitem.Key]uint64
	subscribers map[*client]struct{}

	// activating is set while a seed runs off the loop; pending collects
	// the items that changed meanwhile. gen invalidates superseded seeds.
	activating bool
	pending    map[workitem.Key]bool
	gen        uint64
}

func newProjectState(p Project) *projectState {
	return &projectState{
		Project:     p,
		subscribers: make(map[*client]struct{}),
	}
}

func (p *projectState) active() bool {
	return p.items != nil
}

// sorted returns the kind's items in canonical order.
func (p *projectState) sorted(kind workitem.Kind) []workitem.WorkItem {
	items := make([]workitem.WorkItem, 0, len(p.items[kind]))
	for _, it := range p.items[kind] {
		items = append(items, it)
	}
	workitem.Sort(items)
	return items
}
