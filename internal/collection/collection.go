// Package collection enumerates the work items of one kind under a project
// and returns them in canonical order.
package collection

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mark3labs/specdash/internal/config"
	ierr "github.com/mark3labs/specdash/internal/errors"
	"github.com/mark3labs/specdash/internal/logger"
	"github.com/mark3labs/specdash/internal/parser"
	"github.com/mark3labs/specdash/internal/workitem"
)

// Assembler builds ordered collections from the filesystem.
type Assembler struct {
	layout  workitem.Layout
	workers int
	log     *logger.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithWorkers bounds the number of items parsed concurrently.
func WithWorkers(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithLogger sets the logger used for per-item failures.
func WithLogger(l *logger.Logger) Option {
	return func(a *Assembler) { a.log = l }
}

// New creates an Assembler for the given workflow directory layout.
func New(layout workitem.Layout, opts ...Option) *Assembler {
	a := &Assembler{
		layout:  layout,
		workers: config.DefaultParseWorkers,
		log:     logger.Named("collection"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble returns every item of kind under root in canonical order. A
// missing kind directory yields an empty list. A single item that fails to
// parse is included as a degraded entry; it never aborts the collection.
func (a *Assembler) Assemble(ctx context.Context, root string, kind workitem.Kind) ([]workitem.WorkItem, error) {
	dir := a.layout.KindPath(root, kind)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []workitem.WorkItem{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s directory: %w", kind.Dir(), err)
	}

	var (
		mu    sync.Mutex
		items = make([]workitem.WorkItem, 0, len(entries))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		slug := entry.Name()
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			item, ok := a.parse(root, kind, slug)
			if !ok {
				return nil
			}
			mu.Lock()
			items = append(items, item)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	workitem.Sort(items)
	return items, nil
}

// Parse reads a single item. ok is false when the directory is gone or is
// not a work item.
func (a *Assembler) Parse(root string, kind workitem.Kind, slug string) (workitem.WorkItem, bool) {
	return a.parse(root, kind, slug)
}

func (a *Assembler) parse(root string, kind workitem.Kind, slug string) (workitem.WorkItem, bool) {
	item, err := parser.ReadItem(a.layout.ItemPath(root, kind, slug), kind, slug)
	switch {
	case err == nil:
		if item.Degraded {
			a.log.Warn("%s/%s parsed with errors: %s", kind, slug, item.Error)
		}
		return item, true
	case errors.Is(err, parser.ErrNotWorkItem), errors.Is(err, fs.ErrNotExist):
		return workitem.WorkItem{}, false
	default:
		var panicErr *ierr.PanicError
		if errors.As(err, &panicErr) {
			a.log.Error("%s/%s: parser %v\n%s", kind, slug, panicErr, panicErr.StackTrace)
		} else {
			a.log.Warn("%s/%s: %v", kind, slug, err)
		}
		return parser.Degraded(kind, slug, err), true
	}
}

// AssembleAll assembles every kind for a project.
func (a *Assembler) AssembleAll(ctx context.Context, root string) (map[workitem.Kind][]workitem.WorkItem, error) {
	out := make(map[workitem.Kind][]workitem.WorkItem, len(workitem.Kinds))
	for _, kind := range workitem.Kinds {
		items, err := a.Assemble(ctx, root, kind)
		if err != nil {
			return nil, err
		}
		out[kind] = items
	}
	return out, nil
}
