package parser

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	ierr "github.com/mark3labs/specdash/internal/errors"
	"github.com/mark3labs/specdash/internal/workitem"
)

// ErrNotWorkItem is returned when a directory holds none of its kind's
// recognized documents.
var ErrNotWorkItem = errors.New("directory has no recognized documents")

// ReadItem reads the fixed document set from dir and parses it. Missing
// documents are normal input. A document that exists but cannot be read
// marks the item degraded; an unreadable directory is an error.
func ReadItem(dir string, kind workitem.Kind, slug string) (workitem.WorkItem, error) {
	return ierr.RecoverValue(func() (workitem.WorkItem, error) {
		return readItem(dir, kind, slug)
	})
}

func readItem(dir string, kind workitem.Kind, slug string) (workitem.WorkItem, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return workitem.WorkItem{}, fmt.Errorf("stat item dir: %w", err)
	}
	if !info.IsDir() {
		return workitem.WorkItem{}, fmt.Errorf("%s: %w", dir, ErrNotWorkItem)
	}

	var (
		docs    []Document
		readErr error
	)
	for _, name := range kind.Documents() {
		doc, err := readDocument(filepath.Join(dir, name))
		if err != nil {
			readErr = errors.Join(readErr, err)
			continue
		}
		doc.Name = name
		if doc.Exists {
			docs = append(docs, doc)
		}
	}
	if len(docs) == 0 && readErr == nil {
		return workitem.WorkItem{}, fmt.Errorf("%s: %w", dir, ErrNotWorkItem)
	}

	item := Parse(kind, slug, docs)
	if item.LastModified.IsZero() {
		item.LastModified = info.ModTime()
	}
	if readErr != nil {
		item.Degraded = true
		item.Error = readErr.Error()
	}
	return item, nil
}

func readDocument(path string) (Document, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Document{}, nil
	}
	if err != nil {
		return Document{}, fmt.Errorf("stat %s: %w", filepath.Base(path), err)
	}
	if info.IsDir() {
		return Document{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		// Removed between stat and read.
		return Document{}, nil
	}
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return Document{Text: string(data), Exists: true, ModTime: info.ModTime()}, nil
}

// Degraded builds the placeholder entry for an item whose parse failed.
func Degraded(kind workitem.Kind, slug string, err error) workitem.WorkItem {
	item := workitem.WorkItem{
		Kind:        kind,
		Slug:        slug,
		DisplayName: workitem.FormatSlug(slug),
		Status:      workitem.InitialStatus(kind),
		Degraded:    true,
	}
	for _, name := range kind.Documents() {
		item.Documents = append(item.Documents, workitem.DocumentInfo{Name: name})
	}
	if err != nil {
		item.Error = err.Error()
	}
	return item
}
