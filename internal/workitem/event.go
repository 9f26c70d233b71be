package workitem

import (
	"fmt"
	"time"
)

// ChangeType classifies a ChangeEvent.
type ChangeType string

const (
	ChangeAdded   ChangeType = "added"
	ChangeChanged ChangeType = "changed"
	ChangeRemoved ChangeType = "removed"
)

// Validate returns an error for unknown change types.
func (c ChangeType) Validate() error {
	switch c {
	case ChangeAdded, ChangeChanged, ChangeRemoved:
		return nil
	default:
		return fmt.Errorf("invalid change type %q", c)
	}
}

// ChangeEvent reports that one item changed on disk. It is consumed once and
// never stored.
type ChangeEvent struct {
	Project     string     `json:"project"`
	ProjectPath string     `json:"projectPath"`
	Kind        Kind       `json:"kind"`
	Slug        string     `json:"slug"`
	Type        ChangeType `json:"type"`
	At          time.Time  `json:"at"`
}

// Key returns the affected item's key.
func (e ChangeEvent) Key() Key {
	return Key{Kind: e.Kind, Slug: e.Slug}
}

func (e ChangeEvent) String() string {
	return fmt.Sprintf("%s %s/%s/%s", e.Type, e.Project, e.Kind, e.Slug)
}
