// Package workitem defines the tracked work items (specs and bugs), their
// workflow statuses and the canonical ordering shared by the server and every
// client. The priority table and Compare are a public contract: any client
// that renders a collection must order it exactly as Compare does.
package workitem

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Kind is the type of work item.
type Kind string

const (
	KindSpec Kind = "spec"
	KindBug  Kind = "bug"
)

// Kinds lists every kind in display order.
var Kinds = []Kind{KindSpec, KindBug}

// ParseKind accepts the singular or plural form ("spec", "specs").
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spec", "specs":
		return KindSpec, nil
	case "bug", "bugs":
		return KindBug, nil
	default:
		return "", fmt.Errorf("invalid kind %q: must be spec or bug", s)
	}
}

// Valid reports whether k is exactly one of the known kinds. Wire records
// and keys use the singular form only.
func (k Kind) Valid() bool {
	return k == KindSpec || k == KindBug
}

// Dir returns the directory name holding items of this kind.
func (k Kind) Dir() string {
	switch k {
	case KindSpec:
		return "specs"
	case KindBug:
		return "bugs"
	default:
		return ""
	}
}

// KindForDir maps a kind directory name back to its Kind.
func KindForDir(dir string) (Kind, bool) {
	switch dir {
	case "specs":
		return KindSpec, true
	case "bugs":
		return KindBug, true
	default:
		return "", false
	}
}

// Documents returns the fixed document set for the kind in phase order.
func (k Kind) Documents() []string {
	switch k {
	case KindSpec:
		return []string{DocRequirements, DocDesign, DocTasks}
	case KindBug:
		return []string{DocReport, DocAnalysis, DocFix, DocVerification}
	default:
		return nil
	}
}

// TitleDocument is the document whose first heading may override the
// slug-derived display name.
func (k Kind) TitleDocument() string {
	if k == KindBug {
		return DocReport
	}
	return DocRequirements
}

// IsDocument reports whether name is one of the kind's recognized documents.
func (k Kind) IsDocument(name string) bool {
	for _, doc := range k.Documents() {
		if doc == name {
			return true
		}
	}
	return false
}

// Document file names.
const (
	DocRequirements = "requirements.md"
	DocDesign       = "design.md"
	DocTasks        = "tasks.md"

	DocReport       = "report.md"
	DocAnalysis     = "analysis.md"
	DocFix          = "fix.md"
	DocVerification = "verification.md"
)

// Status is a workflow status. Spec and bug statuses share the type but
// never mix within one collection.
type Status string

const (
	StatusNotStarted   Status = "not-started"
	StatusRequirements Status = "requirements"
	StatusDesign       Status = "design"
	StatusTasks        Status = "tasks"
	StatusInProgress   Status = "in-progress"
	StatusCompleted    Status = "completed"

	StatusReported  Status = "reported"
	StatusAnalyzing Status = "analyzing"
	StatusFixing    Status = "fixing"
	StatusVerifying Status = "verifying"
	StatusResolved  Status = "resolved"
)

// specPriority and bugPriority are the sort contract exposed to clients.
var specPriority = map[Status]int{
	StatusNotStarted:   1,
	StatusRequirements: 2,
	StatusDesign:       3,
	StatusTasks:        4,
	StatusInProgress:   5,
	StatusCompleted:    6,
}

var bugPriority = map[Status]int{
	StatusReported:  1,
	StatusAnalyzing: 2,
	StatusFixing:    3,
	StatusVerifying: 4,
	StatusResolved:  5,
}

// unknownPriority sorts statuses outside the table after every known one.
const unknownPriority = 100

// Priority returns the status priority for the kind.
func Priority(kind Kind, status Status) int {
	table := specPriority
	if kind == KindBug {
		table = bugPriority
	}
	if p, ok := table[status]; ok {
		return p
	}
	return unknownPriority
}

// Statuses returns the kind's statuses in state-machine order.
func Statuses(kind Kind) []Status {
	if kind == KindBug {
		return []Status{StatusReported, StatusAnalyzing, StatusFixing, StatusVerifying, StatusResolved}
	}
	return []Status{StatusNotStarted, StatusRequirements, StatusDesign, StatusTasks, StatusInProgress, StatusCompleted}
}

// InitialStatus is the status of an item with no real content yet.
func InitialStatus(kind Kind) Status {
	if kind == KindBug {
		return StatusReported
	}
	return StatusNotStarted
}

// IsFinal reports whether the status ends the kind's workflow.
func IsFinal(status Status) bool {
	return status == StatusCompleted || status == StatusResolved
}

// TaskEntry is one checklist line from a tasks document.
type TaskEntry struct {
	ID           string   `json:"id"`
	Description  string   `json:"description"`
	Completed    bool     `json:"completed"`
	Depth        int      `json:"depth"`
	Requirements []string `json:"requirements,omitempty"`
	Leverage     string   `json:"leverage,omitempty"`
}

// TaskSummary counts task entries.
type TaskSummary struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
}

// Remaining returns the number of incomplete tasks.
func (s TaskSummary) Remaining() int {
	return s.Total - s.Completed
}

// DocumentInfo is the per-document verdict carried on a WorkItem.
type DocumentInfo struct {
	Name       string    `json:"name"`
	Exists     bool      `json:"exists"`
	HasContent bool      `json:"hasContent"`
	Approved   bool      `json:"approved"`
	ModTime    time.Time `json:"modTime,omitempty"`
}

// WorkItem is a fully parsed spec or bug. It is always rebuilt from the
// filesystem; nothing on it is persisted.
type WorkItem struct {
	Kind         Kind           `json:"kind"`
	Slug         string         `json:"slug"`
	DisplayName  string         `json:"displayName"`
	Status       Status         `json:"status"`
	LastModified time.Time      `json:"lastModified"`
	Documents    []DocumentInfo `json:"documents"`
	Tasks        []TaskEntry    `json:"tasks,omitempty"`
	TaskSummary  TaskSummary    `json:"taskSummary"`
	Verified     bool           `json:"verified,omitempty"`
	Degraded     bool           `json:"degraded,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// Key identifies an item within a project.
func (w WorkItem) Key() Key {
	return Key{Kind: w.Kind, Slug: w.Slug}
}

// Document returns the named document info.
func (w WorkItem) Document(name string) (DocumentInfo, bool) {
	for _, d := range w.Documents {
		if d.Name == name {
			return d, true
		}
	}
	return DocumentInfo{}, false
}

// Key is the identity of a WorkItem inside one project.
type Key struct {
	Kind Kind
	Slug string
}

func (k Key) String() string {
	return string(k.Kind) + "/" + k.Slug
}

// FormatSlug turns a directory slug into a human-friendly name:
// hyphens and underscores become spaces and each word is title-cased.
func FormatSlug(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool {
		return r == '-' || r == '_' || unicode.IsSpace(r)
	})
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
