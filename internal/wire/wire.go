// Package wire defines the JSON records exchanged between the
// synchronization server and dashboard clients.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/specdash/internal/workitem"
)

// Type discriminates messages.
type Type string

// Server to client.
const (
	TypeHello    Type = "hello"
	TypeSnapshot Type = "snapshot"
	TypeUpdate   Type = "update"
	TypeError    Type = "error"
)

// Client to server.
const (
	TypeSubscribe Type = "subscribe"
	TypeResync    Type = "resync"
)

// ErrMalformed wraps every decoding or validation failure.
var ErrMalformed = errors.New("malformed message")

// Project describes one dashboard project.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// Message is the envelope for every record. Only the fields relevant to
// Type are set.
type Message struct {
	Type Type `json:"type"`

	// hello
	ClientID string    `json:"clientId,omitempty"`
	Projects []Project `json:"projects,omitempty"`

	// snapshot, update
	Project string              `json:"project,omitempty"`
	Kind    workitem.Kind       `json:"kind,omitempty"`
	Items   []workitem.WorkItem `json:"items,omitempty"`

	// update
	Change workitem.ChangeType `json:"change,omitempty"`
	Slug   string              `json:"slug,omitempty"`
	Item   *workitem.WorkItem  `json:"item,omitempty"`

	// subscribe, resync
	Subscribe []string `json:"subscribe,omitempty"`

	// error
	Error string `json:"error,omitempty"`
}

// Hello greets a newly connected client.
func Hello(clientID string, projects []Project) Message {
	return Message{Type: TypeHello, ClientID: clientID, Projects: projects}
}

// Snapshot carries a full ordered collection. items must already be in
// canonical order.
func Snapshot(project string, kind workitem.Kind, items []workitem.WorkItem) Message {
	if items == nil {
		items = []workitem.WorkItem{}
	}
	return Message{Type: TypeSnapshot, Project: project, Kind: kind, Items: items}
}

// Update carries a single item change. item is nil for removals.
func Update(project string, kind workitem.Kind, change workitem.ChangeType, slug string, item *workitem.WorkItem) Message {
	return Message{Type: TypeUpdate, Project: project, Kind: kind, Change: change, Slug: slug, Item: item}
}

// Errorf builds an error message.
func Errorf(format string, args ...any) Message {
	return Message{Type: TypeError, Error: fmt.Sprintf(format, args...)}
}

// SubscribeTo asks for snapshots and updates of the given projects.
func SubscribeTo(projects ...string) Message {
	return Message{Type: TypeSubscribe, Subscribe: projects}
}

// Resync asks for fresh snapshots of the given projects, or of every
// subscribed project when empty.
func Resync(projects ...string) Message {
	return Message{Type: TypeResync, Subscribe: projects}
}

// Encode marshals m.
func Encode(m Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// Decode unmarshals and validates a message.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Validate checks that the fields required by m.Type are present.
func (m Message) Validate() error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", ErrMalformed, m.Type, fmt.Sprintf(format, args...))
	}
	switch m.Type {
	case TypeHello:
		if m.ClientID == "" {
			return bad("missing clientId")
		}
	case TypeSnapshot:
		if m.Project == "" {
			return bad("missing project")
		}
		if !m.Kind.Valid() {
			return bad("invalid kind %q", m.Kind)
		}
		for _, it := range m.Items {
			if it.Slug == "" || it.Kind != m.Kind {
				return bad("invalid item %q", it.Slug)
			}
		}
	case TypeUpdate:
		if m.Project == "" || m.Slug == "" {
			return bad("missing project or slug")
		}
		if !m.Kind.Valid() {
			return bad("invalid kind %q", m.Kind)
		}
		if err := m.Change.Validate(); err != nil {
			return bad("%v", err)
		}
		if m.Change != workitem.ChangeRemoved {
			if m.Item == nil {
				return bad("missing item")
			}
			if m.Item.Slug != m.Slug || m.Item.Kind != m.Kind {
				return bad("item %s does not match %s/%s", m.Item.Key(), m.Kind, m.Slug)
			}
		}
	case TypeError:
		if m.Error == "" {
			return bad("missing error text")
		}
	case TypeSubscribe, TypeResync:
	case "":
		return fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformed, m.Type)
	}
	return nil
}
