package nats

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/mark3labs/specdash/internal/workitem"
)

const subjectRoot = "specdash"

// SubjectForProject returns the wildcard subject for every event of a
// project, e.g. "specdash.api.>". An empty project matches all projects.
func SubjectForProject(project string) string {
	if project == "" {
		return subjectRoot + ".>"
	}
	return fmt.Sprintf("%s.%s.>", subjectRoot, project)
}

// SubjectForEvent returns the subject an event is published on, e.g.
// "specdash.api.bug".
func SubjectForEvent(project string, kind workitem.Kind) string {
	return fmt.Sprintf("%s.%s.%s", subjectRoot, project, kind)
}

// Bus publishes and delivers ChangeEvents over an embedded server.
type Bus struct {
	ns *server.Server
	nc *nats.Conn
}

// StartBus starts an embedded server and connects to it.
func StartBus() (*Bus, error) {
	ns, err := StartEmbeddedNATS()
	if err != nil {
		return nil, err
	}
	nc, err := ConnectInProcess(ns)
	if err != nil {
		_ = Shutdown(nil, ns)
		return nil, err
	}
	return &Bus{ns: ns, nc: nc}, nil
}

// Publish sends e on its project/kind subject.
func (b *Bus) Publish(e workitem.ChangeEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding change event: %w", err)
	}
	if err := b.nc.Publish(SubjectForEvent(e.Project, e.Kind), data); err != nil {
		return fmt.Errorf("publishing change event: %w", err)
	}
	return nil
}

// Subscribe delivers the events of project (all projects when empty) to h.
// Malformed payloads are logged and dropped.
func (b *Bus) Subscribe(project string, h func(workitem.ChangeEvent)) (*nats.Subscription, error) {
	sub, err := b.nc.Subscribe(SubjectForProject(project), func(msg *nats.Msg) {
		var e workitem.ChangeEvent
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			log.Warn("dropping malformed event on %s: %v", msg.Subject, err)
			return
		}
		if err := e.Type.Validate(); err != nil {
			log.Warn("dropping event on %s: %v", msg.Subject, err)
			return
		}
		h(e)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", SubjectForProject(project), err)
	}
	return sub, nil
}

// Flush blocks until the server has processed everything published so far.
func (b *Bus) Flush() error {
	return b.nc.Flush()
}

// Conn exposes the underlying connection.
func (b *Bus) Conn() *nats.Conn {
	return b.nc
}

// Close drains the connection and stops the server.
func (b *Bus) Close() error {
	return Shutdown(b.nc, b.ns)
}
