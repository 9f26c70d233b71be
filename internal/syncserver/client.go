package syncserver

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mark3labs/specdash/internal/wire"
	"github.com/mark3labs/specdash/internal/workitem"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// client is one connected dashboard. send is bounded: when it is full the
// loop stops queueing, sets overflow and signals resync; the writer then
// discards the stale queue and asks the loop for fresh snapshots.
type client struct {
	id   string
	conn *websocket.Conn
	send chan wire.Message

	resync chan struct{} // capacity 1
	closed chan struct{}

	// Loop-owned.
	subscribed map[string]bool
	overflow   bool
	dropped    bool
}

func newClient(conn *websocket.Conn, buffer int) *client {
	return &client{
		id:         uuid.NewString(),
		conn:       conn,
		send:       make(chan wire.Message, buffer),
		resync:     make(chan struct{}, 1),
		closed:     make(chan struct{}),
		subscribed: make(map[string]bool),
	}
}

// register adds c, greets it and subscribes it to projects (every project
// when empty). Runs on the loop.
func (s *Server) register(c *client, projects []string) {
	s.clients[c] = struct{}{}
	infos := make([]wire.Project, 0, len(s.projects))
	for _, p := range s.projects {
		infos = append(infos, p.Wire())
	}
	s.enqueue(c, wire.Hello(c.id, infos))
	if len(projects) == 0 {
		for _, p := range s.projects {
			projects = append(projects, p.ID)
		}
	}
	s.subscribe(c, projects)
	s.log.Debug("client %s connected", c.id)
}

// subscribe replaces c's subscription set and sends a snapshot per
// newly subscribed project and kind, once the project's view is seeded.
func (s *Server) subscribe(c *client, projects []string) {
	want := make(map[string]bool, len(projects))
	for _, id := range projects {
		if _, ok := s.states[id]; !ok {
			s.enqueue(c, wire.Errorf("unknown project %q", id))
			continue
		}
		want[id] = true
	}

	for id := range c.subscribed {
		if !want[id] {
			s.unsubscribe(c, id)
		}
	}
	for _, p := range s.projects {
		if !want[p.ID] || c.subscribed[p.ID] {
			continue
		}
		st := s.states[p.ID]
		st.subscribers[c] = struct{}{}
		c.subscribed[p.ID] = true
		switch {
		case st.active():
			s.sendSnapshots(c, st)
		case !st.activating:
			s.activate(st)
		}
		// Otherwise the seed in flight sends snapshots when it lands.
	}
}

func (s *Server) unsubscribe(c *client, id string) {
	st := s.states[id]
	delete(st.subscribers, c)
	delete(c.subscribed, id)
	if len(st.subscribers) == 0 && (st.active() || st.activating) {
		s.deactivate(st)
	}
}

// dropClient unsubscribes c everywhere and tells its writer to close the
// connection. Runs on the loop.
func (s *Server) dropClient(c *client) {
	if c.dropped {
		return
	}
	c.dropped = true
	for id := range c.subscribed {
		s.unsubscribe(c, id)
	}
	delete(s.clients, c)
	close(c.closed)
	s.log.Debug("client %s disconnected", c.id)
}

// resyncClient clears the overflow flag and resends snapshots for the given
// projects, or for every subscribed project when none are named.
func (s *Server) resyncClient(c *client, projects []string) {
	if c.dropped {
		return
	}
	c.overflow = false
	if len(projects) == 0 {
		for _, p := range s.projects {
			if c.subscribed[p.ID] {
				projects = append(projects, p.ID)
			}
		}
	}
	for _, id := range projects {
		// Projects still seeding send their snapshots on install.
		if st := s.states[id]; c.subscribed[id] && st.active() {
			s.sendSnapshots(c, st)
		}
	}
}

func (s *Server) sendSnapshots(c *client, st *projectState) {
	for _, kind := range workitem.Kinds {
		s.enqueue(c, wire.Snapshot(st.ID, kind, st.sorted(kind)))
	}
}

// broadcast fans m out to every subscriber of st.
func (s *Server) broadcast(st *projectState, m wire.Message) {
	for c := range st.subscribers {
		s.enqueue(c, m)
	}
}

// enqueue never blocks the loop. A full queue marks the client for resync
// and drops every message until the writer has requested fresh snapshots.
func (s *Server) enqueue(c *client, m wire.Message) {
	if c.dropped || c.overflow {
		return
	}
	select {
	case c.send <- m:
	default:
		c.overflow = true
		s.log.Warn("client %s queue full; scheduling resync", c.id)
		select {
		case c.resync <- struct{}{}:
		default:
		}
	}
}

// writePump owns all writes to the connection.
func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.closed:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return

		case <-c.resync:
			drain(c.send)
			if !s.post(func() { s.resyncClient(c, nil) }) {
				return
			}

		case m := <-c.send:
			data, err := wire.Encode(m)
			if err != nil {
				s.log.Error("encoding %s for %s: %v", m.Type, c.id, err)
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.post(func() { s.dropClient(c) })
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.post(func() { s.dropClient(c) })
				return
			}
		}
	}
}

// readPump decodes client requests until the connection fails.
func (s *Server) readPump(c *client) {
	defer s.post(func() { s.dropClient(c) })

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("client %s read: %v", c.id, err)
			}
			return
		}
		m, err := wire.Decode(data)
		if err != nil {
			s.post(func() { s.enqueue(c, wire.Errorf("%v", err)) })
			continue
		}
		switch m.Type {
		case wire.TypeSubscribe:
			s.post(func() { s.subscribe(c, m.Subscribe) })
		case wire.TypeResync:
			s.post(func() { s.resyncClient(c, m.Subscribe) })
		default:
			msg := errors.New("unexpected message type " + string(m.Type))
			s.post(func() { s.enqueue(c, wire.Errorf("%v", msg)) })
		}
	}
}

func drain(ch chan wire.Message) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
