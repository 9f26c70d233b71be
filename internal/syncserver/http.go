package syncserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Handler returns the HTTP routes: the WebSocket endpoint at /ws and a
// health check at /healthz. Callers may wrap it in a larger mux.
func (s *Server) Handler() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     checkOrigin,
}

// checkOrigin accepts non-browser clients, same-host pages and loopback
// pages.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// handleWS upgrades the connection. The optional "project" query parameter
// (repeatable or comma-separated) limits the initial subscription.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	var projects []string
	for _, v := range r.URL.Query()["project"] {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				projects = append(projects, id)
			}
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade: %v", err)
		return
	}

	c := newClient(conn, s.opts.ClientBuffer)
	if !s.post(func() { s.register(c, projects) }) {
		_ = conn.Close()
		return
	}
	go s.writePump(c)
	go s.readPump(c)
}

type health struct {
	Status   string `json:"status"`
	Projects int    `json:"projects"`
	Clients  int    `json:"clients"`
	Active   int    `json:"active"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := health{Status: "ok", Projects: len(s.projects)}
	err := s.call(r.Context(), func() {
		h.Clients = len(s.clients)
		for _, st := range s.states {
			if st.active() {
				h.Active++
			}
		}
	})
	status := http.StatusOK
	if err != nil {
		h.Status = err.Error()
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(h)
}

// Serve runs handler on ln until ctx is canceled, then shuts the HTTP
// server down gracefully.
func Serve(ctx context.Context, ln net.Listener, handler http.Handler) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
