package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/specdash/internal/nats"
	"github.com/mark3labs/specdash/internal/syncserver"
	"github.com/mark3labs/specdash/internal/wire"
	"github.com/mark3labs/specdash/internal/workitem"
)

func fastBackoff() Backoff {
	return Backoff{Initial: 10 * time.Millisecond, Max: 40 * time.Millisecond, Multiplier: 2}
}

func runConn(t *testing.T, c *Conn) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(5 * time.Second):
			t.Error("Run did not return after cancel")
		}
	})
}

func TestConn_FollowsServer(t *testing.T) {
	layout := workitem.Layout{WorkflowDir: ".claude"}
	root := filepath.Join(t.TempDir(), "api")
	dir := layout.ItemPath(root, workitem.KindBug, "crash")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.MkdirAll(layout.KindPath(root, workitem.KindSpec), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, workitem.DocReport), []byte("Crash."), 0644))

	projects, err := syncserver.NewProjects([]string{root})
	require.NoError(t, err)
	bus, err := nats.StartBus()
	require.NoError(t, err)
	s := syncserver.New(projects, bus, syncserver.Options{Layout: layout, Debounce: 20 * time.Millisecond})
	require.NoError(t, s.Start())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = s.Close()
		_ = bus.Close()
	})

	c := New(ts.URL, WithBackoff(fastBackoff()))
	runConn(t, c)

	require.Eventually(t, func() bool {
		items, ok := c.Reconciler().Items("api", workitem.KindBug)
		return ok && len(items) == 1 && items[0].Status == workitem.StatusReported
	}, 5*time.Second, 10*time.Millisecond)
	assert.True(t, c.State().Connected)
	assert.NotEmpty(t, c.Reconciler().ClientID())

	require.NoError(t, os.WriteFile(filepath.Join(dir, workitem.DocFix), []byte("Initialize the map in New."), 0644))
	require.Eventually(t, func() bool {
		it, ok := c.Reconciler().Item("api", workitem.KindBug, "crash")
		return ok && it.Status == workitem.StatusFixing
	}, 5*time.Second, 10*time.Millisecond)
}

// fakeServer upgrades every request and hands the connection to fn.
func fakeServer(t *testing.T, fn func(n int, ws *websocket.Conn)) *httptest.Server {
	t.Helper()
	var conns atomic.Int32
	up := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		fn(int(conns.Add(1)), ws)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestConn_MalformedMessageRequestsResync(t *testing.T) {
	got := make(chan wire.Message, 1)
	ts := fakeServer(t, func(_ int, ws *websocket.Conn) {
		_ = ws.WriteMessage(websocket.TextMessage, []byte("{garbage"))
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		m, err := wire.Decode(data)
		if err == nil {
			got <- m
		}
		// Hold the connection until the client goes away.
		_, _, _ = ws.ReadMessage()
	})

	runConn(t, New(ts.URL, WithBackoff(fastBackoff())))

	select {
	case m := <-got:
		assert.Equal(t, wire.TypeResync, m.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("no resync request")
	}
}

func TestConn_ReconnectsWithBackoff(t *testing.T) {
	connected := make(chan int, 8)
	snapshot := mustEncode(t, wire.Snapshot("api", workitem.KindSpec, nil))
	ts := fakeServer(t, func(n int, ws *websocket.Conn) {
		connected <- n
		if n < 3 {
			return // drop the first sessions immediately
		}
		_ = ws.WriteMessage(websocket.TextMessage, snapshot)
		_, _, _ = ws.ReadMessage()
	})

	c := New(ts.URL, WithBackoff(fastBackoff()), WithProjects("api"))
	runConn(t, c)

	for want := 1; want <= 3; want++ {
		select {
		case n := <-connected:
			assert.Equal(t, want, n)
		case <-time.After(5 * time.Second):
			t.Fatalf("connection %d never arrived", want)
		}
	}
	require.Eventually(t, func() bool {
		_, ok := c.Reconciler().Items("api", workitem.KindSpec)
		return ok && c.State().Connected
	}, 5*time.Second, 10*time.Millisecond)
	assert.Zero(t, c.State().Attempts)
}

func TestConn_SendWhileDisconnected(t *testing.T) {
	c := New("http://127.0.0.1:1")
	assert.ErrorIs(t, c.Send(wire.Resync()), ErrNotConnected)
}

func TestConn_Target(t *testing.T) {
	tests := []struct {
		in       string
		projects []string
		want     string
	}{
		{"http://localhost:3737", nil, "ws://localhost:3737/ws"},
		{"https://dash.local/", nil, "wss://dash.local/ws"},
		{"ws://h:1/custom", nil, "ws://h:1/custom"},
		{"http://h:1", []string{"a", "b"}, "ws://h:1/ws?project=a&project=b"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := New(tt.in, WithProjects(tt.projects...)).target()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := New("ftp://h").target()
	assert.Error(t, err)
}

func mustEncode(t *testing.T, m wire.Message) []byte {
	t.Helper()
	data, err := wire.Encode(m)
	require.NoError(t, err)
	return data
}
