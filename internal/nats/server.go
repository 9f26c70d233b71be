// Package nats runs the in-process message bus that carries change events
// from project watchers to the synchronization server. Core NATS only:
// events are never stored.
package nats

import (
	"errors"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/mark3labs/specdash/internal/logger"
)

var log = logger.Named("nats")

// StartEmbeddedNATS starts an embedded NATS server without network
// listeners and waits for it to accept connections.
func StartEmbeddedNATS() (*server.Server, error) {
	opts := &server.Options{
		DontListen: true,
		NoSigs:     true,
		NoLog:      true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		log.Error("failed to create server: %v", err)
		return nil, err
	}

	go ns.Start()

	if !ns.ReadyForConnections(4 * time.Second) {
		log.Error("server failed to start within 4s")
		ns.Shutdown()
		return nil, errors.New("nats server failed to start within timeout")
	}

	log.Debug("embedded server ready")
	return ns, nil
}

// ConnectInProcess opens a connection that talks to ns without a socket.
func ConnectInProcess(ns *server.Server) (*nats.Conn, error) {
	conn, err := nats.Connect("", nats.InProcessServer(ns), nats.Name("specdash"))
	if err != nil {
		log.Error("in-process connect failed: %v", err)
		return nil, err
	}
	return conn, nil
}

// Shutdown drains nc and stops ns, bounding each step so a stuck
// subscriber cannot hang process exit.
func Shutdown(nc *nats.Conn, ns *server.Server) error {
	if nc != nil {
		drained := make(chan error, 1)
		go func() { drained <- nc.Drain() }()

		select {
		case err := <-drained:
			if err != nil {
				log.Warn("drain failed, forcing close: %v", err)
				nc.Close()
			}
		case <-time.After(2 * time.Second):
			log.Warn("drain timed out after 2s, forcing close")
			nc.Close()
		}
	}

	if ns != nil {
		ns.Shutdown()

		stopped := make(chan struct{})
		go func() {
			ns.WaitForShutdown()
			close(stopped)
		}()

		select {
		case <-stopped:
		case <-time.After(5 * time.Second):
			log.Error("server shutdown timed out after 5s")
			return errors.New("nats server shutdown timed out")
		}
	}

	log.Debug("shutdown complete")
	return nil
}
