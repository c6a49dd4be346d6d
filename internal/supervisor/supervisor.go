// Package supervisor owns the daemon's lifetime (C6): bind the listener,
// spawn the timestamp ticker, run the acceptor loop, and on shutdown join
// everything and empty the store. Detaching as a background process is a
// CLI-layer concern (see cmd/linelogd), grounded on the same split the
// teacher uses between its re-exec/daemonize command and its
// internal/daemon lifecycle — Supervisor.Run is the equivalent of the
// latter.
package supervisor

import (
	"context"
	"fmt"
	"net"

	"github.com/aesdsocket/linelogd/internal/logger"
	"github.com/aesdsocket/linelogd/internal/reclog"
	"github.com/aesdsocket/linelogd/internal/server"
	"github.com/aesdsocket/linelogd/internal/ticker"
)

// Supervisor wires the record store, acceptor, and ticker together for one
// run of the daemon.
type Supervisor struct {
	Port   int
	Log    *reclog.Log
	Ticker *ticker.Ticker

	// Ready, if non-nil, receives the bound listen address once the
	// listener is up. Buffer it (capacity 1) if you intend to receive
	// from it; Run does not block trying to send.
	Ready chan<- net.Addr
}

// Run binds the listener, starts the ticker and acceptor, and blocks until
// ctx is cancelled or one of them fails. On every return path after a
// successful bind the listener is closed, every handler has been joined,
// and the store has been cleared — the spec's termination sequence for C6.
func (s *Supervisor) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.Port))
	if err != nil {
		return fmt.Errorf("bind :%d: %w", s.Port, err)
	}
	defer ln.Close()

	if s.Ready != nil {
		select {
		case s.Ready <- ln.Addr():
		default:
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	acc := server.NewAcceptor(ln, s.Log)

	errCh := make(chan error, 2)

	go func() {
		logger.Info("timestamp ticker started")
		errCh <- s.Ticker.Run(runCtx)
	}()

	go func() {
		logger.Info("acceptor listening", "addr", ln.Addr().String())
		err := acc.Run(runCtx)
		// An acceptor exit for any reason — shutdown or fatal failure —
		// also stops the ticker; there is nothing left for it to serve.
		cancel()
		errCh <- err
	}()

	var firstErr error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.Log.Clear()
	logger.Info("supervisor shutdown complete")
	return firstErr
}
