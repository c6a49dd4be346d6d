package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/aesdsocket/linelogd/internal/logger"
	"github.com/aesdsocket/linelogd/internal/reclog"
)

// Status is a handler task's lifecycle state, as observed by the reaper.
type Status int32

const (
	StatusRunning Status = iota
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// task is one entry in the acceptor's registry — the Go equivalent of the
// spec's {task_handle, status_cell, client_fd} tuple. status starts as
// Running when the task is spawned and is set to its final value exactly
// once, by the goroutine running HandleConn, when it returns. id has no
// protocol meaning; it only correlates this connection's log lines.
type task struct {
	id     uuid.UUID
	status atomic.Int32
	conn   net.Conn
}

func (t *task) Status() Status { return Status(t.status.Load()) }

// reapInterval is the spec's ~1s accept-deadline/reaper cadence.
const reapInterval = 1 * time.Second

// Acceptor is the accept loop (C4): it hands every accepted
// connection to a new handler goroutine, tracks them in a registry, and
// periodically reaps finished ones. Where the spec polls a non-blocking
// listening socket in a sleep loop, Acceptor uses the idiomatic Go
// substitute — a blocking Accept() in its own goroutine, unblocked by
// closing the listener when ctx is cancelled — while still reproducing the
// registry-and-reaper shape the spec describes.
type Acceptor struct {
	ln  net.Listener
	log *reclog.Log

	mu       sync.Mutex
	registry []*task
	wg       sync.WaitGroup
}

// NewAcceptor returns an Acceptor that serves connections from ln against
// log.
func NewAcceptor(ln net.Listener, log *reclog.Log) *Acceptor {
	return &Acceptor{ln: ln, log: log}
}

// Run accepts connections until ctx is cancelled or the listener fails. On
// return, every spawned handler has already finished (Run joins them before
// returning), matching the supervisor's "join all handlers" shutdown step.
func (a *Acceptor) Run(ctx context.Context) error {
	type acceptResult struct {
		conn net.Conn
		err  error
	}
	results := make(chan acceptResult, 1)
	go func() {
		for {
			conn, err := a.ln.Accept()
			results <- acceptResult{conn, err}
			if err != nil {
				return
			}
		}
	}()

	reapTicker := time.NewTicker(reapInterval)
	defer reapTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.ln.Close()
			a.wg.Wait()
			return nil

		case r := <-results:
			if r.err != nil {
				if ctx.Err() != nil {
					a.wg.Wait()
					return nil
				}
				a.wg.Wait()
				return fmt.Errorf("accept: %w", r.err)
			}
			a.spawn(ctx, r.conn)

		case <-reapTicker.C:
			a.reap()
		}
	}
}

func (a *Acceptor) spawn(ctx context.Context, conn net.Conn) {
	t := &task{id: uuid.New(), conn: conn}
	t.status.Store(int32(StatusRunning))

	a.mu.Lock()
	a.registry = append(a.registry, t)
	a.mu.Unlock()

	logger.Info("connection accepted", "conn_id", t.id, "remote", conn.RemoteAddr())

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer conn.Close()

		err := HandleConn(ctx, conn, a.log)
		if err != nil {
			t.status.Store(int32(StatusFailed))
			logger.Warn("connection handler failed", "conn_id", t.id, "remote", conn.RemoteAddr(), "err", err)
			return
		}
		t.status.Store(int32(StatusSucceeded))
		logger.Debug("connection closed", "conn_id", t.id)
	}()
}

// reap walks the registry and drops every entry that is no longer Running.
func (a *Acceptor) reap() {
	a.mu.Lock()
	defer a.mu.Unlock()

	live := a.registry[:0]
	for _, t := range a.registry {
		if t.Status() == StatusRunning {
			live = append(live, t)
		}
	}
	a.registry = live
}

// PendingCount returns the number of registry entries not yet reaped —
// exposed for tests that assert on the reaper's behavior.
func (a *Acceptor) PendingCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.registry)
}
