package supervisor

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/aesdsocket/linelogd/internal/reclog"
	"github.com/aesdsocket/linelogd/internal/schedule"
	"github.com/aesdsocket/linelogd/internal/ticker"
)

func startSupervisor(t *testing.T) (addr net.Addr, cancel context.CancelFunc, done <-chan error) {
	t.Helper()
	sched, err := schedule.Parse("1h") // effectively disabled for this test
	if err != nil {
		t.Fatalf("schedule.Parse: %v", err)
	}
	log := reclog.NewLog(10)
	ready := make(chan net.Addr, 1)
	s := &Supervisor{
		Port:   0,
		Log:    log,
		Ticker: ticker.New(sched, log),
		Ready:  ready,
	}

	ctx, cancelFn := context.WithCancel(context.Background())
	doneCh := make(chan error, 1)
	go func() { doneCh <- s.Run(ctx) }()

	select {
	case a := <-ready:
		return a, cancelFn, doneCh
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not report a bound address")
	}
	return nil, cancelFn, doneCh
}

// Scenario 3 (ticker disabled): two clients interleave appends and each
// sees the full log, in append order, as of its own reply.
func TestSupervisorServesMultipleConnections(t *testing.T) {
	addr, cancel, done := startSupervisor(t)
	defer func() {
		cancel()
		<-done
	}()

	connA, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("dial A: %v", err)
	}
	defer connA.Close()
	connB, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("dial B: %v", err)
	}
	defer connB.Close()

	mustWrite(t, connA, "a\n")
	mustRead(t, connA, "a\n")

	mustWrite(t, connB, "b\n")
	mustRead(t, connB, "a\nb\n")

	mustWrite(t, connA, "c\n")
	mustRead(t, connA, "a\nb\nc\n")
}

func TestSupervisorShutsDownCleanly(t *testing.T) {
	_, cancel, done := startSupervisor(t)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil on clean shutdown", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func mustWrite(t *testing.T, conn net.Conn, s string) {
	t.Helper()
	if _, err := conn.Write([]byte(s)); err != nil {
		t.Fatalf("write %q: %v", s, err)
	}
}

func mustRead(t *testing.T, conn net.Conn, want string) {
	t.Helper()
	buf := make([]byte, len(want))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	read := 0
	for read < len(buf) {
		n, err := conn.Read(buf[read:])
		read += n
		if err != nil {
			t.Fatalf("read: %v (got %q so far)", err, buf[:read])
		}
	}
	if string(buf) != want {
		t.Errorf("reply = %q, want %q", buf, want)
	}
}
