package testutils

import (
	"bytes"
	"os"
	"sync"
	"testing"

	"github.com/decred/slog"
)

// showLogEnv is the env var that makes test loggers write to t.Log as lines
// are logged instead of only after a failure.
const showLogEnv = "CHROMATIC_TEST_LOG"

// testLogBackend collects the log lines of a test. The lines are written to
// t.Log when the test fails.
type testLogBackend struct {
	tb      testing.TB
	showLog bool

	mtx  sync.Mutex
	buf  bytes.Buffer
	done bool
}

func (tlb *testLogBackend) Write(b []byte) (int, error) {
	tlb.mtx.Lock()
	defer tlb.mtx.Unlock()
	switch {
	case tlb.done:
		// Goroutines may outlive the test. t.Log panics after the test
		// finished, so drop the line.
	case tlb.showLog:
		tlb.tb.Log(string(bytes.TrimSuffix(b, []byte("\n"))))
	default:
		tlb.buf.Write(b)
	}
	return len(b), nil
}

func newTestLogBackend(t testing.TB) *testLogBackend {
	tlb := &testLogBackend{tb: t, showLog: os.Getenv(showLogEnv) != ""}
	t.Cleanup(func() {
		tlb.mtx.Lock()
		defer tlb.mtx.Unlock()
		tlb.done = true
		if t.Failed() && tlb.buf.Len() > 0 {
			t.Logf("Test log:\n%s", tlb.buf.String())
		}
	})
	return tlb
}

// TestLoggerSys returns an slog.Logger for the subsystem sys that logs at the
// trace level.
func TestLoggerSys(t testing.TB, sys string) slog.Logger {
	logg := slog.NewBackend(newTestLogBackend(t)).Logger(sys)
	logg.SetLevel(slog.LevelTrace)
	return logg
}
