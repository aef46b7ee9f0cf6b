package spinner

import (
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer is a goroutine-safe writer for capturing spinner frames.
type syncBuffer struct {
	mu sync.Mutex
	b  strings.Builder
}

func (sb *syncBuffer) Write(p []byte) (int, error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.b.Write(p)
}

func (sb *syncBuffer) String() string {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.b.String()
}

func TestSpinnerWritesAndClears(t *testing.T) {
	var buf syncBuffer
	s := Start(&buf, "fitting mf")
	time.Sleep(200 * time.Millisecond)
	s.SetMessage("fitting bpr on fold 2")
	time.Sleep(200 * time.Millisecond)
	s.Stop()

	out := buf.String()
	if !strings.Contains(out, "fitting mf") {
		t.Errorf("expected initial message in output, got %q", out)
	}
	if !strings.Contains(out, "fitting bpr on fold 2") {
		t.Errorf("expected updated message in output, got %q", out)
	}
	if !strings.HasSuffix(out, "\r") {
		t.Errorf("expected output to end with a clearing carriage return")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	var buf syncBuffer
	s := Start(&buf, "working")
	s.Stop()
	s.Stop()
}
