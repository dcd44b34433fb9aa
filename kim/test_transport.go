package kim

import (
	"io"
	"sync"
	"time"
)

// TestTransport is a test helper that plays back scripted response lines.
// When the script is exhausted a read waits for the full timeout and returns
// nothing, like a silent serial line.
type TestTransport struct {
	mu      sync.Mutex
	lines   [][]byte
	written []string
	reads   int
	resets  int
	closed  bool
}

// NewTestTransport creates a new test transport replying with lines in
// order. Exported for use in tests.
func NewTestTransport(lines ...string) *TestTransport {
	t := &TestTransport{}
	t.SendData(lines...)
	return t
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.ErrClosedPipe
	}
	t.written = append(t.written, string(p))
	return len(p), nil
}

func (t *TestTransport) ReadLine(max int, timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, io.ErrClosedPipe
	}
	t.reads++
	if len(t.lines) == 0 {
		t.mu.Unlock()
		time.Sleep(timeout)
		return nil, nil
	}
	defer t.mu.Unlock()

	line := t.lines[0]
	if len(line) > max {
		t.lines[0] = line[max:]
		return line[:max], nil
	}
	t.lines = t.lines[1:]
	return line, nil
}

// ResetInputBuffer counts resets. Scripted lines are replies still to
// come, so they are kept.
func (t *TestTransport) ResetInputBuffer() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resets++
	return nil
}

func (t *TestTransport) ResetOutputBuffer() error {
	return nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// SendData queues lines to be read by the transport. This simulates
// receiving data from the module.
func (t *TestTransport) SendData(lines ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, l := range lines {
		t.lines = append(t.lines, []byte(l))
	}
}

// Written returns every write, in order.
func (t *TestTransport) Written() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.written...)
}

// Reads returns the number of ReadLine calls.
func (t *TestTransport) Reads() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reads
}

// InputResets returns the number of ResetInputBuffer calls.
func (t *TestTransport) InputResets() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resets
}

// Closed reports whether Close was called.
func (t *TestTransport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
