package modem

import (
	"io"
	"sync"
	"time"
)

// TestTransport is a scripted Transport for driver tests. Reply lines
// queued with SendLines are handed out one per ReadLine call, and
// everything the driver writes is recorded.
//
// DiscardInput only counts calls instead of dropping queued lines, so
// a test can script a whole exchange up front. Exported for use in
// tests.
type TestTransport struct {
	mu       sync.Mutex
	lines    []string
	writes   []string
	discards int
	closed   bool
}

// NewTestTransport creates an empty scripted transport.
func NewTestTransport() *TestTransport {
	return &TestTransport{}
}

// SendLines queues reply lines, without line endings. This simulates
// output arriving from the module.
func (t *TestTransport) SendLines(lines ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.lines = append(t.lines, lines...)
	}
}

// Writes returns everything written so far, one string per Write call.
func (t *TestTransport) Writes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.writes...)
}

// Discards reports how often the driver flushed the input buffer.
func (t *TestTransport) Discards() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.discards
}

func (t *TestTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writes = append(t.writes, string(p))
	return len(p), nil
}

// ReadLine pops the next scripted line. With nothing queued it behaves
// like a quiet serial port: the timeout passes, then ErrReadTimeout.
func (t *TestTransport) ReadLine(timeout time.Duration) (string, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return "", io.EOF
	}
	if len(t.lines) > 0 {
		line := t.lines[0]
		t.lines = t.lines[1:]
		t.mu.Unlock()
		return line, nil
	}
	t.mu.Unlock()

	time.Sleep(timeout)
	return "", ErrReadTimeout
}

func (t *TestTransport) Buffered() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, line := range t.lines {
		n += len(line) + 2
	}
	return n, nil
}

func (t *TestTransport) DiscardInput() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.discards++
	return nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}
