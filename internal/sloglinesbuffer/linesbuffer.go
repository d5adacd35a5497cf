// Package sloglinesbuffer keeps the last lines written by a slog backend.
package sloglinesbuffer

import (
	"sync"
)

// DefaultMaxLines is the number of lines kept by a Buffer with no MaxLines
// set.
const DefaultMaxLines = 100

// Listener holds a callback that is called every time a new log line is
// received.
type Listener struct {
	b  *Buffer
	cb func(s string)
}

// Close stops this listener from receiving new callbacks.
func (l *Listener) Close() {
	l.b.mtx.Lock()
	delete(l.b.listeners, l)
	l.b.mtx.Unlock()
}

// Buffer keeps the last MaxLines lines written to it in a ring.
type Buffer struct {
	// MaxLines must be set before the first Write() call.
	MaxLines int

	mtx       sync.Mutex
	lines     [][]byte
	next      int
	full      bool
	listeners map[*Listener]struct{}
}

func (buff *Buffer) Write(b []byte) (int, error) {
	buff.mtx.Lock()
	if buff.lines == nil {
		n := buff.MaxLines
		if n <= 0 {
			n = DefaultMaxLines
		}
		buff.lines = make([][]byte, n)
	}

	// Reuse the slot of the oldest line unless it is much larger than
	// needed.
	slot := buff.lines[buff.next]
	if cap(slot) < len(b) || (cap(slot) > 512 && len(b) < 256) {
		slot = make([]byte, 0, len(b))
	}
	buff.lines[buff.next] = append(slot[:0], b...)
	buff.next = (buff.next + 1) % len(buff.lines)
	buff.full = buff.full || buff.next == 0

	var cbs []func(string)
	for lis := range buff.listeners {
		cbs = append(cbs, lis.cb)
	}
	buff.mtx.Unlock()

	if len(cbs) > 0 {
		line := string(b)
		for _, cb := range cbs {
			cb(line)
		}
	}

	return len(b), nil
}

// LastLogLines returns the last n log lines from the buffer, oldest first.
// A negative n returns every line.
func (buff *Buffer) LastLogLines(n int) []string {
	buff.mtx.Lock()
	defer buff.mtx.Unlock()

	count := buff.next
	if buff.full {
		count = len(buff.lines)
	}
	if n < 0 || n > count {
		n = count
	}

	res := make([]string, n)
	for i := 0; i < n; i++ {
		idx := (buff.next - n + i + len(buff.lines)) % len(buff.lines)
		res[i] = string(buff.lines[idx])
	}
	return res
}

// Listen calls cb on every Write() call. The callbacks are called
// synchronously with Write(), so they must not block.
//
// The listener should be closed by calling its Close() method once it's no
// longer needed.
func (buff *Buffer) Listen(cb func(s string)) *Listener {
	buff.mtx.Lock()
	defer buff.mtx.Unlock()
	if buff.listeners == nil {
		buff.listeners = make(map[*Listener]struct{}, 1)
	}
	l := &Listener{
		b:  buff,
		cb: cb,
	}
	buff.listeners[l] = struct{}{}
	return l
}
