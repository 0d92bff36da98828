package run

import (
	"context"
	"sync"
)

// Buffer is a run's ordered log of output lines. Multiple producers (the
// stdout and stderr readers plus supervisor lifecycle messages) append;
// each subscriber reads independently through its own cursor. Consumers
// block on a broadcast channel instead of polling.
type Buffer struct {
	mu     sync.Mutex
	lines  []string
	closed bool
	wake   chan struct{} // closed and replaced on every append
}

// NewBuffer creates an empty log buffer.
func NewBuffer() *Buffer {
	return &Buffer{wake: make(chan struct{})}
}

// Append adds a line. Appends after Close are dropped.
func (b *Buffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.lines = append(b.lines, line)
	close(b.wake)
	b.wake = make(chan struct{})
}

// Close marks the buffer complete and wakes all blocked readers. Lines
// already appended remain readable.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.wake)
}

// Next returns the line at cursor, blocking until one is available. ok is
// false once the buffer is closed and fully drained. The ctx error is
// returned when the consumer goes away mid-wait.
func (b *Buffer) Next(ctx context.Context, cursor int) (line string, next int, ok bool, err error) {
	for {
		b.mu.Lock()
		if cursor < len(b.lines) {
			line := b.lines[cursor]
			b.mu.Unlock()
			return line, cursor + 1, true, nil
		}
		if b.closed {
			b.mu.Unlock()
			return "", cursor, false, nil
		}
		wake := b.wake
		b.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return "", cursor, false, ctx.Err()
		}
	}
}

// Lines returns a snapshot of all lines appended so far.
func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// Closed reports whether the buffer has been closed.
func (b *Buffer) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
