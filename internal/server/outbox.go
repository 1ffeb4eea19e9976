package server

import "sync"

// Outbox is a session's outbound handle: a bounded queue of encoded frames
// drained by the connection's write pump. Push never blocks.
type Outbox struct {
	mu     sync.Mutex
	ch     chan []byte
	closed bool
}

// NewOutbox creates an outbox holding up to size frames.
func NewOutbox(size int) *Outbox {
	if size <= 0 {
		size = 1
	}
	return &Outbox{ch: make(chan []byte, size)}
}

// Push queues a frame. It returns ErrOutboxClosed after Close and
// ErrOutboxFull when the queue is at capacity.
func (o *Outbox) Push(frame []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrOutboxClosed
	}
	select {
	case o.ch <- frame:
		return nil
	default:
		return ErrOutboxFull
	}
}

// C returns the channel the write pump drains. It is closed by Close.
func (o *Outbox) C() <-chan []byte {
	return o.ch
}

// Close stops further pushes and closes the channel. Safe to call repeatedly.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	o.closed = true
	close(o.ch)
}

// Closed reports whether Close has been called.
func (o *Outbox) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// Len returns the number of queued frames.
func (o *Outbox) Len() int {
	return len(o.ch)
}
