// Package bridge connects the compute side and the presentation side with a
// pair of in-process message pipes. Sending never blocks: each direction is
// an unbounded FIFO. Receiving suspends only the receiving goroutine.
package bridge

import (
	"context"
	"errors"
	"sync"

	"github.com/eapache/queue"
)

var ErrClosed = errors.New("bridge closed")

type mailbox[T any] struct {
	mu     sync.Mutex
	q      *queue.Queue
	notify chan struct{}
	done   chan struct{}
	closed bool
}

func newMailbox[T any]() *mailbox[T] {
	return &mailbox[T]{
		q:      queue.New(),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (m *mailbox[T]) put(v T) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.q.Add(v)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return nil
}

func (m *mailbox[T]) take() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.q.Length() == 0 {
		var zero T
		return zero, false
	}
	return m.q.Remove().(T), true
}

func (m *mailbox[T]) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
}

// Conn is one end of a pipe pair: it sends S and receives R.
type Conn[S, R any] struct {
	out *mailbox[S]
	in  *mailbox[R]
}

// NewPair returns two connected ends. What the first sends the second
// receives, in order, exactly once.
func NewPair[A, B any]() (*Conn[A, B], *Conn[B, A]) {
	ab := newMailbox[A]()
	ba := newMailbox[B]()
	return &Conn[A, B]{out: ab, in: ba}, &Conn[B, A]{out: ba, in: ab}
}

// Send enqueues v for the peer. It fails only after Close.
func (c *Conn[S, R]) Send(v S) error {
	return c.out.put(v)
}

// Recv returns the next message, waiting for one if necessary. After Close
// it keeps returning queued messages, then ErrClosed.
func (c *Conn[S, R]) Recv(ctx context.Context) (R, error) {
	for {
		if v, ok := c.in.take(); ok {
			return v, nil
		}
		select {
		case <-c.in.notify:
		case <-c.in.done:
			if v, ok := c.in.take(); ok {
				return v, nil
			}
			var zero R
			return zero, ErrClosed
		case <-ctx.Done():
			var zero R
			return zero, ctx.Err()
		}
	}
}

// TryRecv returns the next message without waiting.
func (c *Conn[S, R]) TryRecv() (R, bool) {
	return c.in.take()
}

// Ready fires when messages may be waiting. A select loop should drain
// with TryRecv after each signal.
func (c *Conn[S, R]) Ready() <-chan struct{} {
	return c.in.notify
}

// Pending reports how many received messages are queued.
func (c *Conn[S, R]) Pending() int {
	c.in.mu.Lock()
	defer c.in.mu.Unlock()
	return c.in.q.Length()
}

// Close shuts both directions. Either end may call it, more than once.
func (c *Conn[S, R]) Close() {
	c.out.close()
	c.in.close()
}
