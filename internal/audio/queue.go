// SPDX-License-Identifier: MIT
package audio

import "sync"

// queue is an unbounded multi-producer channel. Push never blocks; a pump
// goroutine moves items from an internal slice to Out in FIFO order.
type queue[T any] struct {
	in      chan T
	out     chan T
	closing chan struct{}
	discard chan struct{}

	closeOnce   sync.Once
	discardOnce sync.Once
}

func newQueue[T any]() *queue[T] {
	q := &queue[T]{
		in:      make(chan T),
		out:     make(chan T),
		closing: make(chan struct{}),
		discard: make(chan struct{}),
	}
	go q.pump()
	return q
}

// Push enqueues v. It reports false once the queue is closed.
func (q *queue[T]) Push(v T) bool {
	select {
	case <-q.closing:
		return false
	default:
	}
	select {
	case q.in <- v:
		return true
	case <-q.closing:
		return false
	}
}

// Out returns the receive side. It is closed once the queue is closed and
// everything pending has been received, or right away after Discard.
func (q *queue[T]) Out() <-chan T {
	return q.out
}

// Close stops accepting items. Items already pushed are still delivered on
// Out, so the receiver must keep draining until Out is closed.
func (q *queue[T]) Close() {
	q.closeOnce.Do(func() { close(q.closing) })
}

// Discard closes the queue and drops anything still pending.
func (q *queue[T]) Discard() {
	q.Close()
	q.discardOnce.Do(func() { close(q.discard) })
}

func (q *queue[T]) pump() {
	defer close(q.out)

	in, closing := q.in, q.closing
	var pending []T
	for {
		if in == nil && len(pending) == 0 {
			return
		}
		var out chan T
		var next T
		if len(pending) > 0 {
			out = q.out
			next = pending[0]
		}

		select {
		case v := <-in:
			pending = append(pending, v)
		case out <- next:
			var zero T
			pending[0] = zero
			pending = pending[1:]
		case <-closing:
			in, closing = nil, nil
		case <-q.discard:
			return
		}
	}
}
