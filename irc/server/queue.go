package server

import (
	"sync"

	"github.com/presbrey/ircd/irc"
)

// outbox is an unbounded FIFO of messages waiting to be written to one
// session. Any goroutine may push; only the owning session drains.
type outbox struct {
	mu     sync.Mutex
	items  []*irc.Message
	closed bool
	ready  chan struct{}
}

func newOutbox() *outbox {
	return &outbox{ready: make(chan struct{}, 1)}
}

// push appends msg and wakes the consumer. Pushing to a closed outbox drops
// the message.
func (q *outbox) push(msg *irc.Message) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, msg)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// drain removes and returns everything queued, oldest first
func (q *outbox) drain() []*irc.Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	return items
}

func (q *outbox) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

func (q *outbox) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.items = nil
}
