package actor

import (
	"context"
	"sync"
)

// mailbox is an unbounded FIFO queue. Senders never block; the owner is
// woken through signal, which holds at most one pending wake-up.
type mailbox struct {
	mu     sync.Mutex
	queue  []Envelope
	signal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

func (m *mailbox) push(env Envelope) {
	m.mu.Lock()
	m.queue = append(m.queue, env)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox) pop() (Envelope, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.queue) == 0 {
		return Envelope{}, false
	}
	env := m.queue[0]
	m.queue[0] = Envelope{}
	m.queue = m.queue[1:]
	return env, true
}

func (m *mailbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// wait blocks until a message may be available or ctx is done.
func (m *mailbox) wait(ctx context.Context) error {
	select {
	case <-m.signal:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
