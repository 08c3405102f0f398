package actor

import (
	"context"
	"fmt"
)

// KindInbox is the kind of every Inbox handle.
const KindInbox Kind = "inbox"

// Inbox is a mailbox owned by code running outside the system. It has a PID
// so units can Send to it, but no goroutine of its own: the owner drains it
// with Receive.
type Inbox struct {
	sys  *System
	proc *process
}

// NewInbox registers a top-level inbox.
func (s *System) NewInbox() (*Inbox, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrShutdown
	}
	p, err := s.register(KindInbox, PID{}, nil)
	if err != nil {
		return nil, err
	}
	return &Inbox{sys: s, proc: p}, nil
}

// PID returns the inbox handle.
func (in *Inbox) PID() PID { return in.proc.pid }

// Send delivers msg to to with the inbox as sender.
func (in *Inbox) Send(to PID, msg any) error {
	return in.sys.Send(to, in.proc.pid, msg)
}

// Receive blocks until a message arrives, ctx is done or the inbox is closed.
func (in *Inbox) Receive(ctx context.Context) (Envelope, error) {
	for {
		if env, ok := in.proc.mailbox.pop(); ok {
			return env, nil
		}
		select {
		case <-in.proc.mailbox.signal:
		case <-in.proc.ctx.Done():
			return Envelope{}, fmt.Errorf("actor: inbox %s closed", in.proc.pid)
		case <-ctx.Done():
			return Envelope{}, ctx.Err()
		}
	}
}

// Close unregisters the inbox. Later sends to it are dead letters.
func (in *Inbox) Close() {
	in.sys.Terminate(in.proc.pid)
}
