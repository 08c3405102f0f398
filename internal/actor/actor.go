// Package actor is a small in-process actor runtime. Each spawned unit owns a
// private mailbox that a dedicated goroutine drains one message at a time, in
// arrival order. Units never share memory; they interact only through Send.
package actor

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Kind names a unit implementation registered with a System.
type Kind string

// PID is the opaque handle of a spawned unit. The zero PID addresses nobody
// and is used as the parent of top-level units and as the sender of messages
// injected from outside the system.
type PID struct {
	ID   uint64
	Kind Kind
}

// IsZero reports whether p is the zero handle.
func (p PID) IsZero() bool { return p.ID == 0 }

func (p PID) String() string {
	if p.IsZero() {
		return "nobody"
	}
	return fmt.Sprintf("%s#%d", p.Kind, p.ID)
}

// Envelope wraps a message with the handle of the unit that sent it.
type Envelope struct {
	Sender  PID
	Message any
}

// Actor is implemented by every unit. Receive is never called concurrently
// for the same unit.
type Actor interface {
	Receive(c *Context, env Envelope)
}

// ActorFunc adapts a function to the Actor interface.
type ActorFunc func(c *Context, env Envelope)

// Receive calls f.
func (f ActorFunc) Receive(c *Context, env Envelope) { f(c, env) }

// Producer builds a fresh Actor for each spawn of a Kind.
type Producer func() Actor

// Context is handed to Receive and exposes the runtime primitives available
// to the unit that is processing a message.
type Context struct {
	sys  *System
	proc *process
}

// Self returns the handle of the receiving unit.
func (c *Context) Self() PID { return c.proc.pid }

// Parent returns the handle of the unit that spawned the receiver.
func (c *Context) Parent() PID { return c.proc.parent }

// Context returns a context that is cancelled when the unit is terminated.
// Blocking calls made from Receive should use it.
func (c *Context) Context() context.Context { return c.proc.ctx }

// Logger returns the unit's logger.
func (c *Context) Logger() *slog.Logger { return c.proc.log }

// Spawn creates a child unit of the given kind owned by the receiver.
func (c *Context) Spawn(kind Kind) (PID, error) {
	return c.sys.Spawn(kind, c.proc.pid)
}

// Send delivers msg to the mailbox of to. Undeliverable messages are logged
// as dead letters.
func (c *Context) Send(to PID, msg any) {
	if err := c.sys.Send(to, c.proc.pid, msg); err != nil {
		c.proc.log.Debug("dead letter", "to", to.String(), "type", fmt.Sprintf("%T", msg))
	}
}

// Terminate stops the unit pid and every unit it spawned.
func (c *Context) Terminate(pid PID) {
	c.sys.Terminate(pid)
}

// SendAfter delivers msg to the receiver itself once d has elapsed. The
// returned function cancels the delivery if it has not happened yet.
func (c *Context) SendAfter(d time.Duration, msg any) (cancel func()) {
	self := c.proc.pid
	t := time.AfterFunc(d, func() {
		_ = c.sys.Send(self, self, msg)
	})
	return func() { t.Stop() }
}
