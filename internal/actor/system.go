package actor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

var (
	// ErrUnknownKind is returned by Spawn for a kind with no registered producer.
	ErrUnknownKind = errors.New("actor: unknown kind")

	// ErrDeadLetter is returned by Send when the target unit does not exist.
	ErrDeadLetter = errors.New("actor: dead letter")

	// ErrParentGone is returned by Spawn when the parent has been terminated.
	ErrParentGone = errors.New("actor: parent terminated")

	// ErrShutdown is returned by Spawn after Shutdown has been called.
	ErrShutdown = errors.New("actor: system shut down")
)

// Observer is notified about unit lifecycle events. Implementations must be
// safe for concurrent use.
type Observer interface {
	Spawned(kind Kind)
	Terminated(kind Kind)
	DeadLetter(kind Kind)
}

type nopObserver struct{}

func (nopObserver) Spawned(Kind)    {}
func (nopObserver) Terminated(Kind) {}
func (nopObserver) DeadLetter(Kind) {}

// Option configures a System.
type Option func(*System)

// WithLogger sets the logger used by the system and its units.
func WithLogger(l *slog.Logger) Option {
	return func(s *System) {
		s.log = l
	}
}

// WithObserver registers an Observer for lifecycle events.
func WithObserver(o Observer) Option {
	return func(s *System) {
		s.observer = o
	}
}

// process is the runtime record of one spawned unit.
type process struct {
	pid     PID
	parent  PID
	actor   Actor // nil for inboxes, which are drained by their owner
	mailbox *mailbox
	ctx     context.Context
	cancel  context.CancelFunc
	log     *slog.Logger
}

// System maps kinds to their producers and owns every spawned unit.
type System struct {
	mu       sync.RWMutex
	kinds    map[Kind]Producer
	procs    map[uint64]*process
	children map[uint64]map[uint64]struct{}
	closed   bool

	nextID   atomic.Uint64
	wg       sync.WaitGroup
	root     context.Context
	cancel   context.CancelFunc
	log      *slog.Logger
	observer Observer
}

// NewSystem creates an empty System.
func NewSystem(opts ...Option) *System {
	root, cancel := context.WithCancel(context.Background())
	s := &System{
		kinds:    make(map[Kind]Producer),
		procs:    make(map[uint64]*process),
		children: make(map[uint64]map[uint64]struct{}),
		root:     root,
		cancel:   cancel,
		log:      slog.Default(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register associates a producer with a kind, replacing any previous one.
func (s *System) Register(kind Kind, p Producer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds[kind] = p
}

// Spawn creates and starts a unit of the given kind. parent may be the zero
// PID for top-level units; otherwise the new unit is owned by parent and is
// terminated together with it.
func (s *System) Spawn(kind Kind, parent PID) (PID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return PID{}, ErrShutdown
	}
	producer, ok := s.kinds[kind]
	if !ok {
		return PID{}, fmt.Errorf("%w %q", ErrUnknownKind, kind)
	}

	p, err := s.register(kind, parent, producer())
	if err != nil {
		return PID{}, err
	}

	s.wg.Add(1)
	go s.run(p)
	return p.pid, nil
}

// register records a new process. Callers hold s.mu.
func (s *System) register(kind Kind, parent PID, a Actor) (*process, error) {
	if !parent.IsZero() {
		if _, ok := s.procs[parent.ID]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrParentGone, parent)
		}
	}

	pid := PID{ID: s.nextID.Add(1), Kind: kind}
	ctx, cancel := context.WithCancel(s.root)
	p := &process{
		pid:     pid,
		parent:  parent,
		actor:   a,
		mailbox: newMailbox(),
		ctx:     ctx,
		cancel:  cancel,
		log:     s.log.With("actor", pid.String()),
	}
	s.procs[pid.ID] = p
	if !parent.IsZero() {
		set, ok := s.children[parent.ID]
		if !ok {
			set = make(map[uint64]struct{})
			s.children[parent.ID] = set
		}
		set[pid.ID] = struct{}{}
	}

	s.observer.Spawned(kind)
	return p, nil
}

// Send enqueues msg in the mailbox of to. It never blocks.
func (s *System) Send(to, from PID, msg any) error {
	s.mu.RLock()
	p, ok := s.procs[to.ID]
	s.mu.RUnlock()

	if !ok {
		s.observer.DeadLetter(to.Kind)
		return fmt.Errorf("%w: %s", ErrDeadLetter, to)
	}
	p.mailbox.push(Envelope{Sender: from, Message: msg})
	return nil
}

// Terminate stops pid and, recursively, every unit it spawned. Messages still
// queued for the stopped units are dropped. A message being processed when
// Terminate is called runs to completion, with its context cancelled.
// Terminate reports whether pid was alive.
func (s *System) Terminate(pid PID) bool {
	s.mu.Lock()
	victims := s.detach(pid.ID, nil)
	s.mu.Unlock()

	for _, p := range victims {
		p.cancel()
		if n := p.mailbox.len(); n > 0 {
			p.log.Debug("dropping queued messages on terminate", "count", n)
		}
		s.observer.Terminated(p.pid.Kind)
	}
	return len(victims) > 0
}

// detach removes id and its descendants from the registry. Callers hold s.mu.
func (s *System) detach(id uint64, acc []*process) []*process {
	p, ok := s.procs[id]
	if !ok {
		return acc
	}
	delete(s.procs, id)
	if !p.parent.IsZero() {
		if set, ok := s.children[p.parent.ID]; ok {
			delete(set, id)
		}
	}
	acc = append(acc, p)

	for child := range s.children[id] {
		acc = s.detach(child, acc)
	}
	delete(s.children, id)
	return acc
}

// Alive reports whether pid is still registered.
func (s *System) Alive(pid PID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.procs[pid.ID]
	return ok
}

// Children returns the live units spawned by pid.
func (s *System) Children(pid PID) []PID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]PID, 0, len(s.children[pid.ID]))
	for id := range s.children[pid.ID] {
		if p, ok := s.procs[id]; ok {
			out = append(out, p.pid)
		}
	}
	return out
}

// Len returns the number of live units, inboxes included.
func (s *System) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.procs)
}

// Shutdown terminates every unit and waits for their goroutines to exit or
// for ctx to be done. No units can be spawned afterwards.
func (s *System) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	var roots []PID
	for _, p := range s.procs {
		if p.parent.IsZero() {
			roots = append(roots, p.pid)
		}
	}
	s.mu.Unlock()

	for _, pid := range roots {
		s.Terminate(pid)
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("actor: shutdown: %w", ctx.Err())
	}
}

// run drains p's mailbox until p is terminated.
func (s *System) run(p *process) {
	defer s.wg.Done()

	c := &Context{sys: s, proc: p}
	for {
		if err := p.mailbox.wait(p.ctx); err != nil {
			return
		}
		for p.ctx.Err() == nil {
			env, ok := p.mailbox.pop()
			if !ok {
				break
			}
			if !s.invoke(c, env) {
				return
			}
		}
	}
}

// invoke calls Receive for one message. A panicking unit is logged and
// terminated; it is not restarted. invoke reports whether the unit survived.
func (s *System) invoke(c *Context, env Envelope) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.proc.log.Error("unit crashed", "panic", r, "stack", string(debug.Stack()))
			s.Terminate(c.proc.pid)
			ok = false
		}
	}()
	c.proc.actor.Receive(c, env)
	return true
}
