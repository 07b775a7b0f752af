// Package shutdown provides a process-wide shutdown broadcast shared by a
// fixed set of tasks, with a back-channel that lets any task ask the owner
// of the broadcast to shut everything down.
//
// New returns three handles over one shared state:
//
//   - a Listener, cloned once per task, that observes the broadcast and can
//     request shutdown,
//   - the Notifier, held by the supervisor, that fires the broadcast,
//   - the Receiver, drained by the supervisor, that yields shutdown requests
//     and reports closed once every Listener has been released.
package shutdown

import (
	"context"
	"sync"
	"time"
)

// Report is a single shutdown request made through a Listener.
type Report struct {
	Reason string
	At     time.Time
}

type state struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	listeners int
	reports   []Report
	// changed is closed and replaced whenever listeners or reports change.
	changed chan struct{}
}

func (s *state) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// New creates the shared shutdown state and returns its three handles.
// The returned Listener should be cloned for every task but the last one,
// which receives the original. A Listener that is never used still keeps the
// Receiver open, so none should be left behind.
func New() (*Receiver, *Notifier, *Listener) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &state{
		ctx:       ctx,
		cancel:    cancel,
		listeners: 1,
		changed:   make(chan struct{}),
	}
	return &Receiver{s: s}, &Notifier{s: s}, &Listener{s: s}
}

// Listener is owned by exactly one task. It observes the broadcast and can
// ask for shutdown.
type Listener struct {
	s        *state
	released bool // guarded by s.mu
}

// Clone returns a new Listener on the same state. Cloning a released
// Listener returns another released Listener.
func (l *Listener) Clone() *Listener {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	if l.released {
		return &Listener{s: l.s, released: true}
	}
	l.s.listeners++
	return &Listener{s: l.s}
}

// Done returns a channel that is closed once the broadcast fires. If it
// already fired the channel is already closed.
func (l *Listener) Done() <-chan struct{} {
	return l.s.ctx.Done()
}

// Context returns a context that is cancelled by the broadcast.
func (l *Listener) Context() context.Context {
	return l.s.ctx
}

// RequestShutdown queues a shutdown request for the Receiver and returns
// once it is queued. It does not wait for shutdown to happen. Requests made
// through a released Listener are dropped.
func (l *Listener) RequestShutdown(reason string) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	if l.released {
		return
	}
	l.s.reports = append(l.s.reports, Report{Reason: reason, At: time.Now()})
	l.s.notifyLocked()
}

// Release drops the Listener. When the last Listener is released the
// Receiver closes once its queue is drained. Release is idempotent.
func (l *Listener) Release() {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	if l.released {
		return
	}
	l.released = true
	l.s.listeners--
	l.s.notifyLocked()
}

// Notifier fires the broadcast.
type Notifier struct {
	s *state
}

// Broadcast fires the shutdown broadcast. Every current and future
// Listener.Done channel is closed when it returns. Calling it again is a
// no-op.
func (n *Notifier) Broadcast() {
	n.s.cancel()
}

// Fired reports whether Broadcast has been called.
func (n *Notifier) Fired() bool {
	return n.s.ctx.Err() != nil
}

// Wait blocks until every Listener has been released or ctx is done.
func (n *Notifier) Wait(ctx context.Context) error {
	for {
		n.s.mu.Lock()
		if n.s.listeners == 0 {
			n.s.mu.Unlock()
			return nil
		}
		changed := n.s.changed
		n.s.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Receiver is the single consumer of shutdown requests.
type Receiver struct {
	s *state
}

// Recv returns the oldest queued request. It blocks while the queue is empty
// and at least one Listener is alive. It returns false once every Listener
// has been released and the queue is empty, and from then on permanently.
// It also returns false when ctx is done; callers tell the two apart with
// ctx.Err().
func (r *Receiver) Recv(ctx context.Context) (Report, bool) {
	for {
		r.s.mu.Lock()
		if len(r.s.reports) > 0 {
			rep := r.s.reports[0]
			r.s.reports = r.s.reports[1:]
			r.s.mu.Unlock()
			return rep, true
		}
		if r.s.listeners == 0 {
			r.s.mu.Unlock()
			return Report{}, false
		}
		changed := r.s.changed
		r.s.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return Report{}, false
		}
	}
}

// Pending returns the number of queued requests.
func (r *Receiver) Pending() int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.reports)
}
