package session

import (
	"context"
	"errors"

	"gridscope/internal/backend"
	"gridscope/internal/domain"
)

// ErrClosed is returned for work submitted after the runner stopped
var ErrClosed = errors.New("session closed")

// DefaultQueueSize is the runner's task buffer
const DefaultQueueSize = 64

// Runner owns a Session on a single goroutine. Every read and write of
// session state, including scheduler callbacks, runs there.
type Runner struct {
	session *Session
	tasks   chan func()
	done    chan struct{}
}

// NewRunner builds a session whose scheduler callbacks are routed onto the
// runner goroutine. deps.Dispatch is overwritten.
func NewRunner(deps Deps) *Runner {
	r := &Runner{
		tasks: make(chan func(), DefaultQueueSize),
		done:  make(chan struct{}),
	}
	deps.Dispatch = r.dispatch
	r.session = New(deps)
	return r
}

// Session returns the owned session. Callers must not touch it outside Do
// or Post once Run has started.
func (r *Runner) Session() *Session {
	return r.session
}

// Run processes tasks until ctx is cancelled, then tears the session down
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.done)
	defer r.session.Teardown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case task := <-r.tasks:
			task()
		}
	}
}

// Done is closed once Run has returned
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

func (r *Runner) closed() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

func (r *Runner) dispatch(fn func()) {
	if r.closed() {
		return
	}
	select {
	case r.tasks <- fn:
	case <-r.done:
	}
}

// Post enqueues fn without waiting for it to run
func (r *Runner) Post(fn func(*Session)) error {
	if r.closed() {
		return ErrClosed
	}
	select {
	case r.tasks <- func() { fn(r.session) }:
		return nil
	case <-r.done:
		return ErrClosed
	}
}

// Do runs fn on the session goroutine and waits for its result
func (r *Runner) Do(ctx context.Context, fn func(*Session) error) error {
	errc := make(chan error, 1)
	task := func() { errc <- fn(r.session) }

	if r.closed() {
		return ErrClosed
	}
	select {
	case r.tasks <- task:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrClosed
	}

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		// The task may have completed just before shutdown
		select {
		case err := <-errc:
			return err
		default:
			return ErrClosed
		}
	}
}

// Calculate runs a power-flow calculation without holding the session
// goroutine during the backend call
func (r *Runner) Calculate(ctx context.Context, method string) error {
	var (
		req    backend.FlowRequest
		client Backend
	)
	err := r.Do(ctx, func(s *Session) error {
		var err error
		req, err = s.BeginCalculation(method)
		client = s.backend
		return err
	})
	if err != nil {
		return err
	}

	resp, callErr := client.CalculateFlow(ctx, req)

	// Completion must run even if ctx was cancelled, or the in-flight flag
	// would never clear
	done := context.WithoutCancel(ctx)
	return r.Do(done, func(s *Session) error {
		return s.CompleteCalculation(done, req, resp, callErr)
	})
}

// LoadCase fetches a case off the session goroutine and installs it on it
func (r *Runner) LoadCase(ctx context.Context, name string) error {
	var client Backend
	if err := r.Do(ctx, func(s *Session) error {
		if s.backend == nil {
			return domain.ErrNoBackend
		}
		client = s.backend
		return nil
	}); err != nil {
		return err
	}

	doc, err := client.LoadCase(ctx, name)
	if err != nil {
		_ = r.Post(func(s *Session) { s.caseFailed(name, err) })
		return err
	}

	return r.Do(ctx, func(s *Session) error {
		return s.InstallCase(name, doc)
	})
}
