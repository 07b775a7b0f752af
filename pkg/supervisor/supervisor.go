// Package supervisor is the composition root of ledgerwatch. It starts the
// API and stream tasks, waits for the first reason to stop, broadcasts the
// shutdown and waits for both tasks to unwind.
package supervisor

import (
	"fmt"
	"io"
	"os"

	"github.com/Phillezi/ledgerwatch/pkg/logging"
	"github.com/Phillezi/ledgerwatch/pkg/metrics"
	"github.com/Phillezi/ledgerwatch/pkg/milestone"
	"github.com/Phillezi/ledgerwatch/pkg/shutdown"

	"github.com/go-logr/logr"
)

// Task is a long running task. It must return once l.Done() is closed.
type Task func(l *shutdown.Listener) error

// StreamTask consumes the ledger stream. It must return once l.Done() is
// closed.
type StreamTask func(l *shutdown.Listener) (milestone.Outcome, error)

// Cause is the race arm that started the shutdown.
type Cause int

const (
	CauseUnknown Cause = iota
	// CauseSignal is an interrupt or terminate signal.
	CauseSignal
	// CauseRequest is a shutdown request made through a listener.
	CauseRequest
	// CauseAPI is the API task returning.
	CauseAPI
	// CauseStream is the stream task returning.
	CauseStream
	// CauseContext is the context passed to Run being done.
	CauseContext
)

func (c Cause) String() string {
	switch c {
	case CauseSignal:
		return "signal"
	case CauseRequest:
		return "request"
	case CauseAPI:
		return "api"
	case CauseStream:
		return "stream"
	case CauseContext:
		return "context"
	default:
		return "unknown"
	}
}

// Summary describes a completed Run.
type Summary struct {
	Cause     Cause
	Outcome   milestone.Outcome
	StreamErr error
	APIErr    error
	// Requests is the number of shutdown requests made during the run.
	Requests int
}

// ExitCode is 1 when the stream task failed and 0 otherwise.
func (s Summary) ExitCode() int {
	if s.StreamErr != nil {
		return 1
	}
	return 0
}

// PanicError is a panic recovered at a task boundary.
type PanicError struct {
	Task  string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s task panicked: %v", e.Task, e.Value)
}

// Option defines a functional option for Supervisor.
type Option func(*Supervisor)

// Supervisor runs the API and stream tasks under one shutdown coordinator.
type Supervisor struct {
	logger   logr.Logger
	api      Task
	stream   StreamTask
	prompt   io.Writer
	onExit   func(code int)
	onForce  func()
	signalCh <-chan os.Signal
	metrics  *metrics.Metrics
}

// New creates a supervisor. A task that is not configured is replaced by one
// that idles until shutdown.
func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		logger: logging.NopLogger(), // default NOP logger
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.api == nil {
		s.api = func(l *shutdown.Listener) error {
			<-l.Done()
			return nil
		}
	}
	if s.stream == nil {
		s.stream = func(l *shutdown.Listener) (milestone.Outcome, error) {
			<-l.Done()
			return milestone.Truncated, nil
		}
	}
	return s
}

// WithLogger sets a custom logger.
func WithLogger(l logr.Logger) Option {
	return func(s *Supervisor) {
		s.logger = l
	}
}

// WithAPI sets the API task.
func WithAPI(t Task) Option {
	return func(s *Supervisor) {
		s.api = t
	}
}

// WithStream sets the stream task.
func WithStream(t StreamTask) Option {
	return func(s *Supervisor) {
		s.stream = t
	}
}

// WithPrompt prints the shutdown prompt after the first signal. It writes
// to the first non-nil writer in w, or to os.Stderr.
func WithPrompt(enabled bool, w ...io.Writer) Option {
	return func(s *Supervisor) {
		if enabled {
			var wr io.Writer = os.Stderr
			for _, ww := range w {
				if ww != nil {
					wr = ww
					break
				}
			}
			s.prompt = wr
		}
	}
}

// WithOnExit receives the exit code of the finished run.
func WithOnExit(f func(code int)) Option {
	return func(s *Supervisor) {
		s.onExit = f
	}
}

// WithForceExit sets the callback run when a second signal arrives while
// the tasks are still shutting down.
func WithForceExit(f func()) Option {
	return func(s *Supervisor) {
		s.onForce = f
	}
}

// WithSignalChannel reads shutdown signals from ch instead of registering
// for SIGINT and SIGTERM.
func WithSignalChannel(ch <-chan os.Signal) Option {
	return func(s *Supervisor) {
		s.signalCh = ch
	}
}

// WithMetrics counts shutdowns by cause.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Supervisor) {
		s.metrics = m
	}
}
