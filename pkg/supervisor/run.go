package supervisor

import (
	"context"
	"fmt"
	"os"

	"github.com/Phillezi/ledgerwatch/pkg/interrupt"
	"github.com/Phillezi/ledgerwatch/pkg/milestone"
	"github.com/Phillezi/ledgerwatch/pkg/shutdown"
)

type streamResult struct {
	outcome milestone.Outcome
	err     error
}

// Run starts both tasks and blocks until they have shut down.
//
// Shutdown starts on whichever happens first: a signal, a shutdown request
// from a task, the API task returning, the stream task returning or ctx being
// done. A stream that ends on its own or fails requests shutdown itself.
// Run returns a non-nil error only when the stream task failed.
func (s *Supervisor) Run(ctx context.Context) (Summary, error) {
	sigCh := s.signalCh
	if sigCh == nil {
		// Default: register OS signals
		c, stop := interrupt.Notify()
		defer stop()
		sigCh = c
	}

	recv, notifier, listener := shutdown.New()

	apiDone := make(chan error, 1)
	streamDone := make(chan streamResult, 1)

	// A spare listener would keep the receiver open forever, so the last
	// task gets the original instead of a clone.
	apiListener := listener.Clone()
	go func() { apiDone <- s.runAPI(apiListener) }()
	go func() { streamDone <- s.runStream(listener) }()

	firstReport := make(chan shutdown.Report, 1)
	recvDone := make(chan struct{})
	go func() {
		defer close(recvDone)
		if r, ok := recv.Recv(context.Background()); ok {
			firstReport <- r
		}
	}()

	var (
		sum            Summary
		apiFinished    bool
		streamFinished bool
		signalled      bool
	)

	select {
	case sig, ok := <-sigCh:
		sum.Cause = CauseSignal
		signalled = ok
		s.logger.Info("received shutdown signal", "signal", sig)
	case r := <-firstReport:
		sum.Cause = CauseRequest
		sum.Requests++
		s.logger.Info("received shutdown request from component", "reason", r.Reason)
	case err := <-apiDone:
		sum.Cause = CauseAPI
		sum.APIErr = err
		apiFinished = true
	case res := <-streamDone:
		sum.Cause = CauseStream
		sum.Outcome, sum.StreamErr = res.outcome, res.err
		streamFinished = true
	case <-ctx.Done():
		sum.Cause = CauseContext
		s.logger.Info("context canceled externally")
	}
	s.metrics.Shutdown(sum.Cause.String())

	// Send the shutdown broadcast to every task holding a listener.
	notifier.Broadcast()

	forced := make(chan struct{})
	defer close(forced)
	if signalled {
		if s.prompt != nil {
			gracefulShutdownPrompt(s.prompt)
		}
		go s.watchSecondSignal(sigCh, forced)
	}

	if err := notifier.Wait(context.Background()); err != nil {
		s.logger.Error(err, "waiting for tasks to release their listeners")
	}

	if !apiFinished {
		sum.APIErr = <-apiDone
	}
	if !streamFinished {
		res := <-streamDone
		sum.Outcome, sum.StreamErr = res.outcome, res.err
	}
	if sum.APIErr != nil {
		s.logger.Error(sum.APIErr, "api task failed")
	}

	// Every listener is released, so the receiver drains and closes.
	<-recvDone
	select {
	case <-firstReport:
		sum.Requests++
	default:
	}
	for {
		if _, ok := recv.Recv(context.Background()); !ok {
			break
		}
		sum.Requests++
	}

	s.logger.Info("shutdown complete", "cause", sum.Cause.String(), "outcome", sum.Outcome.String(), "requests", sum.Requests)

	if s.onExit != nil {
		s.onExit(sum.ExitCode())
	}

	if sum.StreamErr != nil {
		return sum, fmt.Errorf("stream task failed: %w", sum.StreamErr)
	}
	return sum, nil
}

func (s *Supervisor) runAPI(l *shutdown.Listener) (err error) {
	defer l.Release()
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Task: "api", Value: v}
		}
	}()
	return s.api(l)
}

func (s *Supervisor) runStream(l *shutdown.Listener) (res streamResult) {
	defer l.Release()
	defer func() {
		if v := recover(); v != nil {
			res = streamResult{outcome: milestone.Exhausted, err: &PanicError{Task: "stream", Value: v}}
		}
		if res.err != nil {
			s.logger.Error(res.err, "stream task failed")
		}
		if res.outcome != milestone.Truncated || res.err != nil {
			s.logger.Info("ledger stream closed unexpectedly, requesting shutdown")
			l.RequestShutdown("ledger stream " + res.outcome.String())
		}
	}()
	outcome, err := s.stream(l)
	return streamResult{outcome: outcome, err: err}
}

// watchSecondSignal runs the force exit hook when another signal arrives
// before Run is done.
func (s *Supervisor) watchSecondSignal(sigCh <-chan os.Signal, done <-chan struct{}) {
	select {
	case sig, ok := <-sigCh:
		if !ok {
			return
		}
		s.logger.Info("received second shutdown signal, forcing exit", "signal", sig)
		if s.onForce != nil {
			s.onForce()
		}
	case <-done:
	}
}
