// Package logging builds the logr.Logger used across ledgerwatch.
package logging

import (
	"io"
	"log"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

// NopLogger returns a logr.Logger that discards everything.
// Packages use it when no logger is configured.
func NopLogger() logr.Logger {
	return logr.New(nopLogSink{})
}

// New returns a stdr backed logger writing to w (os.Stderr when nil) that
// emits V-levels up to verbosity.
//
// The verbosity of stdr is process wide: every call to New sets it for all
// stdr loggers, including ones returned earlier.
func New(w io.Writer, verbosity int) logr.Logger {
	if w == nil {
		w = os.Stderr
	}
	stdr.SetVerbosity(verbosity)
	return stdr.NewWithOptions(log.New(w, "", log.LstdFlags|log.Lmicroseconds), stdr.Options{LogCaller: stdr.Error})
}

// nopLogSink implements logr.LogSink and discards all log messages.
type nopLogSink struct{}

func (nopLogSink) Init(logr.RuntimeInfo) {}

// Enabled is always false so callers can skip building values.
func (nopLogSink) Enabled(int) bool { return false }

func (nopLogSink) Info(int, string, ...any) {}

func (nopLogSink) Error(error, string, ...any) {}

func (n nopLogSink) WithValues(...any) logr.LogSink { return n }

func (n nopLogSink) WithName(string) logr.LogSink { return n }
