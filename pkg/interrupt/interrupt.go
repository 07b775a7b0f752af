// Package interrupt is the OS signal source of the process.
package interrupt

import (
	"os"
	"os/signal"
	"syscall"
)

// DefaultSignals are the signals that ask the process to terminate.
var DefaultSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}

type config struct {
	signals []os.Signal
	buffer  int
}

// Option configures Notify.
type Option func(c *config)

// WithSignals replaces DefaultSignals.
func WithSignals(sigs ...os.Signal) Option {
	return func(c *config) {
		c.signals = sigs
	}
}

// WithBuffer sets how many signals are buffered before further ones are
// dropped. The default of 2 keeps a second Ctrl+C while the first one is
// being handled.
func WithBuffer(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.buffer = n
		}
	}
}

// Notify starts relaying interrupt and terminate signals to the returned
// channel. Calling stop restores the default signal behaviour.
func Notify(opts ...Option) (ch <-chan os.Signal, stop func()) {
	c := config{
		signals: DefaultSignals,
		buffer:  2,
	}
	for _, opt := range opts {
		opt(&c)
	}

	sigCh := make(chan os.Signal, c.buffer)
	signal.Notify(sigCh, c.signals...)
	return sigCh, func() { signal.Stop(sigCh) }
}
