// Package milestone consumes a ledger-update stream as a sequence of
// milestone batches. Every batch is a begin marker, the consumed records,
// the created records and an end marker repeating the begin marker.
package milestone

import (
	"context"
	"errors"
	"io"

	"github.com/Phillezi/ledgerwatch/pkg/ledger"
	"github.com/Phillezi/ledgerwatch/pkg/logging"
	"github.com/Phillezi/ledgerwatch/pkg/metrics"

	"github.com/go-logr/logr"
)

// Outcome tells why Run stopped.
type Outcome int

const (
	// Exhausted means the source ended or failed on its own.
	Exhausted Outcome = iota + 1
	// Truncated means the context was cancelled and the stream cut short.
	Truncated
)

func (o Outcome) String() string {
	switch o {
	case Exhausted:
		return "exhausted"
	case Truncated:
		return "truncated"
	default:
		return "unknown"
	}
}

// Batch summarises a milestone batch that passed validation.
type Batch struct {
	Index    uint32
	Consumed int
	Created  int
}

// ConsumedHandler is called once per consumed record.
type ConsumedHandler func(ctx context.Context, spent ledger.Spent) error

// CreatedHandler is called once per created record.
type CreatedHandler func(ctx context.Context, output ledger.Output) error

// BatchHandler is called once per completed batch, after its end marker.
type BatchHandler func(ctx context.Context, batch Batch)

// Option defines a functional option for Consumer.
type Option func(*Consumer)

// Consumer drives a ledger.Source through the milestone protocol.
type Consumer struct {
	logger     logr.Logger
	onConsumed ConsumedHandler
	onCreated  CreatedHandler
	onBatch    BatchHandler
	metrics    *metrics.Metrics
}

// NewConsumer creates a consumer. Without handlers, records are only logged.
func NewConsumer(opts ...Option) *Consumer {
	c := &Consumer{
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.onConsumed == nil {
		c.onConsumed = func(_ context.Context, s ledger.Spent) error {
			c.logger.V(1).Info("spent output", "output_id", s.Output.OutputID)
			return nil
		}
	}
	if c.onCreated == nil {
		c.onCreated = func(_ context.Context, o ledger.Output) error {
			c.logger.V(1).Info("created output", "output_id", o.OutputID)
			return nil
		}
	}
	return c
}

// WithLogger sets a custom logger.
func WithLogger(l logr.Logger) Option {
	return func(c *Consumer) {
		c.logger = l
	}
}

// WithConsumedHandler sets the handler for consumed records.
func WithConsumedHandler(h ConsumedHandler) Option {
	return func(c *Consumer) {
		c.onConsumed = h
	}
}

// WithCreatedHandler sets the handler for created records.
func WithCreatedHandler(h CreatedHandler) Option {
	return func(c *Consumer) {
		c.onCreated = h
	}
}

// WithBatchHandler sets a callback for completed batches.
func WithBatchHandler(h BatchHandler) Option {
	return func(c *Consumer) {
		c.onBatch = h
	}
}

// WithMetrics records consumed records and milestones.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Consumer) {
		c.metrics = m
	}
}

// Run reads src until it ends, fails, violates the protocol, or ctx is
// cancelled.
//
// When ctx is cancelled Run returns Truncated and a nil error, whatever batch
// was open is dropped. Otherwise it returns Exhausted together with the
// reason the stream stopped: nil for a clean end after a complete batch, a
// *StateError, an *UpstreamError or a *HandlerError.
func (c *Consumer) Run(ctx context.Context, src ledger.Source) (Outcome, error) {
	stream := takeUntil(ctx, src)
	p := &parser{c: c}

	var err error
	for {
		var rec ledger.Record
		rec, err = stream.Next()
		if err != nil {
			break
		}
		if err = p.step(ctx, rec); err != nil {
			// A handler giving up on cancellation cuts the stream like a
			// cancelled read does.
			stream.checkCut()
			break
		}
	}

	if stream.Truncated() {
		c.logger.Info("ledger stream closed due to shutdown signal", "phase", p.phase.String())
		return Truncated, nil
	}

	switch {
	case errors.Is(err, io.EOF):
		err = p.finish()
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrHandler):
	default:
		err = &UpstreamError{Err: err}
	}
	c.logger.Info("ledger stream closed unexpectedly", "error", err)
	return Exhausted, err
}

// until cuts a source short once its context is done.
type until struct {
	ctx context.Context
	src ledger.Source
	cut bool
}

func takeUntil(ctx context.Context, src ledger.Source) *until {
	return &until{ctx: ctx, src: src}
}

var errCut = errors.New("stream cut by cancellation")

// Next returns the next record. A record that arrives together with the
// cancellation is dropped.
func (u *until) Next() (ledger.Record, error) {
	if u.cut || u.ctx.Err() != nil {
		u.cut = true
		return ledger.Record{}, errCut
	}
	rec, err := u.src.Next(u.ctx)
	if u.ctx.Err() != nil {
		u.cut = true
		return ledger.Record{}, errCut
	}
	return rec, err
}

// checkCut marks the stream cut if the context is already done.
func (u *until) checkCut() {
	if u.ctx.Err() != nil {
		u.cut = true
	}
}

// Truncated reports whether the stream stopped because of the cancellation.
func (u *until) Truncated() bool { return u.cut }
