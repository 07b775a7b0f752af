package milestone

import (
	"context"

	"github.com/Phillezi/ledgerwatch/pkg/ledger"
)

type phase int

const (
	awaitBegin phase = iota
	consumedPhase
	createdPhase
	awaitEnd
)

func (p phase) String() string {
	switch p {
	case awaitBegin:
		return "await-begin"
	case consumedPhase:
		return "consumed-phase"
	case createdPhase:
		return "created-phase"
	case awaitEnd:
		return "await-end"
	default:
		return "unknown"
	}
}

// parser holds the state of the open batch. It has one transition method
// per phase.
type parser struct {
	c     *Consumer
	phase phase
	open  ledger.Marker
	seen  int
}

func (p *parser) step(ctx context.Context, rec ledger.Record) error {
	switch p.phase {
	case awaitBegin:
		return p.awaitBegin(rec)
	case consumedPhase:
		return p.consumed(ctx, rec)
	case createdPhase:
		return p.created(ctx, rec)
	case awaitEnd:
		return p.awaitEnd(ctx, rec)
	}
	return p.fail(rec, "unknown phase")
}

func (p *parser) awaitBegin(rec ledger.Record) error {
	m, ok := rec.Begin()
	if !ok {
		return p.fail(rec, "expected begin marker")
	}
	if m.ConsumedCount < 0 || m.CreatedCount < 0 {
		return &StateError{Phase: p.phase.String(), Milestone: m.MilestoneIndex, Got: rec.Kind, Reason: "negative record count"}
	}
	p.c.logger.Info("received begin of milestone",
		"milestone", m.MilestoneIndex, "consumed", m.ConsumedCount, "created", m.CreatedCount)
	p.c.metrics.Record(ledger.KindBegin)

	p.open = m
	p.enter(consumedPhase)
	return nil
}

func (p *parser) consumed(ctx context.Context, rec ledger.Record) error {
	s, ok := rec.Consumed()
	if !ok {
		return p.fail(rec, "expected consumed record")
	}
	if err := p.c.onConsumed(ctx, s); err != nil {
		return &HandlerError{Kind: ledger.KindConsumed, OutputID: s.Output.OutputID, Err: err}
	}
	p.c.metrics.Record(ledger.KindConsumed)
	p.seen++
	p.advance()
	return nil
}

func (p *parser) created(ctx context.Context, rec ledger.Record) error {
	o, ok := rec.Created()
	if !ok {
		return p.fail(rec, "expected created record")
	}
	if err := p.c.onCreated(ctx, o); err != nil {
		return &HandlerError{Kind: ledger.KindCreated, OutputID: o.OutputID, Err: err}
	}
	p.c.metrics.Record(ledger.KindCreated)
	p.seen++
	p.advance()
	return nil
}

func (p *parser) awaitEnd(ctx context.Context, rec ledger.Record) error {
	m, ok := rec.End()
	if !ok {
		return p.fail(rec, "expected end marker")
	}
	if m != p.open {
		return p.fail(rec, "end marker "+m.String()+" does not match begin marker "+p.open.String())
	}
	p.c.logger.Info("received end of milestone",
		"milestone", m.MilestoneIndex, "consumed", m.ConsumedCount, "created", m.CreatedCount)
	p.c.metrics.Record(ledger.KindEnd)
	p.c.metrics.Milestone(m.MilestoneIndex)
	if p.c.onBatch != nil {
		p.c.onBatch(ctx, Batch{Index: m.MilestoneIndex, Consumed: m.ConsumedCount, Created: m.CreatedCount})
	}

	p.open = ledger.Marker{}
	p.phase = awaitBegin
	return nil
}

// finish is called when the source ends.
func (p *parser) finish() error {
	if p.phase == awaitBegin {
		return nil
	}
	return &StateError{Phase: p.phase.String(), Milestone: p.open.MilestoneIndex, Got: ledger.KindUnknown, Reason: "source ended inside batch"}
}

func (p *parser) enter(next phase) {
	p.phase = next
	p.seen = 0
	p.advance()
}

// advance skips every phase whose record count has been met.
func (p *parser) advance() {
	switch {
	case p.phase == consumedPhase && p.seen == p.open.ConsumedCount:
		p.c.logger.V(1).Info("switching to created outputs", "milestone", p.open.MilestoneIndex)
		p.enter(createdPhase)
	case p.phase == createdPhase && p.seen == p.open.CreatedCount:
		p.enter(awaitEnd)
	}
}

func (p *parser) fail(rec ledger.Record, reason string) error {
	return &StateError{Phase: p.phase.String(), Milestone: p.open.MilestoneIndex, Got: rec.Kind, Reason: reason}
}
