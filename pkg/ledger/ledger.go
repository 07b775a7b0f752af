// Package ledger defines the ledger-update records streamed by a node and the
// Source interface that produces them.
package ledger

import (
	"context"
	"fmt"
)

// OutputID identifies an output: the hex encoded transaction id followed by
// the output index.
type OutputID string

func (id OutputID) String() string { return string(id) }

// Output is an unspent output as booked by a milestone.
type Output struct {
	OutputID                 OutputID `json:"output_id"`
	BlockID                  string   `json:"block_id,omitempty"`
	Amount                   uint64   `json:"amount"`
	Address                  string   `json:"address,omitempty"`
	MilestoneIndexBooked     uint32   `json:"milestone_index_booked"`
	MilestoneTimestampBooked uint32   `json:"milestone_timestamp_booked"`
}

// Spent is an output consumed by a milestone.
type Spent struct {
	Output                  Output `json:"output"`
	TransactionIDSpent      string `json:"transaction_id_spent"`
	MilestoneIndexSpent     uint32 `json:"milestone_index_spent"`
	MilestoneTimestampSpent uint32 `json:"milestone_timestamp_spent"`
}

// Marker opens or closes the batch of a milestone.
type Marker struct {
	MilestoneIndex uint32 `json:"milestone_index"`
	ConsumedCount  int    `json:"consumed_count"`
	CreatedCount   int    `json:"created_count"`
}

func (m Marker) String() string {
	return fmt.Sprintf("milestone %d (%d consumed, %d created)", m.MilestoneIndex, m.ConsumedCount, m.CreatedCount)
}

// Kind is the kind of a Record.
type Kind int

const (
	KindUnknown Kind = iota
	KindBegin
	KindConsumed
	KindCreated
	KindEnd
)

var kindNames = map[Kind]string{
	KindUnknown:  "unknown",
	KindBegin:    "begin",
	KindConsumed: "consumed",
	KindCreated:  "created",
	KindEnd:      "end",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a wire name to a Kind. Unknown names map to KindUnknown.
func ParseKind(s string) Kind {
	for k, name := range kindNames {
		if name == s {
			return k
		}
	}
	return KindUnknown
}

// Record is one ledger update. Exactly one of the payload fields is set,
// according to Kind.
type Record struct {
	Kind   Kind
	Marker Marker
	Spent  Spent
	Output Output
}

// BeginRecord returns a begin marker record.
func BeginRecord(m Marker) Record { return Record{Kind: KindBegin, Marker: m} }

// EndRecord returns an end marker record.
func EndRecord(m Marker) Record { return Record{Kind: KindEnd, Marker: m} }

// ConsumedRecord returns a consumed output record.
func ConsumedRecord(s Spent) Record { return Record{Kind: KindConsumed, Spent: s} }

// CreatedRecord returns a created output record.
func CreatedRecord(o Output) Record { return Record{Kind: KindCreated, Output: o} }

// Begin returns the marker if r is a begin marker.
func (r Record) Begin() (Marker, bool) {
	return r.Marker, r.Kind == KindBegin
}

// End returns the marker if r is an end marker.
func (r Record) End() (Marker, bool) {
	return r.Marker, r.Kind == KindEnd
}

// Consumed returns the spent output if r is a consumed record.
func (r Record) Consumed() (Spent, bool) {
	return r.Spent, r.Kind == KindConsumed
}

// Created returns the output if r is a created record.
func (r Record) Created() (Output, bool) {
	return r.Output, r.Kind == KindCreated
}

// Source is a lazily produced sequence of records.
//
// Next blocks until the next record is available. It returns io.EOF once the
// sequence has ended, and must return promptly with ctx.Err() once ctx is
// done.
type Source interface {
	Next(ctx context.Context) (Record, error)
}

// SourceFunc adapts a function to a Source.
type SourceFunc func(ctx context.Context) (Record, error)

// Next calls f(ctx).
func (f SourceFunc) Next(ctx context.Context) (Record, error) { return f(ctx) }
