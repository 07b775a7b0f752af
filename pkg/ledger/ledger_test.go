package ledger_test

import (
	"testing"

	"github.com/Phillezi/ledgerwatch/pkg/ledger"
)

func TestParseKind(t *testing.T) {
	for _, k := range []ledger.Kind{ledger.KindBegin, ledger.KindConsumed, ledger.KindCreated, ledger.KindEnd} {
		if got := ledger.ParseKind(k.String()); got != k {
			t.Fatalf("ParseKind(%q) = %v, want %v", k.String(), got, k)
		}
	}
	if got := ledger.ParseKind("milestone"); got != ledger.KindUnknown {
		t.Fatalf("expected unknown kind, got %v", got)
	}
}

func TestRecordAccessors(t *testing.T) {
	m := ledger.Marker{MilestoneIndex: 7, ConsumedCount: 1, CreatedCount: 2}

	if _, ok := ledger.BeginRecord(m).End(); ok {
		t.Fatal("begin marker decoded as end marker")
	}
	if got, ok := ledger.EndRecord(m).End(); !ok || got != m {
		t.Fatalf("end marker not decoded: %+v ok=%v", got, ok)
	}

	out := ledger.Output{OutputID: "0xab00", Amount: 10}
	if _, ok := ledger.CreatedRecord(out).Consumed(); ok {
		t.Fatal("created record decoded as consumed")
	}
	if got, ok := ledger.ConsumedRecord(ledger.Spent{Output: out}).Consumed(); !ok || got.Output.OutputID != "0xab00" {
		t.Fatalf("consumed record not decoded: %+v ok=%v", got, ok)
	}
}
