package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Phillezi/ledgerwatch/pkg/feed"
	"github.com/Phillezi/ledgerwatch/pkg/ledger"
)

func TestRootCommand_InvalidConfig(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"--feed", ""})
	cmd.SetOut(new(strings.Builder))
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "feed") {
		t.Fatalf("expected feed validation error, got %v", err)
	}
}

func TestRootCommand_ReplaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "updates.ndjson")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	enc := feed.NewEncoder(f)
	m := ledger.Marker{MilestoneIndex: 7, CreatedCount: 1}
	for _, rec := range []ledger.Record{
		ledger.BeginRecord(m),
		ledger.CreatedRecord(ledger.Output{OutputID: "out-7", Amount: 1}),
		ledger.EndRecord(m),
	} {
		if err := enc.Encode(rec); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	cmd := newRootCommand()
	cmd.SetArgs([]string{"--feed", path, "--api-listen", "127.0.0.1:0", "--prompt=false"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

func TestRootCommand_MalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "updates.ndjson")
	data := `{"kind":"end","marker":{"milestone_index":1,"consumed_count":0,"created_count":0}}` + "\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cmd := newRootCommand()
	cmd.SetArgs([]string{"--feed", path, "--api-listen", "127.0.0.1:0", "--prompt=false", "--metrics=false"})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "stream task failed") {
		t.Fatalf("expected stream failure, got %v", err)
	}
}
