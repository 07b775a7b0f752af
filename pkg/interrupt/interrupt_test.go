package interrupt_test

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/Phillezi/ledgerwatch/pkg/interrupt"
)

func TestNotify_RelaysSignal(t *testing.T) {
	ch, stop := interrupt.Notify(interrupt.WithSignals(syscall.SIGUSR1))
	defer stop()

	p, err := os.FindProcess(os.Getpid())
	if err != nil {
		t.Fatalf("find process: %v", err)
	}
	if err := p.Signal(syscall.SIGUSR1); err != nil {
		t.Fatalf("signal: %v", err)
	}

	select {
	case sig := <-ch:
		if sig != syscall.SIGUSR1 {
			t.Fatalf("unexpected signal %v", sig)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("signal not relayed")
	}
}

func TestDefaultSignals(t *testing.T) {
	if len(interrupt.DefaultSignals) != 2 {
		t.Fatalf("expected SIGINT and SIGTERM, got %v", interrupt.DefaultSignals)
	}
}
