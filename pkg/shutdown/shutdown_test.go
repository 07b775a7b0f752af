package shutdown_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Phillezi/ledgerwatch/pkg/shutdown"
)

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestBroadcast_Idempotent(t *testing.T) {
	_, n, l := shutdown.New()
	defer l.Release()

	if n.Fired() {
		t.Fatal("expected broadcast not to have fired yet")
	}
	if isClosed(l.Done()) {
		t.Fatal("listener done before broadcast")
	}

	n.Broadcast()
	n.Broadcast() // should be safe
	n.Broadcast()

	if !n.Fired() {
		t.Fatal("expected Fired() after broadcast")
	}
	if !isClosed(l.Done()) {
		t.Fatal("listener not done after broadcast")
	}
}

func TestBroadcast_AllClonesResolveTogether(t *testing.T) {
	_, n, l := shutdown.New()

	const clones = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	woke := 0
	for range clones {
		c := l.Clone()
		wg.Go(func() {
			defer c.Release()
			<-c.Done()
			mu.Lock()
			woke++
			mu.Unlock()
		})
	}
	l.Release()

	time.Sleep(20 * time.Millisecond)
	n.Broadcast()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for clones to observe broadcast")
	}
	if woke != clones {
		t.Fatalf("expected %d listeners to wake, got %d", clones, woke)
	}
}

func TestListener_LateWaitResolvesImmediately(t *testing.T) {
	_, n, l := shutdown.New()
	defer l.Release()
	n.Broadcast()

	late := l.Clone()
	defer late.Release()
	if !isClosed(late.Done()) {
		t.Fatal("late listener should observe the broadcast without waiting")
	}
	if late.Context().Err() == nil {
		t.Fatal("late listener context should already be cancelled")
	}
}

func TestReceiver_RequestWakesRecv(t *testing.T) {
	r, _, l := shutdown.New()
	defer l.Release()

	got := make(chan shutdown.Report, 1)
	go func() {
		rep, ok := r.Recv(t.Context())
		if ok {
			got <- rep
		}
	}()

	time.Sleep(10 * time.Millisecond)
	l.RequestShutdown("component failed")

	select {
	case rep := <-got:
		if rep.Reason != "component failed" {
			t.Fatalf("unexpected reason %q", rep.Reason)
		}
		if rep.At.IsZero() {
			t.Fatal("expected report timestamp")
		}
	case <-time.After(time.Second):
		t.Fatal("Recv did not wake on request")
	}
}

func TestReceiver_ClosesOnlyWhenListenerFree(t *testing.T) {
	r, _, l := shutdown.New()
	c := l.Clone()

	l.Release()
	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Millisecond)
	defer cancel()
	if _, ok := r.Recv(ctx); ok {
		t.Fatal("unexpected report")
	}
	if ctx.Err() == nil {
		t.Fatal("Recv returned closed while a clone is still alive")
	}

	c.RequestShutdown("last words")
	c.Release()

	// Pending request is delivered before closure.
	rep, ok := r.Recv(t.Context())
	if !ok || rep.Reason != "last words" {
		t.Fatalf("expected pending report before closure, got %+v ok=%v", rep, ok)
	}
	if _, ok := r.Recv(t.Context()); ok {
		t.Fatal("expected closed receiver")
	}
	// Closed is permanent.
	if _, ok := r.Recv(t.Context()); ok {
		t.Fatal("expected receiver to stay closed")
	}
	if t.Context().Err() != nil {
		t.Fatal("closure must not come from context")
	}
}

func TestListener_ReleaseIdempotent(t *testing.T) {
	r, _, l := shutdown.New()
	c := l.Clone()
	c.Release()
	c.Release() // must not drop the count for l
	c.RequestShutdown("ignored")

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	if _, ok := r.Recv(ctx); ok {
		t.Fatal("request via released listener should be dropped")
	}
	if ctx.Err() == nil {
		t.Fatal("receiver closed while original listener alive")
	}
	if r.Pending() != 0 {
		t.Fatalf("expected no pending reports, got %d", r.Pending())
	}

	released := c.Clone()
	released.RequestShutdown("also ignored")
	if r.Pending() != 0 {
		t.Fatal("clone of released listener should be released")
	}
	l.Release()
}

func TestNotifier_WaitForListeners(t *testing.T) {
	_, n, l := shutdown.New()
	c := l.Clone()

	go func() {
		<-l.Done()
		time.Sleep(20 * time.Millisecond)
		l.Release()
	}()
	go func() {
		<-c.Done()
		c.Release()
	}()

	n.Broadcast()

	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	if err := n.Wait(ctx); err != nil {
		t.Fatalf("Wait returned %v", err)
	}
}

func TestNotifier_WaitHonoursContext(t *testing.T) {
	_, n, l := shutdown.New()
	defer l.Release()
	n.Broadcast()

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	if err := n.Wait(ctx); err == nil {
		t.Fatal("expected Wait to fail while a listener is held")
	}
}

func TestReceiver_ConcurrentRequests(t *testing.T) {
	r, _, l := shutdown.New()

	const N = 50
	var wg sync.WaitGroup
	for range N {
		c := l.Clone()
		wg.Go(func() {
			defer c.Release()
			c.RequestShutdown("worker")
		})
	}
	l.Release()
	wg.Wait()

	count := 0
	for {
		if _, ok := r.Recv(t.Context()); !ok {
			break
		}
		count++
	}
	if count != N {
		t.Fatalf("expected %d reports, got %d", N, count)
	}
}
