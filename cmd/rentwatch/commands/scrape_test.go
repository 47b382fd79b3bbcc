package commands

import (
	"context"
	"testing"
	"time"
)

func TestStopOnFirstSignal_StopsThenReleases(t *testing.T) {
	sigCtx, raise := context.WithCancel(context.Background())
	defer raise()

	var calls []string
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		stopOnFirstSignal(sigCtx,
			func() { calls = append(calls, "release") },
			func() { calls = append(calls, "stop") },
			make(chan struct{}))
	}()

	raise()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("stopOnFirstSignal did not return after the signal")
	}

	if len(calls) != 2 || calls[0] != "stop" || calls[1] != "release" {
		t.Errorf("calls = %v, want [stop release]", calls)
	}
}

func TestStopOnFirstSignal_RunFinishedFirst(t *testing.T) {
	done := make(chan struct{})
	close(done)

	var stopped, released bool
	stopOnFirstSignal(context.Background(),
		func() { released = true },
		func() { stopped = true },
		done)

	if stopped || released {
		t.Errorf("stopped = %v, released = %v, want neither", stopped, released)
	}
}
