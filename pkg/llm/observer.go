package llm

import (
	"context"
	"time"
)

// Observer is notified after every provider call, successful or not.
// Implementations must not block.
type Observer interface {
	OnCall(ctx context.Context, event CallEvent)
}

// CallEvent describes one provider call.
type CallEvent struct {
	Provider string
	Model    string

	// Fallback is set when the call was the retry with the fallback model.
	Fallback bool

	// Usage is zero when the call failed.
	Usage    Usage
	Err      error
	Duration time.Duration
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, event CallEvent)

// OnCall implements Observer.
func (f ObserverFunc) OnCall(ctx context.Context, event CallEvent) {
	f(ctx, event)
}

// MultiObserver dispatches each event to every observer in order.
type MultiObserver []Observer

// OnCall implements Observer.
func (m MultiObserver) OnCall(ctx context.Context, event CallEvent) {
	for _, obs := range m {
		if obs != nil {
			obs.OnCall(ctx, event)
		}
	}
}
