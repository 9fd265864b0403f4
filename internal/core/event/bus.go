package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/centralita-ai/voice-orchestrator/pkg/logger"
	"go.uber.org/zap"
)

// Handler handles one event.
type Handler func(event *Event)

// Bus is the per-session event bus. It carries the cyclic edges of the
// pipeline (playback feeding back into ingress for interruption detection)
// so component ownership stays directional.
type Bus interface {
	Publish(event *Event) error
	Subscribe(t Type, handler Handler)
	Close() error
}

// InProcBus is the in-process implementation of Bus.
//
// Handlers run synchronously in publish order on the publisher's
// goroutine; the per-session pipeline is cooperative and relies on this
// ordering (an interruption published before a clarification is observed
// first). Handler panics are contained and logged.
type InProcBus struct {
	mu          sync.RWMutex
	subscribers map[Type][]Handler
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewBus creates a session event bus.
func NewBus() *InProcBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &InProcBus{
		subscribers: make(map[Type][]Handler),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Publish delivers the event to every subscriber of its type.
func (b *InProcBus) Publish(event *Event) error {
	select {
	case <-b.ctx.Done():
		return fmt.Errorf("event bus is closed")
	default:
	}

	b.mu.RLock()
	handlers := make([]Handler, len(b.subscribers[event.Type]))
	copy(handlers, b.subscribers[event.Type])
	b.mu.RUnlock()

	for _, h := range handlers {
		b.invoke(h, event)
	}
	return nil
}

func (b *InProcBus) invoke(h Handler, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Base().Error("event handler panic",
				zap.String("type", string(event.Type)),
				zap.String("call_id", event.CallID),
				zap.Any("panic", r))
		}
	}()
	h(event)
}

// Subscribe registers a handler for events of type t.
func (b *InProcBus) Subscribe(t Type, handler Handler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	b.subscribers[t] = append(b.subscribers[t], handler)
	b.mu.Unlock()
}

// Close shuts the bus down; further publishes fail.
func (b *InProcBus) Close() error {
	b.cancel()
	b.mu.Lock()
	b.subscribers = make(map[Type][]Handler)
	b.mu.Unlock()
	return nil
}
