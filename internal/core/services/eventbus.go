package services

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type EventType string

const (
	EventTypeRunStart EventType = "run_start"
	EventTypeStage    EventType = "stage"
	EventTypeRunEnd   EventType = "run_end"
	EventTypeHistory  EventType = "history"
)

type Event struct {
	RunID     string
	Type      EventType
	Data      string // JSON payload
	Timestamp int64
}

// globalKey receives every event regardless of run.
const globalKey = "*"

type EventBus struct {
	logger *slog.Logger
	mu     sync.RWMutex
	subs   map[string][]chan Event // Key: RunID or globalKey
}

func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{
		logger: logger,
		subs:   make(map[string][]chan Event),
	}
}

// Subscribe returns a channel that receives events for a specific run
func (b *EventBus) Subscribe(runID string) (<-chan Event, func()) {
	return b.subscribe(runID)
}

// SubscribeGlobal returns a channel that receives every published event.
func (b *EventBus) SubscribeGlobal() (<-chan Event, func()) {
	return b.subscribe(globalKey)
}

func (b *EventBus) subscribe(key string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 100) // Buffer to prevent blocking publisher
	b.subs[key] = append(b.subs[key], ch)

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()

			subscribers := b.subs[key]
			for i, sub := range subscribers {
				if sub == ch {
					close(ch)
					b.subs[key] = append(subscribers[:i:i], subscribers[i+1:]...)
					break
				}
			}
			if len(b.subs[key]) == 0 {
				delete(b.subs, key)
			}
		})
	}

	return ch, unsub
}

// Publish sends an event to the run's subscribers and to global subscribers
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	b.deliver(b.subs[e.RunID], e)
	if e.RunID != globalKey {
		b.deliver(b.subs[globalKey], e)
	}
}

// HistoryChanged tells global subscribers the wallpaper history now holds size entries.
func (b *EventBus) HistoryChanged(size int) {
	b.Publish(Event{
		Type:      EventTypeHistory,
		Data:      fmt.Sprintf(`{"size":%d}`, size),
		Timestamp: time.Now().UnixMilli(),
	})
}

func (b *EventBus) deliver(subscribers []chan Event, e Event) {
	for _, ch := range subscribers {
		select {
		case ch <- e:
		default:
			// If channel is full, drop event to prevent blocking application
			b.logger.Warn("event bus channel full, dropping event", "run_id", e.RunID, "type", e.Type)
		}
	}
}
