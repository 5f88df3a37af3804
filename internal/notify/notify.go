// Package notify provides the in-process notification bus for scan events.
// The check-in engine publishes fire-and-forget; transports (websocket
// pushers, display boards) subscribe. A slow subscriber never blocks or
// fails a check-in: deliveries to a full channel are dropped.
package notify

import (
	"sync"

	"github.com/tbourn/go-checkin-station/internal/domain"
)

// NewScan announces a freshly recorded check-in attempt.
type NewScan struct {
	ScanLog domain.ScanLog
	Event   domain.Event
}

// Bus fans NewScan events out to subscribers.
//
// The zero value is ready to use and safe for concurrent use.
type Bus struct {
	mu   sync.RWMutex
	subs []chan NewScan
}

// Subscribe registers a new subscriber with the given channel buffer and
// returns its receive side. Subscribers that fall behind lose events.
func (b *Bus) Subscribe(buffer int) <-chan NewScan {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan NewScan, buffer)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Publish delivers ev to every subscriber without blocking.
func (b *Bus) Publish(ev NewScan) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
