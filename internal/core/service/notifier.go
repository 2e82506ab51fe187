package service

import (
	"sync"

	"github.com/tommypurcell/autoscape-api/internal/core/ports"
)

const subscriberBuffer = 8

// BalanceBroker is an in-process pub/sub channel for balance changes. It
// replaces ambient global notifications: the ledger publishes, the credit
// stream endpoint subscribes per principal.
type BalanceBroker struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan ports.BalanceEvent
}

func NewBalanceBroker() *BalanceBroker {
	return &BalanceBroker{subs: make(map[string]map[int]chan ports.BalanceEvent)}
}

// Publish delivers the event to every subscriber of its principal. Slow
// subscribers lose events rather than block the ledger.
func (b *BalanceBroker) Publish(event ports.BalanceEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs[event.Principal] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe registers a listener for one principal's balance changes. The
// returned cancel function must be called to release the channel.
func (b *BalanceBroker) Subscribe(principalKey string) (<-chan ports.BalanceEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	ch := make(chan ports.BalanceEvent, subscriberBuffer)
	if b.subs[principalKey] == nil {
		b.subs[principalKey] = make(map[int]chan ports.BalanceEvent)
	}
	b.subs[principalKey][id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if subs, ok := b.subs[principalKey]; ok {
			if ch, ok := subs[id]; ok {
				delete(subs, id)
				close(ch)
			}
			if len(subs) == 0 {
				delete(b.subs, principalKey)
			}
		}
	}
	return ch, cancel
}
