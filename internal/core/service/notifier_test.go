package service

import (
	"testing"

	"github.com/tommypurcell/autoscape-api/internal/core/ports"
)

func TestBalanceBroker_PublishSubscribe(t *testing.T) {
	broker := NewBalanceBroker()

	ch, cancel := broker.Subscribe("user_1")
	defer cancel()

	broker.Publish(ports.BalanceEvent{Principal: "user_1", Balance: 2, Cause: "reserve"})

	select {
	case ev := <-ch:
		if ev.Balance != 2 || ev.Cause != "reserve" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	default:
		t.Fatalf("expected an event")
	}
}

func TestBalanceBroker_PerPrincipalIsolation(t *testing.T) {
	broker := NewBalanceBroker()

	ch, cancel := broker.Subscribe("user_1")
	defer cancel()

	broker.Publish(ports.BalanceEvent{Principal: "user_2", Balance: 5, Cause: "grant"})

	select {
	case ev := <-ch:
		t.Fatalf("received another principal's event: %+v", ev)
	default:
	}
}

func TestBalanceBroker_CancelClosesChannel(t *testing.T) {
	broker := NewBalanceBroker()

	ch, cancel := broker.Subscribe("user_1")
	cancel()

	if _, open := <-ch; open {
		t.Fatalf("channel must be closed after cancel")
	}

	// Publishing after cancel must not panic.
	broker.Publish(ports.BalanceEvent{Principal: "user_1", Balance: 1, Cause: "refund"})

	// Double cancel is safe.
	cancel()
}

func TestBalanceBroker_SlowSubscriberDropsEvents(t *testing.T) {
	broker := NewBalanceBroker()

	ch, cancel := broker.Subscribe("user_1")
	defer cancel()

	// Overfill the buffer; Publish must never block.
	for i := 0; i < subscriberBuffer+5; i++ {
		broker.Publish(ports.BalanceEvent{Principal: "user_1", Balance: i, Cause: "grant"})
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
			continue
		default:
		}
		break
	}
	if received != subscriberBuffer {
		t.Fatalf("expected %d buffered events, got %d", subscriberBuffer, received)
	}
}
