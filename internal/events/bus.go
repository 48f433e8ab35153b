package events

import (
	"sync"
	"time"
)

type Topic string

const (
	TopicPoolBalance    Topic = "pool.balance"
	TopicPoolEmergency  Topic = "pool.emergency"
	TopicPayoutExecuted Topic = "payout.executed"
	TopicPayoutRefunded Topic = "payout.refunded"
	TopicSecurityAlert  Topic = "security.alert"
	TopicProposal       Topic = "multisig.proposal"
)

type Event struct {
	Topic   Topic       `json:"topic"`
	At      time.Time   `json:"at"`
	Payload interface{} `json:"payload"`
}

// Bus is a typed publish/subscribe channel registry. Consumers are declared
// through Subscribe rather than implicitly attached; a slow consumer drops
// events instead of blocking publishers.
type Bus struct {
	mu   sync.RWMutex
	subs map[Topic][]chan Event
}

func NewBus() *Bus {
	return &Bus{subs: make(map[Topic][]chan Event)}
}

// Subscribe returns a receive channel for the given topics and a cancel
// function that detaches and closes it.
func (b *Bus) Subscribe(topics ...Topic) (<-chan Event, func()) {
	ch := make(chan Event, 64)
	b.mu.Lock()
	for _, topic := range topics {
		b.subs[topic] = append(b.subs[topic], ch)
	}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		for _, topic := range topics {
			list := b.subs[topic]
			for i, c := range list {
				if c == ch {
					b.subs[topic] = append(list[:i], list[i+1:]...)
					break
				}
			}
		}
		b.mu.Unlock()
		close(ch)
	}
	return ch, cancel
}

func (b *Bus) Publish(topic Topic, payload interface{}) {
	ev := Event{Topic: topic, At: time.Now(), Payload: payload}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[topic] {
		select {
		case ch <- ev:
		default:
		}
	}
}
