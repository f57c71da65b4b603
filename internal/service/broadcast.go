package service

import "sync"

// Broadcaster wakes every listener after an order write so open
// subscriptions refresh without waiting for the next poll.
type Broadcaster struct {
	mu        sync.Mutex
	listeners map[chan struct{}]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{listeners: make(map[chan struct{}]struct{})}
}

// Listen returns a channel that receives a value after writes, coalescing
// bursts, and a function that unregisters it.
func (b *Broadcaster) Listen() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	b.listeners[ch] = struct{}{}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.listeners, ch)
		b.mu.Unlock()
	}
}

func (b *Broadcaster) Notify() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
