package notify

import (
	"sync"

	"tailorshop/internal/model"
)

const FeedCapacity = 50

// Feed holds the newest notifications first, dropping the oldest past FeedCapacity.
type Feed struct {
	mu     sync.Mutex
	items  []model.Notification
	unread int
}

func NewFeed() *Feed {
	return &Feed{}
}

// Push prepends batch, keeping its order.
func (f *Feed) Push(batch ...model.Notification) {
	if len(batch) == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	items := make([]model.Notification, 0, min(len(batch)+len(f.items), FeedCapacity))
	items = append(items, batch...)
	items = append(items, f.items...)
	if len(items) > FeedCapacity {
		items = items[:FeedCapacity]
	}
	f.items = items
	f.unread = f.countUnread()
}

// List returns a copy of the feed, newest first.
func (f *Feed) List() []model.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Notification, len(f.items))
	copy(out, f.items)
	return out
}

func (f *Feed) Unread() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unread
}

func (f *Feed) MarkAllRead() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		f.items[i].Read = true
	}
	f.unread = 0
}

// Dismiss removes the notification with id and reports whether it existed.
func (f *Feed) Dismiss(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, n := range f.items {
		if n.ID != id {
			continue
		}
		f.items = append(f.items[:i], f.items[i+1:]...)
		if !n.Read && f.unread > 0 {
			f.unread--
		}
		return true
	}
	return false
}

func (f *Feed) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = nil
	f.unread = 0
}

func (f *Feed) countUnread() int {
	n := 0
	for _, it := range f.items {
		if !it.Read {
			n++
		}
	}
	return n
}
