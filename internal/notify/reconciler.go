package notify

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"tailorshop/internal/model"
)

// Reconciler turns the stream of order snapshots seen by one viewer into
// notifications on that viewer's feed.
type Reconciler struct {
	mu      sync.Mutex
	viewer  model.Party
	differ  *Differ
	scanner *DueScanner
	feed    *Feed

	Now func() time.Time
	// OnNotify, if set, receives every non-empty batch after it is pushed to the feed.
	OnNotify func([]model.Notification)
}

// NewReconciler builds a reconciler for viewer. scanner may be nil to
// disable due-date warnings.
func NewReconciler(viewer model.Party, scanner *DueScanner, feed *Feed) *Reconciler {
	if feed == nil {
		feed = NewFeed()
	}
	return &Reconciler{
		viewer:  viewer,
		differ:  NewDiffer(viewer),
		scanner: scanner,
		feed:    feed,
		Now:     time.Now,
	}
}

func (r *Reconciler) Feed() *Feed {
	return r.feed
}

// Reset drops the baseline so the next snapshot produces no notifications.
// Due-date flags survive; they are per session, not per subscription.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.differ.Reset()
}

// Known returns the size of the retained snapshot.
func (r *Reconciler) Known() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.differ.Known()
}

// HandleSnapshot processes one full snapshot. A panic while processing is
// logged and swallowed so later snapshots are still handled.
func (r *Reconciler) HandleSnapshot(orders []model.Order) (created []model.Notification) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("snapshot processing failed", "viewer", r.viewer, "panic", fmt.Sprint(rec))
			created = nil
		}
	}()

	events := r.classify(orders)
	if len(events) == 0 {
		return nil
	}

	now := r.Now()
	created = make([]model.Notification, 0, len(events))
	for _, ev := range events {
		d := Synthesize(ev)
		created = append(created, model.Notification{
			ID:        uuid.NewString(),
			Type:      d.Type,
			Title:     d.Title,
			Message:   d.Message,
			OrderID:   ev.Order.ID,
			CreatedAt: now,
			Urgent:    d.Urgent,
		})
	}

	r.feed.Push(created...)
	if r.OnNotify != nil {
		r.OnNotify(created)
	}
	return created
}

func (r *Reconciler) classify(orders []model.Order) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	baseline := !r.differ.Initialized()
	events := r.differ.Diff(orders)
	if !baseline && r.scanner != nil {
		events = append(events, r.scanner.Scan(orders)...)
	}
	return events
}

// ForgetDue clears the due-date flag for an order that reached a terminal status.
func (r *Reconciler) ForgetDue(orderID string) {
	if r.scanner == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scanner.Forget(orderID)
}
