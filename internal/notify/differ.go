package notify

import (
	"tailorshop/internal/model"
	"tailorshop/internal/timeconv"
)

// Differ compares consecutive full snapshots of the order set from one
// viewer's side and reports changes made by the other party.
//
// Attribution is last-writer-wins: only the modifiedBy of the incoming record
// is consulted, so when both parties write the same order between two
// snapshots the earlier writer's change is attributed to the later one.
// The tailor view additionally treats a strictly newer updatedAt or
// lastModified as a change; concurrent writes whose timestamps do not
// increase go unreported.
type Differ struct {
	viewer      model.Party
	prev        map[string]model.Order
	initialized bool
}

func NewDiffer(viewer model.Party) *Differ {
	return &Differ{viewer: viewer, prev: make(map[string]model.Order)}
}

// Reset forgets the baseline; the next snapshot is absorbed silently.
func (d *Differ) Reset() {
	d.prev = make(map[string]model.Order)
	d.initialized = false
}

// Initialized reports whether a baseline snapshot has been absorbed.
func (d *Differ) Initialized() bool {
	return d.initialized
}

// Known returns the number of orders retained from the last snapshot.
func (d *Differ) Known() int {
	return len(d.prev)
}

// Diff classifies orders against the retained snapshot and then replaces it
// with orders. It yields at most one event per order.
func (d *Differ) Diff(orders []model.Order) []Event {
	next := make(map[string]model.Order, len(orders))
	for _, o := range orders {
		next[o.ID] = o
	}

	if !d.initialized {
		d.prev = next
		d.initialized = true
		return nil
	}

	counterparty := d.viewer.Counterparty()
	var events []Event
	for _, o := range orders {
		old, seen := d.prev[o.ID]
		if o.ModifiedBy != counterparty {
			continue
		}
		if !seen {
			if d.viewer == model.PartyTailor {
				events = append(events, Event{Kind: KindNewOrder, Viewer: d.viewer, Order: o})
			}
			continue
		}
		if kind, ok := d.classify(old, o); ok {
			events = append(events, Event{Kind: kind, Viewer: d.viewer, Order: o})
		}
	}

	d.prev = next
	return events
}

func (d *Differ) classify(old, cur model.Order) (Kind, bool) {
	switch {
	case old.Status != cur.Status:
		return KindStatusChange, true
	case old.Progress != cur.Progress:
		return KindProgressChange, true
	}
	if d.viewer != model.PartyTailor {
		return 0, false
	}
	if timeconv.Millis(cur.UpdatedAt) > timeconv.Millis(old.UpdatedAt) ||
		timeconv.Millis(cur.LastModified) > timeconv.Millis(old.LastModified) {
		return KindCustomerEdit, true
	}
	return 0, false
}
