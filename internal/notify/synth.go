package notify

import (
	"fmt"

	"tailorshop/internal/model"
)

type Kind int

const (
	KindNewOrder Kind = iota + 1
	KindStatusChange
	KindProgressChange
	KindCustomerEdit
	KindDueSoon
)

// Event is a classified change produced by the Differ or the DueScanner.
type Event struct {
	Kind   Kind
	Viewer model.Party
	Order  model.Order
	// DaysUntilDue is only set for KindDueSoon.
	DaysUntilDue int
	Urgent       bool
}

// Draft is the user-facing part of a notification before it gets an id and timestamp.
type Draft struct {
	Type    model.NotificationType
	Title   string
	Message string
	Urgent  bool
}

type statusEntry struct {
	typ    model.NotificationType
	title  string
	phrase string
	urgent bool
}

var statusTable = map[model.Status]statusEntry{
	model.StatusConfirmed:  {model.NotifyStatusConfirmed, "Order Confirmed", "has been confirmed", false},
	model.StatusInProgress: {model.NotifyOrderUpdated, "Work Started", "is now in progress", false},
	model.StatusReady:      {model.NotifyStatusReady, "Order Ready!", "is ready for pickup", true},
	model.StatusDelivered:  {model.NotifyStatusDelivered, "Order Delivered", "has been delivered", false},
	model.StatusCancelled:  {model.NotifyStatusCancelled, "Order Cancelled", "has been cancelled", true},
	model.StatusPending:    {model.NotifyOrderUpdated, "Order Back to Pending", "is pending again", false},
}

// Synthesize maps an event to its notification text. Unknown kinds and
// statuses fall back to a generic update instead of failing.
func Synthesize(ev Event) Draft {
	o := ev.Order
	switch ev.Kind {
	case KindNewOrder:
		return Draft{
			Type:    model.NotifyNewOrder,
			Title:   "New Order Received",
			Message: fmt.Sprintf("New order from %s - %s", o.DisplayCustomer(), o.DisplayGarment()),
		}
	case KindStatusChange:
		return statusDraft(ev)
	case KindProgressChange:
		return Draft{
			Type:    model.NotifyProgressUpdate,
			Title:   "Progress Update",
			Message: fmt.Sprintf("%s is now %d%% complete", subject(ev), o.Progress),
		}
	case KindCustomerEdit:
		return Draft{
			Type:    model.NotifyCustomerUpdate,
			Title:   "Order Updated",
			Message: fmt.Sprintf("%s updated their order - %s", o.DisplayCustomer(), o.DisplayGarment()),
		}
	case KindDueSoon:
		return dueDraft(ev)
	}
	return Draft{
		Type:    model.NotifyOrderUpdated,
		Title:   "Order Updated",
		Message: fmt.Sprintf("%s was updated", subject(ev)),
	}
}

func statusDraft(ev Event) Draft {
	entry, ok := statusTable[ev.Order.Status]
	if !ok {
		return Draft{
			Type:    model.NotifyOrderUpdated,
			Title:   "Order Status Updated",
			Message: fmt.Sprintf("%s status changed to %s", subject(ev), ev.Order.Status),
		}
	}
	return Draft{
		Type:    entry.typ,
		Title:   entry.title,
		Message: fmt.Sprintf("%s %s", subject(ev), entry.phrase),
		Urgent:  entry.urgent,
	}
}

func dueDraft(ev Event) Draft {
	title := "Order Due Soon"
	if ev.Urgent {
		title = "Order Due Tomorrow!"
	}
	var when string
	switch ev.DaysUntilDue {
	case 0:
		when = "today"
	case 1:
		when = "tomorrow"
	default:
		when = fmt.Sprintf("in %d days", ev.DaysUntilDue)
	}
	return Draft{
		Type:    model.NotifyDueSoon,
		Title:   title,
		Message: fmt.Sprintf("%s's order is due %s - %s", ev.Order.DisplayCustomer(), when, ev.Order.DisplayGarment()),
		Urgent:  ev.Urgent,
	}
}

// subject names the order from the viewer's side of the counter.
func subject(ev Event) string {
	if ev.Viewer == model.PartyTailor {
		return fmt.Sprintf("%s's %s order", ev.Order.DisplayCustomer(), ev.Order.DisplayGarment())
	}
	return fmt.Sprintf("Your %s order", ev.Order.DisplayGarment())
}
