package notify

import (
	"math"
	"time"

	"tailorshop/internal/model"
	"tailorshop/internal/timeconv"
)

const (
	DefaultWarningDays = 2
	DefaultUrgentDays  = 1
)

// DueScanner flags orders approaching their due date, once per order id for
// the life of the scanner.
type DueScanner struct {
	WarningDays int
	UrgentDays  int
	Now         func() time.Time

	notified map[string]struct{}
}

func NewDueScanner(warningDays, urgentDays int) *DueScanner {
	return &DueScanner{
		WarningDays: warningDays,
		UrgentDays:  urgentDays,
		Now:         time.Now,
		notified:    make(map[string]struct{}),
	}
}

func (s *DueScanner) Scan(orders []model.Order) []Event {
	now := s.Now()
	var events []Event
	for _, o := range orders {
		if o.Status.Terminal() {
			s.Forget(o.ID)
			continue
		}
		if _, done := s.notified[o.ID]; done {
			continue
		}
		due, ok := DueDate(o)
		if !ok {
			continue
		}
		days := DaysUntil(now, due)
		if days < 0 || days > s.WarningDays {
			continue
		}
		events = append(events, Event{
			Kind:         KindDueSoon,
			Viewer:       model.PartyTailor,
			Order:        o,
			DaysUntilDue: days,
			Urgent:       days <= s.UrgentDays,
		})
		s.notified[o.ID] = struct{}{}
	}
	return events
}

// Forget allows id to be flagged again.
func (s *DueScanner) Forget(id string) {
	delete(s.notified, id)
}

func (s *DueScanner) Flagged(id string) bool {
	_, ok := s.notified[id]
	return ok
}

// DueDate resolves an order's due date, falling back to expectedDelivery.
func DueDate(o model.Order) (time.Time, bool) {
	if o.DueDate != nil {
		if t, ok := timeconv.Time(*o.DueDate); ok {
			return t, true
		}
	}
	return timeconv.Time(o.ExpectedDelivery)
}

// DaysUntil is ceil((due-now)/24h).
func DaysUntil(now, due time.Time) int {
	return int(math.Ceil(due.Sub(now).Hours() / 24))
}
