package handler

import (
	"net/http"
	"sort"
	"time"

	"tailorshop/internal/model"
	"tailorshop/internal/notify"
	"tailorshop/internal/service"
)

type calendarEntry struct {
	model.Order
	PastDue bool `json:"pastDue"`
}

type calendarResponse struct {
	Month string                     `json:"month"`
	Days  map[string][]calendarEntry `json:"days"`
	Dates []string                   `json:"dates"`
}

// buildCalendar groups orders by local due day. Open orders due before today
// are marked past due.
func buildCalendar(month time.Time, orders []model.Order, now time.Time) calendarResponse {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	resp := calendarResponse{
		Month: month.Format("2006-01"),
		Days:  make(map[string][]calendarEntry),
		Dates: []string{},
	}
	for _, o := range orders {
		due, ok := notify.DueDate(o)
		if !ok {
			continue
		}
		due = due.In(now.Location())
		if due.Year() != month.Year() || due.Month() != month.Month() {
			continue
		}
		day := due.Format(time.DateOnly)
		if _, seen := resp.Days[day]; !seen {
			resp.Dates = append(resp.Dates, day)
		}
		resp.Days[day] = append(resp.Days[day], calendarEntry{
			Order:   o,
			PastDue: !o.Status.Terminal() && due.Before(today),
		})
	}
	sort.Strings(resp.Dates)
	return resp
}

// CalendarHandler lists the month's orders by due day. month is YYYY-MM and
// defaults to the current month.
func CalendarHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		if q := r.URL.Query().Get("month"); q != "" {
			m, err := time.ParseInLocation("2006-01", q, now.Location())
			if err != nil {
				writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
				return
			}
			month = m
		}

		orders, err := orderSvc.ListDueBetween(r.Context(), month, month.AddDate(0, 1, 0))
		if err != nil {
			writeOrderError(w, err, "calendar")
			return
		}
		writeJSON(w, http.StatusOK, buildCalendar(month, orders, now))
	}
}
