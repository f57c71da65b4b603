package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tailorshop/internal/model"
	"tailorshop/internal/mw"
	"tailorshop/internal/notify"
	"tailorshop/internal/worker"
)

type notificationsResponse struct {
	Notifications []model.Notification `json:"notifications"`
	Unread        int                  `json:"unread"`
}

// viewerFeed returns the caller's feed, reopening a session the reaper
// dropped. A reopened session starts from a fresh baseline.
func viewerFeed(hub *worker.SessionHub, r *http.Request) (*notify.Feed, bool) {
	userID := mw.UserFrom(r.Context())
	if s, ok := hub.Session(userID); ok {
		return s.Feed(), true
	}
	s, err := hub.Open(userID, mw.RoleFrom(r.Context()))
	if err != nil {
		slog.Error("failed to reopen session", "viewer", userID, "error", err)
		return nil, false
	}
	return s.Feed(), true
}

func ListNotificationsHandler(hub *worker.SessionHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		feed, ok := viewerFeed(hub, r)
		if !ok {
			writeError(w, http.StatusServiceUnavailable, "notifications unavailable")
			return
		}
		writeJSON(w, http.StatusOK, notificationsResponse{Notifications: feed.List(), Unread: feed.Unread()})
	}
}

func MarkNotificationsReadHandler(hub *worker.SessionHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		feed, ok := viewerFeed(hub, r)
		if !ok {
			writeError(w, http.StatusServiceUnavailable, "notifications unavailable")
			return
		}
		feed.MarkAllRead()
		w.WriteHeader(http.StatusNoContent)
	}
}

func DismissNotificationHandler(hub *worker.SessionHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		feed, ok := viewerFeed(hub, r)
		if !ok {
			writeError(w, http.StatusServiceUnavailable, "notifications unavailable")
			return
		}
		if !feed.Dismiss(chi.URLParam(r, "id")) {
			writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ClearNotificationsHandler(hub *worker.SessionHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		feed, ok := viewerFeed(hub, r)
		if !ok {
			writeError(w, http.StatusServiceUnavailable, "notifications unavailable")
			return
		}
		feed.Clear()
		w.WriteHeader(http.StatusNoContent)
	}
}
