package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tailorshop/internal/model"
	"tailorshop/internal/notify"
	"tailorshop/internal/subscription"
)

type HubConfig struct {
	DueWarningDays int
	DueUrgentDays  int
	ReconnectDelay time.Duration
	IdleTimeout    time.Duration
	ReapInterval   time.Duration
}

// Session is one signed-in viewer: a live order subscription feeding a
// reconciler and its notification feed.
type Session struct {
	ViewerID string
	Role     model.Role

	reconciler *notify.Reconciler
	manager    *subscription.Manager

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) Feed() *notify.Feed {
	return s.reconciler.Feed()
}

func (s *Session) State() subscription.State {
	return s.manager.State()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// SessionHub owns every open viewer session and reaps the idle ones.
type SessionHub struct {
	source subscription.Source
	cfg    HubConfig
	now    func() time.Time

	mu       sync.Mutex
	ctx      context.Context
	sessions map[string]*Session
}

func NewSessionHub(source subscription.Source, cfg HubConfig) *SessionHub {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = time.Minute
	}
	return &SessionHub{
		source:   source,
		cfg:      cfg,
		now:      time.Now,
		ctx:      context.Background(),
		sessions: make(map[string]*Session),
	}
}

// Open returns the viewer's session, starting one if none is open. A viewer
// never has more than one session, so reopening keeps the existing feed.
func (h *SessionHub) Open(viewerID string, role model.Role) (*Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s, ok := h.sessions[viewerID]; ok {
		s.touch(h.now())
		return s, nil
	}

	var scanner *notify.DueScanner
	scope := subscription.Scope{Role: role}
	if role == model.RoleTailor {
		scanner = notify.NewDueScanner(h.cfg.DueWarningDays, h.cfg.DueUrgentDays)
	} else {
		scope.CustomerID = viewerID
	}

	rec := notify.NewReconciler(role.Party(), scanner, notify.NewFeed())
	rec.OnNotify = func(batch []model.Notification) {
		slog.Info("notifications raised", "viewer", viewerID, "role", role, "count", len(batch))
	}

	s := &Session{
		ViewerID:   viewerID,
		Role:       role,
		reconciler: rec,
		manager:    subscription.NewManager(h.source, rec, scope, h.cfg.ReconnectDelay),
		lastSeen:   h.now(),
	}
	if err := s.manager.Start(h.ctx); err != nil {
		return nil, err
	}
	h.sessions[viewerID] = s
	slog.Info("viewer session opened", "viewer", viewerID, "role", role)
	return s, nil
}

// Session returns the viewer's open session and marks it as used.
func (h *SessionHub) Session(viewerID string) (*Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[viewerID]
	if ok {
		s.touch(h.now())
	}
	return s, ok
}

// Close stops the viewer's subscription and discards its feed.
func (h *SessionHub) Close(viewerID string) {
	h.mu.Lock()
	s, ok := h.sessions[viewerID]
	delete(h.sessions, viewerID)
	h.mu.Unlock()

	if ok {
		s.manager.Stop()
		slog.Info("viewer session closed", "viewer", viewerID)
	}
}

// ForgetDue clears the due-date flag for orderID in every tailor session.
func (h *SessionHub) ForgetDue(orderID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.sessions {
		s.reconciler.ForgetDue(orderID)
	}
}

func (h *SessionHub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Start binds new sessions to ctx and reaps idle ones until ctx is done,
// then closes everything.
func (h *SessionHub) Start(ctx context.Context) {
	slog.Info("starting session hub")
	h.mu.Lock()
	h.ctx = ctx
	h.mu.Unlock()

	ticker := time.NewTicker(h.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			slog.Info("session hub stopped")
			return
		case <-ticker.C:
			if n := h.reap(); n > 0 {
				slog.Info("idle sessions reaped", "count", n)
			}
		}
	}
}

func (h *SessionHub) reap() int {
	cutoff := h.now().Add(-h.cfg.IdleTimeout)

	h.mu.Lock()
	var idle []*Session
	for id, s := range h.sessions {
		if s.idleSince().Before(cutoff) {
			idle = append(idle, s)
			delete(h.sessions, id)
		}
	}
	h.mu.Unlock()

	for _, s := range idle {
		s.manager.Stop()
	}
	return len(idle)
}

func (h *SessionHub) closeAll() {
	h.mu.Lock()
	all := h.sessions
	h.sessions = make(map[string]*Session)
	h.mu.Unlock()

	for _, s := range all {
		s.manager.Stop()
	}
}
