package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tailorshop/internal/model"
	"tailorshop/internal/subscription"
)

type stubSub struct {
	scope      subscription.Scope
	onSnapshot func([]model.Order)
	cancelled  bool
}

type stubSource struct {
	mu   sync.Mutex
	subs []*stubSub
}

func (s *stubSource) Subscribe(_ context.Context, scope subscription.Scope, onSnapshot func([]model.Order), _ func(error)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := &stubSub{scope: scope, onSnapshot: onSnapshot}
	s.subs = append(s.subs, sub)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		sub.cancelled = true
	}, nil
}

func (s *stubSource) last() *stubSub {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs[len(s.subs)-1]
}

func (s *stubSource) open() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sub := range s.subs {
		if !sub.cancelled {
			n++
		}
	}
	return n
}

func newHub(src *stubSource) *SessionHub {
	return NewSessionHub(src, HubConfig{
		DueWarningDays: 2,
		DueUrgentDays:  1,
		ReconnectDelay: time.Hour,
		IdleTimeout:    time.Minute,
	})
}

func TestSessionHub_OpenScopesByRole(t *testing.T) {
	src := &stubSource{}
	hub := newHub(src)

	_, err := hub.Open("cust-1", model.RoleCustomer)
	require.NoError(t, err)
	assert.Equal(t, subscription.Scope{Role: model.RoleCustomer, CustomerID: "cust-1"}, src.last().scope)

	s, err := hub.Open("tailor-1", model.RoleTailor)
	require.NoError(t, err)
	assert.Equal(t, subscription.Scope{Role: model.RoleTailor}, src.last().scope)
	assert.Equal(t, subscription.Active, s.State())
	assert.Equal(t, 2, hub.Len())
}

func TestSessionHub_ReopenKeepsSingleSubscription(t *testing.T) {
	src := &stubSource{}
	hub := newHub(src)

	first, err := hub.Open("tailor-1", model.RoleTailor)
	require.NoError(t, err)
	second, err := hub.Open("tailor-1", model.RoleTailor)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, src.open())
}

func TestSessionHub_SnapshotsReachFeed(t *testing.T) {
	src := &stubSource{}
	hub := newHub(src)

	s, err := hub.Open("tailor-1", model.RoleTailor)
	require.NoError(t, err)
	sub := src.last()

	sub.onSnapshot(nil)
	sub.onSnapshot([]model.Order{{
		ID:           "o1",
		CustomerName: "Ada",
		GarmentType:  "Skirt",
		Status:       model.StatusPending,
		ModifiedBy:   model.PartyCustomer,
	}})

	items := s.Feed().List()
	require.Len(t, items, 1)
	assert.Equal(t, model.NotifyNewOrder, items[0].Type)
	assert.Equal(t, "o1", items[0].OrderID)
}

func TestSessionHub_CloseStopsSubscription(t *testing.T) {
	src := &stubSource{}
	hub := newHub(src)

	_, err := hub.Open("cust-1", model.RoleCustomer)
	require.NoError(t, err)
	hub.Close("cust-1")

	assert.Equal(t, 0, src.open())
	_, ok := hub.Session("cust-1")
	assert.False(t, ok)

	hub.Close("nobody")
}

func TestSessionHub_ReapIdle(t *testing.T) {
	src := &stubSource{}
	hub := newHub(src)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	hub.now = func() time.Time { return now }

	_, err := hub.Open("idle", model.RoleCustomer)
	require.NoError(t, err)
	_, err = hub.Open("busy", model.RoleCustomer)
	require.NoError(t, err)

	now = now.Add(45 * time.Second)
	_, ok := hub.Session("busy")
	require.True(t, ok)

	now = now.Add(30 * time.Second)
	assert.Equal(t, 1, hub.reap())

	_, ok = hub.Session("idle")
	assert.False(t, ok)
	_, ok = hub.Session("busy")
	assert.True(t, ok)
	assert.Equal(t, 1, src.open())
}

func TestSessionHub_StartClosesOnCancel(t *testing.T) {
	src := &stubSource{}
	hub := NewSessionHub(src, HubConfig{ReapInterval: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return hub.ctx == ctx
	}, time.Second, time.Millisecond)

	_, err := hub.Open("tailor-1", model.RoleTailor)
	require.NoError(t, err)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	assert.Equal(t, 0, hub.Len())
	assert.Equal(t, 0, src.open())
}

func TestSessionHub_ForgetDue(t *testing.T) {
	src := &stubSource{}
	hub := newHub(src)
	now := time.Now()

	s, err := hub.Open("tailor-1", model.RoleTailor)
	require.NoError(t, err)
	sub := src.last()

	due := now.Add(20 * time.Hour)
	order := model.Order{ID: "o1", Status: model.StatusInProgress, DueDate: &due, ModifiedBy: model.PartyTailor}
	sub.onSnapshot([]model.Order{order})
	sub.onSnapshot([]model.Order{order})
	require.Len(t, s.Feed().List(), 1)

	sub.onSnapshot([]model.Order{order})
	assert.Len(t, s.Feed().List(), 1)

	hub.ForgetDue("o1")
	sub.onSnapshot([]model.Order{order})
	assert.Len(t, s.Feed().List(), 2)
}
