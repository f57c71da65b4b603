package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tailorshop/internal/model"
	"tailorshop/internal/subscription"
)

type fakeLister struct {
	mu     sync.Mutex
	orders []model.Order
	err    error
	calls  int
	scopes []subscription.Scope
}

func (f *fakeLister) List(_ context.Context, scope subscription.Scope) ([]model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.scopes = append(f.scopes, scope)
	if f.err != nil {
		return nil, f.err
	}
	return append([]model.Order(nil), f.orders...), nil
}

func (f *fakeLister) set(orders []model.Order, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders, f.err = orders, err
}

func TestOrderSource_WakeDeliversFreshSnapshot(t *testing.T) {
	lister := &fakeLister{orders: []model.Order{{ID: "a"}}}
	changes := NewBroadcaster()
	src := NewOrderSource(lister, changes, time.Hour)

	snaps := make(chan []model.Order, 10)
	cancel, err := src.Subscribe(context.Background(), subscription.Scope{Role: model.RoleTailor},
		func(o []model.Order) { snaps <- o },
		func(err error) { t.Errorf("unexpected error: %v", err) },
	)
	require.NoError(t, err)
	defer cancel()

	select {
	case got := <-snaps:
		assert.Len(t, got, 1)
	case <-time.After(time.Second):
		t.Fatal("no initial snapshot")
	}

	lister.set([]model.Order{{ID: "a"}, {ID: "b"}}, nil)
	changes.Notify()

	select {
	case got := <-snaps:
		assert.Len(t, got, 2)
	case <-time.After(time.Second):
		t.Fatal("no snapshot after write")
	}
}

func TestOrderSource_TickerRereads(t *testing.T) {
	lister := &fakeLister{}
	src := NewOrderSource(lister, nil, 10*time.Millisecond)

	snaps := make(chan []model.Order, 100)
	cancel, err := src.Subscribe(context.Background(), subscription.Scope{Role: model.RoleCustomer, CustomerID: "c1"},
		func(o []model.Order) { snaps <- o },
		func(error) {},
	)
	require.NoError(t, err)
	defer cancel()

	for i := 0; i < 3; i++ {
		select {
		case <-snaps:
		case <-time.After(time.Second):
			t.Fatalf("snapshot %d not delivered", i)
		}
	}

	lister.mu.Lock()
	defer lister.mu.Unlock()
	assert.Equal(t, "c1", lister.scopes[0].CustomerID)
}

func TestOrderSource_ErrorEndsSubscription(t *testing.T) {
	lister := &fakeLister{err: errors.New("connection reset")}
	src := NewOrderSource(lister, nil, 5*time.Millisecond)

	errs := make(chan error, 10)
	cancel, err := src.Subscribe(context.Background(), subscription.Scope{Role: model.RoleTailor},
		func([]model.Order) { t.Error("snapshot after failed read") },
		func(err error) { errs <- err },
	)
	require.NoError(t, err)
	defer cancel()

	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "connection reset")
	case <-time.After(time.Second):
		t.Fatal("no error delivered")
	}

	time.Sleep(30 * time.Millisecond)
	lister.mu.Lock()
	defer lister.mu.Unlock()
	assert.Equal(t, 1, lister.calls)
	assert.Empty(t, errs)
}

func TestOrderSource_CancelStopsDelivery(t *testing.T) {
	lister := &fakeLister{}
	src := NewOrderSource(lister, nil, 5*time.Millisecond)

	snaps := make(chan struct{}, 100)
	cancel, err := src.Subscribe(context.Background(), subscription.Scope{Role: model.RoleTailor},
		func([]model.Order) { snaps <- struct{}{} },
		func(error) {},
	)
	require.NoError(t, err)
	<-snaps
	cancel()

	time.Sleep(20 * time.Millisecond)
	for len(snaps) > 0 {
		<-snaps
	}
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, snaps)
}

func TestOrderSource_RejectsCustomerScopeWithoutID(t *testing.T) {
	src := NewOrderSource(&fakeLister{}, nil, 0)
	_, err := src.Subscribe(context.Background(), subscription.Scope{Role: model.RoleCustomer},
		func([]model.Order) {}, func(error) {})
	assert.Error(t, err)
}

func TestBroadcaster(t *testing.T) {
	b := NewBroadcaster()
	ch1, stop1 := b.Listen()
	ch2, stop2 := b.Listen()
	defer stop2()

	b.Notify()
	b.Notify()

	assert.Len(t, ch1, 1)
	assert.Len(t, ch2, 1)
	<-ch1
	<-ch2

	stop1()
	b.Notify()
	assert.Len(t, ch1, 0)
	assert.Len(t, ch2, 1)

	var nilB *Broadcaster
	assert.NotPanics(t, nilB.Notify)
}
