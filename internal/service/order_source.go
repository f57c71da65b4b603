package service

import (
	"context"
	"fmt"
	"time"

	"tailorshop/internal/model"
	"tailorshop/internal/subscription"
)

// OrderLister is the read side an OrderSource polls.
type OrderLister interface {
	List(ctx context.Context, scope subscription.Scope) ([]model.Order, error)
}

// OrderSource turns repeated full reads of the order table into a live
// query. Each subscription re-reads on every tick and after every local
// write; a failed read ends the subscription through onError.
type OrderSource struct {
	orders   OrderLister
	changes  *Broadcaster
	interval time.Duration
}

func NewOrderSource(orders OrderLister, changes *Broadcaster, interval time.Duration) *OrderSource {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &OrderSource{orders: orders, changes: changes, interval: interval}
}

func (s *OrderSource) Subscribe(ctx context.Context, scope subscription.Scope, onSnapshot func([]model.Order), onError func(error)) (func(), error) {
	if scope.Role != model.RoleTailor && scope.CustomerID == "" {
		return nil, fmt.Errorf("subscribe: customer scope without customer id")
	}

	ctx, cancel := context.WithCancel(ctx)
	var wake <-chan struct{}
	unlisten := func() {}
	if s.changes != nil {
		wake, unlisten = s.changes.Listen()
	}

	go func() {
		defer unlisten()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			orders, err := s.orders.List(ctx, scope)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				onError(fmt.Errorf("list orders: %w", err))
				return
			}
			onSnapshot(orders)

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case <-wake:
			}
		}
	}()

	return cancel, nil
}
