// Package subscription keeps exactly one live order query open per viewer and
// reopens it after transport errors.
package subscription

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"tailorshop/internal/model"
)

const DefaultReconnectDelay = 5 * time.Second

var ErrStopped = errors.New("subscription stopped")

type State int

const (
	Unsubscribed State = iota
	Subscribing
	Active
	Error
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Unsubscribed:
		return "unsubscribed"
	case Subscribing:
		return "subscribing"
	case Active:
		return "active"
	case Error:
		return "error"
	case Reconnecting:
		return "reconnecting"
	}
	return "unknown"
}

// Scope selects the orders visible to a viewer.
type Scope struct {
	Role       model.Role
	CustomerID string
}

// Source opens live queries. Subscribe must deliver complete snapshots to
// onSnapshot until cancel is called or onError fires; after onError no more
// callbacks are made for that subscription. Callbacks run on the source's own
// goroutine, never from inside Subscribe, and cancel must not wait for a
// callback in flight.
type Source interface {
	Subscribe(ctx context.Context, scope Scope, onSnapshot func([]model.Order), onError func(error)) (cancel func(), err error)
}

// Handler consumes snapshots. Reset is called before the first snapshot of
// every new subscription.
type Handler interface {
	HandleSnapshot([]model.Order) []model.Notification
	Reset()
}

type Manager struct {
	source  Source
	handler Handler
	scope   Scope
	delay   time.Duration

	// deliver serialises handler calls; it is always taken before mu.
	deliver  sync.Mutex
	mu       sync.Mutex
	state    State
	gen      uint64
	fresh    bool
	cancel   func()
	timer    *time.Timer
	ctx      context.Context
	stopCtx  context.CancelFunc
	snapshot int
}

func NewManager(source Source, handler Handler, scope Scope, reconnectDelay time.Duration) *Manager {
	if reconnectDelay <= 0 {
		reconnectDelay = DefaultReconnectDelay
	}
	return &Manager{
		source:  source,
		handler: handler,
		scope:   scope,
		delay:   reconnectDelay,
		state:   Unsubscribed,
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Snapshots returns how many snapshots were handed to the handler.
func (m *Manager) Snapshots() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

// Start opens the subscription, replacing any existing one. ctx bounds the
// whole session; when it is done the manager stops.
func (m *Manager) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	if m.stopCtx != nil {
		m.stopCtx()
	}
	m.ctx, m.stopCtx = ctx, cancel
	err := m.subscribeLocked()
	m.mu.Unlock()

	if err != nil {
		cancel()
		return err
	}
	go func() {
		<-ctx.Done()
		m.stopIfCurrent(ctx)
	}()
	return nil
}

// Stop cancels the subscription and any pending reconnect.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Manager) stopIfCurrent(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx == ctx {
		m.stopLocked()
	}
}

func (m *Manager) stopLocked() {
	m.teardownLocked()
	m.state = Unsubscribed
	if m.stopCtx != nil {
		m.stopCtx()
	}
	m.ctx, m.stopCtx = nil, nil
}

func (m *Manager) teardownLocked() {
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *Manager) subscribeLocked() error {
	m.teardownLocked()
	if m.ctx == nil || m.ctx.Err() != nil {
		m.state = Unsubscribed
		return ErrStopped
	}
	m.state = Subscribing
	m.fresh = true
	gen := m.gen

	cancel, err := m.source.Subscribe(m.ctx, m.scope,
		func(orders []model.Order) { m.onSnapshot(gen, orders) },
		func(err error) { m.onError(gen, err) },
	)
	if err != nil {
		slog.Error("failed to open order subscription", "role", m.scope.Role, "error", err)
		m.scheduleReconnectLocked()
		return nil
	}
	m.cancel = cancel
	m.state = Active
	return nil
}

func (m *Manager) onSnapshot(gen uint64, orders []model.Order) {
	m.deliver.Lock()
	defer m.deliver.Unlock()

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.snapshot++
	fresh := m.fresh
	m.fresh = false
	m.mu.Unlock()

	if fresh {
		m.handler.Reset()
	}
	m.handler.HandleSnapshot(orders)
}

func (m *Manager) onError(gen uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}
	slog.Error("orders listener error", "role", m.scope.Role, "error", err)
	m.state = Error
	m.cancel = nil
	m.gen++
	m.scheduleReconnectLocked()
}

func (m *Manager) scheduleReconnectLocked() {
	m.state = Reconnecting
	gen := m.gen
	m.timer = time.AfterFunc(m.delay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if gen != m.gen {
			return
		}
		m.timer = nil
		if err := m.subscribeLocked(); err != nil {
			slog.Info("order subscription not reopened", "reason", err)
		}
	})
}
