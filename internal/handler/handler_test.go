package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xeipuuv/gojsonschema"

	"tailorshop/internal/model"
	"tailorshop/internal/mw"
	"tailorshop/internal/service"
	"tailorshop/internal/subscription"
	"tailorshop/internal/worker"
)

type pushSource struct {
	mu   sync.Mutex
	push map[subscription.Scope]func([]model.Order)
}

func (s *pushSource) Subscribe(_ context.Context, scope subscription.Scope, onSnapshot func([]model.Order), _ func(error)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.push == nil {
		s.push = make(map[subscription.Scope]func([]model.Order))
	}
	s.push[scope] = onSnapshot
	return func() {}, nil
}

func (s *pushSource) send(scope subscription.Scope, orders []model.Order) {
	s.mu.Lock()
	fn := s.push[scope]
	s.mu.Unlock()
	fn(orders)
}

const testSecret = "handler-secret"

func notificationRouter(hub *worker.SessionHub) http.Handler {
	r := chi.NewRouter()
	r.Use(mw.AuthMiddleware(testSecret))
	r.Get("/api/notifications", ListNotificationsHandler(hub))
	r.Post("/api/notifications/read", MarkNotificationsReadHandler(hub))
	r.Delete("/api/notifications/{id}", DismissNotificationHandler(hub))
	r.Delete("/api/notifications", ClearNotificationsHandler(hub))
	return r
}

func do(t *testing.T, h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNotificationEndpoints(t *testing.T) {
	src := &pushSource{}
	hub := worker.NewSessionHub(src, worker.HubConfig{ReconnectDelay: time.Hour})
	h := notificationRouter(hub)

	token, err := mw.NewToken(testSecret, "cust-1", model.RoleCustomer)
	require.NoError(t, err)
	_, err = hub.Open("cust-1", model.RoleCustomer)
	require.NoError(t, err)

	scope := subscription.Scope{Role: model.RoleCustomer, CustomerID: "cust-1"}
	pending := model.Order{ID: "o1", GarmentType: "Pants", Status: model.StatusPending, ModifiedBy: model.PartyCustomer}
	src.send(scope, []model.Order{pending})

	confirmed := pending
	confirmed.Status, confirmed.Progress, confirmed.ModifiedBy = model.StatusConfirmed, 10, model.PartyTailor
	src.send(scope, []model.Order{confirmed})

	ready := confirmed
	ready.Status, ready.Progress = model.StatusReady, 90
	src.send(scope, []model.Order{ready})

	rec := do(t, h, http.MethodGet, "/api/notifications", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var body notificationsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Notifications, 2)
	assert.Equal(t, 2, body.Unread)
	assert.Equal(t, model.NotifyStatusReady, body.Notifications[0].Type)
	assert.True(t, body.Notifications[0].Urgent)
	assert.Equal(t, model.NotifyStatusConfirmed, body.Notifications[1].Type)

	rec = do(t, h, http.MethodDelete, "/api/notifications/"+body.Notifications[0].ID, token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodDelete, "/api/notifications/missing", token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/notifications/read", token)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/notifications", token)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Notifications, 1)
	assert.Equal(t, 0, body.Unread)

	rec = do(t, h, http.MethodDelete, "/api/notifications", token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/notifications", token)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Notifications)
}

func TestNotificationEndpoints_ReopenAfterReap(t *testing.T) {
	src := &pushSource{}
	hub := worker.NewSessionHub(src, worker.HubConfig{ReconnectDelay: time.Hour})
	h := notificationRouter(hub)

	token, err := mw.NewToken(testSecret, "tailor-1", model.RoleTailor)
	require.NoError(t, err)

	rec := do(t, h, http.MethodGet, "/api/notifications", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"notifications":[],"unread":0}`, rec.Body.String())
	assert.Equal(t, 1, hub.Len())
}

func TestLogoutClosesSession(t *testing.T) {
	hub := worker.NewSessionHub(&pushSource{}, worker.HubConfig{ReconnectDelay: time.Hour})
	_, err := hub.Open("cust-1", model.RoleCustomer)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(mw.AuthMiddleware(testSecret))
	r.Post("/api/logout", LogoutHandler(hub))

	token, err := mw.NewToken(testSecret, "cust-1", model.RoleCustomer)
	require.NoError(t, err)
	rec := do(t, r, http.MethodPost, "/api/logout", token)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, hub.Len())
}

func TestValidateJSONSchema(t *testing.T) {
	tests := []struct {
		name   string
		schema string
		body   string
		ok     bool
	}{
		{"order ok", orderSchema, `{"garmentType":"Pants","urgency":"urgent","measurements":{"waist":"32"}}`, true},
		{"order missing garment", orderSchema, `{"fabric":"wool"}`, false},
		{"order bad urgency", orderSchema, `{"garmentType":"Pants","urgency":"asap"}`, false},
		{"order numeric measurement", orderSchema, `{"garmentType":"Pants","measurements":{"waist":32}}`, false},
		{"order too many photos", orderSchema, `{"garmentType":"Pants","inspirationPhotos":[{"url":"a"},{"url":"b"},{"url":"c"},{"url":"d"},{"url":"e"},{"url":"f"}]}`, false},
		{"manual ok", manualOrderSchema, `{"garmentType":"Skirt","customerName":"Ada","amount":"120.50","dueDate":"2024-06-01"}`, true},
		{"manual bad date", manualOrderSchema, `{"garmentType":"Skirt","customerName":"Ada","dueDate":"June 1"}`, false},
		{"status ok", statusSchema, `{"status":"in_progress","progress":40}`, true},
		{"status unknown", statusSchema, `{"status":"shipped"}`, false},
		{"status progress range", statusSchema, `{"status":"in_progress","progress":140}`, false},
		{"progress ok", progressSchema, `{"progress":0}`, true},
		{"progress fractional", progressSchema, `{"progress":12.5}`, false},
		{"not json", progressSchema, `{`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateJSONSchema(gojsonschema.NewStringLoader(tt.schema), []byte(tt.body))
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestStatusHandlerRejectsInvalidBody(t *testing.T) {
	r := chi.NewRouter()
	r.Put("/api/orders/{id}/status", UpdateStatusHandler(nil, nil, nil))

	req := httptest.NewRequest(http.MethodPut, "/api/orders/o1/status", strings.NewReader(`{"status":"shipped"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "does not conform")
}

func TestBuildCalendar(t *testing.T) {
	loc := time.UTC
	now := time.Date(2024, 6, 15, 9, 0, 0, 0, loc)
	month := time.Date(2024, 6, 1, 0, 0, 0, 0, loc)
	at := func(day int) *time.Time {
		d := time.Date(2024, 6, day, 12, 0, 0, 0, loc)
		return &d
	}

	orders := []model.Order{
		{ID: "late", Status: model.StatusInProgress, DueDate: at(10)},
		{ID: "done", Status: model.StatusDelivered, DueDate: at(10)},
		{ID: "today", Status: model.StatusConfirmed, DueDate: at(15)},
		{ID: "legacy", Status: model.StatusPending, ExpectedDelivery: "2024-06-20"},
		{ID: "nextmonth", Status: model.StatusPending, ExpectedDelivery: "2024-07-02"},
		{ID: "undated", Status: model.StatusPending},
	}

	cal := buildCalendar(month, orders, now)

	assert.Equal(t, "2024-06", cal.Month)
	assert.Equal(t, []string{"2024-06-10", "2024-06-15", "2024-06-20"}, cal.Dates)
	require.Len(t, cal.Days["2024-06-10"], 2)
	assert.True(t, cal.Days["2024-06-10"][0].PastDue)
	assert.False(t, cal.Days["2024-06-10"][1].PastDue)
	assert.False(t, cal.Days["2024-06-15"][0].PastDue)
	assert.Equal(t, "legacy", cal.Days["2024-06-20"][0].ID)
}

func TestWriteAuthError(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{service.ErrAccountNotFound, http.StatusUnauthorized},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{service.ErrTailorNotVerified, http.StatusForbidden},
		{service.ErrWrongRole, http.StatusForbidden},
		{service.ErrEmailTaken, http.StatusConflict},
		{service.ErrWeakPassword, http.StatusBadRequest},
		{service.ErrResetTokenInvalid, http.StatusBadRequest},
		{fmt.Errorf("db: %w", context.DeadlineExceeded), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeAuthError(rec, tt.err, "test")
		assert.Equal(t, tt.code, rec.Code, tt.err.Error())

		var body errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, service.AuthMessage(tt.err), body.Error)
	}
}

func TestWriteOrderError(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{service.ErrOrderNotFound, http.StatusNotFound},
		{service.ErrOrderImmutable, http.StatusConflict},
		{service.ErrOrderLocked, http.StatusConflict},
		{service.ErrTooManyPhotos, http.StatusBadRequest},
		{service.ErrPhotoTooLarge, http.StatusRequestEntityTooLarge},
		{fmt.Errorf("wrap: %w", service.ErrInvalidProgress), http.StatusBadRequest},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeOrderError(rec, tt.err, "test")
		assert.Equal(t, tt.code, rec.Code, tt.err.Error())
	}
}

type fakeResetter struct {
	err   error
	calls []string
}

func (f *fakeResetter) RequestPasswordReset(_ context.Context, email string) error {
	f.calls = append(f.calls, email)
	return f.err
}

func TestPasswordResetHandler_SameAnswerForAnyAccount(t *testing.T) {
	post := func(resets *fakeResetter, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/password/reset", strings.NewReader(body))
		rec := httptest.NewRecorder()
		PasswordResetHandler(resets).ServeHTTP(rec, req)
		return rec
	}

	known := post(&fakeResetter{}, `{"email":"ada@example.com"}`)
	unknown := post(&fakeResetter{err: service.ErrAccountNotFound}, `{"email":"nobody@example.com"}`)
	broken := post(&fakeResetter{err: fmt.Errorf("send reset email: %w", service.ErrEmailRateLimited)}, `{"email":"ada@example.com"}`)

	for _, rec := range []*httptest.ResponseRecorder{known, unknown, broken} {
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, known.Body.String(), rec.Body.String())
		assert.NotContains(t, rec.Body.String(), "token")
	}
	assert.JSONEq(t, `{"message":"`+resetAccepted+`"}`, known.Body.String())

	invalid := post(&fakeResetter{err: service.ErrInvalidEmail}, `{"email":"ada"}`)
	assert.Equal(t, http.StatusBadRequest, invalid.Code)

	resets := &fakeResetter{}
	assert.Equal(t, http.StatusBadRequest, post(resets, `{`).Code)
	assert.Empty(t, resets.calls)
}
