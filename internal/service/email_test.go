package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tailorshop/internal/model"
)

func readyOrder() model.Order {
	return model.Order{
		ID:            "ord-1",
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
		GarmentType:   "Business Suit",
		Fabric:        "Wool",
		Amount:        decimal.NewFromInt(480),
		Status:        model.StatusReady,
	}
}

func TestStatusEmailFor(t *testing.T) {
	e := StatusEmailFor(readyOrder())

	assert.Equal(t, "Ada", e.CustomerName)
	assert.Equal(t, "ord-1", e.OrderNumber)
	assert.Equal(t, "Business Suit (Wool)", e.Items)
	assert.Equal(t, "480.00", e.Total)
	assert.Equal(t, "ready", e.Status)
	assert.NoError(t, e.Validate())
}

func TestStatusEmailValidate(t *testing.T) {
	err := StatusEmail{CustomerEmail: "ada@example.com", Items: "Pants"}.Validate()
	require.ErrorIs(t, err, ErrEmailInvalid)
	assert.Contains(t, err.Error(), "customerName, orderNumber, total")

	e := StatusEmailFor(readyOrder())
	e.CustomerEmail = "not-an-email"
	assert.ErrorIs(t, e.Validate(), ErrEmailInvalid)
}

func TestEmailWorthy(t *testing.T) {
	assert.True(t, EmailWorthy(model.StatusReady))
	assert.True(t, EmailWorthy(model.StatusDelivered))
	assert.False(t, EmailWorthy(model.StatusInProgress))
	assert.False(t, EmailWorthy(model.StatusCancelled))
}

func TestStatusMessage(t *testing.T) {
	assert.Contains(t, StatusMessage("READY"), "ready for pickup")
	assert.Contains(t, StatusMessage("something"), "has been updated")
}

func TestSendStatusEmail(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewEmailClient(srv.URL, "secret")
	require.NoError(t, c.SendStatusEmail(context.Background(), StatusEmailFor(readyOrder())))

	assert.Equal(t, "Tailor Shop", got["name"])
	assert.Equal(t, "ada@example.com", got["email"])
	assert.Equal(t, "ord-1", got["order_number"])
	assert.Equal(t, "480.00", got["order_total"])
	assert.Contains(t, got["status_message"], "ready for pickup")
}

func TestSendStatusEmail_Errors(t *testing.T) {
	status := http.StatusTooManyRequests
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("nope"))
	}))
	defer srv.Close()

	c := NewEmailClient(srv.URL, "")
	err := c.SendStatusEmail(context.Background(), StatusEmailFor(readyOrder()))
	assert.ErrorIs(t, err, ErrEmailRateLimited)

	status = http.StatusInternalServerError
	err = c.SendStatusEmail(context.Background(), StatusEmailFor(readyOrder()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status: 500")
}

func TestSendStatusEmail_Disabled(t *testing.T) {
	c := NewEmailClient("", "")
	assert.False(t, c.Enabled())
	assert.NoError(t, c.SendStatusEmail(context.Background(), StatusEmailFor(readyOrder())))

	err := c.SendStatusEmail(context.Background(), StatusEmail{})
	assert.ErrorIs(t, err, ErrEmailInvalid)
}

func TestSendStatusEmail_LocalRateLimit(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewEmailClient(srv.URL, "")
	var limited int
	for i := 0; i < 10; i++ {
		if err := c.SendStatusEmail(context.Background(), StatusEmailFor(readyOrder())); err != nil {
			assert.ErrorIs(t, err, ErrEmailRateLimited)
			limited++
		}
	}
	assert.Positive(t, limited)
	assert.Equal(t, 10-limited, calls)
}

func TestSendPasswordReset(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewEmailClient(srv.URL, "secret")
	link := ResetLink("https://shop.example.com/reset-password", "tok-1")
	require.NoError(t, c.SendPasswordReset(context.Background(), "ada@example.com", link))

	assert.Equal(t, "ada@example.com", got["email"])
	assert.Equal(t, "password_reset", got["template"])
	assert.Equal(t, "https://shop.example.com/reset-password?token=tok-1", got["reset_link"])

	assert.NoError(t, NewEmailClient("", "").SendPasswordReset(context.Background(), "ada@example.com", link))
}

func TestResetLink(t *testing.T) {
	assert.Equal(t, "https://shop.example.com/reset?lang=en&token=a+b", ResetLink("https://shop.example.com/reset?lang=en", "a b"))
	assert.Equal(t, "?token=abc", ResetLink("", "abc"))
}
