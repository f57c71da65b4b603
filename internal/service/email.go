package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"tailorshop/internal/model"
)

var (
	ErrEmailInvalid     = errors.New("email payload invalid")
	ErrEmailRateLimited = errors.New("email rate limit exceeded")
)

const shopName = "Tailor Shop"

// StatusEmail is the payload of an order status email.
type StatusEmail struct {
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"email"`
	OrderNumber   string `json:"order_number"`
	Items         string `json:"order_items"`
	Total         string `json:"order_total"`
	Status        string `json:"status"`
}

type emailRequest struct {
	StatusEmail
	Name          string `json:"name"`
	StatusMessage string `json:"status_message"`
}

var statusMessages = map[string]string{
	"ready":                 "Excellent news! Your custom tailored garment is now ready for pickup. Our master tailor has put the finishing touches on your piece, and we're excited for you to see the result.",
	"delivered":             "Your custom tailored garment has been successfully delivered! We hope you absolutely love how it fits and looks. Thank you for trusting us with your tailoring needs.",
	"in_progress":           "Your tailoring order is currently being worked on by our skilled craftsmen. We're taking great care to ensure every detail meets our high standards.",
	"cancelled":             "Your tailoring order has been cancelled. If this was unexpected or you have any questions, please don't hesitate to contact us immediately.",
	"alterations_needed":    "We've reviewed your garment and some minor alterations are needed to ensure the perfect fit. We'll contact you shortly to schedule a fitting.",
	"measurements_required": "We need to schedule a measurement session to proceed with your custom tailoring. Please contact us to arrange an appointment.",
}

func StatusMessage(status string) string {
	if msg, ok := statusMessages[strings.ToLower(status)]; ok {
		return msg
	}
	return "Your tailoring order status has been updated. Please contact us if you have any questions."
}

// EmailWorthy reports whether moving to status should email the customer.
func EmailWorthy(status model.Status) bool {
	return status == model.StatusReady || status == model.StatusDelivered
}

// StatusEmailFor builds the email for an order's current status.
func StatusEmailFor(o model.Order) StatusEmail {
	items := o.GarmentType
	if o.Fabric != "" {
		items = fmt.Sprintf("%s (%s)", o.GarmentType, o.Fabric)
	}
	return StatusEmail{
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		OrderNumber:   o.ID,
		Items:         items,
		Total:         o.Amount.StringFixed(2),
		Status:        string(o.Status),
	}
}

func (e StatusEmail) Validate() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"customerName", e.CustomerName},
		{"customerEmail", e.CustomerEmail},
		{"orderNumber", e.OrderNumber},
		{"items", e.Items},
		{"total", e.Total},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", ErrEmailInvalid, strings.Join(missing, ", "))
	}
	if _, err := NormalizeEmail(e.CustomerEmail); err != nil {
		return fmt.Errorf("%w: invalid email address", ErrEmailInvalid)
	}
	return nil
}

// EmailClient posts status and password reset emails to a transactional
// email API.
type EmailClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
	limiter  *rate.Limiter
}

func NewEmailClient(endpoint, apiKey string) *EmailClient {
	return &EmailClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 10 * time.Second},
		limiter:  rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

func (c *EmailClient) Enabled() bool {
	return c != nil && c.endpoint != ""
}

func (c *EmailClient) SendStatusEmail(ctx context.Context, e StatusEmail) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if !c.Enabled() {
		slog.Warn("email API not configured, skipping status email", "order", e.OrderNumber, "status", e.Status)
		return nil
	}

	err := c.post(ctx, emailRequest{
		StatusEmail:   e,
		Name:          shopName,
		StatusMessage: StatusMessage(e.Status),
	})
	if err != nil {
		return err
	}
	slog.Info("status email sent", "order", e.OrderNumber, "status", e.Status)
	return nil
}

type resetEmailRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Template string `json:"template"`
	Link     string `json:"reset_link"`
}

// SendPasswordReset mails the reset link to the account owner. Without a
// configured API the link is only logged at debug level.
func (c *EmailClient) SendPasswordReset(ctx context.Context, email, link string) error {
	if !c.Enabled() {
		slog.Debug("email API not configured, password reset link not sent", "email", email, "link", link)
		return nil
	}

	err := c.post(ctx, resetEmailRequest{
		Name:     shopName,
		Email:    email,
		Template: "password_reset",
		Link:     link,
	})
	if err != nil {
		return err
	}
	slog.Info("password reset email sent", "email", email)
	return nil
}

func (c *EmailClient) post(ctx context.Context, payload any) error {
	if !c.limiter.Allow() {
		return ErrEmailRateLimited
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrEmailRateLimited
	default:
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status: %d, body: %s", resp.StatusCode, string(respBody))
	}
}
