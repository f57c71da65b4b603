package model

import "time"

type NotificationType string

const (
	NotifyNewOrder        NotificationType = "new_order"
	NotifyOrderUpdated    NotificationType = "order_updated"
	NotifyProgressUpdate  NotificationType = "progress_update"
	NotifyStatusConfirmed NotificationType = "status_confirmed"
	NotifyStatusReady     NotificationType = "status_ready"
	NotifyStatusDelivered NotificationType = "status_delivered"
	NotifyStatusCancelled NotificationType = "status_cancelled"
	NotifyDueSoon         NotificationType = "due_soon"
	NotifyCustomerUpdate  NotificationType = "customer_update"
)

// Notification lives only in process memory for the duration of a viewer session.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	OrderID   string           `json:"orderId,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	Read      bool             `json:"read"`
	Urgent    bool             `json:"urgent"`
}
