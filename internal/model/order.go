package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusReady      Status = "ready"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusInProgress, StatusReady, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Editable reports whether the customer may still change the order contents.
func (s Status) Editable() bool {
	return s == StatusPending || s == StatusConfirmed
}

type Urgency string

const (
	UrgencyUrgent  Urgency = "urgent"
	UrgencyNormal  Urgency = "normal"
	UrgencyRelaxed Urgency = "relaxed"
)

func (u Urgency) Valid() bool {
	return u == UrgencyUrgent || u == UrgencyNormal || u == UrgencyRelaxed
}

// Party is the attribution tag written with every order mutation.
type Party string

const (
	PartyCustomer Party = "customer"
	PartyTailor   Party = "tailor"
)

// Counterparty returns the party whose writes the viewer p wants to hear about.
func (p Party) Counterparty() Party {
	if p == PartyTailor {
		return PartyCustomer
	}
	return PartyTailor
}

const (
	ReasonNewOrder          = "new_order"
	ReasonCustomerEdit      = "customer_edit"
	ReasonStatusUpdate      = "status_update"
	ReasonProgressUpdate    = "progress_update"
	ReasonMeasurementUpdate = "measurement_update"
	ReasonManualOrder       = "manual_order"
	ReasonPhotoUpdate       = "photo_update"
)

// Measurements maps a measurement name (chest, waist, ...) to its value as typed by the user.
type Measurements map[string]string

type Photo struct {
	URL        string    `json:"url"`
	Name       string    `json:"name"`
	UploadedAt time.Time `json:"uploadedAt"`
}

type Order struct {
	ID                  string          `json:"id"`
	CustomerID          string          `json:"customerId"`
	CustomerName        string          `json:"customerName"`
	CustomerPhone       string          `json:"customerPhone"`
	CustomerEmail       string          `json:"customerEmail"`
	GarmentType         string          `json:"garmentType"`
	Fabric              string          `json:"fabric"`
	SpecialInstructions string          `json:"specialInstructions"`
	Urgency             Urgency         `json:"urgency"`
	Measurements        Measurements    `json:"measurements"`
	InspirationPhotos   []Photo         `json:"inspirationPhotos"`
	Amount              decimal.Decimal `json:"amount"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
	LastModified        time.Time       `json:"lastModified"`
	DueDate             *time.Time      `json:"dueDate,omitempty"`
	ExpectedDelivery    string          `json:"expectedDelivery,omitempty"` // YYYY-MM-DD
	Status              Status          `json:"status"`
	Progress            int             `json:"progress"`
	ModifiedBy          Party           `json:"modifiedBy"`
	ModificationReason  string          `json:"modificationReason"`
}

// DisplayCustomer and DisplayGarment fall back to placeholders for partially filled orders.
func (o Order) DisplayCustomer() string {
	if o.CustomerName == "" {
		return "Customer"
	}
	return o.CustomerName
}

func (o Order) DisplayGarment() string {
	if o.GarmentType == "" {
		return "Custom order"
	}
	return o.GarmentType
}
