package model

import "time"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleTailor   Role = "tailor"
)

// Party maps a signed-in role onto the attribution written with its order edits.
func (r Role) Party() Party {
	if r == RoleTailor {
		return PartyTailor
	}
	return PartyCustomer
}

type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Customer struct {
	ID                string                  `json:"id"`
	Name              string                  `json:"name"`
	Phone             string                  `json:"phone"`
	Email             string                  `json:"email"`
	SavedMeasurements map[string]Measurements `json:"savedMeasurements,omitempty"` // keyed by garment type
	OrderCount        int                     `json:"orderCount"`
	ActiveOrderCount  int                     `json:"activeOrderCount"`
	CreatedAt         time.Time               `json:"createdAt"`
}

type Tailor struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	BusinessName string    `json:"businessName"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email"`
	IsVerified   bool      `json:"isVerified"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}
