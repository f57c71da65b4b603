package service

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tailorshop/internal/model"
)

var (
	ErrInvalidUrgency     = errors.New("invalid urgency")
	ErrInvalidMeasurement = errors.New("measurements must be numeric")
)

var leadDays = map[model.Urgency]int{
	model.UrgencyUrgent:  7,
	model.UrgencyNormal:  14,
	model.UrgencyRelaxed: 30,
}

var basePrices = map[string]int64{
	"Business Suit": 400,
	"Evening Gown":  550,
	"Casual Blazer": 300,
	"Dress Shirt":   120,
	"Pants":         150,
	"Skirt":         130,
	"Custom":        200,
}

const defaultBasePrice = 200

var urgencyMultipliers = map[model.Urgency]decimal.Decimal{
	model.UrgencyUrgent:  decimal.RequireFromString("1.2"),
	model.UrgencyNormal:  decimal.NewFromInt(1),
	model.UrgencyRelaxed: decimal.RequireFromString("0.9"),
}

// DueDateFor returns the delivery date promised for urgency when ordered at from.
func DueDateFor(urgency model.Urgency, from time.Time) (time.Time, error) {
	days, ok := leadDays[urgency]
	if !ok {
		return time.Time{}, ErrInvalidUrgency
	}
	return from.AddDate(0, 0, days), nil
}

// PriceFor quotes a garment at the given urgency, rounded to whole units.
func PriceFor(garmentType string, urgency model.Urgency) (decimal.Decimal, error) {
	mult, ok := urgencyMultipliers[urgency]
	if !ok {
		return decimal.Zero, ErrInvalidUrgency
	}
	base, ok := basePrices[garmentType]
	if !ok {
		base = defaultBasePrice
	}
	return decimal.NewFromInt(base).Mul(mult).Round(0), nil
}

// ProgressFor is the progress a status transition implies. requested is
// honoured only for in_progress, where 0 means "use the default".
func ProgressFor(status model.Status, requested int) int {
	switch status {
	case model.StatusConfirmed:
		return 10
	case model.StatusInProgress:
		if requested > 0 && requested <= 100 {
			return requested
		}
		return 50
	case model.StatusReady:
		return 90
	case model.StatusDelivered:
		return 100
	}
	return 0
}

const maxMeasurement = 10000

// CleanMeasurements trims values and rejects anything that is not a
// finite number between 0 and maxMeasurement. Empty values are dropped.
func CleanMeasurements(in model.Measurements) (model.Measurements, error) {
	out := make(model.Measurements, len(in))
	for name, value := range in {
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if name == "" || value == "" {
			continue
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) || f > maxMeasurement {
			return nil, ErrInvalidMeasurement
		}
		out[name] = value
	}
	return out, nil
}
