package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tailorshop/internal/model"
	"tailorshop/internal/subscription"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrOrderImmutable  = errors.New("order is delivered or cancelled")
	ErrOrderLocked     = errors.New("order can no longer be edited by the customer")
	ErrInvalidStatus   = errors.New("invalid order status")
	ErrInvalidProgress = errors.New("progress must be between 0 and 100")
	ErrMissingGarment  = errors.New("garment type is required")
	ErrTooManyPhotos   = errors.New("at most 5 inspiration photos per order")
)

const MaxPhotosPerOrder = 5

// OrderInput carries the fields a customer controls.
type OrderInput struct {
	GarmentType         string             `json:"garmentType"`
	Fabric              string             `json:"fabric"`
	SpecialInstructions string             `json:"specialInstructions"`
	Urgency             model.Urgency      `json:"urgency"`
	Measurements        model.Measurements `json:"measurements"`
	InspirationPhotos   []model.Photo      `json:"inspirationPhotos"`
}

// ManualOrderInput is an order the tailor enters on a customer's behalf.
type ManualOrderInput struct {
	OrderInput
	CustomerID    string           `json:"customerId"`
	CustomerName  string           `json:"customerName"`
	CustomerPhone string           `json:"customerPhone"`
	CustomerEmail string           `json:"customerEmail"`
	Amount        *decimal.Decimal `json:"amount"`
	DueDate       *time.Time       `json:"-"`
}

type photoOwner interface {
	Owns(uid, url string) bool
}

type OrderService struct {
	db      *sql.DB
	changes *Broadcaster
	photos  photoOwner
	now     func() time.Time
}

// NewOrderService builds the service. Client-supplied inspiration photos are
// accepted only when photos says they were uploaded by the order's customer.
func NewOrderService(db *sql.DB, changes *Broadcaster, photos photoOwner) *OrderService {
	return &OrderService{db: db, changes: changes, photos: photos, now: time.Now}
}

// keepPhotos filters incoming to photos already on the order or uploaded by
// customerID. Entries already on the order keep their stored metadata.
func (s *OrderService) keepPhotos(customerID string, current, incoming []model.Photo) []model.Photo {
	known := make(map[string]model.Photo, len(current))
	for _, p := range current {
		known[p.URL] = p
	}
	seen := make(map[string]bool, len(incoming))
	out := []model.Photo{}
	for _, p := range incoming {
		if seen[p.URL] {
			continue
		}
		if old, ok := known[p.URL]; ok {
			out = append(out, old)
		} else if s.photos != nil && customerID != "" && s.photos.Owns(customerID, p.URL) {
			out = append(out, p)
		} else {
			continue
		}
		seen[p.URL] = true
	}
	return out
}

const orderColumns = `id, COALESCE(customer_id::text, ''), customer_name, customer_phone, customer_email,
	garment_type, fabric, special_instructions, urgency, measurements, inspiration_photos, amount,
	status, progress, due_date, expected_delivery, modified_by, modification_reason,
	created_at, updated_at, last_modified`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (model.Order, error) {
	var (
		o            model.Order
		measurements []byte
		photos       []byte
		due          sql.NullTime
	)
	err := row.Scan(&o.ID, &o.CustomerID, &o.CustomerName, &o.CustomerPhone, &o.CustomerEmail,
		&o.GarmentType, &o.Fabric, &o.SpecialInstructions, &o.Urgency, &measurements, &photos, &o.Amount,
		&o.Status, &o.Progress, &due, &o.ExpectedDelivery, &o.ModifiedBy, &o.ModificationReason,
		&o.CreatedAt, &o.UpdatedAt, &o.LastModified)
	if err != nil {
		return o, err
	}
	if due.Valid {
		t := due.Time
		o.DueDate = &t
	}
	if err := json.Unmarshal(measurements, &o.Measurements); err != nil {
		return o, fmt.Errorf("decode measurements: %w", err)
	}
	if err := json.Unmarshal(photos, &o.InspirationPhotos); err != nil {
		return o, fmt.Errorf("decode photos: %w", err)
	}
	return o, nil
}

func scanOrders(rows *sql.Rows) ([]model.Order, error) {
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return orders, nil
}

func (in *OrderInput) normalize() error {
	in.GarmentType = strings.TrimSpace(in.GarmentType)
	if in.GarmentType == "" {
		return ErrMissingGarment
	}
	if in.Urgency == "" {
		in.Urgency = model.UrgencyNormal
	}
	if !in.Urgency.Valid() {
		return ErrInvalidUrgency
	}
	if len(in.InspirationPhotos) > MaxPhotosPerOrder {
		return ErrTooManyPhotos
	}
	m, err := CleanMeasurements(in.Measurements)
	if err != nil {
		return err
	}
	in.Measurements = m
	in.Fabric = strings.TrimSpace(in.Fabric)
	in.SpecialInstructions = strings.TrimSpace(in.SpecialInstructions)
	return nil
}

// Create places a customer order. Price and due date derive from garment and urgency.
func (s *OrderService) Create(ctx context.Context, customer model.Customer, in OrderInput) (*model.Order, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	now := s.now()
	due, err := DueDateFor(in.Urgency, now)
	if err != nil {
		return nil, err
	}
	price, err := PriceFor(in.GarmentType, in.Urgency)
	if err != nil {
		return nil, err
	}

	o := model.Order{
		CustomerID:         customer.ID,
		CustomerName:       customer.Name,
		CustomerPhone:      customer.Phone,
		CustomerEmail:      customer.Email,
		Amount:             price,
		Status:             model.StatusPending,
		DueDate:            &due,
		ExpectedDelivery:   due.Format(time.DateOnly),
		ModifiedBy:         model.PartyCustomer,
		ModificationReason: model.ReasonNewOrder,
	}
	in.InspirationPhotos = s.keepPhotos(customer.ID, nil, in.InspirationPhotos)
	return s.insert(ctx, o, in, now)
}

// CreateManual records an order entered by the tailor. It is attributed to
// the tailor so it does not notify the tailor's own session.
func (s *OrderService) CreateManual(ctx context.Context, in ManualOrderInput) (*model.Order, error) {
	if err := in.OrderInput.normalize(); err != nil {
		return nil, err
	}
	now := s.now()
	due, err := DueDateFor(in.Urgency, now)
	if err != nil {
		return nil, err
	}
	if in.DueDate != nil {
		due = *in.DueDate
	}
	amount, err := PriceFor(in.GarmentType, in.Urgency)
	if err != nil {
		return nil, err
	}
	if in.Amount != nil {
		amount = in.Amount.Round(2)
	}

	o := model.Order{
		CustomerID:         in.CustomerID,
		CustomerName:       strings.TrimSpace(in.CustomerName),
		CustomerPhone:      strings.TrimSpace(in.CustomerPhone),
		CustomerEmail:      strings.ToLower(strings.TrimSpace(in.CustomerEmail)),
		Amount:             amount,
		Status:             model.StatusPending,
		DueDate:            &due,
		ExpectedDelivery:   due.Format(time.DateOnly),
		ModifiedBy:         model.PartyTailor,
		ModificationReason: model.ReasonManualOrder,
	}
	in.InspirationPhotos = s.keepPhotos(in.CustomerID, nil, in.InspirationPhotos)
	return s.insert(ctx, o, in.OrderInput, now)
}

func (s *OrderService) insert(ctx context.Context, o model.Order, in OrderInput, now time.Time) (*model.Order, error) {
	measurements, err := json.Marshal(in.Measurements)
	if err != nil {
		return nil, fmt.Errorf("encode measurements: %w", err)
	}
	photos, err := encodePhotos(in.InspirationPhotos)
	if err != nil {
		return nil, err
	}

	var customerID any
	if o.CustomerID != "" {
		customerID = o.CustomerID
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO orders (customer_id, customer_name, customer_phone, customer_email,
			garment_type, fabric, special_instructions, urgency, measurements, inspiration_photos,
			amount, status, progress, due_date, expected_delivery, modified_by, modification_reason,
			created_at, updated_at, last_modified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 0, $13, $14, $15, $16, $17, $17, $17)
		RETURNING `+orderColumns,
		customerID, o.CustomerName, o.CustomerPhone, o.CustomerEmail,
		in.GarmentType, in.Fabric, in.SpecialInstructions, in.Urgency, string(measurements), string(photos),
		o.Amount, o.Status, o.DueDate, o.ExpectedDelivery, o.ModifiedBy, o.ModificationReason, now,
	)
	created, err := scanOrder(row)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	s.changes.Notify()
	return &created, nil
}

func (s *OrderService) Get(ctx context.Context, id string) (*model.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

// List returns the orders visible in scope, newest first.
func (s *OrderService) List(ctx context.Context, scope subscription.Scope) ([]model.Order, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if scope.Role == model.RoleTailor {
		rows, err = s.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+orderColumns+` FROM orders WHERE customer_id = $1 ORDER BY created_at DESC`,
			scope.CustomerID,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	return scanOrders(rows)
}

// ListDueBetween returns orders whose due date falls in [from, to).
func (s *OrderService) ListDueBetween(ctx context.Context, from, to time.Time) ([]model.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE due_date >= $1 AND due_date < $2
		ORDER BY due_date ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query due orders: %w", err)
	}
	return scanOrders(rows)
}

// mutate loads the order under a row lock, lets apply change it and writes
// it back stamped with the given attribution.
func (s *OrderService) mutate(ctx context.Context, id string, by model.Party, reason string, apply func(o *model.Order) error) (*model.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}
	if o.Status.Terminal() {
		return nil, ErrOrderImmutable
	}
	if err := apply(&o); err != nil {
		return nil, err
	}

	measurements, err := json.Marshal(o.Measurements)
	if err != nil {
		return nil, fmt.Errorf("encode measurements: %w", err)
	}
	photos, err := encodePhotos(o.InspirationPhotos)
	if err != nil {
		return nil, err
	}

	now := s.now()
	row = tx.QueryRowContext(ctx, `
		UPDATE orders SET garment_type = $1, fabric = $2, special_instructions = $3, urgency = $4,
			measurements = $5, inspiration_photos = $6, status = $7, progress = $8, due_date = $9,
			expected_delivery = $10, modified_by = $11, modification_reason = $12,
			updated_at = $13, last_modified = $13
		WHERE id = $14
		RETURNING `+orderColumns,
		o.GarmentType, o.Fabric, o.SpecialInstructions, o.Urgency,
		string(measurements), string(photos), o.Status, o.Progress, o.DueDate,
		o.ExpectedDelivery, by, reason, now, id,
	)
	updated, err := scanOrder(row)
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.changes.Notify()
	return &updated, nil
}

// UpdateByCustomer applies a customer's edit. Changing urgency while the
// order is still pending or confirmed moves the due date.
func (s *OrderService) UpdateByCustomer(ctx context.Context, customerID, id string, in OrderInput) (*model.Order, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, model.PartyCustomer, model.ReasonCustomerEdit, func(o *model.Order) error {
		if o.CustomerID != customerID {
			return ErrOrderNotFound
		}
		if !o.Status.Editable() {
			return ErrOrderLocked
		}
		if in.Urgency != o.Urgency {
			due, err := DueDateFor(in.Urgency, s.now())
			if err != nil {
				return err
			}
			o.DueDate = &due
			o.ExpectedDelivery = due.Format(time.DateOnly)
		}
		o.GarmentType = in.GarmentType
		o.Fabric = in.Fabric
		o.SpecialInstructions = in.SpecialInstructions
		o.Urgency = in.Urgency
		o.Measurements = in.Measurements
		o.InspirationPhotos = s.keepPhotos(customerID, o.InspirationPhotos, in.InspirationPhotos)
		return nil
	})
}

// UpdateStatus moves an order to status, setting the implied progress. It
// returns the updated order and the status it had before.
func (s *OrderService) UpdateStatus(ctx context.Context, id string, status model.Status, progress int) (*model.Order, model.Status, error) {
	if !status.Valid() {
		return nil, "", ErrInvalidStatus
	}
	if progress < 0 || progress > 100 {
		return nil, "", ErrInvalidProgress
	}
	var previous model.Status
	o, err := s.mutate(ctx, id, model.PartyTailor, model.ReasonStatusUpdate, func(o *model.Order) error {
		previous = o.Status
		o.Status = status
		o.Progress = ProgressFor(status, progress)
		return nil
	})
	return o, previous, err
}

// UpdateProgress sets progress directly, leaving the status alone.
func (s *OrderService) UpdateProgress(ctx context.Context, id string, progress int) (*model.Order, error) {
	if progress < 0 || progress > 100 {
		return nil, ErrInvalidProgress
	}
	return s.mutate(ctx, id, model.PartyTailor, model.ReasonProgressUpdate, func(o *model.Order) error {
		o.Progress = progress
		return nil
	})
}

func (s *OrderService) UpdateMeasurements(ctx context.Context, id string, m model.Measurements) (*model.Order, error) {
	cleaned, err := CleanMeasurements(m)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, model.PartyTailor, model.ReasonMeasurementUpdate, func(o *model.Order) error {
		o.Measurements = cleaned
		return nil
	})
}

// AddPhotos attaches uploaded photos to a customer's own editable order.
func (s *OrderService) AddPhotos(ctx context.Context, customerID, id string, photos []model.Photo) (*model.Order, error) {
	return s.mutate(ctx, id, model.PartyCustomer, model.ReasonPhotoUpdate, func(o *model.Order) error {
		if o.CustomerID != customerID {
			return ErrOrderNotFound
		}
		if !o.Status.Editable() {
			return ErrOrderLocked
		}
		if len(o.InspirationPhotos)+len(photos) > MaxPhotosPerOrder {
			return ErrTooManyPhotos
		}
		o.InspirationPhotos = append(o.InspirationPhotos, photos...)
		return nil
	})
}

func encodePhotos(photos []model.Photo) ([]byte, error) {
	if photos == nil {
		photos = []model.Photo{}
	}
	b, err := json.Marshal(photos)
	if err != nil {
		return nil, fmt.Errorf("encode photos: %w", err)
	}
	return b, nil
}
