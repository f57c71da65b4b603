package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"tailorshop/internal/model"
)

var ErrCustomerNotFound = errors.New("customer not found")

type CustomerService struct {
	db *sql.DB
}

func NewCustomerService(db *sql.DB) *CustomerService {
	return &CustomerService{db: db}
}

const customerQuery = `
	SELECT c.id, c.name, c.phone, c.email, c.saved_measurements, c.created_at,
		COUNT(o.id),
		COUNT(o.id) FILTER (WHERE o.status NOT IN ('delivered', 'cancelled'))
	FROM customers c
	LEFT JOIN orders o ON o.customer_id = c.id`

func scanCustomer(row rowScanner) (model.Customer, error) {
	var (
		c     model.Customer
		saved []byte
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &saved, &c.CreatedAt, &c.OrderCount, &c.ActiveOrderCount); err != nil {
		return c, err
	}
	if err := json.Unmarshal(saved, &c.SavedMeasurements); err != nil {
		return c, fmt.Errorf("decode saved measurements: %w", err)
	}
	return c, nil
}

func (s *CustomerService) Get(ctx context.Context, id string) (*model.Customer, error) {
	row := s.db.QueryRowContext(ctx, customerQuery+` WHERE c.id = $1 GROUP BY c.id`, id)
	c, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return &c, nil
}

func (s *CustomerService) List(ctx context.Context) ([]model.Customer, error) {
	rows, err := s.db.QueryContext(ctx, customerQuery+` GROUP BY c.id ORDER BY c.name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	defer rows.Close()

	var customers []model.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return customers, nil
}

// SaveMeasurements remembers m as the customer's default for garmentType.
func (s *CustomerService) SaveMeasurements(ctx context.Context, customerID, garmentType string, m model.Measurements) error {
	garmentType = strings.TrimSpace(garmentType)
	if garmentType == "" {
		return ErrMissingGarment
	}
	cleaned, err := CleanMeasurements(m)
	if err != nil {
		return err
	}
	patch, err := json.Marshal(map[string]model.Measurements{garmentType: cleaned})
	if err != nil {
		return fmt.Errorf("encode measurements: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE customers SET saved_measurements = saved_measurements || $1::jsonb, updated_at = NOW() WHERE id = $2`,
		string(patch), customerID,
	)
	if err != nil {
		return fmt.Errorf("save measurements: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrCustomerNotFound
	}
	return nil
}
