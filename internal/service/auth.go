package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"tailorshop/internal/model"
)

var (
	ErrEmailTaken         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountNotFound    = errors.New("account not found")
	ErrWrongRole          = errors.New("account is registered with another role")
	ErrTailorNotVerified  = errors.New("tailor account is not verified or inactive")
	ErrWeakPassword       = errors.New("password too short")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrMissingProfile     = errors.New("required profile fields missing")
	ErrResetTokenInvalid  = errors.New("reset token invalid or expired")
)

const (
	minPasswordLen = 6
	resetTokenTTL  = time.Hour
)

// authMessages is the text shown to users for each auth failure.
var authMessages = []struct {
	err error
	msg string
}{
	{ErrAccountNotFound, "No account found with this email. Please sign up first."},
	{ErrInvalidCredentials, "Incorrect email or password. Please try again."},
	{ErrEmailTaken, "An account with this email already exists. Please login instead."},
	{ErrWeakPassword, "Password should be at least 6 characters long."},
	{ErrInvalidEmail, "Please enter a valid email address."},
	{ErrMissingProfile, "Please fill in all required fields."},
	{ErrTailorNotVerified, "This tailor account has not been verified yet or is inactive."},
	{ErrWrongRole, "This account is registered with a different role. Please use the matching login."},
	{ErrResetTokenInvalid, "This password reset link is invalid or has expired."},
}

// AuthMessage maps an auth error to user-facing text.
func AuthMessage(err error) string {
	for _, m := range authMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return "An error occurred. Please try again."
}

type CustomerSignup struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

type TailorSignup struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Name         string `json:"name"`
	BusinessName string `json:"businessName"`
	Phone        string `json:"phone"`
}

// ResetMailer delivers password reset links out of band.
type ResetMailer interface {
	SendPasswordReset(ctx context.Context, email, link string) error
}

type AuthService struct {
	db       *sql.DB
	mailer   ResetMailer
	resetURL string
	now      func() time.Time
}

// NewAuthService builds the service. Reset links are resetURL with the
// token appended as a query parameter.
func NewAuthService(db *sql.DB, mailer ResetMailer, resetURL string) *AuthService {
	return &AuthService{db: db, mailer: mailer, resetURL: resetURL, now: time.Now}
}

// NormalizeEmail lower-cases and trims an address and checks its syntax.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func checkPassword(password string) error {
	if len(password) < minPasswordLen {
		return ErrWeakPassword
	}
	return nil
}

func (s *AuthService) RegisterCustomer(ctx context.Context, in CustomerSignup) (*model.Account, error) {
	in.Name, in.Phone = strings.TrimSpace(in.Name), strings.TrimSpace(in.Phone)
	if in.Name == "" || in.Phone == "" {
		return nil, ErrMissingProfile
	}
	return s.register(ctx, in.Email, in.Password, model.RoleCustomer, func(tx *sql.Tx, acc *model.Account) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO customers (id, name, phone, email) VALUES ($1, $2, $3, $4)`,
			acc.ID, in.Name, in.Phone, acc.Email,
		)
		return err
	})
}

// RegisterTailor creates an unverified tailor; sign-in is refused until an
// operator sets is_verified.
func (s *AuthService) RegisterTailor(ctx context.Context, in TailorSignup) (*model.Account, error) {
	in.Name, in.Phone = strings.TrimSpace(in.Name), strings.TrimSpace(in.Phone)
	in.BusinessName = strings.TrimSpace(in.BusinessName)
	if in.Name == "" || in.Phone == "" || in.BusinessName == "" {
		return nil, ErrMissingProfile
	}
	return s.register(ctx, in.Email, in.Password, model.RoleTailor, func(tx *sql.Tx, acc *model.Account) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tailors (id, name, business_name, phone, email) VALUES ($1, $2, $3, $4, $5)`,
			acc.ID, in.Name, in.BusinessName, in.Phone, acc.Email,
		)
		return err
	})
}

func (s *AuthService) register(ctx context.Context, email, password string, role model.Role, profile func(*sql.Tx, *model.Account) error) (*model.Account, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := checkPassword(password); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	acc := model.Account{Email: email, PasswordHash: hash, Role: role}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO accounts (email, password_hash, role) VALUES ($1, $2, $3) RETURNING id, created_at`,
		email, hash, role,
	).Scan(&acc.ID, &acc.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}
	if err := profile(tx, &acc); err != nil {
		return nil, fmt.Errorf("insert %s profile: %w", role, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &acc, nil
}

// Authenticate checks credentials for the given role. Tailors must also be
// verified and active.
func (s *AuthService) Authenticate(ctx context.Context, email, password string, role model.Role) (*model.Account, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	var acc model.Account
	err = s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, role, created_at FROM accounts WHERE email = $1`, email,
	).Scan(&acc.ID, &acc.Email, &acc.PasswordHash, &acc.Role, &acc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if role != "" && acc.Role != role {
		return nil, ErrWrongRole
	}

	if acc.Role == model.RoleTailor {
		var verified, active bool
		err := s.db.QueryRowContext(ctx,
			`SELECT is_verified, is_active FROM tailors WHERE id = $1`, acc.ID,
		).Scan(&verified, &active)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get tailor: %w", err)
		}
		if !verified || !active {
			return nil, ErrTailorNotVerified
		}
	}

	return &acc, nil
}

// RequestPasswordReset issues a single-use token valid for one hour and
// mails it to the account owner. The token never leaves the service any
// other way.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email, err := NormalizeEmail(email)
	if err != nil {
		return err
	}

	var accountID string
	err = s.db.QueryRowContext(ctx, `SELECT id FROM accounts WHERE email = $1`, email).Scan(&accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("get account: %w", err)
	}

	token := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO password_resets (token, account_id, expires_at) VALUES ($1, $2, $3)`,
		token, accountID, s.now().Add(resetTokenTTL),
	)
	if err != nil {
		return fmt.Errorf("insert reset token: %w", err)
	}

	if s.mailer == nil {
		return nil
	}
	if err := s.mailer.SendPasswordReset(ctx, email, ResetLink(s.resetURL, token)); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	return nil
}

// ResetLink appends token to base as the "token" query parameter.
func ResetLink(base, token string) string {
	u, err := url.Parse(base)
	if err != nil || base == "" {
		return "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	if err := checkPassword(password); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var accountID string
	err = tx.QueryRowContext(ctx,
		`DELETE FROM password_resets WHERE token = $1 AND expires_at > $2 RETURNING account_id`,
		token, s.now(),
	).Scan(&accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrResetTokenInvalid
		}
		return fmt.Errorf("consume reset token: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET password_hash = $1 WHERE id = $2`, hash, accountID); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
