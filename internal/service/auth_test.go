package service

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEmail(t *testing.T) {
	got, err := NormalizeEmail("  Ada.Lovelace@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "ada.lovelace@example.com", got)

	for _, bad := range []string{"", "ada", "ada@", "ada@localhost", "Ada <ada@example.com>", "a b@example.com"} {
		_, err := NormalizeEmail(bad)
		assert.ErrorIs(t, err, ErrInvalidEmail, bad)
	}
}

func TestAuthMessage(t *testing.T) {
	assert.Equal(t, "No account found with this email. Please sign up first.", AuthMessage(ErrAccountNotFound))
	assert.Equal(t, "Password should be at least 6 characters long.", AuthMessage(fmt.Errorf("register: %w", ErrWeakPassword)))
	assert.Contains(t, AuthMessage(ErrTailorNotVerified), "not been verified")
	assert.Equal(t, "An error occurred. Please try again.", AuthMessage(fmt.Errorf("db down")))
}

func TestCheckPassword(t *testing.T) {
	assert.ErrorIs(t, checkPassword("12345"), ErrWeakPassword)
	assert.NoError(t, checkPassword("123456"))
}
