package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		valid bool
	}{
		{"valid_simple", "user@example.com", true},
		{"valid_subdomain", "user@mail.example.com", true},
		{"valid_plus", "user+tag@example.com", true},
		{"invalid_no_at", "userexample.com", false},
		{"invalid_no_domain", "user@", false},
		{"invalid_double_at", "user@@example.com", false},
		{"invalid_spaces", "user @example.com", false},
		{"invalid_no_tld", "user@example", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidEmail(tt.email), "Email: %s", tt.email)
		})
	}
}

func TestIsValidHexColor(t *testing.T) {
	tests := []struct {
		color string
		valid bool
	}{
		{"#fff", true},
		{"#FFF", true},
		{"#67e8f9", true},
		{"#FF0000", true},
		{"#ZZZZZZ", false},
		{"FF0000", false},
		{"#FFFF", false},
		{"#FF00000", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.color, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidHexColor(tt.color))
		})
	}
}

func TestIsValidPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		valid    bool
	}{
		{"valid", "Password123", true},
		{"too_short", "Pa1", false},
		{"no_upper", "password123", false},
		{"no_lower", "PASSWORD123", false},
		{"no_number", "PasswordABC", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, msg := IsValidPassword(tt.password)
			assert.Equal(t, tt.valid, ok)
			if !tt.valid {
				assert.NotEmpty(t, msg)
			}
		})
	}
}

func TestIsValidUUID(t *testing.T) {
	assert.True(t, IsValidUUID("123e4567-e89b-12d3-a456-426614174000"))
	assert.False(t, IsValidUUID("not-a-uuid"))
}

func TestLength(t *testing.T) {
	assert.True(t, Length("ab", 2, 255))
	assert.False(t, Length(" a ", 2, 255))
	assert.False(t, Length("", 1, 255))
	assert.True(t, Length("ééé", 1, 3))
}

func TestDates(t *testing.T) {
	d, ok := ParseDate("2024-02-29")
	assert.True(t, ok)
	assert.Equal(t, 29, d.Day())

	_, ok = ParseDate("29/02/2024")
	assert.False(t, ok)

	now := time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)
	today, _ := ParseDate("2024-06-01")
	tomorrow, _ := ParseDate("2024-06-02")
	assert.False(t, IsFutureDate(today, now))
	assert.True(t, IsFutureDate(tomorrow, now))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello", SanitizeString(" hel\x00lo\x07 "))
}
