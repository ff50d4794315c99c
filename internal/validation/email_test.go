package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		errMsg  string
		wantErr bool
	}{
		{
			name:    "valid email - simple",
			email:   "a@x.com",
			wantErr: false,
		},
		{
			name:    "valid email - plus and dots",
			email:   "first.last+tag@mail.example.org",
			wantErr: false,
		},
		{
			name:    "invalid - empty email",
			email:   "",
			wantErr: true,
			errMsg:  "email cannot be empty",
		},
		{
			name:    "invalid - no at sign",
			email:   "alice.example.com",
			wantErr: true,
			errMsg:  "invalid format",
		},
		{
			name:    "invalid - no domain dot",
			email:   "alice@localhost",
			wantErr: true,
			errMsg:  "invalid format",
		},
		{
			name:    "invalid - display name",
			email:   "Alice <alice@example.com>",
			wantErr: true,
			errMsg:  "invalid format",
		},
		{
			name:    "invalid - whitespace",
			email:   "ali ce@example.com",
			wantErr: true,
			errMsg:  "invalid format",
		},
		{
			name:    "invalid - too long",
			email:   strings.Repeat("a", 250) + "@x.com",
			wantErr: true,
			errMsg:  "must not exceed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "alice@example.com", NormalizeEmail("  Alice@Example.COM "))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		errMsg   string
		wantErr  bool
	}{
		{name: "valid password", password: "secret123"},
		{name: "exactly min length", password: "123456"},
		{name: "exactly max length", password: strings.Repeat("p", MaxPasswordLen)},
		{name: "empty", password: "", wantErr: true, errMsg: "cannot be empty"},
		{name: "too short", password: "12345", wantErr: true, errMsg: "at least 6"},
		{name: "too long", password: strings.Repeat("p", MaxPasswordLen+1), wantErr: true, errMsg: "must not exceed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
