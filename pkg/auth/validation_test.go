package auth

import (
	"errors"
	"testing"

	"github.com/worknest/worknest/pkg/domain"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{name: "valid", email: "owner@example.com", wantErr: false},
		{name: "valid with plus", email: "owner+tag@example.com", wantErr: false},
		{name: "uppercase is normalized", email: "Owner@Example.COM", wantErr: false},
		{name: "empty", email: "", wantErr: true},
		{name: "no at sign", email: "ownerexample.com", wantErr: true},
		{name: "no domain", email: "owner@", wantErr: true},
		{name: "spaces inside", email: "own er@example.com", wantErr: true},
		{name: "display name form rejected", email: "Owner <owner@example.com>", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrInvalidEmail) {
				t.Errorf("expected domain.ErrInvalidEmail, got %v", err)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Owner@Example.COM "); got != "owner@example.com" {
		t.Errorf("NormalizeEmail = %q, want owner@example.com", got)
	}
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{name: "valid", username: "student42", wantErr: false},
		{name: "valid with hyphen", username: "acme-corp", wantErr: false},
		{name: "valid with underscore", username: "acme_corp", wantErr: false},
		{name: "too short", username: "ab", wantErr: true},
		{name: "too long", username: "a234567890123456789012345678901", wantErr: true},
		{name: "starts with hyphen", username: "-acme", wantErr: true},
		{name: "contains space", username: "acme corp", wantErr: true},
		{name: "empty", username: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUsername(%q) error = %v, wantErr %v", tt.username, err, tt.wantErr)
			}
		})
	}
}

func TestPasswordPolicy_ValidatePassword(t *testing.T) {
	policy := DefaultPasswordPolicy()

	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "valid", password: "password1", wantErr: false},
		{name: "too short", password: "pass1", wantErr: true},
		{name: "no number", password: "passwordonly", wantErr: true},
		{name: "no letter", password: "12345678901", wantErr: true},
		{name: "exactly eight with both", password: "passwrd1", wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := policy.ValidatePassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrWeakPassword) {
				t.Errorf("expected domain.ErrWeakPassword, got %v", err)
			}
		})
	}
}
