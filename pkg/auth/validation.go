package auth

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode"

	"github.com/worknest/worknest/pkg/domain"
)

const maxEmailLength = 254 // RFC 5321

// Username: 3-30 chars, alphanumeric/underscore/hyphen, starts alphanumeric.
var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{2,29}$`)

// NormalizeEmail lowercases and trims an email address. Lookup and
// uniqueness are always performed on the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail validates an email address for format and length.
func ValidateEmail(email string) error {
	if email == "" || len(email) > maxEmailLength {
		return domain.ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(NormalizeEmail(email))
	if err != nil || addr.Address != NormalizeEmail(email) {
		return domain.ErrInvalidEmail
	}
	return nil
}

// ValidateUsername validates a username's format.
func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return domain.ErrInvalidUsername
	}
	return nil
}

// PasswordPolicy defines password complexity requirements.
type PasswordPolicy struct {
	MinLength     int
	RequireNumber bool
	RequireLetter bool
}

// DefaultPasswordPolicy returns the default complexity requirements.
func DefaultPasswordPolicy() *PasswordPolicy {
	return &PasswordPolicy{MinLength: 8, RequireNumber: true, RequireLetter: true}
}

// ValidatePassword checks if a password meets the policy requirements.
func (p *PasswordPolicy) ValidatePassword(password string) error {
	if len(password) < p.MinLength {
		return domain.ErrWeakPassword
	}
	if p.RequireNumber && !strings.ContainsFunc(password, unicode.IsDigit) {
		return domain.ErrWeakPassword
	}
	if p.RequireLetter && !strings.ContainsFunc(password, unicode.IsLetter) {
		return domain.ErrWeakPassword
	}
	return nil
}
