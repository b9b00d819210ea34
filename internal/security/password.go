// Package security implements the credential store and the account lockout state machine.
package security

import (
	"fmt"
	"sync"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"adconsole/internal/apperr"
	"adconsole/internal/models"
)

// DefaultMinPasswordLength is the minimum password length when none is configured.
const DefaultMinPasswordLength = 8

// PasswordPolicy describes the strength rules for new passwords.
type PasswordPolicy struct {
	MinLength int
}

// Validate returns a *apperr.WeakPasswordError listing every rule plain violates.
func (p PasswordPolicy) Validate(plain string) error {
	minLen := p.MinLength
	if minLen <= 0 {
		minLen = DefaultMinPasswordLength
	}

	var reasons []string
	if len([]rune(plain)) < minLen {
		reasons = append(reasons, fmt.Sprintf("must be at least %d characters long", minLen))
	}
	var hasUpper, hasDigit bool
	for _, r := range plain {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper {
		reasons = append(reasons, "must contain at least one uppercase letter")
	}
	if !hasDigit {
		reasons = append(reasons, "must contain at least one number")
	}
	if len(reasons) > 0 {
		return &apperr.WeakPasswordError{Reasons: reasons}
	}
	return nil
}

// Credentials hashes and verifies user passwords with bcrypt.
type Credentials struct {
	policy PasswordPolicy
	cost   int

	dummyOnce sync.Once
	dummy     []byte
}

// CredentialsOption configures Credentials.
type CredentialsOption func(*Credentials)

// WithCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithCost(cost int) CredentialsOption {
	return func(c *Credentials) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			c.cost = cost
		}
	}
}

// NewCredentials returns a credential store enforcing policy.
func NewCredentials(policy PasswordPolicy, opts ...CredentialsOption) *Credentials {
	c := &Credentials{policy: policy, cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the password policy in force.
func (c *Credentials) Policy() PasswordPolicy { return c.policy }

// SetPassword validates plain and stores its salted hash on u. On failure u is left untouched.
// Lockout state is not modified here.
func (c *Credentials) SetPassword(u *models.User, plain string) error {
	if err := c.policy.Validate(plain); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), c.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword reports whether plain matches the hash stored on u. A nil user or an empty hash is
// compared against a throwaway hash so the call costs the same as a real mismatch.
func (c *Credentials) CheckPassword(u *models.User, plain string) bool {
	if u == nil || u.PasswordHash == "" {
		_ = bcrypt.CompareHashAndPassword(c.dummyHash(), []byte(plain))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plain)) == nil
}

func (c *Credentials) dummyHash() []byte {
	c.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("unused-placeholder-Secret1"), c.cost)
		if err != nil {
			hash = []byte("$2a$10$0000000000000000000000000000000000000000000000000000")
		}
		c.dummy = hash
	})
	return c.dummy
}
