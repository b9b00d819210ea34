package directory

import (
	"errors"
	"net"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"adconsole/internal/apperr"
)

func length(field, value string, minLen, maxLen int) error {
	n := utf8.RuneCountInString(value)
	switch {
	case n == 0 && minLen > 0:
		return apperr.Invalid(field, "is required")
	case minLen > 0 && (n < minLen || n > maxLen):
		return apperr.Invalid(field, "must be between %d and %d characters", minLen, maxLen)
	case n > maxLen:
		return apperr.Invalid(field, "must be at most %d characters", maxLen)
	}
	return nil
}

func validEmail(v string) error {
	if v == "" {
		return apperr.Invalid("email", "is required")
	}
	addr, err := mail.ParseAddress(v)
	if err != nil || addr.Address != v || !strings.Contains(v[strings.LastIndex(v, "@"):], ".") {
		return apperr.Invalid("email", "invalid email address")
	}
	return nil
}

func validIP(v string) error {
	if net.ParseIP(v) == nil {
		return apperr.Invalid("ip_address", "invalid IP address")
	}
	return nil
}

// taken reports whether a row other than self already has column = value.
func taken(tx *gorm.DB, model any, column, value string, self uuid.UUID) (bool, error) {
	q := tx.Model(model).Where(column+" = ?", value)
	if self != uuid.Nil {
		q = q.Where("id <> ?", self)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// notFound maps gorm's missing-row error to apperr.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.ErrNotFound
	}
	return err
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
