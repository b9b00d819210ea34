// Package access holds the request principal and the two capability gates.
package access

import (
	"fmt"

	"github.com/google/uuid"

	"adconsole/internal/apperr"
	"adconsole/internal/models"
)

// Principal is the authenticated identity bound to a request.
type Principal struct {
	UserID    uuid.UUID
	Username  string
	Role      models.Role
	Active    bool
	SessionID uuid.UUID
}

// Capability is what an operation needs from its caller.
type Capability int

const (
	// Authenticated is required to read directory data.
	Authenticated Capability = iota
	// Admin is required to create, update, delete or change status of directory entities.
	Admin
)

func (c Capability) String() string {
	switch c {
	case Authenticated:
		return "authenticated"
	case Admin:
		return "admin"
	default:
		return fmt.Sprintf("capability(%d)", int(c))
	}
}

// RequireAuthenticated fails when no principal is bound or the bound account is inactive.
func RequireAuthenticated(p *Principal) error {
	if p == nil || p.UserID == uuid.Nil || !p.Active {
		return apperr.ErrAuthenticationRequired
	}
	return nil
}

// RequireAdmin implies RequireAuthenticated and additionally demands the Admin role.
func RequireAdmin(p *Principal) error {
	if err := RequireAuthenticated(p); err != nil {
		return err
	}
	if p.Role != models.RoleAdmin {
		return apperr.ErrForbidden
	}
	return nil
}

// Require dispatches to the gate for c. Unknown capabilities are refused.
func Require(p *Principal, c Capability) error {
	switch c {
	case Authenticated:
		return RequireAuthenticated(p)
	case Admin:
		return RequireAdmin(p)
	default:
		return apperr.ErrForbidden
	}
}

// IsSelf reports whether the principal is the user identified by id.
func (p *Principal) IsSelf(id uuid.UUID) bool {
	return p != nil && p.UserID == id
}

// FromUser builds a principal from a loaded user row.
func FromUser(u *models.User, sessionID uuid.UUID) *Principal {
	return &Principal{
		UserID:    u.ID,
		Username:  u.Username,
		Role:      u.Role,
		Active:    u.IsActive,
		SessionID: sessionID,
	}
}
