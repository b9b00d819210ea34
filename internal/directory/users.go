package directory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"adconsole/internal/access"
	"adconsole/internal/apperr"
	"adconsole/internal/audit"
	"adconsole/internal/listing"
	"adconsole/internal/models"
	"adconsole/internal/session"
)

// UserInput carries the editable user fields. Password is required on create and optional on update.
type UserInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Role      models.Role
	IsActive  bool
	Password  string
}

func (in *UserInput) normalize() {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
}

func (in UserInput) validate() error {
	if err := length("username", in.Username, 3, 20); err != nil {
		return err
	}
	if strings.ContainsFunc(in.Username, func(r rune) bool { return r == ' ' || r == '\t' }) {
		return apperr.Invalid("username", "must not contain whitespace")
	}
	if err := validEmail(in.Email); err != nil {
		return err
	}
	if err := length("first_name", in.FirstName, 1, 50); err != nil {
		return err
	}
	if err := length("last_name", in.LastName, 1, 50); err != nil {
		return err
	}
	if !in.Role.Valid() {
		return apperr.Invalid("role", "must be %q or %q", models.RoleAdmin, models.RoleUser)
	}
	return nil
}

// checkUserUnique rejects a username or email already held by another live account.
func checkUserUnique(tx *gorm.DB, in UserInput, self uuid.UUID) error {
	dup, err := taken(tx, &models.User{}, "username", in.Username, self)
	if err != nil {
		return err
	}
	if dup {
		return apperr.Invalid("username", "username already exists, please choose a different one")
	}
	dup, err = taken(tx, &models.User{}, "email", in.Email, self)
	if err != nil {
		return err
	}
	if dup {
		return apperr.Invalid("email", "email already registered, please use a different one")
	}
	return nil
}

// ListUsers returns a page of users ordered by username. Search matches username, email or names.
func (s *Service) ListUsers(ctx context.Context, p *access.Principal, q listing.Query) (listing.Page[models.User], error) {
	if err := access.RequireAuthenticated(p); err != nil {
		return listing.Page[models.User]{}, err
	}
	q = s.query(q)
	scope := s.db.Model(&models.User{}).Order("username")
	if q.Search != "" {
		like := q.Like()
		scope = scope.Where(
			`LOWER(username) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\' OR LOWER(first_name) LIKE ? ESCAPE '\' OR LOWER(last_name) LIKE ? ESCAPE '\'`,
			like, like, like, like,
		)
	}
	page, err := listing.Find[models.User](ctx, scope, q)
	if err != nil {
		return page, apperr.Persistence("list users", err)
	}
	return page, nil
}

// GetUser loads a user with its groups.
func (s *Service) GetUser(ctx context.Context, p *access.Principal, id uuid.UUID) (*models.User, error) {
	if err := access.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	var u models.User
	err := s.db.WithContext(ctx).Preload("Groups", func(db *gorm.DB) *gorm.DB { return db.Order("name") }).First(&u, "id = ?", id).Error
	if err != nil {
		return nil, apperr.Persistence("get user", notFound(err))
	}
	return &u, nil
}

// CreateUser adds an account. The initial password must satisfy the password policy.
func (s *Service) CreateUser(ctx context.Context, p *access.Principal, in UserInput) (*models.User, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.Password == "" {
		return nil, apperr.Invalid("password", "is required")
	}

	u := &models.User{
		Username:  in.Username,
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Role:      in.Role,
		IsActive:  in.IsActive,
	}
	err := s.mutate(ctx, "create user", p, func(tx *gorm.DB, _ time.Time) (audit.Entry, error) {
		if err := checkUserUnique(tx, in, uuid.Nil); err != nil {
			return audit.Entry{}, err
		}
		if err := s.creds.SetPassword(u, in.Password); err != nil {
			return audit.Entry{}, err
		}
		if err := tx.Create(u).Error; err != nil {
			return audit.Entry{}, err
		}
		return audit.Entry{
			Action:   audit.ActionUserCreated,
			Target:   u.Label(),
			Details:  fmt.Sprintf("New user created with role: %s", u.Role),
			Metadata: map[string]any{"user_id": u.ID.String(), "role": string(u.Role)},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// UpdateUser replaces the editable fields of a user. A non-empty password is validated and stored,
// which also clears any lock. Deactivating an account ends all of its sessions.
func (s *Service) UpdateUser(ctx context.Context, p *access.Principal, id uuid.UUID, in UserInput) (*models.User, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	var u *models.User
	err := s.mutate(ctx, "update user", p, func(tx *gorm.DB, now time.Time) (audit.Entry, error) {
		var err error
		if u, err = s.loadUser(tx, id); err != nil {
			return audit.Entry{}, err
		}
		if err := checkUserUnique(tx, in, u.ID); err != nil {
			return audit.Entry{}, err
		}

		deactivated := u.IsActive && !in.IsActive
		u.Username = in.Username
		u.Email = in.Email
		u.FirstName = in.FirstName
		u.LastName = in.LastName
		u.Role = in.Role
		u.IsActive = in.IsActive
		if err := tx.Model(u).Select("username", "email", "first_name", "last_name", "role", "is_active", "updated_at").Updates(u).Error; err != nil {
			return audit.Entry{}, err
		}

		details := "User profile updated"
		if in.Password != "" {
			if err := s.setPassword(tx, u, in.Password); err != nil {
				return audit.Entry{}, err
			}
			details += "; password changed"
		}
		if deactivated {
			if err := session.RevokeUser(tx, u.ID, now); err != nil {
				return audit.Entry{}, err
			}
			details += "; account deactivated"
		}
		return audit.Entry{Action: audit.ActionUserUpdated, Target: u.Label(), Details: details}, nil
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// DeleteUser removes an account. Nobody may delete their own account, whatever their role. The row is
// soft deleted so audit entries keep their actor; memberships and sessions are dropped.
func (s *Service) DeleteUser(ctx context.Context, p *access.Principal, id uuid.UUID) error {
	if err := access.RequireAuthenticated(p); err != nil {
		return err
	}
	if p.IsSelf(id) {
		return apperr.ErrSelfDeletion
	}
	if err := access.RequireAdmin(p); err != nil {
		return err
	}
	return s.mutate(ctx, "delete user", p, func(tx *gorm.DB, now time.Time) (audit.Entry, error) {
		u, err := s.loadUser(tx, id)
		if err != nil {
			return audit.Entry{}, err
		}
		if err := tx.Where("user_id = ?", u.ID).Delete(&models.UserGroup{}).Error; err != nil {
			return audit.Entry{}, err
		}
		if err := session.RevokeUser(tx, u.ID, now); err != nil {
			return audit.Entry{}, err
		}
		if err := tx.Delete(u).Error; err != nil {
			return audit.Entry{}, err
		}
		return audit.Entry{Action: audit.ActionUserDeleted, Target: u.Label(), Details: "User account deleted"}, nil
	})
}
