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
)

// GroupInput carries the editable group fields.
type GroupInput struct {
	Name        string
	Description string
	Permissions models.Permission
}

func (in *GroupInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Permissions == "" {
		in.Permissions = models.PermissionReadOnly
	}
}

func (in GroupInput) validate() error {
	if err := length("name", in.Name, 3, 50); err != nil {
		return err
	}
	if err := length("description", in.Description, 0, 200); err != nil {
		return err
	}
	if !in.Permissions.Valid() {
		return apperr.Invalid("permissions", "must be %q or %q", models.PermissionReadOnly, models.PermissionReadWrite)
	}
	return nil
}

func checkGroupUnique(tx *gorm.DB, name string, self uuid.UUID) error {
	dup, err := taken(tx, &models.Group{}, "name", name, self)
	if err != nil {
		return err
	}
	if dup {
		return apperr.Invalid("name", "group name already exists, please choose a different one")
	}
	return nil
}

// ListGroups returns a page of groups ordered by name.
func (s *Service) ListGroups(ctx context.Context, p *access.Principal, q listing.Query) (listing.Page[models.Group], error) {
	if err := access.RequireAuthenticated(p); err != nil {
		return listing.Page[models.Group]{}, err
	}
	q = s.query(q)
	scope := s.db.Model(&models.Group{}).Order("name")
	if q.Search != "" {
		scope = scope.Where(`LOWER(name) LIKE ? ESCAPE '\'`, q.Like())
	}
	page, err := listing.Find[models.Group](ctx, scope, q)
	if err != nil {
		return page, apperr.Persistence("list groups", err)
	}
	return page, nil
}

// GetGroup loads a group with its members.
func (s *Service) GetGroup(ctx context.Context, p *access.Principal, id uuid.UUID) (*models.Group, error) {
	if err := access.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	var g models.Group
	err := s.db.WithContext(ctx).Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("username") }).First(&g, "id = ?", id).Error
	if err != nil {
		return nil, apperr.Persistence("get group", notFound(err))
	}
	return &g, nil
}

// CreateGroup adds a group.
func (s *Service) CreateGroup(ctx context.Context, p *access.Principal, in GroupInput) (*models.Group, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	g := &models.Group{Name: in.Name, Description: in.Description, Permissions: in.Permissions}
	err := s.mutate(ctx, "create group", p, func(tx *gorm.DB, _ time.Time) (audit.Entry, error) {
		if err := checkGroupUnique(tx, in.Name, uuid.Nil); err != nil {
			return audit.Entry{}, err
		}
		if err := tx.Create(g).Error; err != nil {
			return audit.Entry{}, err
		}
		return audit.Entry{
			Action:  audit.ActionGroupCreated,
			Target:  g.Label(),
			Details: fmt.Sprintf("New group created with permissions: %s", g.Permissions),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// UpdateGroup replaces the editable fields of a group.
func (s *Service) UpdateGroup(ctx context.Context, p *access.Principal, id uuid.UUID, in GroupInput) (*models.Group, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	var g models.Group
	err := s.mutate(ctx, "update group", p, func(tx *gorm.DB, _ time.Time) (audit.Entry, error) {
		if err := tx.First(&g, "id = ?", id).Error; err != nil {
			return audit.Entry{}, notFound(err)
		}
		if err := checkGroupUnique(tx, in.Name, g.ID); err != nil {
			return audit.Entry{}, err
		}
		g.Name = in.Name
		g.Description = in.Description
		g.Permissions = in.Permissions
		if err := tx.Model(&g).Select("name", "description", "permissions").Updates(&g).Error; err != nil {
			return audit.Entry{}, err
		}
		return audit.Entry{Action: audit.ActionGroupUpdated, Target: g.Label(), Details: "Group information updated"}, nil
	})
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// DeleteGroup removes a group and detaches all of its members.
func (s *Service) DeleteGroup(ctx context.Context, p *access.Principal, id uuid.UUID) error {
	if err := access.RequireAdmin(p); err != nil {
		return err
	}
	return s.mutate(ctx, "delete group", p, func(tx *gorm.DB, _ time.Time) (audit.Entry, error) {
		var g models.Group
		if err := tx.First(&g, "id = ?", id).Error; err != nil {
			return audit.Entry{}, notFound(err)
		}
		if err := tx.Where("group_id = ?", g.ID).Delete(&models.UserGroup{}).Error; err != nil {
			return audit.Entry{}, err
		}
		if err := tx.Delete(&g).Error; err != nil {
			return audit.Entry{}, err
		}
		return audit.Entry{Action: audit.ActionGroupDeleted, Target: g.Label(), Details: "Group deleted"}, nil
	})
}

// AddMember puts a user into a group. A user is in a group at most once.
func (s *Service) AddMember(ctx context.Context, p *access.Principal, groupID, userID uuid.UUID) error {
	if err := access.RequireAdmin(p); err != nil {
		return err
	}
	return s.mutate(ctx, "add group member", p, func(tx *gorm.DB, _ time.Time) (audit.Entry, error) {
		g, u, err := s.loadMembership(tx, groupID, userID)
		if err != nil {
			return audit.Entry{}, err
		}
		var n int64
		if err := tx.Model(&models.UserGroup{}).Where("user_id = ? AND group_id = ?", u.ID, g.ID).Count(&n).Error; err != nil {
			return audit.Entry{}, err
		}
		if n > 0 {
			return audit.Entry{}, apperr.Invalid("user_id", "%s is already a member of %s", u.Username, g.Name)
		}
		if err := tx.Create(&models.UserGroup{UserID: u.ID, GroupID: g.ID}).Error; err != nil {
			return audit.Entry{}, err
		}
		return audit.Entry{
			Action:  audit.ActionGroupMemberAdded,
			Target:  g.Label(),
			Details: fmt.Sprintf("Added %s to group", u.Username),
		}, nil
	})
}

// RemoveMember takes a user out of a group.
func (s *Service) RemoveMember(ctx context.Context, p *access.Principal, groupID, userID uuid.UUID) error {
	if err := access.RequireAdmin(p); err != nil {
		return err
	}
	return s.mutate(ctx, "remove group member", p, func(tx *gorm.DB, _ time.Time) (audit.Entry, error) {
		g, u, err := s.loadMembership(tx, groupID, userID)
		if err != nil {
			return audit.Entry{}, err
		}
		res := tx.Where("user_id = ? AND group_id = ?", u.ID, g.ID).Delete(&models.UserGroup{})
		if res.Error != nil {
			return audit.Entry{}, res.Error
		}
		if res.RowsAffected == 0 {
			return audit.Entry{}, apperr.Invalid("user_id", "%s is not a member of %s", u.Username, g.Name)
		}
		return audit.Entry{
			Action:  audit.ActionGroupMemberRemoved,
			Target:  g.Label(),
			Details: fmt.Sprintf("Removed %s from group", u.Username),
		}, nil
	})
}

func (s *Service) loadMembership(tx *gorm.DB, groupID, userID uuid.UUID) (*models.Group, *models.User, error) {
	var g models.Group
	if err := tx.First(&g, "id = ?", groupID).Error; err != nil {
		return nil, nil, fmt.Errorf("group: %w", notFound(err))
	}
	u, err := s.loadUser(tx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("user: %w", err)
	}
	return &g, u, nil
}
