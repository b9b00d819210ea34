package directory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"adconsole/internal/access"
	"adconsole/internal/apperr"
	"adconsole/internal/audit"
	"adconsole/internal/models"
)

// PathSeparator joins OU names in a full path.
const PathSeparator = " > "

// OUInput carries the editable OU fields. A nil ParentID makes the OU a root.
type OUInput struct {
	Name        string
	Description string
	ParentID    *uuid.UUID
}

func (in *OUInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.ParentID != nil && *in.ParentID == uuid.Nil {
		in.ParentID = nil
	}
}

func (in OUInput) validate() error {
	if err := length("name", in.Name, 3, 100); err != nil {
		return err
	}
	return length("description", in.Description, 0, 200)
}

// OUView is an OU with its resolved path.
type OUView struct {
	models.OrganizationalUnit
	FullPath string
}

// Arena indexes OUs by id so paths can be resolved without further queries.
type Arena map[uuid.UUID]*models.OrganizationalUnit

// NewArena indexes ous.
func NewArena(ous []models.OrganizationalUnit) Arena {
	a := make(Arena, len(ous))
	for i := range ous {
		a[ous[i].ID] = &ous[i]
	}
	return a
}

// FullPath returns the names from the root down to id, e.g. "Corporate > IT Department". A parent
// missing from the arena ends the walk.
func (a Arena) FullPath(id uuid.UUID) string {
	var names []string
	seen := make(map[uuid.UUID]bool)
	for cur, ok := a[id]; ok && !seen[cur.ID]; {
		seen[cur.ID] = true
		names = append(names, cur.Name)
		if cur.ParentID == nil {
			break
		}
		cur, ok = a[*cur.ParentID]
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, PathSeparator)
}

// Ancestors reports whether candidate is id itself or one of its ancestors.
func (a Arena) Ancestors(id, candidate uuid.UUID) bool {
	seen := make(map[uuid.UUID]bool)
	for cur, ok := a[id]; ok && !seen[cur.ID]; {
		if cur.ID == candidate {
			return true
		}
		seen[cur.ID] = true
		if cur.ParentID == nil {
			return false
		}
		cur, ok = a[*cur.ParentID]
	}
	return false
}

func loadArena(tx *gorm.DB) (Arena, []models.OrganizationalUnit, error) {
	var ous []models.OrganizationalUnit
	if err := tx.Order("name").Find(&ous).Error; err != nil {
		return nil, nil, err
	}
	return NewArena(ous), ous, nil
}

// checkParent rejects a parent that does not exist, is the OU itself, or lies below it.
func checkParent(arena Arena, self uuid.UUID, parent *uuid.UUID) error {
	if parent == nil {
		return nil
	}
	if _, ok := arena[*parent]; !ok {
		return apperr.Invalid("parent_id", "parent OU does not exist")
	}
	if self == uuid.Nil {
		return nil
	}
	if *parent == self {
		return apperr.Invalid("parent_id", "an OU cannot be its own parent")
	}
	if arena.Ancestors(*parent, self) {
		return apperr.Invalid("parent_id", "parent OU would create a cycle")
	}
	return nil
}

func checkOUUnique(tx *gorm.DB, name string, self uuid.UUID) error {
	dup, err := taken(tx, &models.OrganizationalUnit{}, "name", name, self)
	if err != nil {
		return err
	}
	if dup {
		return apperr.Invalid("name", "OU name already exists, please choose a different one")
	}
	return nil
}

// ListOUs returns every OU ordered by name with its full path.
func (s *Service) ListOUs(ctx context.Context, p *access.Principal) ([]OUView, error) {
	if err := access.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	arena, ous, err := loadArena(s.db.WithContext(ctx))
	if err != nil {
		return nil, apperr.Persistence("list ous", err)
	}
	out := make([]OUView, 0, len(ous))
	for _, ou := range ous {
		out = append(out, OUView{OrganizationalUnit: ou, FullPath: arena.FullPath(ou.ID)})
	}
	return out, nil
}

// GetOU loads an OU with its children and computers.
func (s *Service) GetOU(ctx context.Context, p *access.Principal, id uuid.UUID) (*OUView, error) {
	if err := access.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	var ou models.OrganizationalUnit
	err := db.
		Preload("Children", func(db *gorm.DB) *gorm.DB { return db.Order("name") }).
		Preload("Computers", func(db *gorm.DB) *gorm.DB { return db.Order("name") }).
		First(&ou, "id = ?", id).Error
	if err != nil {
		return nil, apperr.Persistence("get ou", notFound(err))
	}
	arena, _, err := loadArena(db)
	if err != nil {
		return nil, apperr.Persistence("get ou", err)
	}
	return &OUView{OrganizationalUnit: ou, FullPath: arena.FullPath(ou.ID)}, nil
}

// CreateOU adds an OU under an optional parent.
func (s *Service) CreateOU(ctx context.Context, p *access.Principal, in OUInput) (*models.OrganizationalUnit, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	ou := &models.OrganizationalUnit{Name: in.Name, Description: in.Description, ParentID: in.ParentID}
	err := s.mutate(ctx, "create ou", p, func(tx *gorm.DB, _ time.Time) (audit.Entry, error) {
		if err := checkOUUnique(tx, in.Name, uuid.Nil); err != nil {
			return audit.Entry{}, err
		}
		arena, _, err := loadArena(tx)
		if err != nil {
			return audit.Entry{}, err
		}
		if err := checkParent(arena, uuid.Nil, in.ParentID); err != nil {
			return audit.Entry{}, err
		}
		if err := tx.Create(ou).Error; err != nil {
			return audit.Entry{}, err
		}
		return audit.Entry{Action: audit.ActionOUCreated, Target: ou.Label(), Details: "New organizational unit created"}, nil
	})
	if err != nil {
		return nil, err
	}
	return ou, nil
}

// UpdateOU replaces the editable fields of an OU. Re-parenting walks the new parent's ancestry and
// refuses the move if it already contains the OU.
func (s *Service) UpdateOU(ctx context.Context, p *access.Principal, id uuid.UUID, in OUInput) (*models.OrganizationalUnit, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	var ou models.OrganizationalUnit
	err := s.mutate(ctx, "update ou", p, func(tx *gorm.DB, _ time.Time) (audit.Entry, error) {
		if err := tx.First(&ou, "id = ?", id).Error; err != nil {
			return audit.Entry{}, notFound(err)
		}
		if err := checkOUUnique(tx, in.Name, ou.ID); err != nil {
			return audit.Entry{}, err
		}
		arena, _, err := loadArena(tx)
		if err != nil {
			return audit.Entry{}, err
		}
		if err := checkParent(arena, ou.ID, in.ParentID); err != nil {
			return audit.Entry{}, err
		}
		ou.Name = in.Name
		ou.Description = in.Description
		ou.ParentID = in.ParentID
		if err := tx.Model(&ou).Select("name", "description", "parent_id").Updates(&ou).Error; err != nil {
			return audit.Entry{}, err
		}
		return audit.Entry{Action: audit.ActionOUUpdated, Target: ou.Label(), Details: "Organizational unit updated"}, nil
	})
	if err != nil {
		return nil, err
	}
	return &ou, nil
}

// DeleteOU removes an empty OU. An OU that still has child OUs or computers is refused.
func (s *Service) DeleteOU(ctx context.Context, p *access.Principal, id uuid.UUID) error {
	if err := access.RequireAdmin(p); err != nil {
		return err
	}
	return s.mutate(ctx, "delete ou", p, func(tx *gorm.DB, _ time.Time) (audit.Entry, error) {
		var ou models.OrganizationalUnit
		if err := tx.First(&ou, "id = ?", id).Error; err != nil {
			return audit.Entry{}, notFound(err)
		}
		var children, computers int64
		if err := tx.Model(&models.OrganizationalUnit{}).Where("parent_id = ?", ou.ID).Count(&children).Error; err != nil {
			return audit.Entry{}, err
		}
		if err := tx.Model(&models.Computer{}).Where("ou_id = ?", ou.ID).Count(&computers).Error; err != nil {
			return audit.Entry{}, err
		}
		if children > 0 || computers > 0 {
			return audit.Entry{}, apperr.Invalid("", "OU %s still contains %d child OUs and %d computers", ou.Name, children, computers)
		}
		if err := tx.Delete(&ou).Error; err != nil {
			return audit.Entry{}, err
		}
		return audit.Entry{Action: audit.ActionOUDeleted, Target: ou.Label(), Details: "Organizational unit deleted"}, nil
	})
}
