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

// ComputerInput carries the editable computer fields. Empty IPAddress and nil OUID clear them.
type ComputerInput struct {
	Name            string
	Description     string
	Status          models.ComputerStatus
	OperatingSystem string
	IPAddress       string
	OUID            *uuid.UUID
}

func (in *ComputerInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.OperatingSystem = strings.TrimSpace(in.OperatingSystem)
	in.IPAddress = strings.TrimSpace(in.IPAddress)
	in.Status = models.ComputerStatus(strings.ToUpper(strings.TrimSpace(string(in.Status))))
	if in.Status == "" {
		in.Status = models.StatusOff
	}
	if in.OUID != nil && *in.OUID == uuid.Nil {
		in.OUID = nil
	}
}

func (in ComputerInput) validate() error {
	if err := length("name", in.Name, 3, 50); err != nil {
		return err
	}
	if err := length("description", in.Description, 0, 200); err != nil {
		return err
	}
	if err := length("operating_system", in.OperatingSystem, 0, 100); err != nil {
		return err
	}
	if in.IPAddress != "" {
		if err := validIP(in.IPAddress); err != nil {
			return err
		}
	}
	if !in.Status.Valid() {
		return apperr.Invalid("status", "must be ON, OFF or RESTART")
	}
	return nil
}

func checkComputer(tx *gorm.DB, in ComputerInput, self uuid.UUID) error {
	dup, err := taken(tx, &models.Computer{}, "name", in.Name, self)
	if err != nil {
		return err
	}
	if dup {
		return apperr.Invalid("name", "computer name already exists, please choose a different one")
	}
	if in.IPAddress != "" {
		dup, err = taken(tx, &models.Computer{}, "ip_address", in.IPAddress, self)
		if err != nil {
			return err
		}
		if dup {
			return apperr.Invalid("ip_address", "IP address already assigned to another computer")
		}
	}
	if in.OUID != nil {
		var n int64
		if err := tx.Model(&models.OrganizationalUnit{}).Where("id = ?", *in.OUID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return apperr.Invalid("ou_id", "organizational unit does not exist")
		}
	}
	return nil
}

// ListComputers returns a page of computers ordered by name, with their OU loaded.
func (s *Service) ListComputers(ctx context.Context, p *access.Principal, q listing.Query) (listing.Page[models.Computer], error) {
	if err := access.RequireAuthenticated(p); err != nil {
		return listing.Page[models.Computer]{}, err
	}
	q = s.query(q)
	scope := s.db.Model(&models.Computer{}).Order("name")
	if q.Search != "" {
		scope = scope.Where(`LOWER(name) LIKE ? ESCAPE '\'`, q.Like())
	}
	page, err := listing.Find[models.Computer](ctx, scope, q, "OU")
	if err != nil {
		return page, apperr.Persistence("list computers", err)
	}
	return page, nil
}

// GetComputer loads a computer with its OU.
func (s *Service) GetComputer(ctx context.Context, p *access.Principal, id uuid.UUID) (*models.Computer, error) {
	if err := access.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	var c models.Computer
	if err := s.db.WithContext(ctx).Preload("OU").First(&c, "id = ?", id).Error; err != nil {
		return nil, apperr.Persistence("get computer", notFound(err))
	}
	return &c, nil
}

// CreateComputer registers a computer.
func (s *Service) CreateComputer(ctx context.Context, p *access.Principal, in ComputerInput) (*models.Computer, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	c := &models.Computer{
		Name:            in.Name,
		Description:     in.Description,
		OperatingSystem: in.OperatingSystem,
		IPAddress:       optional(in.IPAddress),
		OUID:            in.OUID,
	}
	err := s.mutate(ctx, "create computer", p, func(tx *gorm.DB, now time.Time) (audit.Entry, error) {
		if err := checkComputer(tx, in, uuid.Nil); err != nil {
			return audit.Entry{}, err
		}
		c.SetStatus(in.Status, now)
		if err := tx.Create(c).Error; err != nil {
			return audit.Entry{}, err
		}
		return audit.Entry{
			Action:  audit.ActionComputerCreated,
			Target:  c.Label(),
			Details: fmt.Sprintf("New computer added with status: %s", c.Status),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateComputer replaces the editable fields of a computer. A status change through this path
// maintains LastSeen the same way ChangeStatus does.
func (s *Service) UpdateComputer(ctx context.Context, p *access.Principal, id uuid.UUID, in ComputerInput) (*models.Computer, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	var c models.Computer
	err := s.mutate(ctx, "update computer", p, func(tx *gorm.DB, now time.Time) (audit.Entry, error) {
		if err := tx.First(&c, "id = ?", id).Error; err != nil {
			return audit.Entry{}, notFound(err)
		}
		if err := checkComputer(tx, in, c.ID); err != nil {
			return audit.Entry{}, err
		}
		details := "Computer information updated"
		if old := c.Status; old != in.Status {
			c.SetStatus(in.Status, now)
			details += fmt.Sprintf(" - Status changed from %s to %s", old, in.Status)
		}
		c.Name = in.Name
		c.Description = in.Description
		c.OperatingSystem = in.OperatingSystem
		c.IPAddress = optional(in.IPAddress)
		c.OUID = in.OUID
		c.OU = nil
		err := tx.Model(&c).
			Select("name", "description", "operating_system", "ip_address", "ou_id", "status", "last_seen").
			Updates(&c).Error
		if err != nil {
			return audit.Entry{}, err
		}
		return audit.Entry{Action: audit.ActionComputerUpdated, Target: c.Label(), Details: details}, nil
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteComputer removes a computer.
func (s *Service) DeleteComputer(ctx context.Context, p *access.Principal, id uuid.UUID) error {
	if err := access.RequireAdmin(p); err != nil {
		return err
	}
	return s.mutate(ctx, "delete computer", p, func(tx *gorm.DB, _ time.Time) (audit.Entry, error) {
		var c models.Computer
		if err := tx.First(&c, "id = ?", id).Error; err != nil {
			return audit.Entry{}, notFound(err)
		}
		if err := tx.Delete(&c).Error; err != nil {
			return audit.Entry{}, err
		}
		return audit.Entry{Action: audit.ActionComputerDeleted, Target: c.Label(), Details: "Computer removed from system"}, nil
	})
}

// ChangeStatus sets the simulated power state. The audit action names the new state, e.g.
// "Computer RESTART".
func (s *Service) ChangeStatus(ctx context.Context, p *access.Principal, id uuid.UUID, status models.ComputerStatus) (*models.Computer, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}
	status = models.ComputerStatus(strings.ToUpper(string(status)))
	if !status.Valid() {
		return nil, apperr.Invalid("status", "invalid status %q", string(status))
	}

	var c models.Computer
	err := s.mutate(ctx, "change computer status", p, func(tx *gorm.DB, now time.Time) (audit.Entry, error) {
		if err := tx.First(&c, "id = ?", id).Error; err != nil {
			return audit.Entry{}, notFound(err)
		}
		old := c.Status
		c.SetStatus(status, now)
		if err := tx.Model(&c).Select("status", "last_seen").Updates(&c).Error; err != nil {
			return audit.Entry{}, err
		}
		return audit.Entry{
			Action:  audit.ComputerStatusAction(string(status)),
			Target:  c.Label(),
			Details: fmt.Sprintf("Status changed from %s to %s", old, status),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}
