package handlers

import (
	"time"

	"github.com/google/uuid"

	"adconsole/internal/directory"
	"adconsole/internal/listing"
	"adconsole/internal/models"
)

type userRef struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	FullName string    `json:"full_name"`
}

type namedRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type userView struct {
	ID             uuid.UUID   `json:"id"`
	Username       string      `json:"username"`
	Email          string      `json:"email"`
	FirstName      string      `json:"first_name"`
	LastName       string      `json:"last_name"`
	FullName       string      `json:"full_name"`
	Role           models.Role `json:"role"`
	IsActive       bool        `json:"is_active"`
	FailedAttempts int         `json:"failed_attempts"`
	Locked         bool        `json:"locked"`
	LockedUntil    *time.Time  `json:"locked_until,omitempty"`
	LastLogin      *time.Time  `json:"last_login,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	Groups         []namedRef  `json:"groups,omitempty"`
}

func newUserView(u models.User, now time.Time) userView {
	v := userView{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		FullName:       u.FullName(),
		Role:           u.Role,
		IsActive:       u.IsActive,
		FailedAttempts: u.FailedAttempts,
		Locked:         u.LockedUntil != nil && now.Before(*u.LockedUntil),
		LockedUntil:    u.LockedUntil,
		LastLogin:      u.LastLogin,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
	for _, g := range u.Groups {
		v.Groups = append(v.Groups, namedRef{ID: g.ID, Name: g.Name})
	}
	return v
}

type groupView struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Permissions models.Permission `json:"permissions"`
	CreatedAt   time.Time         `json:"created_at"`
	Members     []userRef         `json:"members,omitempty"`
}

func newGroupView(g models.Group) groupView {
	v := groupView{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Permissions: g.Permissions,
		CreatedAt:   g.CreatedAt,
	}
	for _, m := range g.Members {
		v.Members = append(v.Members, userRef{ID: m.ID, Username: m.Username, FullName: m.FullName()})
	}
	return v
}

type computerView struct {
	ID              uuid.UUID             `json:"id"`
	Name            string                `json:"name"`
	Description     string                `json:"description"`
	Status          models.ComputerStatus `json:"status"`
	OperatingSystem string                `json:"operating_system"`
	IPAddress       *string               `json:"ip_address,omitempty"`
	OUID            *uuid.UUID            `json:"ou_id,omitempty"`
	OUName          string                `json:"ou_name,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	LastSeen        *time.Time            `json:"last_seen,omitempty"`
}

func newComputerView(c models.Computer) computerView {
	v := computerView{
		ID:              c.ID,
		Name:            c.Name,
		Description:     c.Description,
		Status:          c.Status,
		OperatingSystem: c.OperatingSystem,
		IPAddress:       c.IPAddress,
		OUID:            c.OUID,
		CreatedAt:       c.CreatedAt,
		LastSeen:        c.LastSeen,
	}
	if c.OU != nil {
		v.OUName = c.OU.Name
	}
	return v
}

type ouView struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	ParentID    *uuid.UUID     `json:"parent_id,omitempty"`
	FullPath    string         `json:"full_path"`
	CreatedAt   time.Time      `json:"created_at"`
	Children    []namedRef     `json:"children,omitempty"`
	Computers   []computerView `json:"computers,omitempty"`
}

func newOUView(o models.OrganizationalUnit, fullPath string) ouView {
	v := ouView{
		ID:          o.ID,
		Name:        o.Name,
		Description: o.Description,
		ParentID:    o.ParentID,
		FullPath:    fullPath,
		CreatedAt:   o.CreatedAt,
	}
	if fullPath == "" {
		v.FullPath = o.Name
	}
	for _, c := range o.Children {
		v.Children = append(v.Children, namedRef{ID: c.ID, Name: c.Name})
	}
	for _, c := range o.Computers {
		v.Computers = append(v.Computers, newComputerView(c))
	}
	return v
}

func fromDirectoryOU(v directory.OUView) ouView {
	return newOUView(v.OrganizationalUnit, v.FullPath)
}

// mapPage converts a page of models into a page of views.
func mapPage[T, V any](p listing.Page[T], fn func(T) V) listing.Page[V] {
	items := make([]V, 0, len(p.Items))
	for _, it := range p.Items {
		items = append(items, fn(it))
	}
	return listing.Page[V]{Items: items, Total: p.Total, Page: p.Page, PerPage: p.PerPage, Pages: p.Pages}
}
