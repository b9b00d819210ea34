package directory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"adconsole/internal/access"
	"adconsole/internal/apperr"
	"adconsole/internal/models"
)

type demoUser struct {
	in     UserInput
	groups []string
}

type demoComputer struct {
	in ComputerInput
	ou string
}

// SeedDemo loads a small sample directory through the regular operations, so every row it creates is
// audited and attributed to p. It reports false when the sample root OU already exists.
func (s *Service) SeedDemo(ctx context.Context, p *access.Principal) (bool, error) {
	if err := access.RequireAdmin(p); err != nil {
		return false, err
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.OrganizationalUnit{}).Where("name = ?", "Corporate").Count(&n).Error; err != nil {
		return false, apperr.Persistence("seed demo", err)
	}
	if n > 0 {
		return false, nil
	}

	root, err := s.CreateOU(ctx, p, OUInput{Name: "Corporate", Description: "Root organizational unit"})
	if err != nil {
		return false, err
	}
	ous := map[string]uuid.UUID{root.Name: root.ID}
	for _, in := range []OUInput{
		{Name: "IT Department", Description: "Information Technology Department"},
		{Name: "HR Department", Description: "Human Resources Department"},
		{Name: "Finance Department", Description: "Finance and Accounting Department"},
	} {
		in.ParentID = &root.ID
		ou, err := s.CreateOU(ctx, p, in)
		if err != nil {
			return false, fmt.Errorf("ou %s: %w", in.Name, err)
		}
		ous[ou.Name] = ou.ID
	}

	groups := make(map[string]uuid.UUID)
	for _, in := range []GroupInput{
		{Name: "Domain Admins", Description: "Full administrative access to all systems", Permissions: models.PermissionReadWrite},
		{Name: "IT Support", Description: "IT support staff with elevated privileges", Permissions: models.PermissionReadWrite},
		{Name: "Domain Users", Description: "Standard user group with basic access", Permissions: models.PermissionReadOnly},
		{Name: "HR Staff", Description: "Human Resources staff group", Permissions: models.PermissionReadWrite},
	} {
		g, err := s.CreateGroup(ctx, p, in)
		if err != nil {
			return false, fmt.Errorf("group %s: %w", in.Name, err)
		}
		groups[g.Name] = g.ID
	}
	if err := s.AddMember(ctx, p, groups["Domain Admins"], p.UserID); err != nil {
		return false, err
	}

	users := []demoUser{
		{in: UserInput{Username: "jdoe", Email: "john.doe@company.com", FirstName: "John", LastName: "Doe", Role: models.RoleUser, Password: "User123!"}, groups: []string{"Domain Users", "IT Support"}},
		{in: UserInput{Username: "asmith", Email: "alice.smith@company.com", FirstName: "Alice", LastName: "Smith", Role: models.RoleUser, Password: "User123!"}, groups: []string{"Domain Users", "IT Support"}},
		{in: UserInput{Username: "bwilson", Email: "bob.wilson@company.com", FirstName: "Bob", LastName: "Wilson", Role: models.RoleAdmin, Password: "Admin123!"}, groups: []string{"Domain Admins", "Domain Users"}},
		{in: UserInput{Username: "mjohnson", Email: "mary.johnson@company.com", FirstName: "Mary", LastName: "Johnson", Role: models.RoleUser, Password: "User123!"}, groups: []string{"Domain Users", "HR Staff"}},
		{in: UserInput{Username: "dlee", Email: "david.lee@company.com", FirstName: "David", LastName: "Lee", Role: models.RoleUser, Password: "User123!"}, groups: []string{"Domain Users"}},
	}
	for _, du := range users {
		du.in.IsActive = true
		u, err := s.CreateUser(ctx, p, du.in)
		if err != nil {
			return false, fmt.Errorf("user %s: %w", du.in.Username, err)
		}
		for _, name := range du.groups {
			if err := s.AddMember(ctx, p, groups[name], u.ID); err != nil {
				return false, err
			}
		}
	}

	computers := []demoComputer{
		{in: ComputerInput{Name: "WS-IT-001", Description: "IT Department Workstation 1", OperatingSystem: "Windows 11 Pro", IPAddress: "192.168.1.101", Status: models.StatusOn}, ou: "IT Department"},
		{in: ComputerInput{Name: "WS-IT-002", Description: "IT Department Workstation 2", OperatingSystem: "Windows 11 Pro", IPAddress: "192.168.1.102", Status: models.StatusOff}, ou: "IT Department"},
		{in: ComputerInput{Name: "WS-HR-001", Description: "HR Department Workstation 1", OperatingSystem: "Windows 10 Pro", IPAddress: "192.168.2.101", Status: models.StatusOn}, ou: "HR Department"},
		{in: ComputerInput{Name: "WS-FIN-001", Description: "Finance Department Workstation 1", OperatingSystem: "Windows 11 Pro", IPAddress: "192.168.3.101", Status: models.StatusRestart}, ou: "Finance Department"},
		{in: ComputerInput{Name: "SRV-DC-001", Description: "Domain Controller Server", OperatingSystem: "Windows Server 2022", IPAddress: "192.168.1.10", Status: models.StatusOn}, ou: "IT Department"},
		{in: ComputerInput{Name: "SRV-FILE-001", Description: "File Server", OperatingSystem: "Windows Server 2019", IPAddress: "192.168.1.20", Status: models.StatusOn}, ou: "IT Department"},
	}
	for _, dc := range computers {
		id := ous[dc.ou]
		dc.in.OUID = &id
		if _, err := s.CreateComputer(ctx, p, dc.in); err != nil {
			return false, fmt.Errorf("computer %s: %w", dc.in.Name, err)
		}
	}
	return true, nil
}
