package directory

import (
	"context"

	"adconsole/internal/access"
	"adconsole/internal/apperr"
	"adconsole/internal/audit"
	"adconsole/internal/models"
)

// RecentActivityLimit is how many audit entries the dashboard shows.
const RecentActivityLimit = 10

// Stats are the dashboard totals.
type Stats struct {
	TotalUsers     int64             `json:"total_users"`
	ActiveUsers    int64             `json:"active_users"`
	TotalGroups    int64             `json:"total_groups"`
	TotalComputers int64             `json:"total_computers"`
	ComputersOn    int64             `json:"computers_on"`
	TotalOUs       int64             `json:"total_ous"`
	RecentActivity []models.AuditLog `json:"recent_activity"`
}

// Dashboard returns directory totals and the latest audit entries.
func (s *Service) Dashboard(ctx context.Context, p *access.Principal) (*Stats, error) {
	if err := access.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	var st Stats
	counts := []struct {
		dest  *int64
		model any
		where string
		args  []any
	}{
		{dest: &st.TotalUsers, model: &models.User{}},
		{dest: &st.ActiveUsers, model: &models.User{}, where: "is_active = ?", args: []any{true}},
		{dest: &st.TotalGroups, model: &models.Group{}},
		{dest: &st.TotalComputers, model: &models.Computer{}},
		{dest: &st.ComputersOn, model: &models.Computer{}, where: "status = ?", args: []any{models.StatusOn}},
		{dest: &st.TotalOUs, model: &models.OrganizationalUnit{}},
	}
	for _, c := range counts {
		q := db.Model(c.model)
		if c.where != "" {
			q = q.Where(c.where, c.args...)
		}
		if err := q.Count(c.dest).Error; err != nil {
			return nil, apperr.Persistence("dashboard", err)
		}
	}

	recent, err := audit.Recent(ctx, s.db, RecentActivityLimit)
	if err != nil {
		return nil, apperr.Persistence("dashboard", err)
	}
	st.RecentActivity = recent
	return &st, nil
}

// AuditLogs returns a page of audit entries, newest first.
func (s *Service) AuditLogs(ctx context.Context, p *access.Principal, q audit.Query) (audit.Page, error) {
	if err := access.RequireAuthenticated(p); err != nil {
		return audit.Page{}, err
	}
	page, err := audit.List(ctx, s.db, s.query(q))
	if err != nil {
		return page, apperr.Persistence("list audit logs", err)
	}
	return page, nil
}
