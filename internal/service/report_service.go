package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/juju/clock"

	"github.com/aryan0dhankhar/leavedesk/internal/domain"
)

// UpcomingWindow is how far ahead UpcomingLeaves looks
const UpcomingWindow = 30 * 24 * time.Hour

// ReportService computes read-only usage reports. Nothing is cached; every call
// reads the store.
type ReportService struct {
	store  domain.Store
	clock  clock.Clock
	logger *slog.Logger
}

// NewReportService creates a new report service
func NewReportService(store domain.Store, clk clock.Clock, logger *slog.Logger) *ReportService {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &ReportService{store: store, clock: clk, logger: logger}
}

// UserUsage is one user's approved leave total
type UserUsage struct {
	Name string `json:"name"`
	Days int    `json:"days"`
}

// CompanySummary aggregates approved leave across the company
type CompanySummary struct {
	DepartmentUsage       map[string]int       `json:"departmentUsage"`
	UserUsage             map[int64]*UserUsage `json:"userUsage"`
	TotalApprovedRequests int                  `json:"totalApprovedRequests"`
}

// PendingCount is the number of Pending requests of one team member
type PendingCount struct {
	UserID          int64  `json:"userId"`
	Name            string `json:"name"`
	PendingRequests int    `json:"pendingRequests"`
}

// UpcomingLeave is an approved absence starting soon
type UpcomingLeave struct {
	UserID    int64  `json:"userId"`
	Name      string `json:"name"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

func (s *ReportService) approved(ctx context.Context) ([]*domain.LeaveRequest, map[int64]*domain.User, error) {
	requests, err := s.store.LeaveRequests().List(ctx, domain.LeaveFilter{
		Statuses: []domain.LeaveStatus{domain.StatusApproved},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("list approved requests: %w", err)
	}
	users, err := s.store.Users().List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list users: %w", err)
	}
	byID := make(map[int64]*domain.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return requests, byID, nil
}

// DepartmentUsage totals approved days per requester department
func (s *ReportService) DepartmentUsage(ctx context.Context) (map[string]int, error) {
	requests, users, err := s.approved(ctx)
	if err != nil {
		return nil, err
	}
	usage := make(map[string]int)
	for _, lr := range requests {
		u, ok := users[lr.RequesterID]
		if !ok {
			continue
		}
		usage[u.Department] += lr.Days()
	}
	return usage, nil
}

// CompanySummary totals approved days per department and per user
func (s *ReportService) CompanySummary(ctx context.Context) (*CompanySummary, error) {
	requests, users, err := s.approved(ctx)
	if err != nil {
		return nil, err
	}

	summary := &CompanySummary{
		DepartmentUsage:       make(map[string]int),
		UserUsage:             make(map[int64]*UserUsage),
		TotalApprovedRequests: len(requests),
	}
	for _, lr := range requests {
		u, ok := users[lr.RequesterID]
		if !ok {
			continue
		}
		days := lr.Days()
		summary.DepartmentUsage[u.Department] += days
		usage, ok := summary.UserUsage[u.ID]
		if !ok {
			usage = &UserUsage{Name: u.FullName()}
			summary.UserUsage[u.ID] = usage
		}
		usage.Days += days
	}
	return summary, nil
}

func (s *ReportService) team(ctx context.Context, managerID int64) ([]*domain.User, error) {
	ids, err := s.store.ManagerLinks().Team(ctx, managerID, s.today())
	if err != nil {
		return nil, fmt.Errorf("load team: %w", err)
	}
	return s.store.Users().ListByIDs(ctx, ids)
}

func (s *ReportService) today() time.Time {
	return domain.Truncate(s.clock.Now().UTC())
}

// PendingSummary counts Pending requests per team member, including members with none
func (s *ReportService) PendingSummary(ctx context.Context, managerID int64) ([]PendingCount, error) {
	members, err := s.team(ctx, managerID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return []PendingCount{}, nil
	}

	ids := make([]int64, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	pending, err := s.store.LeaveRequests().List(ctx, domain.LeaveFilter{
		RequesterIDs:       ids,
		RestrictRequesters: true,
		Statuses:           []domain.LeaveStatus{domain.StatusPending},
	})
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}

	counts := make(map[int64]int, len(members))
	for _, lr := range pending {
		counts[lr.RequesterID]++
	}
	out := make([]PendingCount, 0, len(members))
	for _, m := range members {
		out = append(out, PendingCount{UserID: m.ID, Name: m.FullName(), PendingRequests: counts[m.ID]})
	}
	return out, nil
}

// UpcomingLeaves lists approved team absences starting within the next 30 days
func (s *ReportService) UpcomingLeaves(ctx context.Context, managerID int64) ([]UpcomingLeave, error) {
	members, err := s.team(ctx, managerID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return []UpcomingLeave{}, nil
	}

	ids := make([]int64, len(members))
	names := make(map[int64]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
		names[m.ID] = m.FullName()
	}

	from := s.today()
	requests, err := s.store.LeaveRequests().List(ctx, domain.LeaveFilter{
		RequesterIDs:       ids,
		RestrictRequesters: true,
		Statuses:           []domain.LeaveStatus{domain.StatusApproved},
		StartFrom:          from,
		StartTo:            from.Add(UpcomingWindow),
	})
	if err != nil {
		return nil, fmt.Errorf("list upcoming requests: %w", err)
	}

	out := make([]UpcomingLeave, 0, len(requests))
	for _, lr := range requests {
		out = append(out, UpcomingLeave{
			UserID:    lr.RequesterID,
			Name:      names[lr.RequesterID],
			StartDate: lr.StartDate.Format(domain.DateLayout),
			EndDate:   lr.EndDate.Format(domain.DateLayout),
		})
	}
	return out, nil
}
