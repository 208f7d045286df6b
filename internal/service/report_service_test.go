package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/leavedesk/internal/domain"
)

func TestUsageReports(t *testing.T) {
	tm := newTeam(t)
	ctx := context.Background()

	a := tm.submit(t, tm.employee, "2025-03-10", "2025-03-12")
	b := tm.submit(t, tm.outsider, "2025-03-10", "2025-03-11")
	tm.submit(t, tm.outsider, "2025-04-10", "2025-04-11")
	for _, id := range []int64{a.ID, b.ID} {
		_, err := tm.leaves.Approve(ctx, tm.root, id)
		require.NoError(t, err)
	}

	usage, err := tm.reports.DepartmentUsage(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Eng": 3, "Ops": 2}, usage)

	summary, err := tm.reports.CompanySummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalApprovedRequests)
	assert.Equal(t, usage, summary.DepartmentUsage)
	require.Contains(t, summary.UserUsage, tm.employee.UserID)
	assert.Equal(t, &UserUsage{Name: "Ada Tester", Days: 3}, summary.UserUsage[tm.employee.UserID])
}

func TestPendingSummaryIncludesIdleMembers(t *testing.T) {
	tm := newTeam(t)
	ctx := context.Background()
	idle := tm.addUser(t, "Alan", "alan@example.com", domain.RoleEmployee, "Eng")
	tm.assign(t, idle, tm.manager)

	tm.submit(t, tm.employee, "2025-03-10", "2025-03-10")
	tm.submit(t, tm.employee, "2025-03-20", "2025-03-20")
	tm.submit(t, tm.outsider, "2025-03-20", "2025-03-20")

	summary, err := tm.reports.PendingSummary(ctx, tm.manager.UserID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []PendingCount{
		{UserID: tm.employee.UserID, Name: "Ada Tester", PendingRequests: 2},
		{UserID: idle.UserID, Name: "Alan Tester", PendingRequests: 0},
	}, summary)

	empty, err := tm.reports.PendingSummary(ctx, tm.root.UserID)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestUpcomingLeavesWindow(t *testing.T) {
	tm := newTeam(t)
	ctx := context.Background()

	// today is 2025-03-01; the window ends 2025-03-31
	inside := tm.submit(t, tm.employee, "2025-03-31", "2025-04-02")
	later := tm.submit(t, tm.employee, "2025-04-03", "2025-04-03")
	soon := tm.submit(t, tm.employee, "2025-03-03", "2025-03-04")
	tm.submit(t, tm.employee, "2025-03-10", "2025-03-10")
	for _, lr := range []*domain.LeaveRequest{inside, later, soon} {
		_, err := tm.leaves.Approve(ctx, tm.manager, lr.ID)
		require.NoError(t, err)
	}

	upcoming, err := tm.reports.UpcomingLeaves(ctx, tm.manager.UserID)
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, UpcomingLeave{UserID: tm.employee.UserID, Name: "Ada Tester", StartDate: "2025-03-03", EndDate: "2025-03-04"}, upcoming[0])
	assert.Equal(t, "2025-03-31", upcoming[1].StartDate)

	tm.clock.Advance(4 * 24 * time.Hour)
	upcoming, err = tm.reports.UpcomingLeaves(ctx, tm.manager.UserID)
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, "2025-03-31", upcoming[0].StartDate)
	assert.Equal(t, "2025-04-03", upcoming[1].StartDate)
}
