package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/leavedesk/internal/domain"
	"github.com/aryan0dhankhar/leavedesk/internal/repository"
)

var testNow = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func day(s string) time.Time {
	t, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

type fixture struct {
	store   *repository.MemoryStore
	clock   *testclock.Clock
	leaves  *LeaveService
	reports *ReportService
	admin   *AdminService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	clk := testclock.NewClock(testNow)
	log := discardLogger()
	return &fixture{
		store:   store,
		clock:   clk,
		leaves:  NewLeaveService(store, nil, clk, log),
		reports: NewReportService(store, clk, log),
		admin:   NewAdminService(store, clk, log),
	}
}

func (f *fixture) addUser(t *testing.T, first, email string, role domain.Role, department string) domain.Principal {
	t.Helper()
	u, err := f.admin.AddUser(context.Background(), AddUserInput{
		FirstName:  first,
		Surname:    "Tester",
		Email:      email,
		Password:   "correct horse",
		RoleID:     role.ID(),
		Department: department,
	})
	require.NoError(t, err)
	return domain.Principal{UserID: u.ID, Role: role}
}

func (f *fixture) assign(t *testing.T, employee, manager domain.Principal) {
	t.Helper()
	_, err := f.admin.AssignManager(context.Background(), employee.UserID, manager.UserID, nil)
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, userID int64) int {
	t.Helper()
	u, err := f.store.Users().GetByID(context.Background(), userID)
	require.NoError(t, err)
	return u.AnnualLeaveBalance
}

func (f *fixture) submit(t *testing.T, p domain.Principal, start, end string) *domain.LeaveRequest {
	t.Helper()
	lr, err := f.leaves.Submit(context.Background(), p, SubmitInput{StartDate: day(start), EndDate: day(end)})
	require.NoError(t, err)
	return lr
}
