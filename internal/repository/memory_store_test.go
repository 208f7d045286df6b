package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/leavedesk/internal/domain"
)

func day(s string) time.Time {
	t, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func seedUser(t *testing.T, s *MemoryStore, email string, role domain.Role) *domain.User {
	t.Helper()
	u := &domain.User{FirstName: "F", Surname: email, Email: email, Role: role, AnnualLeaveBalance: domain.DefaultAnnualLeaveBalance}
	require.NoError(t, s.Users().Create(context.Background(), u))
	return u
}

func TestMemoryUsers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := seedUser(t, s, "a@example.com", domain.RoleEmployee)
	b := seedUser(t, s, "b@example.com", domain.RoleManager)

	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)

	err := s.Users().Create(ctx, &domain.User{Email: "a@example.com"})
	var vErr *domain.ValidationError
	assert.ErrorAs(t, err, &vErr)

	got, err := s.Users().GetByEmail(ctx, "b@example.com")
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	_, err = s.Users().GetByEmail(ctx, "B@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// returned values are copies
	got.Department = "mutated"
	again, _ := s.Users().GetByID(ctx, b.ID)
	assert.Empty(t, again.Department)

	require.NoError(t, s.Users().UpdateRole(ctx, a.ID, domain.RoleAdmin))
	require.NoError(t, s.Users().UpdateDepartment(ctx, a.ID, "Finance"))
	a2, _ := s.Users().GetByID(ctx, a.ID)
	assert.Equal(t, domain.RoleAdmin, a2.Role)
	assert.Equal(t, "Finance", a2.Department)

	assert.ErrorIs(t, s.Users().UpdateRole(ctx, 99, domain.RoleAdmin), domain.ErrNotFound)

	list, err := s.Users().ListByIDs(ctx, []int64{2, 1, 2, 99})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(1), list[0].ID)
}

func TestMemoryAdjustBalance(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	u := seedUser(t, s, "a@example.com", domain.RoleEmployee)

	bal, err := s.Users().AdjustBalance(ctx, u.ID, -25)
	require.NoError(t, err)
	assert.Equal(t, 0, bal)

	_, err = s.Users().AdjustBalance(ctx, u.ID, -1)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	assert.Error(t, s.Users().SetBalance(ctx, u.ID, -1))
}

func TestMemoryLeaveLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	u := seedUser(t, s, "a@example.com", domain.RoleEmployee)

	lr := &domain.LeaveRequest{RequesterID: u.ID, StartDate: day("2025-03-10"), EndDate: day("2025-03-12"), LeaveType: domain.LeaveAnnual, Status: domain.StatusPending}
	require.NoError(t, s.LeaveRequests().Create(ctx, lr))

	overlap, err := s.LeaveRequests().FindOverlapping(ctx, u.ID, day("2025-03-12"), day("2025-03-20"))
	require.NoError(t, err)
	assert.Len(t, overlap, 1)

	overlap, _ = s.LeaveRequests().FindOverlapping(ctx, u.ID, day("2025-03-13"), day("2025-03-20"))
	assert.Empty(t, overlap)

	reason := "changed plans"
	require.NoError(t, s.LeaveRequests().UpdateStatus(ctx, lr.ID, domain.StatusPending, domain.StatusCancelled, &reason))
	err = s.LeaveRequests().UpdateStatus(ctx, lr.ID, domain.StatusPending, domain.StatusApproved, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	got, _ := s.LeaveRequests().GetByID(ctx, lr.ID)
	require.NotNil(t, got.Reason)
	assert.Equal(t, "changed plans", *got.Reason)

	overlap, _ = s.LeaveRequests().FindOverlapping(ctx, u.ID, day("2025-03-10"), day("2025-03-12"))
	assert.Empty(t, overlap, "cancelled requests no longer claim their days")
}

func TestMemoryLeaveList(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for i, start := range []string{"2025-05-01", "2025-03-01", "2025-04-01"} {
		lr := &domain.LeaveRequest{RequesterID: int64(i%2 + 1), StartDate: day(start), EndDate: day(start), Status: domain.StatusPending}
		require.NoError(t, s.LeaveRequests().Create(ctx, lr))
	}

	all, _ := s.LeaveRequests().List(ctx, domain.LeaveFilter{})
	require.Len(t, all, 3)
	assert.Equal(t, day("2025-03-01"), all[0].StartDate)

	mine, _ := s.LeaveRequests().List(ctx, domain.LeaveFilter{RequesterIDs: []int64{1}})
	assert.Len(t, mine, 2)

	window, _ := s.LeaveRequests().List(ctx, domain.LeaveFilter{StartFrom: day("2025-03-15"), StartTo: day("2025-04-30")})
	assert.Len(t, window, 1)

	none, _ := s.LeaveRequests().List(ctx, domain.LeaveFilter{RestrictRequesters: true})
	assert.Empty(t, none)
}

func TestMemoryManagerLinks(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	links := s.ManagerLinks()

	require.NoError(t, links.Assign(ctx, &domain.ManagerLink{EmployeeID: 5, ManagerID: 2, StartDate: day("2025-01-01")}))
	require.NoError(t, links.Assign(ctx, &domain.ManagerLink{EmployeeID: 5, ManagerID: 3, StartDate: day("2025-06-01")}))

	m, err := links.ActiveManager(ctx, 5, day("2025-05-31"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), m.ManagerID)

	m, err = links.ActiveManager(ctx, 5, day("2025-06-01"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), m.ManagerID)

	_, err = links.ActiveManager(ctx, 5, day("2024-12-31"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	team, _ := links.Team(ctx, 2, day("2025-06-01"))
	assert.Empty(t, team)
	team, _ = links.Team(ctx, 3, day("2025-06-01"))
	assert.Equal(t, []int64{5}, team)

	// reassigning from an earlier date supersedes the later link
	require.NoError(t, links.Assign(ctx, &domain.ManagerLink{EmployeeID: 5, ManagerID: 4, StartDate: day("2025-03-01")}))
	history, _ := links.ListByEmployee(ctx, 5)
	require.Len(t, history, 2)
	assert.Equal(t, int64(2), history[0].ManagerID)
	require.NotNil(t, history[0].EndDate)
	assert.Equal(t, day("2025-03-01"), *history[0].EndDate)
	assert.Equal(t, int64(4), history[1].ManagerID)
	assert.Nil(t, history[1].EndDate)
}

func TestMemoryInTxRollback(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	u := seedUser(t, s, "a@example.com", domain.RoleEmployee)

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx domain.Store) error {
		if _, err := tx.Users().AdjustBalance(ctx, u.ID, -5); err != nil {
			return err
		}
		if err := tx.LeaveRequests().Create(ctx, &domain.LeaveRequest{RequesterID: u.ID, Status: domain.StatusPending}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, _ := s.Users().GetByID(ctx, u.ID)
	assert.Equal(t, domain.DefaultAnnualLeaveBalance, got.AnnualLeaveBalance)
	all, _ := s.LeaveRequests().List(ctx, domain.LeaveFilter{})
	assert.Empty(t, all)
}

func TestMemoryInTxSerializesWriters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	u := seedUser(t, s, "a@example.com", domain.RoleEmployee)

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.InTx(ctx, func(tx domain.Store) error {
				cur, err := tx.Users().GetByID(ctx, u.ID)
				if err != nil {
					return err
				}
				if cur.AnnualLeaveBalance < 1 {
					return domain.ErrInsufficientBalance
				}
				_, err = tx.Users().AdjustBalance(ctx, u.ID, -1)
				return err
			})
		}()
	}
	wg.Wait()

	got, _ := s.Users().GetByID(ctx, u.ID)
	assert.Equal(t, 0, got.AnnualLeaveBalance)
}
