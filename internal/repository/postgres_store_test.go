package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/leavedesk/internal/domain"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db, nil), mock
}

func TestPostgresUserCreateReturnsGeneratedID(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users (firstname,surname,department,email,password,salt,annual_leave_balance,role_id) VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id, created_at, updated_at")).
		WithArgs("Ada", "Lovelace", "Eng", "ada@example.com", "hash", "salt", 25, int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(7, now, now))

	u := &domain.User{
		FirstName: "Ada", Surname: "Lovelace", Department: "Eng", Email: "ada@example.com",
		PasswordHash: "hash", Salt: "salt", AnnualLeaveBalance: 25, Role: domain.RoleEmployee,
	}
	require.NoError(t, store.Users().Create(context.Background(), u))
	assert.Equal(t, int64(7), u.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUserCreateDuplicateEmail(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("INSERT INTO users").WillReturnError(&pq.Error{Code: "23505"})

	err := store.Users().Create(context.Background(), &domain.User{Email: "dup@example.com", Role: domain.RoleEmployee})
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "email already registered", vErr.Message)
}

func TestPostgresUserGetByIDNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(userColumns))

	_, err := store.Users().GetByID(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgresUserGetByEmailScansRole(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WithArgs("mgr@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(3, "Grace", "Hopper", "Ops", "mgr@example.com", "h", "s", 20, 2, now, now))

	u, err := store.Users().GetByEmail(context.Background(), "mgr@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleManager, u.Role)
	assert.Equal(t, 20, u.AnnualLeaveBalance)
	assert.Equal(t, "Grace Hopper", u.FullName())
}

func TestPostgresAdjustBalance(t *testing.T) {
	t.Run("applies delta", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET annual_leave_balance = annual_leave_balance + $1, updated_at = NOW() WHERE id = $2 AND annual_leave_balance + $3 >= 0 RETURNING annual_leave_balance")).
			WithArgs(-3, int64(1), -3).
			WillReturnRows(sqlmock.NewRows([]string{"annual_leave_balance"}).AddRow(22))

		balance, err := store.Users().AdjustBalance(context.Background(), 1, -3)
		require.NoError(t, err)
		assert.Equal(t, 22, balance)
	})

	t.Run("refuses to go negative", func(t *testing.T) {
		store, mock := newMockStore(t)
		now := time.Now()
		mock.ExpectQuery("UPDATE users SET annual_leave_balance").
			WillReturnRows(sqlmock.NewRows([]string{"annual_leave_balance"}))
		mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
			WillReturnRows(sqlmock.NewRows(userColumns).
				AddRow(1, "A", "B", "", "a@example.com", "h", "s", 2, 1, now, now))

		_, err := store.Users().AdjustBalance(context.Background(), 1, -3)
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	})
}

func TestPostgresUpdateStatusCompareAndSet(t *testing.T) {
	t.Run("moves pending to approved", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE leave_requests SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3")).
			WithArgs("Approved", int64(5), "Pending").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.LeaveRequests().UpdateStatus(context.Background(), 5, domain.StatusPending, domain.StatusApproved, nil)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports a lost race as invalid transition", func(t *testing.T) {
		store, mock := newMockStore(t)
		now := time.Now()
		day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
		mock.ExpectExec("UPDATE leave_requests").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("FROM leave_requests WHERE id = $1")).
			WillReturnRows(sqlmock.NewRows(leaveColumns).
				AddRow(5, 1, day, day, "Annual Leave", "Cancelled", nil, now, now))

		err := store.LeaveRequests().UpdateStatus(context.Background(), 5, domain.StatusPending, domain.StatusApproved, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("missing request", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("UPDATE leave_requests").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("FROM leave_requests").WillReturnRows(sqlmock.NewRows(leaveColumns))

		err := store.LeaveRequests().UpdateStatus(context.Background(), 5, domain.StatusPending, domain.StatusApproved, nil)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestPostgresFindOverlappingQuery(t *testing.T) {
	store, mock := newMockStore(t)
	start := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 AND status IN ($2,$3) AND start_date <= $4 AND end_date >= $5")).
		WithArgs(int64(1), "Pending", "Approved", end, start).
		WillReturnRows(sqlmock.NewRows(leaveColumns))

	out, err := store.LeaveRequests().FindOverlapping(context.Background(), 1, start, end)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListEmptyTeamSkipsQuery(t *testing.T) {
	store, mock := newMockStore(t)
	out, err := store.LeaveRequests().List(context.Background(), domain.LeaveFilter{RestrictRequesters: true})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAssignManagerStatements(t *testing.T) {
	store, mock := newMockStore(t)
	start := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM manager_links WHERE employee_id = $1 AND start_date >= $2")).
		WithArgs(int64(4), start).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE manager_links SET end_date = $1 WHERE employee_id = $2 AND (end_date IS NULL OR end_date > $3)")).
		WithArgs(start, int64(4), start).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO manager_links (employee_id,manager_id,start_date) VALUES ($1,$2,$3) RETURNING id")).
		WithArgs(int64(4), int64(2), start).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	mock.ExpectCommit()

	link := &domain.ManagerLink{EmployeeID: 4, ManagerID: 2, StartDate: start}
	err := store.InTx(context.Background(), func(tx domain.Store) error {
		return tx.ManagerLinks().Assign(context.Background(), link)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9), link.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInTxRollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := store.InTx(context.Background(), func(tx domain.Store) error {
		// nested calls share the outer transaction
		return tx.InTx(context.Background(), func(domain.Store) error { return boom })
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing().WillReturnError(sql.ErrConnDone)

	store := NewPostgresStore(db, nil)
	assert.Error(t, store.Ping(context.Background()))
}
