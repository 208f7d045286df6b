package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"

	"github.com/aryan0dhankhar/leavedesk/internal/domain"
)

var userColumns = []string{
	"id", "firstname", "surname", "department", "email", "password", "salt",
	"annual_leave_balance", "role_id", "created_at", "updated_at",
}

// PostgresUserRepository implements domain.UserRepository using PostgreSQL
type PostgresUserRepository struct {
	q      querier
	logger *slog.Logger
}

// Create inserts a new user and fills in the generated id and timestamps
func (r *PostgresUserRepository) Create(ctx context.Context, user *domain.User) error {
	query, args, err := psql.Insert("users").
		Columns("firstname", "surname", "department", "email", "password", "salt", "annual_leave_balance", "role_id").
		Values(user.FirstName, user.Surname, user.Department, user.Email, user.PasswordHash, user.Salt, user.AnnualLeaveBalance, user.Role).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}

	err = r.q.QueryRowContext(ctx, query, args...).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewValidationError("email already registered")
		}
		r.logger.Error("failed to create user",
			slog.String("email", user.Email),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *PostgresUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id}, fmt.Sprintf("user %d", id))
}

// GetByEmail retrieves a user by exact email
func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"email": email}, "user")
}

func (r *PostgresUserRepository) getOne(ctx context.Context, where squirrel.Sqlizer, what string) (*domain.User, error) {
	query, args, err := psql.Select(userColumns...).From("users").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}

	var user domain.User
	if err := sqlscan.Get(ctx, r.q, &user, query, args...); err != nil {
		if sqlscan.NotFound(err) {
			return nil, fmt.Errorf("%s: %w", what, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// List returns every user ordered by id
func (r *PostgresUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	query, args, err := psql.Select(userColumns...).From("users").OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}

	var users []*domain.User
	if err := sqlscan.Select(ctx, r.q, &users, query, args...); err != nil {
		r.logger.Error("failed to list users", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// ListByIDs returns the users with the given ids ordered by id
func (r *PostgresUserRepository) ListByIDs(ctx context.Context, ids []int64) ([]*domain.User, error) {
	if len(ids) == 0 {
		return []*domain.User{}, nil
	}

	query, args, err := psql.Select(userColumns...).From("users").
		Where(squirrel.Eq{"id": ids}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}

	var users []*domain.User
	if err := sqlscan.Select(ctx, r.q, &users, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// UpdateRole changes the user's role
func (r *PostgresUserRepository) UpdateRole(ctx context.Context, id int64, role domain.Role) error {
	return r.update(ctx, id, map[string]any{"role_id": role})
}

// UpdateDepartment changes the user's department
func (r *PostgresUserRepository) UpdateDepartment(ctx context.Context, id int64, department string) error {
	return r.update(ctx, id, map[string]any{"department": department})
}

// SetBalance overwrites the user's leave balance
func (r *PostgresUserRepository) SetBalance(ctx context.Context, id int64, balance int) error {
	if balance < 0 {
		return domain.NewValidationError("annual leave balance cannot be negative")
	}
	return r.update(ctx, id, map[string]any{"annual_leave_balance": balance})
}

func (r *PostgresUserRepository) update(ctx context.Context, id int64, fields map[string]any) error {
	query, args, err := psql.Update("users").
		SetMap(fields).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}

	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return requireRowsAffected(result, fmt.Sprintf("user %d", id))
}

// AdjustBalance applies delta atomically, refusing to go below zero
func (r *PostgresUserRepository) AdjustBalance(ctx context.Context, id int64, delta int) (int, error) {
	query, args, err := psql.Update("users").
		Set("annual_leave_balance", squirrel.Expr("annual_leave_balance + ?", delta)).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		Where("annual_leave_balance + ? >= 0", delta).
		Suffix("RETURNING annual_leave_balance").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("building update query: %w", err)
	}

	var balance int
	if err := sqlscan.Get(ctx, r.q, &balance, query, args...); err != nil {
		if !sqlscan.NotFound(err) {
			return 0, fmt.Errorf("failed to adjust balance: %w", err)
		}
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return 0, getErr
		}
		return 0, fmt.Errorf("user %d: %w", id, domain.ErrInsufficientBalance)
	}
	return balance, nil
}

// Lock takes a row lock on the user for the rest of the transaction
func (r *PostgresUserRepository) Lock(ctx context.Context, id int64) error {
	query, args, err := psql.Select("id").From("users").
		Where(squirrel.Eq{"id": id}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return fmt.Errorf("building lock query: %w", err)
	}

	var locked int64
	if err := sqlscan.Get(ctx, r.q, &locked, query, args...); err != nil {
		if sqlscan.NotFound(err) {
			return fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("failed to lock user: %w", err)
	}
	return nil
}
