package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"

	"github.com/aryan0dhankhar/leavedesk/internal/domain"
)

var linkColumns = []string{"id", "employee_id", "manager_id", "start_date", "end_date"}

// PostgresManagerLinkRepository implements domain.ManagerLinkRepository using PostgreSQL.
// Assign issues several statements; callers run it inside Store.InTx.
type PostgresManagerLinkRepository struct {
	q      querier
	logger *slog.Logger
}

func activeOn(day time.Time) squirrel.Sqlizer {
	return squirrel.And{
		squirrel.LtOrEq{"start_date": day},
		squirrel.Or{squirrel.Eq{"end_date": nil}, squirrel.Gt{"end_date": day}},
	}
}

// Assign ends the employee's current reporting line at link.StartDate and records the new one
func (r *PostgresManagerLinkRepository) Assign(ctx context.Context, link *domain.ManagerLink) error {
	// links that would start on or after the new one are superseded
	query, args, err := psql.Delete("manager_links").
		Where(squirrel.Eq{"employee_id": link.EmployeeID}).
		Where(squirrel.GtOrEq{"start_date": link.StartDate}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to remove superseded manager links: %w", err)
	}

	query, args, err = psql.Update("manager_links").
		Set("end_date", link.StartDate).
		Where(squirrel.Eq{"employee_id": link.EmployeeID}).
		Where(squirrel.Or{squirrel.Eq{"end_date": nil}, squirrel.Gt{"end_date": link.StartDate}}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to close manager link: %w", err)
	}

	query, args, err = psql.Insert("manager_links").
		Columns("employee_id", "manager_id", "start_date").
		Values(link.EmployeeID, link.ManagerID, link.StartDate).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&link.ID); err != nil {
		r.logger.Error("failed to assign manager",
			slog.Int64("employee_id", link.EmployeeID),
			slog.Int64("manager_id", link.ManagerID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to insert manager link: %w", err)
	}
	link.EndDate = nil
	return nil
}

// ActiveManager returns the employee's reporting line in effect on day
func (r *PostgresManagerLinkRepository) ActiveManager(ctx context.Context, employeeID int64, day time.Time) (*domain.ManagerLink, error) {
	query, args, err := psql.Select(linkColumns...).From("manager_links").
		Where(squirrel.Eq{"employee_id": employeeID}).
		Where(activeOn(day)).
		OrderBy("start_date DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}

	var link domain.ManagerLink
	if err := sqlscan.Get(ctx, r.q, &link, query, args...); err != nil {
		if sqlscan.NotFound(err) {
			return nil, fmt.Errorf("manager of user %d: %w", employeeID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get manager link: %w", err)
	}
	return &link, nil
}

// Team returns the ids of the manager's direct reports on day
func (r *PostgresManagerLinkRepository) Team(ctx context.Context, managerID int64, day time.Time) ([]int64, error) {
	query, args, err := psql.Select("employee_id").From("manager_links").
		Where(squirrel.Eq{"manager_id": managerID}).
		Where(activeOn(day)).
		OrderBy("employee_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}

	ids := []int64{}
	if err := sqlscan.Select(ctx, r.q, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list team: %w", err)
	}
	return ids, nil
}

// ListByEmployee returns the employee's reporting history, oldest first
func (r *PostgresManagerLinkRepository) ListByEmployee(ctx context.Context, employeeID int64) ([]*domain.ManagerLink, error) {
	query, args, err := psql.Select(linkColumns...).From("manager_links").
		Where(squirrel.Eq{"employee_id": employeeID}).
		OrderBy("start_date").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}

	var links []*domain.ManagerLink
	if err := sqlscan.Select(ctx, r.q, &links, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list manager links: %w", err)
	}
	return links, nil
}
