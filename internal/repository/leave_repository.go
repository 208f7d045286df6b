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

var leaveColumns = []string{
	"id", "user_id", "start_date", "end_date", "leave_type", "status", "reason", "created_at", "updated_at",
}

var activeStatuses = []string{string(domain.StatusPending), string(domain.StatusApproved)}

// PostgresLeaveRequestRepository implements domain.LeaveRequestRepository using PostgreSQL
type PostgresLeaveRequestRepository struct {
	q      querier
	logger *slog.Logger
}

// Create inserts a leave request and fills in the generated id and timestamps
func (r *PostgresLeaveRequestRepository) Create(ctx context.Context, lr *domain.LeaveRequest) error {
	query, args, err := psql.Insert("leave_requests").
		Columns("user_id", "start_date", "end_date", "leave_type", "status", "reason").
		Values(lr.RequesterID, lr.StartDate, lr.EndDate, string(lr.LeaveType), string(lr.Status), lr.Reason).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}

	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&lr.ID, &lr.CreatedAt, &lr.UpdatedAt); err != nil {
		r.logger.Error("failed to create leave request",
			slog.Int64("user_id", lr.RequesterID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create leave request: %w", err)
	}
	return nil
}

// GetByID retrieves a leave request by ID
func (r *PostgresLeaveRequestRepository) GetByID(ctx context.Context, id int64) (*domain.LeaveRequest, error) {
	query, args, err := psql.Select(leaveColumns...).From("leave_requests").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}

	var lr domain.LeaveRequest
	if err := sqlscan.Get(ctx, r.q, &lr, query, args...); err != nil {
		if sqlscan.NotFound(err) {
			return nil, fmt.Errorf("leave request %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get leave request: %w", err)
	}
	return &lr, nil
}

// List returns leave requests matching the filter ordered by start date
func (r *PostgresLeaveRequestRepository) List(ctx context.Context, filter domain.LeaveFilter) ([]*domain.LeaveRequest, error) {
	if filter.RestrictRequesters && len(filter.RequesterIDs) == 0 {
		return []*domain.LeaveRequest{}, nil
	}

	qb := psql.Select(leaveColumns...).From("leave_requests")
	if len(filter.RequesterIDs) > 0 {
		qb = qb.Where(squirrel.Eq{"user_id": filter.RequesterIDs})
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		qb = qb.Where(squirrel.Eq{"status": statuses})
	}
	if !filter.StartFrom.IsZero() {
		qb = qb.Where(squirrel.GtOrEq{"start_date": filter.StartFrom})
	}
	if !filter.StartTo.IsZero() {
		qb = qb.Where(squirrel.LtOrEq{"start_date": filter.StartTo})
	}

	query, args, err := qb.OrderBy("start_date", "id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}

	var out []*domain.LeaveRequest
	if err := sqlscan.Select(ctx, r.q, &out, query, args...); err != nil {
		r.logger.Error("failed to list leave requests", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to list leave requests: %w", err)
	}
	return out, nil
}

// FindOverlapping returns the requester's Pending/Approved requests intersecting [start, end]
func (r *PostgresLeaveRequestRepository) FindOverlapping(ctx context.Context, requesterID int64, start, end time.Time) ([]*domain.LeaveRequest, error) {
	query, args, err := psql.Select(leaveColumns...).From("leave_requests").
		Where(squirrel.Eq{"user_id": requesterID}).
		Where(squirrel.Eq{"status": activeStatuses}).
		Where(squirrel.LtOrEq{"start_date": end}).
		Where(squirrel.GtOrEq{"end_date": start}).
		OrderBy("start_date").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}

	var out []*domain.LeaveRequest
	if err := sqlscan.Select(ctx, r.q, &out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to find overlapping leave requests: %w", err)
	}
	return out, nil
}

// UpdateStatus performs a compare-and-set status change
func (r *PostgresLeaveRequestRepository) UpdateStatus(ctx context.Context, id int64, from, to domain.LeaveStatus, reason *string) error {
	ub := psql.Update("leave_requests").
		Set("status", string(to)).
		Set("updated_at", squirrel.Expr("NOW()"))
	if reason != nil {
		ub = ub.Set("reason", *reason)
	}

	query, args, err := ub.
		Where(squirrel.Eq{"id": id, "status": string(from)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}

	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update leave request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("leave request %d is %s: %w", id, current.Status, domain.ErrInvalidTransition)
}
