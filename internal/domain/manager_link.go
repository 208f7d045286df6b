package domain

import (
	"context"
	"time"
)

// ManagerLink records that an employee reports to a manager from StartDate
// until EndDate (exclusive). An open link has no EndDate.
type ManagerLink struct {
	ID         int64      `db:"id"`
	EmployeeID int64      `db:"employee_id"`
	ManagerID  int64      `db:"manager_id"`
	StartDate  time.Time  `db:"start_date"`
	EndDate    *time.Time `db:"end_date"`
}

// ActiveAt reports whether the link is in effect on the given day
func (l *ManagerLink) ActiveAt(day time.Time) bool {
	d := Truncate(day)
	if Truncate(l.StartDate).After(d) {
		return false
	}
	return l.EndDate == nil || Truncate(*l.EndDate).After(d)
}

// ManagerLinkRepository defines data access for reporting lines
type ManagerLinkRepository interface {
	// Assign closes the employee's open link at link.StartDate and inserts link
	Assign(ctx context.Context, link *ManagerLink) error
	// ActiveManager returns the link in effect for the employee on day
	ActiveManager(ctx context.Context, employeeID int64, day time.Time) (*ManagerLink, error)
	// Team returns ids of employees whose link to the manager is in effect on day
	Team(ctx context.Context, managerID int64, day time.Time) ([]int64, error)
	ListByEmployee(ctx context.Context, employeeID int64) ([]*ManagerLink, error)
}

// Store bundles the repositories and runs units of work atomically
type Store interface {
	Users() UserRepository
	LeaveRequests() LeaveRequestRepository
	ManagerLinks() ManagerLinkRepository
	// InTx runs fn against a store bound to a single transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}
