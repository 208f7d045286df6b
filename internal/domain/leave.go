package domain

import (
	"context"
	"fmt"
	"time"
)

// DateLayout is the wire format of leave dates
const DateLayout = "2006-01-02"

// LeaveStatus is the lifecycle state of a leave request
type LeaveStatus string

const (
	StatusPending   LeaveStatus = "Pending"
	StatusApproved  LeaveStatus = "Approved"
	StatusRejected  LeaveStatus = "Rejected"
	StatusCancelled LeaveStatus = "Cancelled"
)

// ParseLeaveStatus validates a status name
func ParseLeaveStatus(s string) (LeaveStatus, error) {
	switch st := LeaveStatus(s); st {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("unknown leave status %q", s)
	}
}

// Terminal reports whether no further transition is allowed
func (s LeaveStatus) Terminal() bool {
	return s == StatusRejected || s == StatusCancelled
}

// Active reports whether the request still claims its date range
func (s LeaveStatus) Active() bool {
	return s == StatusPending || s == StatusApproved
}

// CanTransition reports whether from -> to is a legal lifecycle step
func CanTransition(from, to LeaveStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusApproved || to == StatusRejected || to == StatusCancelled
	case StatusApproved:
		return to == StatusCancelled
	default:
		return false
	}
}

// LeaveType distinguishes the kind of absence requested
type LeaveType string

const (
	LeaveAnnual LeaveType = "Annual Leave"
	LeaveSick   LeaveType = "Sick Leave"
)

// ParseLeaveType defaults an empty value to annual leave
func ParseLeaveType(s string) (LeaveType, error) {
	switch t := LeaveType(s); t {
	case "":
		return LeaveAnnual, nil
	case LeaveAnnual, LeaveSick:
		return t, nil
	default:
		return "", fmt.Errorf("unknown leave type %q", s)
	}
}

// LeaveRequest is a request for an inclusive range of days off
type LeaveRequest struct {
	ID          int64       `db:"id"`
	RequesterID int64       `db:"user_id"`
	StartDate   time.Time   `db:"start_date"`
	EndDate     time.Time   `db:"end_date"`
	LeaveType   LeaveType   `db:"leave_type"`
	Status      LeaveStatus `db:"status"`
	Reason      *string     `db:"reason"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

// Days returns the inclusive day count of the request
func (lr *LeaveRequest) Days() int {
	return DaysInclusive(lr.StartDate, lr.EndDate)
}

// Overlaps reports whether the request shares a day with [start, end]
func (lr *LeaveRequest) Overlaps(start, end time.Time) bool {
	return RangesOverlap(lr.StartDate, lr.EndDate, start, end)
}

// LeaveFilter narrows leave request listings. Zero values are ignored.
type LeaveFilter struct {
	RequesterIDs []int64
	Statuses     []LeaveStatus
	StartFrom    time.Time
	StartTo      time.Time
	// RestrictRequesters applies RequesterIDs even when it is empty (an empty team)
	RestrictRequesters bool
}

// LeaveRequestRepository defines data access for leave requests
type LeaveRequestRepository interface {
	Create(ctx context.Context, lr *LeaveRequest) error
	GetByID(ctx context.Context, id int64) (*LeaveRequest, error)
	List(ctx context.Context, filter LeaveFilter) ([]*LeaveRequest, error)
	// FindOverlapping returns Pending/Approved requests of the requester intersecting [start, end]
	FindOverlapping(ctx context.Context, requesterID int64, start, end time.Time) ([]*LeaveRequest, error)
	// UpdateStatus moves a request from one status to another.
	// It fails with ErrInvalidTransition when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id int64, from, to LeaveStatus, reason *string) error
}

// ParseDate parses a YYYY-MM-DD date as UTC midnight
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// Truncate drops the time of day, keeping the calendar date in UTC
func Truncate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

const secondsPerDay = 24 * 60 * 60

// DaysInclusive counts calendar days in [start, end]
func DaysInclusive(start, end time.Time) int {
	s, e := Truncate(start), Truncate(end)
	// Unix seconds avoid the ~292 year ceiling of time.Duration
	return int((e.Unix()-s.Unix())/secondsPerDay) + 1
}

// RangesOverlap reports whether two inclusive date ranges share a day
func RangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !Truncate(aStart).After(Truncate(bEnd)) && !Truncate(bStart).After(Truncate(aEnd))
}
