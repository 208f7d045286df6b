package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/im7mortal/kmutex"
	"github.com/juju/clock"
	"go.opentelemetry.io/otel/attribute"

	"github.com/aryan0dhankhar/leavedesk/internal/domain"
	"github.com/aryan0dhankhar/leavedesk/internal/observability/metrics"
	"github.com/aryan0dhankhar/leavedesk/internal/observability/tracing"
	"github.com/aryan0dhankhar/leavedesk/internal/security"
)

// LeaveService owns the leave request lifecycle and the balance changes it causes
type LeaveService struct {
	store  domain.Store
	authz  *security.AuthorizationService
	locks  *kmutex.Kmutex
	clock  clock.Clock
	logger *slog.Logger
}

// NewLeaveService creates a new leave service. A nil clock uses the wall clock.
func NewLeaveService(
	store domain.Store,
	authz *security.AuthorizationService,
	clk clock.Clock,
	logger *slog.Logger,
) *LeaveService {
	if logger == nil {
		logger = slog.Default()
	}
	if authz == nil {
		authz = security.NewAuthorizationService(logger)
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &LeaveService{
		store:  store,
		authz:  authz,
		locks:  kmutex.New(),
		clock:  clk,
		logger: logger,
	}
}

// SubmitInput describes a new leave request
type SubmitInput struct {
	StartDate time.Time
	EndDate   time.Time
	LeaveType string
	Reason    *string
}

// ListFilter narrows ListForCaller. Nil fields are ignored.
type ListFilter struct {
	EmployeeID *int64
	ManagerID  *int64
	Status     *domain.LeaveStatus
}

// Balance is a user's remaining allowance
type Balance struct {
	UserID        int64
	FirstName     string
	Surname       string
	DaysRemaining int
}

// withRequester serializes mutations of one requester's requests and balance
func (s *LeaveService) withRequester(requesterID int64, fn func() error) error {
	s.locks.Lock(requesterID)
	defer s.locks.Unlock(requesterID)
	return fn()
}

func (s *LeaveService) today() time.Time {
	return domain.Truncate(s.clock.Now().UTC())
}

// Submit creates a Pending request for the caller
func (s *LeaveService) Submit(ctx context.Context, actor domain.Principal, in SubmitInput) (lr *domain.LeaveRequest, err error) {
	ctx, span := tracing.Start(ctx, "leave.submit", attribute.Int64("user_id", actor.UserID))
	defer func() { tracing.End(span, err) }()

	if err := s.authz.ValidatePermission(actor, security.PermSubmitLeave); err != nil {
		return nil, err
	}

	start, end := domain.Truncate(in.StartDate), domain.Truncate(in.EndDate)
	if end.Before(start) {
		metrics.ObserveRefusedSubmission("range")
		return nil, domain.ErrInvalidRange
	}
	leaveType, err := domain.ParseLeaveType(in.LeaveType)
	if err != nil {
		metrics.ObserveRefusedSubmission("validation")
		return nil, domain.NewValidationError(err.Error())
	}
	days := domain.DaysInclusive(start, end)

	err = s.withRequester(actor.UserID, func() error {
		return s.store.InTx(ctx, func(tx domain.Store) error {
			if err := tx.Users().Lock(ctx, actor.UserID); err != nil {
				return err
			}
			user, err := tx.Users().GetByID(ctx, actor.UserID)
			if err != nil {
				return err
			}

			overlapping, err := tx.LeaveRequests().FindOverlapping(ctx, actor.UserID, start, end)
			if err != nil {
				return err
			}
			if len(overlapping) > 0 {
				metrics.ObserveRefusedSubmission("overlap")
				return fmt.Errorf("conflicts with request %d: %w", overlapping[0].ID, domain.ErrOverlap)
			}

			if days > user.AnnualLeaveBalance {
				metrics.ObserveRefusedSubmission("balance")
				return fmt.Errorf("requested %d days with %d remaining: %w", days, user.AnnualLeaveBalance, domain.ErrInsufficientBalance)
			}

			lr = &domain.LeaveRequest{
				RequesterID: actor.UserID,
				StartDate:   start,
				EndDate:     end,
				LeaveType:   leaveType,
				Status:      domain.StatusPending,
				Reason:      in.Reason,
			}
			return tx.LeaveRequests().Create(ctx, lr)
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.ObserveLeaveTransition(string(domain.StatusPending))
	s.logger.Info("leave request submitted",
		slog.Int64("leave_request_id", lr.ID),
		slog.Int64("user_id", actor.UserID),
		slog.Int("days", days),
	)
	return lr, nil
}

// Approve moves a Pending request to Approved and deducts its days from the requester's balance
func (s *LeaveService) Approve(ctx context.Context, actor domain.Principal, requestID int64) (lr *domain.LeaveRequest, err error) {
	ctx, span := tracing.Start(ctx, "leave.approve",
		attribute.Int64("leave_request_id", requestID),
		attribute.Int64("actor_id", actor.UserID),
	)
	defer func() { tracing.End(span, err) }()

	lr, err = s.decide(ctx, actor, requestID, domain.StatusApproved, nil, func(tx domain.Store, lr *domain.LeaveRequest) error {
		_, err := tx.Users().AdjustBalance(ctx, lr.RequesterID, -lr.Days())
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.ObserveApprovedDays(lr.Days())
	return lr, nil
}

// Reject moves a Pending request to Rejected, storing reason when given
func (s *LeaveService) Reject(ctx context.Context, actor domain.Principal, requestID int64, reason *string) (lr *domain.LeaveRequest, err error) {
	ctx, span := tracing.Start(ctx, "leave.reject",
		attribute.Int64("leave_request_id", requestID),
		attribute.Int64("actor_id", actor.UserID),
	)
	defer func() { tracing.End(span, err) }()

	return s.decide(ctx, actor, requestID, domain.StatusRejected, reason, nil)
}

// decide runs an approver's transition out of Pending. Checks run in the order
// existence, transition, then approver scope.
func (s *LeaveService) decide(
	ctx context.Context,
	actor domain.Principal,
	requestID int64,
	to domain.LeaveStatus,
	reason *string,
	effect func(tx domain.Store, lr *domain.LeaveRequest) error,
) (*domain.LeaveRequest, error) {
	current, err := s.store.LeaveRequests().GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	var out *domain.LeaveRequest
	err = s.withRequester(current.RequesterID, func() error {
		return s.store.InTx(ctx, func(tx domain.Store) error {
			if err := tx.Users().Lock(ctx, current.RequesterID); err != nil {
				return err
			}
			lr, err := tx.LeaveRequests().GetByID(ctx, requestID)
			if err != nil {
				return err
			}
			if !domain.CanTransition(lr.Status, to) {
				return transitionError(lr.Status, to)
			}
			if err := s.checkApprover(ctx, tx, actor, lr.RequesterID); err != nil {
				return err
			}
			if effect != nil {
				if err := effect(tx, lr); err != nil {
					return err
				}
			}
			if err := tx.LeaveRequests().UpdateStatus(ctx, lr.ID, lr.Status, to, reason); err != nil {
				return err
			}
			lr.Status = to
			if reason != nil {
				lr.Reason = reason
			}
			out = lr
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.ObserveLeaveTransition(string(to))
	s.logger.Info("leave request decided",
		slog.Int64("leave_request_id", out.ID),
		slog.Int64("user_id", out.RequesterID),
		slog.Int64("actor_id", actor.UserID),
		slog.String("status", string(to)),
	)
	return out, nil
}

// checkApprover allows admins, and managers whose team contains the requester today
func (s *LeaveService) checkApprover(ctx context.Context, store domain.Store, actor domain.Principal, requesterID int64) error {
	if err := s.authz.ValidatePermission(actor, security.PermDecideLeave); err != nil {
		return err
	}
	switch actor.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleManager:
		inTeam, err := s.inTeam(ctx, store, actor.UserID, requesterID)
		if err != nil {
			return err
		}
		if !inTeam {
			s.logger.Warn("manager acted outside their team",
				slog.Int64("manager_id", actor.UserID),
				slog.Int64("user_id", requesterID),
			)
			return fmt.Errorf("user %d is not in your team: %w", requesterID, domain.ErrForbidden)
		}
		return nil
	default:
		return domain.ErrForbidden
	}
}

func transitionError(from, to domain.LeaveStatus) error {
	if from.Terminal() {
		return fmt.Errorf("request is already %s and cannot change: %w", strings.ToLower(string(from)), domain.ErrInvalidTransition)
	}
	return fmt.Errorf("cannot move %s request to %s: %w", from, to, domain.ErrInvalidTransition)
}

func (s *LeaveService) inTeam(ctx context.Context, store domain.Store, managerID, employeeID int64) (bool, error) {
	link, err := store.ManagerLinks().ActiveManager(ctx, employeeID, s.today())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return link.ManagerID == managerID, nil
}

// Cancel lets the requester withdraw a Pending or Approved request.
// Cancelling an Approved request gives its days back.
func (s *LeaveService) Cancel(ctx context.Context, actor domain.Principal, requestID int64, reason *string) (out *domain.LeaveRequest, err error) {
	ctx, span := tracing.Start(ctx, "leave.cancel",
		attribute.Int64("leave_request_id", requestID),
		attribute.Int64("actor_id", actor.UserID),
	)
	defer func() { tracing.End(span, err) }()

	if err := s.authz.ValidatePermission(actor, security.PermCancelLeave); err != nil {
		return nil, err
	}

	current, err := s.store.LeaveRequests().GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.ValidateOwnership(actor, "leave request", current.RequesterID); err != nil {
		return nil, err
	}

	var restored int
	err = s.withRequester(actor.UserID, func() error {
		return s.store.InTx(ctx, func(tx domain.Store) error {
			if err := tx.Users().Lock(ctx, actor.UserID); err != nil {
				return err
			}
			lr, err := tx.LeaveRequests().GetByID(ctx, requestID)
			if err != nil {
				return err
			}
			if !domain.CanTransition(lr.Status, domain.StatusCancelled) {
				return transitionError(lr.Status, domain.StatusCancelled)
			}
			if lr.Status == domain.StatusApproved {
				restored = lr.Days()
				if _, err := tx.Users().AdjustBalance(ctx, lr.RequesterID, restored); err != nil {
					return err
				}
			}
			if err := tx.LeaveRequests().UpdateStatus(ctx, lr.ID, lr.Status, domain.StatusCancelled, reason); err != nil {
				return err
			}
			lr.Status = domain.StatusCancelled
			if reason != nil {
				lr.Reason = reason
			}
			out = lr
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.ObserveLeaveTransition(string(domain.StatusCancelled))
	s.logger.Info("leave request cancelled",
		slog.Int64("leave_request_id", out.ID),
		slog.Int64("user_id", actor.UserID),
		slog.Int("days_restored", restored),
	)
	return out, nil
}

// ListForCaller returns the requests the caller may see, narrowed by filter
func (s *LeaveService) ListForCaller(ctx context.Context, actor domain.Principal, filter ListFilter) ([]*domain.LeaveRequest, error) {
	lf := domain.LeaveFilter{}
	if filter.Status != nil {
		lf.Statuses = []domain.LeaveStatus{*filter.Status}
	}

	switch actor.Role {
	case domain.RoleEmployee:
		lf.RequesterIDs = []int64{actor.UserID}
		lf.RestrictRequesters = true

	case domain.RoleManager:
		team, err := s.store.ManagerLinks().Team(ctx, actor.UserID, s.today())
		if err != nil {
			return nil, err
		}
		lf.RestrictRequesters = true
		if filter.EmployeeID != nil {
			if !containsID(team, *filter.EmployeeID) {
				return nil, fmt.Errorf("user %d is not in your team: %w", *filter.EmployeeID, domain.ErrForbidden)
			}
			lf.RequesterIDs = []int64{*filter.EmployeeID}
		} else {
			lf.RequesterIDs = team
		}

	case domain.RoleAdmin:
		if filter.ManagerID != nil {
			team, err := s.store.ManagerLinks().Team(ctx, *filter.ManagerID, s.today())
			if err != nil {
				return nil, err
			}
			lf.RestrictRequesters = true
			lf.RequesterIDs = team
			if filter.EmployeeID != nil {
				lf.RequesterIDs = nil
				if containsID(team, *filter.EmployeeID) {
					lf.RequesterIDs = []int64{*filter.EmployeeID}
				}
			}
		} else if filter.EmployeeID != nil {
			lf.RequesterIDs = []int64{*filter.EmployeeID}
			lf.RestrictRequesters = true
		}

	default:
		return nil, domain.ErrForbidden
	}

	return s.store.LeaveRequests().List(ctx, lf)
}

// PendingForManager lists Pending requests of the manager's team
func (s *LeaveService) PendingForManager(ctx context.Context, actor domain.Principal) ([]*domain.LeaveRequest, error) {
	if err := s.authz.ValidatePermission(actor, security.PermViewTeam); err != nil {
		return nil, err
	}
	pending := domain.StatusPending
	return s.ListForCaller(ctx, actor, ListFilter{Status: &pending})
}

// RemainingBalance returns target's balance if the caller may see it:
// everyone may see their own, managers their team, admins anyone
func (s *LeaveService) RemainingBalance(ctx context.Context, actor domain.Principal, targetID int64) (*Balance, error) {
	if targetID != actor.UserID {
		if err := s.authz.ValidatePermission(actor, security.PermViewBalances); err != nil {
			return nil, err
		}
	}

	// team first, so unknown and foreign ids look the same to a manager
	if targetID != actor.UserID && actor.Role == domain.RoleManager {
		inTeam, err := s.inTeam(ctx, s.store, actor.UserID, targetID)
		if err != nil {
			return nil, err
		}
		if !inTeam {
			return nil, fmt.Errorf("user %d is not in your team: %w", targetID, domain.ErrForbidden)
		}
	}

	user, err := s.store.Users().GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	return &Balance{
		UserID:        user.ID,
		FirstName:     user.FirstName,
		Surname:       user.Surname,
		DaysRemaining: user.AnnualLeaveBalance,
	}, nil
}

// ManagedUsers returns the manager's current direct reports
func (s *LeaveService) ManagedUsers(ctx context.Context, actor domain.Principal) ([]*domain.User, error) {
	if err := s.authz.ValidatePermission(actor, security.PermViewTeam); err != nil {
		return nil, err
	}
	team, err := s.store.ManagerLinks().Team(ctx, actor.UserID, s.today())
	if err != nil {
		return nil, err
	}
	return s.store.Users().ListByIDs(ctx, team)
}

// Requesters loads the users behind a set of requests, keyed by id
func (s *LeaveService) Requesters(ctx context.Context, requests []*domain.LeaveRequest) (map[int64]*domain.User, error) {
	ids := make([]int64, 0, len(requests))
	seen := make(map[int64]bool, len(requests))
	for _, lr := range requests {
		if !seen[lr.RequesterID] {
			seen[lr.RequesterID] = true
			ids = append(ids, lr.RequesterID)
		}
	}
	users, err := s.store.Users().ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]*domain.User, len(users))
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
