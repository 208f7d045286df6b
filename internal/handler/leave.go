package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aryan0dhankhar/leavedesk/internal/domain"
	"github.com/aryan0dhankhar/leavedesk/internal/service"
)

// SubmitLeaveRequest is the body of POST /api/leave-requests
type SubmitLeaveRequest struct {
	StartDate string  `json:"startDate"`
	EndDate   string  `json:"endDate"`
	LeaveType string  `json:"leaveType"`
	Reason    *string `json:"reason"`
}

// LeaveActionRequest identifies a request to approve, reject or cancel
type LeaveActionRequest struct {
	LeaveRequestID int64   `json:"leaveRequestId"`
	Reason         *string `json:"reason"`
}

// leaveView is a request as shown to its requester
type leaveView struct {
	ID        int64              `json:"id"`
	StartDate string             `json:"start_date"`
	EndDate   string             `json:"end_date"`
	LeaveType domain.LeaveType   `json:"leave_type"`
	Status    domain.LeaveStatus `json:"status"`
	Reason    *string            `json:"reason"`
}

func newLeaveView(lr *domain.LeaveRequest) leaveView {
	return leaveView{
		ID:        lr.ID,
		StartDate: lr.StartDate.Format(domain.DateLayout),
		EndDate:   lr.EndDate.Format(domain.DateLayout),
		LeaveType: lr.LeaveType,
		Status:    lr.Status,
		Reason:    lr.Reason,
	}
}

// teamLeaveView is a request as shown to the requester's manager
type teamLeaveView struct {
	RequestID  int64              `json:"request_id"`
	EmployeeID int64              `json:"employee_id"`
	Name       string             `json:"name"`
	StartDate  string             `json:"start_date"`
	EndDate    string             `json:"end_date"`
	LeaveType  domain.LeaveType   `json:"leave_type"`
	Status     domain.LeaveStatus `json:"status"`
	Reason     *string            `json:"reason"`
}

type balanceView struct {
	UserID        int64  `json:"userId"`
	FirstName     string `json:"firstname"`
	Surname       string `json:"surname"`
	DaysRemaining int    `json:"days remaining"`
}

type memberView struct {
	UserID             int64  `json:"userId"`
	FirstName          string `json:"firstname"`
	Surname            string `json:"surname"`
	Department         string `json:"department"`
	AnnualLeaveBalance int    `json:"annualLeaveBalance"`
}

// LeaveHandler serves the leave request lifecycle
type LeaveHandler struct {
	leaves  *service.LeaveService
	reports *service.ReportService
	logger  *slog.Logger
}

// NewLeaveHandler creates a new leave handler
func NewLeaveHandler(leaves *service.LeaveService, reports *service.ReportService, logger *slog.Logger) *LeaveHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LeaveHandler{leaves: leaves, reports: reports, logger: logger}
}

func parseDateField(v *domain.ValidationError, field, raw string) time.Time {
	if strings.TrimSpace(raw) == "" {
		v.Add(field, "is required")
		return time.Time{}
	}
	t, err := domain.ParseDate(raw)
	if err != nil {
		v.Add(field, "must be a YYYY-MM-DD date")
	}
	return t
}

// Submit handles POST /api/leave-requests
func (h *LeaveHandler) Submit(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	var req SubmitLeaveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	vErr := &domain.ValidationError{}
	start := parseDateField(vErr, "startDate", req.StartDate)
	end := parseDateField(vErr, "endDate", req.EndDate)
	if vErr.HasErrors() {
		writeServiceError(w, r, h.logger, vErr)
		return
	}

	lr, err := h.leaves.Submit(r.Context(), p, service.SubmitInput{
		StartDate: start,
		EndDate:   end,
		LeaveType: req.LeaveType,
		Reason:    req.Reason,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusCreated, "Leave request submitted", newLeaveView(lr))
}

func (h *LeaveHandler) decodeAction(w http.ResponseWriter, r *http.Request) (*LeaveActionRequest, bool) {
	var req LeaveActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return nil, false
	}
	if req.LeaveRequestID <= 0 {
		writeServiceError(w, r, h.logger, domain.NewValidationError("leaveRequestId is required"))
		return nil, false
	}
	return &req, true
}

// Cancel handles DELETE /api/leave-requests
func (h *LeaveHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	req, ok := h.decodeAction(w, r)
	if !ok {
		return
	}
	lr, err := h.leaves.Cancel(r.Context(), p, req.LeaveRequestID, req.Reason)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, "Leave request cancelled", newLeaveView(lr))
}

// Approve handles PATCH /api/leave-requests/approve
func (h *LeaveHandler) Approve(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	req, ok := h.decodeAction(w, r)
	if !ok {
		return
	}
	lr, err := h.leaves.Approve(r.Context(), p, req.LeaveRequestID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, "Leave request approved", newLeaveView(lr))
}

// Reject handles PATCH /api/leave-requests/reject
func (h *LeaveHandler) Reject(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	req, ok := h.decodeAction(w, r)
	if !ok {
		return
	}
	lr, err := h.leaves.Reject(r.Context(), p, req.LeaveRequestID, req.Reason)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, "Leave request rejected", newLeaveView(lr))
}

// Status handles GET /api/leave-requests/status
func (h *LeaveHandler) Status(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	requests, err := h.leaves.ListForCaller(r.Context(), p, service.ListFilter{})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	views := make([]leaveView, 0, len(requests))
	for _, lr := range requests {
		views = append(views, newLeaveView(lr))
	}
	writeData(w, h.logger, http.StatusOK, "Leave requests", views)
}

// Remaining handles GET /api/leave-requests/remaining
func (h *LeaveHandler) Remaining(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	b, err := h.leaves.RemainingBalance(r.Context(), p, p.UserID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, "Remaining leave balance", map[string]int{"days remaining": b.DaysRemaining})
}

// RemainingFor handles GET /api/leave-requests/remaining/{userId}
func (h *LeaveHandler) RemainingFor(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	id, err := pathID(r, "userId")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	b, err := h.leaves.RemainingBalance(r.Context(), p, id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, "Remaining leave balance", balanceView{
		UserID:        b.UserID,
		FirstName:     b.FirstName,
		Surname:       b.Surname,
		DaysRemaining: b.DaysRemaining,
	})
}

// Pending handles GET /api/leave-requests/pending
func (h *LeaveHandler) Pending(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	requests, err := h.leaves.PendingForManager(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	users, err := h.leaves.Requesters(r.Context(), requests)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	views := make([]teamLeaveView, 0, len(requests))
	for _, lr := range requests {
		v := teamLeaveView{
			RequestID:  lr.ID,
			EmployeeID: lr.RequesterID,
			StartDate:  lr.StartDate.Format(domain.DateLayout),
			EndDate:    lr.EndDate.Format(domain.DateLayout),
			LeaveType:  lr.LeaveType,
			Status:     lr.Status,
			Reason:     lr.Reason,
		}
		if u, ok := users[lr.RequesterID]; ok {
			v.Name = u.FullName()
		}
		views = append(views, v)
	}
	writeData(w, h.logger, http.StatusOK, "Pending leave requests", views)
}

// ManagedUsers handles GET /api/leave-requests/managed-users
func (h *LeaveHandler) ManagedUsers(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	users, err := h.leaves.ManagedUsers(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	views := make([]memberView, 0, len(users))
	for _, u := range users {
		views = append(views, memberView{
			UserID:             u.ID,
			FirstName:          u.FirstName,
			Surname:            u.Surname,
			Department:         u.Department,
			AnnualLeaveBalance: u.AnnualLeaveBalance,
		})
	}
	writeData(w, h.logger, http.StatusOK, "Managed users", views)
}

// PendingSummary handles GET /api/leave-requests/reports/pending-summary
func (h *LeaveHandler) PendingSummary(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	summary, err := h.reports.PendingSummary(r.Context(), p.UserID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, "Pending summary", summary)
}

// UpcomingLeaves handles GET /api/leave-requests/reports/upcoming-leaves
func (h *LeaveHandler) UpcomingLeaves(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	upcoming, err := h.reports.UpcomingLeaves(r.Context(), p.UserID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, "Upcoming leaves", upcoming)
}
