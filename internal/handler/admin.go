package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aryan0dhankhar/leavedesk/internal/domain"
	"github.com/aryan0dhankhar/leavedesk/internal/service"
)

// AssignManagerRequest is the body of POST /api/admin/assign-manager
type AssignManagerRequest struct {
	EmployeeID int64  `json:"employeeId"`
	ManagerID  int64  `json:"managerId"`
	StartDate  string `json:"startDate"`
}

// adminLeaveView is a request as listed to admins
type adminLeaveView struct {
	RequestID int64              `json:"requestId"`
	UserID    int64              `json:"userId"`
	Name      string             `json:"name"`
	StartDate string             `json:"startDate"`
	EndDate   string             `json:"endDate"`
	LeaveType domain.LeaveType   `json:"leaveType"`
	Status    domain.LeaveStatus `json:"status"`
	Reason    *string            `json:"reason"`
}

type linkView struct {
	ID         int64   `json:"id"`
	EmployeeID int64   `json:"employeeId"`
	ManagerID  int64   `json:"managerId"`
	StartDate  string  `json:"startDate"`
	EndDate    *string `json:"endDate"`
}

// AdminHandler serves account management, company-wide listings and reports
type AdminHandler struct {
	admin   *service.AdminService
	leaves  *service.LeaveService
	reports *service.ReportService
	logger  *slog.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(
	admin *service.AdminService,
	leaves *service.LeaveService,
	reports *service.ReportService,
	logger *slog.Logger,
) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{admin: admin, leaves: leaves, reports: reports, logger: logger}
}

// AllUsers handles GET /api/admin/all-users
func (h *AdminHandler) AllUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.admin.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, "All users", users)
}

// AddUser handles POST /api/admin/add-user
func (h *AdminHandler) AddUser(w http.ResponseWriter, r *http.Request) {
	var req service.AddUserInput
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	u, err := h.admin.AddUser(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusCreated, "User created", service.SummarizeUser(u))
}

// AssignManager handles POST /api/admin/assign-manager
func (h *AdminHandler) AssignManager(w http.ResponseWriter, r *http.Request) {
	var req AssignManagerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	vErr := &domain.ValidationError{}
	if req.EmployeeID <= 0 {
		vErr.Add("employeeId", "is required")
	}
	if req.ManagerID <= 0 {
		vErr.Add("managerId", "is required")
	}
	var start *time.Time
	if req.StartDate != "" {
		t, err := domain.ParseDate(req.StartDate)
		if err != nil {
			vErr.Add("startDate", "must be a YYYY-MM-DD date")
		}
		start = &t
	}
	if vErr.HasErrors() {
		writeServiceError(w, r, h.logger, vErr)
		return
	}

	link, err := h.admin.AssignManager(r.Context(), req.EmployeeID, req.ManagerID, start)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusCreated, "Manager assigned", newLinkView(link))
}

// ManagerHistory handles GET /api/admin/manager-history/{id}
func (h *AdminHandler) ManagerHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	links, err := h.admin.ManagerHistory(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	views := make([]linkView, 0, len(links))
	for _, l := range links {
		views = append(views, newLinkView(l))
	}
	writeData(w, h.logger, http.StatusOK, "Manager history", views)
}

func newLinkView(link *domain.ManagerLink) linkView {
	view := linkView{
		ID:         link.ID,
		EmployeeID: link.EmployeeID,
		ManagerID:  link.ManagerID,
		StartDate:  link.StartDate.Format(domain.DateLayout),
	}
	if link.EndDate != nil {
		end := link.EndDate.Format(domain.DateLayout)
		view.EndDate = &end
	}
	return view
}

// AllLeaveRequests handles GET /api/admin/all-leave-requests
func (h *AdminHandler) AllLeaveRequests(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	var filter service.ListFilter
	if filter.EmployeeID, err = queryID(r, "userId"); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if filter.ManagerID, err = queryID(r, "managerId"); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := domain.ParseLeaveStatus(raw)
		if err != nil {
			writeServiceError(w, r, h.logger, domain.NewValidationError("invalid status"))
			return
		}
		filter.Status = &status
	}

	requests, err := h.leaves.ListForCaller(r.Context(), p, filter)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	users, err := h.leaves.Requesters(r.Context(), requests)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	views := make([]adminLeaveView, 0, len(requests))
	for _, lr := range requests {
		v := adminLeaveView{
			RequestID: lr.ID,
			UserID:    lr.RequesterID,
			StartDate: lr.StartDate.Format(domain.DateLayout),
			EndDate:   lr.EndDate.Format(domain.DateLayout),
			LeaveType: lr.LeaveType,
			Status:    lr.Status,
			Reason:    lr.Reason,
		}
		if u, ok := users[lr.RequesterID]; ok {
			v.Name = u.FullName()
		}
		views = append(views, v)
	}
	writeData(w, h.logger, http.StatusOK, "All leave requests", views)
}

// Approve handles PATCH /api/admin/approve/{id}
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	lr, err := h.leaves.Approve(r.Context(), p, id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, "Leave request approved", newLeaveView(lr))
}

// Reject handles PATCH /api/admin/reject/{id}
func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	var req struct {
		Reason *string `json:"reason"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	lr, err := h.leaves.Reject(r.Context(), p, id, req.Reason)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, "Leave request rejected", newLeaveView(lr))
}

// UpdateRole handles PATCH /api/admin/update-role/{id}
func (h *AdminHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoleID int `json:"roleId"`
	}
	h.update(w, r, &req, "User role updated", func(id int64) error {
		return h.admin.UpdateRole(r.Context(), id, req.RoleID)
	})
}

// UpdateDepartment handles PATCH /api/admin/update-department/{id}
func (h *AdminHandler) UpdateDepartment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Department string `json:"department"`
	}
	h.update(w, r, &req, "User department updated", func(id int64) error {
		return h.admin.UpdateDepartment(r.Context(), id, req.Department)
	})
}

// UpdateBalance handles PATCH /api/admin/update-leave-balance/{id}
func (h *AdminHandler) UpdateBalance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AnnualLeaveBalance *int `json:"annualLeaveBalance"`
	}
	h.update(w, r, &req, "Leave balance updated", func(id int64) error {
		if req.AnnualLeaveBalance == nil {
			return domain.NewValidationError("annualLeaveBalance is required")
		}
		return h.admin.UpdateBalance(r.Context(), id, *req.AnnualLeaveBalance)
	})
}

// update decodes body, applies fn to the path user and answers with the fresh summary
func (h *AdminHandler) update(w http.ResponseWriter, r *http.Request, body any, message string, fn func(id int64) error) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if err := decodeJSON(r, body); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if err := fn(id); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	user, err := h.admin.GetUser(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, message, user)
}

// CompanySummary handles GET /api/admin/reports/company-summary
func (h *AdminHandler) CompanySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reports.CompanySummary(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, "Company summary", summary)
}

// DepartmentUsage handles GET /api/admin/reports/department-usage
func (h *AdminHandler) DepartmentUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := h.reports.DepartmentUsage(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, "Department usage", usage)
}
