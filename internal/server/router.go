// Package server assembles the HTTP surface: routes, role gates and the
// middleware chain shared by every request.
package server

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/aryan0dhankhar/leavedesk/internal/domain"
	"github.com/aryan0dhankhar/leavedesk/internal/handler"
	"github.com/aryan0dhankhar/leavedesk/internal/observability/metrics"
	"github.com/aryan0dhankhar/leavedesk/internal/security"
	"github.com/aryan0dhankhar/leavedesk/internal/security/middleware"
	"github.com/aryan0dhankhar/leavedesk/internal/security/ratelimit"
)

// Deps holds everything the router wires together
type Deps struct {
	Auth    *handler.AuthHandler
	Leaves  *handler.LeaveHandler
	Admin   *handler.AdminHandler
	Health  *handler.HealthHandler
	Gate    *middleware.Gate
	Limiter *ratelimit.Limiter

	CORSAllowedOrigins []string
	Logger             *slog.Logger
}

// NewRouter builds the root handler.
// Chain: otel -> request ID/log -> metrics -> rate limit -> CORS -> mux -> role gate -> sanitize -> content type.
// Input checks run behind the gate so unauthenticated callers always get 401.
func NewRouter(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}

	mux := http.NewServeMux()
	gate := d.Gate

	employee := gate.Require(domain.RoleEmployee)
	manager := gate.Require(domain.RoleManager)
	approvers := gate.RequirePermission(security.PermDecideLeave)
	balances := gate.RequirePermission(security.PermViewBalances)
	admin := gate.Require(domain.RoleAdmin)
	anyone := gate.Require()

	checked := func(h http.HandlerFunc) http.Handler {
		return middleware.SanitizeInputs(log)(middleware.ValidateJSONContentType(log)(h))
	}

	// Auth
	mux.Handle("POST /api/auth/login", checked(d.Auth.Login))
	mux.Handle("GET /api/auth/me", anyone(checked(d.Auth.Me)))

	// Leave requests
	mux.Handle("POST /api/leave-requests", employee(checked(d.Leaves.Submit)))
	mux.Handle("DELETE /api/leave-requests", employee(checked(d.Leaves.Cancel)))
	mux.Handle("GET /api/leave-requests/status", employee(checked(d.Leaves.Status)))
	mux.Handle("GET /api/leave-requests/remaining", anyone(checked(d.Leaves.Remaining)))
	mux.Handle("GET /api/leave-requests/remaining/{userId}", balances(checked(d.Leaves.RemainingFor)))
	mux.Handle("PATCH /api/leave-requests/approve", approvers(checked(d.Leaves.Approve)))
	mux.Handle("PATCH /api/leave-requests/reject", approvers(checked(d.Leaves.Reject)))
	mux.Handle("GET /api/leave-requests/pending", manager(checked(d.Leaves.Pending)))
	mux.Handle("GET /api/leave-requests/managed-users", manager(checked(d.Leaves.ManagedUsers)))
	mux.Handle("GET /api/leave-requests/reports/pending-summary", manager(checked(d.Leaves.PendingSummary)))
	mux.Handle("GET /api/leave-requests/reports/upcoming-leaves", manager(checked(d.Leaves.UpcomingLeaves)))

	// Admin
	mux.Handle("GET /api/admin/all-users", admin(checked(d.Admin.AllUsers)))
	mux.Handle("POST /api/admin/add-user", admin(checked(d.Admin.AddUser)))
	mux.Handle("POST /api/admin/assign-manager", admin(checked(d.Admin.AssignManager)))
	mux.Handle("GET /api/admin/manager-history/{id}", admin(checked(d.Admin.ManagerHistory)))
	mux.Handle("GET /api/admin/all-leave-requests", admin(checked(d.Admin.AllLeaveRequests)))
	mux.Handle("PATCH /api/admin/approve/{id}", admin(checked(d.Admin.Approve)))
	mux.Handle("PATCH /api/admin/reject/{id}", admin(checked(d.Admin.Reject)))
	mux.Handle("PATCH /api/admin/update-role/{id}", admin(checked(d.Admin.UpdateRole)))
	mux.Handle("PATCH /api/admin/update-department/{id}", admin(checked(d.Admin.UpdateDepartment)))
	mux.Handle("PATCH /api/admin/update-leave-balance/{id}", admin(checked(d.Admin.UpdateBalance)))
	mux.Handle("GET /api/admin/reports/company-summary", admin(checked(d.Admin.CompanySummary)))
	mux.Handle("GET /api/admin/reports/department-usage", admin(checked(d.Admin.DepartmentUsage)))

	// Operational
	mux.HandleFunc("GET /healthz", d.Health.Health)
	mux.HandleFunc("GET /readyz", d.Health.Ready)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("/", handler.NotFound)

	var h http.Handler = mux
	h = withCORS(h, d.CORSAllowedOrigins)
	if d.Limiter != nil {
		h = d.Limiter.Middleware()(h)
	}
	h = metrics.HTTPMetricsMiddleware(h)
	h = withRequestID(h, log)
	return otelhttp.NewHandler(h, "leavedesk",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
