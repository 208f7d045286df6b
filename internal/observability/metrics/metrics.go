package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leavedesk_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "leavedesk_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	leaveTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leavedesk_leave_transitions_total",
		Help: "Leave request status changes by resulting status",
	}, []string{"status"})

	leaveDaysApproved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leavedesk_leave_days_approved_total",
		Help: "Days of leave deducted from balances by approvals",
	})

	leaveRejectedSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leavedesk_leave_submissions_refused_total",
		Help: "Leave submissions refused before creation, by reason",
	}, []string{"reason"})

	logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leavedesk_logins_total",
		Help: "Login attempts by result",
	}, []string{"result"})

	rateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leavedesk_rate_limited_requests_total",
		Help: "Requests refused by the rate limiter",
	})

	rateLimitStoreErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leavedesk_rate_limit_store_errors_total",
		Help: "Rate limiter store failures; requests are let through",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, route, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

// ObserveLeaveTransition counts a leave request entering status
func ObserveLeaveTransition(status string) {
	leaveTransitions.WithLabelValues(status).Inc()
}

// ObserveApprovedDays adds days deducted by an approval
func ObserveApprovedDays(days int) {
	if days > 0 {
		leaveDaysApproved.Add(float64(days))
	}
}

// ObserveRefusedSubmission counts a submission refused for reason (overlap, balance, range, validation)
func ObserveRefusedSubmission(reason string) {
	leaveRejectedSubmissions.WithLabelValues(reason).Inc()
}

// ObserveLogin counts a login attempt; result is "success" or "failure"
func ObserveLogin(result string) {
	logins.WithLabelValues(result).Inc()
}

func IncRateLimited() {
	rateLimited.Inc()
}

func IncRateLimitStoreError() {
	rateLimitStoreErrors.Inc()
}

var (
	pendingLeaveRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "leavedesk_pending_leave_requests",
		Help: "Leave requests awaiting a decision",
	})

	usersOnLeave = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "leavedesk_users_on_leave",
		Help: "Users with approved leave covering today",
	})
)

// SetPendingRequests sets the number of pending leave requests
func SetPendingRequests(n int) {
	pendingLeaveRequests.Set(float64(n))
}

// SetUsersOnLeave sets the number of users away today
func SetUsersOnLeave(n int) {
	usersOnLeave.Set(float64(n))
}
