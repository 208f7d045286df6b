package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/leavedesk/internal/domain"
	"github.com/aryan0dhankhar/leavedesk/internal/handler"
	"github.com/aryan0dhankhar/leavedesk/internal/repository"
	"github.com/aryan0dhankhar/leavedesk/internal/security"
	"github.com/aryan0dhankhar/leavedesk/internal/security/auth"
	"github.com/aryan0dhankhar/leavedesk/internal/security/middleware"
	"github.com/aryan0dhankhar/leavedesk/internal/security/ratelimit"
	"github.com/aryan0dhankhar/leavedesk/internal/service"
)

const adminPassword = "admin-password"

type testServer struct {
	handler http.Handler
	admin   *service.AdminService
}

func newTestServer(t *testing.T, limiter *ratelimit.Limiter) *testServer {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := testclock.NewClock(time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC))
	store := repository.NewMemoryStore()

	tokens := auth.NewTokenManager("router-test", "leavedesk", time.Hour, clk)
	authz := security.NewAuthorizationService(log)
	authSvc := service.NewAuthService(store.Users(), tokens, log)
	leaves := service.NewLeaveService(store, authz, clk, log)
	reports := service.NewReportService(store, clk, log)
	admin := service.NewAdminService(store, clk, log)

	_, err := admin.SeedAdmin(context.Background(), "admin@example.com", adminPassword)
	require.NoError(t, err)

	h := NewRouter(Deps{
		Auth:    handler.NewAuthHandler(authSvc, log),
		Leaves:  handler.NewLeaveHandler(leaves, reports, log),
		Admin:   handler.NewAdminHandler(admin, leaves, reports, log),
		Health:  handler.NewHealthHandler(store, nil, log),
		Gate:    middleware.NewGate(tokens, log),
		Limiter: limiter,
		Logger:  log,
	})
	return &testServer{handler: h, admin: admin}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res.Token
}

func (s *testServer) addUser(t *testing.T, adminToken, first, email string, role domain.Role) int64 {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/admin/add-user", adminToken, map[string]any{
		"firstname":  first,
		"surname":    "Tester",
		"email":      email,
		"password":   "password123",
		"roleId":     role.ID(),
		"department": "Eng",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res struct {
		Data service.UserSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res.Data.UserID
}

func remaining(t *testing.T, rec *httptest.ResponseRecorder) int {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res struct {
		Data map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res.Data["days remaining"]
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, nil)
	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/leave-requests/status"},
		{http.MethodPost, "/api/leave-requests"},
		{http.MethodGet, "/api/leave-requests/pending"},
		{http.MethodGet, "/api/admin/all-users"},
		{http.MethodGet, "/api/auth/me"},
	} {
		rec := s.do(t, route.method, route.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, route.path)
		assert.JSONEq(t, `{"error":"Unauthenticated"}`, rec.Body.String())
	}

	rec := s.do(t, http.MethodGet, "/api/admin/all-users", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUnauthenticatedBeforeInputChecks(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/leave-requests", bytes.NewBufferString("start=2025-03-10"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/admin/all-leave-requests?userId=1'", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())

	// authenticated callers still get the input checks
	token := s.login(t, "admin@example.com", adminPassword)
	rec = s.do(t, http.MethodGet, "/api/admin/all-leave-requests?userId=1'", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/api/admin/add-user", bytes.NewBufferString("x"))
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code, rec.Body.String())
}

func TestWrongRoleIsForbidden(t *testing.T) {
	s := newTestServer(t, nil)
	adminToken := s.login(t, "admin@example.com", adminPassword)
	s.addUser(t, adminToken, "Ada", "ada@example.com", domain.RoleEmployee)
	s.addUser(t, adminToken, "Grace", "grace@example.com", domain.RoleManager)
	emp := s.login(t, "ada@example.com", "password123")
	mgr := s.login(t, "grace@example.com", "password123")

	rec := s.do(t, http.MethodGet, "/api/admin/all-users", emp, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"Forbidden"}`, rec.Body.String())

	rec = s.do(t, http.MethodPatch, "/api/leave-requests/approve", emp, map[string]int{"leaveRequestId": 1})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/leave-requests", mgr, map[string]string{"startDate": "2025-03-10", "endDate": "2025-03-10"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/leave-requests/pending", adminToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLoginWithWrongPassword(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "admin@example.com", "password": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid credentials"}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "admin@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Missing email or password"}`, rec.Body.String())
}

func TestAdminCreatedUserListedAsEmployee(t *testing.T) {
	s := newTestServer(t, nil)
	adminToken := s.login(t, "admin@example.com", adminPassword)
	id := s.addUser(t, adminToken, "Ada", "ada@example.com", domain.RoleEmployee)

	rec := s.do(t, http.MethodGet, "/api/admin/all-users", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var res struct {
		Data []service.UserSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))

	var found bool
	for _, u := range res.Data {
		if u.UserID == id {
			found = true
			assert.Equal(t, "Employee", u.Role)
			assert.Equal(t, 25, u.AnnualLeaveBalance)
		}
	}
	assert.True(t, found)

	me := s.do(t, http.MethodGet, "/api/auth/me", s.login(t, "ada@example.com", "password123"), nil)
	require.Equal(t, http.StatusOK, me.Code)
	assert.NotContains(t, me.Body.String(), "salt")
	assert.NotContains(t, me.Body.String(), "password")
}

func TestApproveCancelScenario(t *testing.T) {
	s := newTestServer(t, nil)
	adminToken := s.login(t, "admin@example.com", adminPassword)
	empID := s.addUser(t, adminToken, "Ada", "ada@example.com", domain.RoleEmployee)
	mgrID := s.addUser(t, adminToken, "Grace", "grace@example.com", domain.RoleManager)

	rec := s.do(t, http.MethodPost, "/api/admin/assign-manager", adminToken, map[string]int64{"employeeId": empID, "managerId": mgrID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	emp := s.login(t, "ada@example.com", "password123")
	mgr := s.login(t, "grace@example.com", "password123")

	rec = s.do(t, http.MethodPost, "/api/leave-requests", emp, map[string]string{
		"startDate": "2025-03-10",
		"endDate":   "2025-03-10",
		"leaveType": "Annual Leave",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Data struct {
			ID     int64  `json:"id"`
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Pending", created.Data.Status)
	assert.Equal(t, 25, remaining(t, s.do(t, http.MethodGet, "/api/leave-requests/remaining", emp, nil)))

	// overlapping submission is refused
	rec = s.do(t, http.MethodPost, "/api/leave-requests", emp, map[string]string{"startDate": "2025-03-09", "endDate": "2025-03-11"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/leave-requests/pending", mgr, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"request_id":`+fmt.Sprint(created.Data.ID))
	assert.Contains(t, rec.Body.String(), `"name":"Ada Tester"`)

	rec = s.do(t, http.MethodPatch, "/api/leave-requests/approve", mgr, map[string]int64{"leaveRequestId": created.Data.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 24, remaining(t, s.do(t, http.MethodGet, "/api/leave-requests/remaining", emp, nil)))

	rec = s.do(t, http.MethodPatch, "/api/leave-requests/approve", mgr, map[string]int64{"leaveRequestId": created.Data.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "second approval")

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/leave-requests/remaining/%d", empID), mgr, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"days remaining":24`)

	rec = s.do(t, http.MethodDelete, "/api/leave-requests", emp, map[string]int64{"leaveRequestId": created.Data.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 25, remaining(t, s.do(t, http.MethodGet, "/api/leave-requests/remaining", emp, nil)))

	rec = s.do(t, http.MethodGet, "/api/admin/all-leave-requests?status=Cancelled", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"requestId":`+fmt.Sprint(created.Data.ID))
}

func TestManagerCannotActOutsideTeam(t *testing.T) {
	s := newTestServer(t, nil)
	adminToken := s.login(t, "admin@example.com", adminPassword)
	s.addUser(t, adminToken, "Ada", "ada@example.com", domain.RoleEmployee)
	otherID := s.addUser(t, adminToken, "Linus", "linus@example.com", domain.RoleEmployee)
	s.addUser(t, adminToken, "Grace", "grace@example.com", domain.RoleManager)

	other := s.login(t, "linus@example.com", "password123")
	mgr := s.login(t, "grace@example.com", "password123")

	rec := s.do(t, http.MethodPost, "/api/leave-requests", other, map[string]string{"startDate": "2025-03-10", "endDate": "2025-03-11"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodPatch, "/api/leave-requests/approve", mgr, map[string]int64{"leaveRequestId": 1})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/leave-requests/remaining/%d", otherID), mgr, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPatch, "/api/leave-requests/approve", mgr, map[string]int64{"leaveRequestId": 99})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// admins may act through either surface
	rec = s.do(t, http.MethodPatch, "/api/admin/reject/1", adminToken, map[string]string{"reason": "coverage"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"Rejected"`)
}

func TestUnknownRouteAndHealth(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/api/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Not found"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"ok"`)
}

func TestRateLimitedClientGets429(t *testing.T) {
	cfg := ratelimit.DefaultConfig()
	cfg.Requests = 2
	s := newTestServer(t, ratelimit.NewMemoryLimiter(cfg, nil))

	for i := 0; i < 2; i++ {
		rec := s.do(t, http.MethodGet, "/api/leave-requests/status", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := s.do(t, http.MethodGet, "/api/leave-requests/status", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"`+ratelimit.RejectMessage+`"}`, rec.Body.String())

	// health checks are never limited
	rec = s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminUpdateReturnsUserAndHistory(t *testing.T) {
	s := newTestServer(t, nil)
	root := s.login(t, "admin@example.com", adminPassword)
	mgrID := s.addUser(t, root, "Grace", "grace@example.com", domain.RoleManager)
	empID := s.addUser(t, root, "Ada", "ada@example.com", domain.RoleEmployee)

	rec := s.do(t, http.MethodPatch, fmt.Sprintf("/api/admin/update-leave-balance/%d", empID), root, map[string]int{"annualLeaveBalance": 12})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated struct {
		Data service.UserSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, empID, updated.Data.UserID)
	assert.Equal(t, 12, updated.Data.AnnualLeaveBalance)

	rec = s.do(t, http.MethodPatch, "/api/admin/update-department/999", root, map[string]string{"department": "Ops"})
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/admin/assign-manager", root, map[string]int64{"employeeId": empID, "managerId": mgrID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/admin/manager-history/%d", empID), root, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var history struct {
		Data []struct {
			ManagerID int64   `json:"managerId"`
			StartDate string  `json:"startDate"`
			EndDate   *string `json:"endDate"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history.Data, 1)
	assert.Equal(t, mgrID, history.Data[0].ManagerID)
	assert.Equal(t, "2025-03-01", history.Data[0].StartDate)
	assert.Nil(t, history.Data[0].EndDate)
}
