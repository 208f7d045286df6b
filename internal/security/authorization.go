package security

import (
	"fmt"
	"log/slog"

	"github.com/aryan0dhankhar/leavedesk/internal/domain"
)

// Permission represents an action permission
type Permission string

const (
	PermViewProfile        Permission = "view_profile"
	PermViewOwnBalance     Permission = "view_own_balance"
	PermSubmitLeave        Permission = "submit_leave"
	PermCancelLeave        Permission = "cancel_leave"
	PermViewOwnLeave       Permission = "view_own_leave"
	PermDecideLeave        Permission = "decide_leave"
	PermViewTeam           Permission = "view_team"
	PermViewTeamReports    Permission = "view_team_reports"
	PermViewBalances       Permission = "view_balances"
	PermViewAllLeave       Permission = "view_all_leave"
	PermManageUsers        Permission = "manage_users"
	PermViewCompanyReports Permission = "view_company_reports"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[domain.Role][]Permission{
	domain.RoleEmployee: {
		PermViewProfile,
		PermViewOwnBalance,
		PermSubmitLeave,
		PermCancelLeave,
		PermViewOwnLeave,
	},
	domain.RoleManager: {
		PermViewProfile,
		PermViewOwnBalance,
		PermDecideLeave,
		PermViewTeam,
		PermViewTeamReports,
		PermViewBalances,
	},
	domain.RoleAdmin: {
		PermViewProfile,
		PermViewOwnBalance,
		PermDecideLeave,
		PermViewBalances,
		PermViewAllLeave,
		PermManageUsers,
		PermViewCompanyReports,
	},
}

// RolesWith returns the roles granted perm, in role id order
func RolesWith(perm Permission) []domain.Role {
	var out []domain.Role
	for _, role := range domain.Roles {
		if hasPermission(role, perm) {
			out = append(out, role)
		}
	}
	return out
}

func hasPermission(role domain.Role, perm Permission) bool {
	for _, p := range RolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// AuthorizationService handles authorization checks
type AuthorizationService struct {
	logger *slog.Logger
}

// NewAuthorizationService creates a new authorization service
func NewAuthorizationService(logger *slog.Logger) *AuthorizationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorizationService{
		logger: logger,
	}
}

// HasPermission checks if a role has a specific permission
func (as *AuthorizationService) HasPermission(role domain.Role, permission Permission) bool {
	return hasPermission(role, permission)
}

// ValidatePermission returns domain.ErrForbidden unless the principal's role grants permission
func (as *AuthorizationService) ValidatePermission(p domain.Principal, permission Permission) error {
	if !as.HasPermission(p.Role, permission) {
		as.logger.Warn("permission denied",
			slog.Int64("user_id", p.UserID),
			slog.String("role", p.Role.String()),
			slog.String("permission", string(permission)),
		)
		return fmt.Errorf("%s role cannot %s: %w", p.Role, permission, domain.ErrForbidden)
	}
	return nil
}

// ValidateOwnership returns domain.ErrForbidden unless the principal owns the resource.
// No role bypasses this check.
func (as *AuthorizationService) ValidateOwnership(p domain.Principal, resource string, ownerID int64) error {
	if p.UserID != ownerID {
		as.logger.Warn("resource access denied",
			slog.Int64("user_id", p.UserID),
			slog.Int64("owner_id", ownerID),
			slog.String("resource_type", resource),
		)
		return fmt.Errorf("not the owner of this %s: %w", resource, domain.ErrForbidden)
	}
	return nil
}
