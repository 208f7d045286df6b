package security

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aryan0dhankhar/leavedesk/internal/domain"
)

func TestRolesWith(t *testing.T) {
	assert.Equal(t, []domain.Role{domain.RoleEmployee}, RolesWith(PermSubmitLeave))
	assert.Equal(t, []domain.Role{domain.RoleManager, domain.RoleAdmin}, RolesWith(PermDecideLeave))
	assert.Equal(t, []domain.Role{domain.RoleAdmin}, RolesWith(PermManageUsers))
	assert.Equal(t, domain.Roles, RolesWith(PermViewProfile))
}

func TestValidatePermission(t *testing.T) {
	as := NewAuthorizationService(nil)

	assert.NoError(t, as.ValidatePermission(domain.Principal{UserID: 1, Role: domain.RoleManager}, PermDecideLeave))
	assert.ErrorIs(t, as.ValidatePermission(domain.Principal{UserID: 1, Role: domain.RoleEmployee}, PermDecideLeave), domain.ErrForbidden)
	assert.ErrorIs(t, as.ValidatePermission(domain.Principal{UserID: 1, Role: domain.Role(0)}, PermViewProfile), domain.ErrForbidden)
}

func TestValidateOwnership(t *testing.T) {
	as := NewAuthorizationService(nil)
	admin := domain.Principal{UserID: 1, Role: domain.RoleAdmin}

	assert.NoError(t, as.ValidateOwnership(admin, "leave request", 1))
	assert.ErrorIs(t, as.ValidateOwnership(admin, "leave request", 2), domain.ErrForbidden)
}
