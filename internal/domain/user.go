package domain

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// DefaultAnnualLeaveBalance is the allowance given to new accounts
const DefaultAnnualLeaveBalance = 25

// Role is one of the fixed role records seeded by the schema
type Role int

const (
	RoleEmployee Role = 1
	RoleManager  Role = 2
	RoleAdmin    Role = 3
)

// Roles lists every valid role in id order
var Roles = []Role{RoleEmployee, RoleManager, RoleAdmin}

// RoleFromID returns the role for a role id, or false when the id is unknown
func RoleFromID(id int) (Role, bool) {
	r := Role(id)
	return r, r.Valid()
}

// ParseRole parses a lowercase or title-case role name
func ParseRole(name string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "employee":
		return RoleEmployee, nil
	case "manager":
		return RoleManager, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return 0, fmt.Errorf("unknown role %q", name)
	}
}

// Valid reports whether r is one of the seeded roles
func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RoleManager, RoleAdmin:
		return true
	default:
		return false
	}
}

// ID returns the numeric role id
func (r Role) ID() int { return int(r) }

// String returns the lowercase role name carried in tokens
func (r Role) String() string {
	switch r {
	case RoleEmployee:
		return "employee"
	case RoleManager:
		return "manager"
	case RoleAdmin:
		return "admin"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Title returns the display name used in admin listings
func (r Role) Title() string {
	switch r {
	case RoleEmployee:
		return "Employee"
	case RoleManager:
		return "Manager"
	case RoleAdmin:
		return "Admin"
	default:
		return r.String()
	}
}

// Scan implements sql.Scanner for the role_id column
func (r *Role) Scan(src any) error {
	var id int64
	switch v := src.(type) {
	case int64:
		id = v
	case int32:
		id = int64(v)
	case int:
		id = int64(v)
	case []byte:
		if _, err := fmt.Sscan(string(v), &id); err != nil {
			return fmt.Errorf("scan role: %w", err)
		}
	case string:
		if _, err := fmt.Sscan(v, &id); err != nil {
			return fmt.Errorf("scan role: %w", err)
		}
	default:
		return fmt.Errorf("scan role: unsupported type %T", src)
	}
	*r = Role(id)
	if !r.Valid() {
		return fmt.Errorf("scan role: unknown role id %d", id)
	}
	return nil
}

// Value implements driver.Valuer
func (r Role) Value() (driver.Value, error) {
	return int64(r), nil
}

// User represents an account holder
type User struct {
	ID                 int64     `db:"id"`
	FirstName          string    `db:"firstname"`
	Surname            string    `db:"surname"`
	Department         string    `db:"department"`
	Email              string    `db:"email"`        // Unique, matched exactly
	PasswordHash       string    `db:"password"`     // Hex PBKDF2 digest (never returned in API)
	Salt               string    `db:"salt"`         // Hex per-user salt
	AnnualLeaveBalance int       `db:"annual_leave_balance"`
	Role               Role      `db:"role_id"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

// FullName joins first name and surname
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.Surname)
}

// Profile is the redacted view of a user returned to callers
type Profile struct {
	UserID             int64  `json:"userId"`
	FirstName          string `json:"firstname"`
	Surname            string `json:"surname"`
	Email              string `json:"email"`
	Department         string `json:"department"`
	AnnualLeaveBalance int    `json:"annualLeaveBalance"`
	Role               struct {
		RoleID int    `json:"roleId"`
		Name   string `json:"name"`
	} `json:"role"`
}

// ProfileOf builds the redacted profile for u
func ProfileOf(u *User) Profile {
	p := Profile{
		UserID:             u.ID,
		FirstName:          u.FirstName,
		Surname:            u.Surname,
		Email:              u.Email,
		Department:         u.Department,
		AnnualLeaveBalance: u.AnnualLeaveBalance,
	}
	p.Role.RoleID = u.Role.ID()
	p.Role.Name = u.Role.String()
	return p
}

// Principal is the verified identity of a caller
type Principal struct {
	UserID int64
	Role   Role
}

// UserRepository defines data access for users
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	ListByIDs(ctx context.Context, ids []int64) ([]*User, error)
	UpdateRole(ctx context.Context, id int64, role Role) error
	UpdateDepartment(ctx context.Context, id int64, department string) error
	SetBalance(ctx context.Context, id int64, balance int) error
	// AdjustBalance adds delta to the balance and returns the new value.
	// It fails with ErrInsufficientBalance when the result would be negative.
	AdjustBalance(ctx context.Context, id int64, delta int) (int, error)
	// Lock takes a write lock on the user row for the rest of the transaction.
	Lock(ctx context.Context, id int64) error
}
