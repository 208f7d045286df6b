package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/juju/clock"

	"github.com/aryan0dhankhar/leavedesk/internal/domain"
	"github.com/aryan0dhankhar/leavedesk/internal/security/password"
)

// AdminService manages accounts and reporting lines
type AdminService struct {
	store    domain.Store
	validate *validator.Validate
	clock    clock.Clock
	logger   *slog.Logger
}

// NewAdminService creates a new admin service
func NewAdminService(store domain.Store, clk clock.Clock, logger *slog.Logger) *AdminService {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.WallClock
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	// report fields under their JSON names
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &AdminService{
		store:    store,
		validate: validate,
		clock:    clk,
		logger:   logger,
	}
}

// AddUserInput is the payload for creating an account
type AddUserInput struct {
	FirstName  string `json:"firstname" validate:"required"`
	Surname    string `json:"surname" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=8"`
	RoleID     int    `json:"roleId" validate:"required,oneof=1 2 3"`
	Department string `json:"department" validate:"required"`
}

// UserSummary is a user as listed to admins
type UserSummary struct {
	UserID             int64  `json:"userId"`
	FirstName          string `json:"firstname"`
	Surname            string `json:"surname"`
	Email              string `json:"email"`
	Department         string `json:"department"`
	Role               string `json:"role"`
	AnnualLeaveBalance int    `json:"annualLeaveBalance"`
}

// SummarizeUser builds the admin listing row for u
func SummarizeUser(u *domain.User) UserSummary {
	return UserSummary{
		UserID:             u.ID,
		FirstName:          u.FirstName,
		Surname:            u.Surname,
		Email:              u.Email,
		Department:         u.Department,
		Role:               u.Role.Title(),
		AnnualLeaveBalance: u.AnnualLeaveBalance,
	}
}

// ListUsers returns every account
func (s *AdminService) ListUsers(ctx context.Context) ([]UserSummary, error) {
	users, err := s.store.Users().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, SummarizeUser(u))
	}
	return out, nil
}

// GetUser returns one account
func (s *AdminService) GetUser(ctx context.Context, id int64) (UserSummary, error) {
	u, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return UserSummary{}, err
	}
	return SummarizeUser(u), nil
}

// ManagerHistory lists every reporting line of an employee, oldest first
func (s *AdminService) ManagerHistory(ctx context.Context, employeeID int64) ([]*domain.ManagerLink, error) {
	if _, err := s.store.Users().GetByID(ctx, employeeID); err != nil {
		return nil, err
	}
	return s.store.ManagerLinks().ListByEmployee(ctx, employeeID)
}

// AddUser validates input and creates an account with the default balance
func (s *AdminService) AddUser(ctx context.Context, in AddUserInput) (*domain.User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.Surname = strings.TrimSpace(in.Surname)
	in.Email = strings.TrimSpace(in.Email)
	in.Department = strings.TrimSpace(in.Department)

	if err := s.validateStruct(in); err != nil {
		return nil, err
	}
	role, _ := domain.RoleFromID(in.RoleID)

	hash, salt, err := password.HashNew(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		FirstName:          in.FirstName,
		Surname:            in.Surname,
		Department:         in.Department,
		Email:              in.Email,
		PasswordHash:       hash,
		Salt:               salt,
		AnnualLeaveBalance: domain.DefaultAnnualLeaveBalance,
		Role:               role,
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user created",
		slog.Int64("user_id", user.ID),
		slog.String("role", role.String()),
	)
	return user, nil
}

// AssignManager makes managerID the employee's manager from start, or from
// today when start is nil. The previous link is closed, not deleted.
func (s *AdminService) AssignManager(ctx context.Context, employeeID, managerID int64, start *time.Time) (*domain.ManagerLink, error) {
	if employeeID == managerID {
		return nil, domain.NewValidationError("an employee cannot manage themselves")
	}

	from := domain.Truncate(s.clock.Now().UTC())
	if start != nil {
		from = domain.Truncate(*start)
	}

	link := &domain.ManagerLink{EmployeeID: employeeID, ManagerID: managerID, StartDate: from}
	err := s.store.InTx(ctx, func(tx domain.Store) error {
		if _, err := tx.Users().GetByID(ctx, employeeID); err != nil {
			return fmt.Errorf("employee %d: %w", employeeID, err)
		}
		manager, err := tx.Users().GetByID(ctx, managerID)
		if err != nil {
			return fmt.Errorf("manager %d: %w", managerID, err)
		}
		if manager.Role != domain.RoleManager {
			return domain.NewValidationError("assigned manager must have the manager role")
		}
		return tx.ManagerLinks().Assign(ctx, link)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("manager assigned",
		slog.Int64("user_id", employeeID),
		slog.Int64("manager_id", managerID),
		slog.String("start_date", from.Format(domain.DateLayout)),
	)
	return link, nil
}

// UpdateRole changes a user's role
func (s *AdminService) UpdateRole(ctx context.Context, userID int64, roleID int) error {
	role, ok := domain.RoleFromID(roleID)
	if !ok {
		return domain.NewValidationError("Invalid roleId")
	}
	if err := s.store.Users().UpdateRole(ctx, userID, role); err != nil {
		return err
	}
	s.logger.Info("user role updated", slog.Int64("user_id", userID), slog.String("role", role.String()))
	return nil
}

// UpdateDepartment changes a user's department
func (s *AdminService) UpdateDepartment(ctx context.Context, userID int64, department string) error {
	department = strings.TrimSpace(department)
	if department == "" {
		return domain.NewValidationError("Department is required")
	}
	return s.store.Users().UpdateDepartment(ctx, userID, department)
}

// UpdateBalance overwrites a user's remaining allowance
func (s *AdminService) UpdateBalance(ctx context.Context, userID int64, balance int) error {
	if balance < 0 {
		return domain.NewValidationError("Annual leave balance cannot be negative")
	}
	if err := s.store.Users().SetBalance(ctx, userID, balance); err != nil {
		return err
	}
	s.logger.Info("leave balance set", slog.Int64("user_id", userID), slog.Int("balance", balance))
	return nil
}

// SeedAdmin creates an admin account unless one with the email already exists.
// It reports whether an account was created.
func (s *AdminService) SeedAdmin(ctx context.Context, email, pass string) (bool, error) {
	if email == "" || pass == "" {
		return false, nil
	}
	_, err := s.store.Users().GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return false, fmt.Errorf("look up seed admin: %w", err)
	}

	_, err = s.AddUser(ctx, AddUserInput{
		FirstName:  "Admin",
		Surname:    "User",
		Email:      email,
		Password:   pass,
		RoleID:     domain.RoleAdmin.ID(),
		Department: "Administration",
	})
	if err != nil {
		return false, fmt.Errorf("seed admin: %w", err)
	}
	return true, nil
}

func (s *AdminService) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate input: %w", err)
	}

	vErr := &domain.ValidationError{}
	for _, fe := range fieldErrs {
		vErr.Add(fe.Field(), describeTag(fe))
	}
	return vErr
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "oneof":
		return "must be one of " + fe.Param()
	}
	return "is invalid"
}
