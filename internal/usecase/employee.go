package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/rosterly/rosterd/internal/auth"
	"github.com/rosterly/rosterd/internal/cache"
	"github.com/rosterly/rosterd/internal/domain"
	"github.com/rosterly/rosterd/internal/repository"
)

type EmployeeUsecase struct {
	employees   repository.EmployeeRepository
	departments repository.DepartmentRepository
	caches      *cache.Caches
	logger      *slog.Logger
}

func NewEmployeeUsecase(
	employees repository.EmployeeRepository,
	departments repository.DepartmentRepository,
	caches *cache.Caches,
	logger *slog.Logger,
) *EmployeeUsecase {
	return &EmployeeUsecase{
		employees:   employees,
		departments: departments,
		caches:      caches,
		logger:      logger.With("component", "employee"),
	}
}

type CreateEmployeeInput struct {
	Email           string
	Password        string
	Role            domain.Role
	FirstName       string
	LastName        string
	Phone           *string
	HireDate        *time.Time
	HourlyRate      float64
	MaxHoursPerWeek int
	Qualifications  []string
	Availability    domain.Availability
	DepartmentID    *string
}

// Create provisions a staff account. Managers cannot create admins.
func (u *EmployeeUsecase) Create(ctx context.Context, actor Actor, input CreateEmployeeInput) (*domain.Employee, error) {
	if !actor.Can(auth.PermEmployeeWrite) {
		return nil, forbidden("not allowed to create employees")
	}
	if input.Role == domain.RoleAdmin && actor.Role != domain.RoleAdmin {
		return nil, forbidden("only admins may create admin accounts")
	}

	emp := &domain.Employee{
		Email:           input.Email,
		Role:            input.Role,
		FirstName:       input.FirstName,
		LastName:        input.LastName,
		Phone:           input.Phone,
		HireDate:        input.HireDate,
		HourlyRate:      input.HourlyRate,
		MaxHoursPerWeek: input.MaxHoursPerWeek,
		Qualifications:  input.Qualifications,
		Availability:    input.Availability,
		DepartmentID:    input.DepartmentID,
		IsActive:        true,
	}
	if err := validateEmployee(emp); err != nil {
		return nil, err
	}
	if err := auth.ValidatePassword(input.Password); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	emp.PasswordHash = hash

	if input.DepartmentID != nil {
		if _, err := u.departments.GetByID(ctx, *input.DepartmentID); err != nil {
			return nil, err
		}
	}

	created, err := u.employees.Create(ctx, emp)
	if err != nil {
		return nil, fmt.Errorf("create employee: %w", err)
	}
	u.logger.Info("employee created", "employee_id", created.ID, "by", actor.ID)
	return created, nil
}

func (u *EmployeeUsecase) Get(ctx context.Context, actor Actor, id string) (*domain.Employee, error) {
	if !actor.Can(auth.PermEmployeeRead) && !actor.Is(id) {
		return nil, forbidden("not allowed to view this employee")
	}
	return u.employees.GetByID(ctx, id)
}

// GetByEmail serves the login path read-through. It is the cache's hottest
// key.
func (u *EmployeeUsecase) GetByEmail(ctx context.Context, email string) (*domain.Employee, error) {
	emp, err := u.caches.EmployeeByEmail.Get(ctx, strings.ToLower(email), func(ctx context.Context) (domain.Employee, error) {
		e, err := u.employees.GetByEmail(ctx, email)
		if err != nil {
			return domain.Employee{}, err
		}
		return *e, nil
	})
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

type ListEmployeesInput struct {
	Search       string
	Role         domain.Role
	DepartmentID *string
	IsActive     *bool
	Cursor       string
	Limit        int
}

type ListEmployeesResult struct {
	Employees  []*domain.Employee
	NextCursor *string
}

func (u *EmployeeUsecase) List(ctx context.Context, actor Actor, input ListEmployeesInput) (ListEmployeesResult, error) {
	if !actor.Can(auth.PermEmployeeRead) {
		return ListEmployeesResult{}, forbidden("not allowed to list employees")
	}
	limit := clampLimit(input.Limit)
	cursorTime, cursorID, err := decodeCursor(input.Cursor)
	if err != nil {
		return ListEmployeesResult{}, err
	}

	rows, err := u.employees.List(ctx, repository.ListEmployeesInput{
		Search:       input.Search,
		Role:         input.Role,
		DepartmentID: input.DepartmentID,
		IsActive:     input.IsActive,
		CursorTime:   cursorTime,
		CursorID:     cursorID,
		Limit:        limit + 1,
	})
	if err != nil {
		return ListEmployeesResult{}, fmt.Errorf("list employees: %w", err)
	}

	result := ListEmployeesResult{Employees: rows}
	if len(rows) > limit {
		result.Employees = rows[:limit]
		last := result.Employees[limit-1]
		next := encodeCursor(last.CreatedAt, last.ID)
		result.NextCursor = &next
	}
	return result, nil
}

type UpdateEmployeeInput struct {
	FirstName       *string
	LastName        *string
	Phone           *string
	HireDate        *time.Time
	HourlyRate      *float64
	MaxHoursPerWeek *int
	Qualifications  []string
	Availability    domain.Availability
}

// Update edits profile fields. Employees may edit only their own contact
// details and availability; rate, hours and qualifications need the write
// permission.
func (u *EmployeeUsecase) Update(ctx context.Context, actor Actor, id string, input UpdateEmployeeInput) (*domain.Employee, error) {
	self := actor.Is(id)
	if !actor.Can(auth.PermEmployeeWrite) && !self {
		return nil, forbidden("not allowed to update this employee")
	}
	if self && !actor.Can(auth.PermEmployeeWrite) {
		if input.HourlyRate != nil || input.MaxHoursPerWeek != nil || input.Qualifications != nil {
			return nil, forbidden("employees may only edit contact details and availability")
		}
	}

	emp, err := u.employees.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.FirstName != nil {
		emp.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		emp.LastName = *input.LastName
	}
	if input.Phone != nil {
		emp.Phone = input.Phone
	}
	if input.HireDate != nil {
		emp.HireDate = input.HireDate
	}
	if input.HourlyRate != nil {
		emp.HourlyRate = *input.HourlyRate
	}
	if input.MaxHoursPerWeek != nil {
		emp.MaxHoursPerWeek = *input.MaxHoursPerWeek
	}
	if input.Qualifications != nil {
		emp.Qualifications = input.Qualifications
	}
	if input.Availability != nil {
		emp.Availability = input.Availability
	}
	if err := validateEmployee(emp); err != nil {
		return nil, err
	}

	updated, err := u.employees.Update(ctx, emp)
	if err != nil {
		return nil, fmt.Errorf("update employee: %w", err)
	}
	u.caches.EmployeeByEmail.Invalidate(ctx, strings.ToLower(updated.Email))
	return updated, nil
}

// Delete hard-deletes, admin-only, and only when no future assignments
// reference the employee.
func (u *EmployeeUsecase) Delete(ctx context.Context, actor Actor, id string) error {
	if !actor.Can(auth.PermEmployeeDelete) {
		return forbidden("only admins may delete employees")
	}
	if actor.Is(id) {
		return forbidden("admins cannot delete their own account")
	}
	emp, err := u.employees.GetByID(ctx, id)
	if err != nil {
		return err
	}

	n, err := u.employees.CountFutureAssignments(ctx, id, time.Now())
	if err != nil {
		return fmt.Errorf("count future assignments: %w", err)
	}
	if n > 0 {
		return domain.E(domain.KindConflict, "",
			fmt.Sprintf("employee has %d future assignments", n))
	}

	if err := u.employees.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete employee: %w", err)
	}
	u.caches.EmployeeByEmail.Invalidate(ctx, strings.ToLower(emp.Email))
	u.logger.Info("employee deleted", "employee_id", id, "by", actor.ID)
	return nil
}

// SetStatus toggles is_active with an audit row. Admins cannot deactivate
// themselves.
func (u *EmployeeUsecase) SetStatus(ctx context.Context, actor Actor, id string, active bool, reason *string) error {
	if !actor.Can(auth.PermRoleChange) {
		return forbidden("not allowed to change employee status")
	}
	if actor.Is(id) {
		return forbidden("cannot change your own status")
	}
	emp, err := u.employees.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if emp.IsActive == active {
		return nil
	}
	if err := u.employees.SetStatus(ctx, id, active, actor.ID, reason); err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	u.caches.EmployeeByEmail.Invalidate(ctx, strings.ToLower(emp.Email))
	return nil
}

// SetRole changes the role with an audit row. Admins cannot change their
// own role.
func (u *EmployeeUsecase) SetRole(ctx context.Context, actor Actor, id string, role domain.Role, reason *string) error {
	if !actor.Can(auth.PermRoleChange) {
		return forbidden("not allowed to change roles")
	}
	if actor.Is(id) {
		return forbidden("cannot change your own role")
	}
	if !role.Valid() {
		return domain.Validation("unknown role", map[string]string{"role": string(role)})
	}
	emp, err := u.employees.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if emp.Role == role {
		return nil
	}
	if err := u.employees.SetRole(ctx, id, role, actor.ID, reason); err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	u.caches.EmployeeByEmail.Invalidate(ctx, strings.ToLower(emp.Email))
	u.caches.RolePermissions.InvalidateAll(ctx)
	return nil
}

// SetDepartment moves the employee with an audit row.
func (u *EmployeeUsecase) SetDepartment(ctx context.Context, actor Actor, id string, departmentID *string, reason *string) error {
	if !actor.Can(auth.PermEmployeeWrite) {
		return forbidden("not allowed to change departments")
	}
	if departmentID != nil {
		if _, err := u.departments.GetByID(ctx, *departmentID); err != nil {
			return err
		}
	}
	if _, err := u.employees.GetByID(ctx, id); err != nil {
		return err
	}
	if err := u.employees.SetDepartment(ctx, id, departmentID, actor.ID, reason); err != nil {
		return fmt.Errorf("set department: %w", err)
	}
	u.caches.DepartmentTree.InvalidateAll(ctx)
	return nil
}

type HistoryResult struct {
	Entries    []*domain.HistoryEntry
	NextCursor *string
}

// History pages through one audit trail ("role", "status" or "department").
func (u *EmployeeUsecase) History(ctx context.Context, actor Actor, id, field, cursorStr string, limit int) (HistoryResult, error) {
	if !actor.Can(auth.PermEmployeeRead) && !actor.Is(id) {
		return HistoryResult{}, forbidden("not allowed to view this history")
	}
	limit = clampLimit(limit)
	cursorTime, cursorID, err := decodeCursor(cursorStr)
	if err != nil {
		return HistoryResult{}, err
	}

	entries, err := u.employees.History(ctx, id, field, repository.HistoryPage{
		CursorTime: cursorTime,
		CursorID:   cursorID,
		Limit:      limit + 1,
	})
	if err != nil {
		return HistoryResult{}, fmt.Errorf("load %s history: %w", field, err)
	}

	result := HistoryResult{Entries: entries}
	if len(entries) > limit {
		result.Entries = entries[:limit]
		last := result.Entries[limit-1]
		next := encodeCursor(last.ChangedAt, last.ID)
		result.NextCursor = &next
	}
	return result, nil
}

// validateEmployee enforces the semantic bounds the binding layer cannot
// express, including the availability-vs-max-hours invariant.
func validateEmployee(e *domain.Employee) error {
	fields := map[string]string{}
	if e.HourlyRate < 0 || e.HourlyRate > domain.MaxHourlyRate {
		fields["hourly_rate"] = "must be between 0 and 1000"
	}
	if e.MaxHoursPerWeek < 1 || e.MaxHoursPerWeek > domain.MaxWeeklyHours {
		fields["max_hours_per_week"] = "must be between 1 and 168"
	}
	if len(e.Qualifications) > domain.MaxQualifications {
		fields["qualifications"] = "at most " + strconv.Itoa(domain.MaxQualifications) + " tags"
	}

	var availableMinutes int
	for day, w := range e.Availability {
		if _, known := weekdayIndex[day]; !known {
			fields["availability"] = "unknown weekday " + day
			continue
		}
		if !w.Available {
			continue
		}
		if w.Start >= w.End {
			fields["availability"] = day + ": start must be before end"
			continue
		}
		availableMinutes += int(w.End - w.Start)
	}
	if len(e.Availability) > 0 && e.MaxHoursPerWeek*60 > availableMinutes {
		fields["max_hours_per_week"] = "exceeds the total available hours per week"
	}

	if len(fields) > 0 {
		return domain.Validation("invalid employee", fields)
	}
	return nil
}

var weekdayIndex = map[string]int{
	"monday": 0, "tuesday": 1, "wednesday": 2, "thursday": 3,
	"friday": 4, "saturday": 5, "sunday": 6,
}
