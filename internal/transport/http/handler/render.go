package handler

import (
	"time"

	"github.com/rosterly/rosterd/internal/domain"
)

// Response DTOs. Domain structs stay tag-free; the wire shape is pinned
// here so storage changes cannot silently leak into the API.

type employeeResponse struct {
	ID                 string              `json:"id"`
	Email              string              `json:"email"`
	Role               domain.Role         `json:"role"`
	DepartmentID       *string             `json:"department_id,omitempty"`
	FirstName          string              `json:"first_name"`
	LastName           string              `json:"last_name"`
	Phone              *string             `json:"phone,omitempty"`
	HireDate           *time.Time          `json:"hire_date,omitempty"`
	HourlyRate         float64             `json:"hourly_rate"`
	MaxHoursPerWeek    int                 `json:"max_hours_per_week"`
	Qualifications     []string            `json:"qualifications"`
	Availability       domain.Availability `json:"availability"`
	IsActive           bool                `json:"is_active"`
	PasswordMustChange bool                `json:"password_must_change"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

func renderEmployee(e *domain.Employee) employeeResponse {
	return employeeResponse{
		ID:                 e.ID,
		Email:              e.Email,
		Role:               e.Role,
		DepartmentID:       e.DepartmentID,
		FirstName:          e.FirstName,
		LastName:           e.LastName,
		Phone:              e.Phone,
		HireDate:           e.HireDate,
		HourlyRate:         e.HourlyRate,
		MaxHoursPerWeek:    e.MaxHoursPerWeek,
		Qualifications:     e.Qualifications,
		Availability:       e.Availability,
		IsActive:           e.IsActive,
		PasswordMustChange: e.PasswordMustChange,
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          e.UpdatedAt,
	}
}

func renderEmployees(es []*domain.Employee) []employeeResponse {
	out := make([]employeeResponse, 0, len(es))
	for _, e := range es {
		out = append(out, renderEmployee(e))
	}
	return out
}

type historyResponse struct {
	ID          string    `json:"id"`
	Field       string    `json:"field"`
	OldValue    string    `json:"old_value"`
	NewValue    string    `json:"new_value"`
	ChangedByID string    `json:"changed_by"`
	Reason      *string   `json:"reason,omitempty"`
	ChangedAt   time.Time `json:"changed_at"`
}

func renderHistory(entries []*domain.HistoryEntry) []historyResponse {
	out := make([]historyResponse, 0, len(entries))
	for _, h := range entries {
		out = append(out, historyResponse{
			ID:          h.ID,
			Field:       h.Field,
			OldValue:    h.OldValue,
			NewValue:    h.NewValue,
			ChangedByID: h.ChangedByID,
			Reason:      h.Reason,
			ChangedAt:   h.ChangedAt,
		})
	}
	return out
}

type departmentResponse struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	ParentID  *string              `json:"parent_id,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
	Children  []departmentResponse `json:"children,omitempty"`
}

func renderDepartment(d *domain.Department) departmentResponse {
	resp := departmentResponse{
		ID:        d.ID,
		Name:      d.Name,
		ParentID:  d.ParentID,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	for _, child := range d.Children {
		resp.Children = append(resp.Children, renderDepartment(child))
	}
	return resp
}

func renderDepartments(ds []*domain.Department) []departmentResponse {
	out := make([]departmentResponse, 0, len(ds))
	for _, d := range ds {
		out = append(out, renderDepartment(d))
	}
	return out
}

type shiftResponse struct {
	ID            string           `json:"id"`
	Date          string           `json:"date"`
	Start         domain.Clock     `json:"start"`
	End           domain.Clock     `json:"end"`
	Type          domain.ShiftType `json:"type"`
	DepartmentID  *string          `json:"department_id,omitempty"`
	RequiredStaff int              `json:"required_staff"`
	Priority      int              `json:"priority"`
	Requirements  []string         `json:"requirements"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func renderShift(s *domain.Shift) shiftResponse {
	return shiftResponse{
		ID:            s.ID,
		Date:          s.Date.Format("2006-01-02"),
		Start:         s.Start,
		End:           s.End,
		Type:          s.Type,
		DepartmentID:  s.DepartmentID,
		RequiredStaff: s.RequiredStaff,
		Priority:      s.Priority,
		Requirements:  s.Requirements,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

func renderShifts(ss []*domain.Shift) []shiftResponse {
	out := make([]shiftResponse, 0, len(ss))
	for _, s := range ss {
		out = append(out, renderShift(s))
	}
	return out
}

type assignmentResponse struct {
	ID            string                  `json:"id"`
	ScheduleID    string                  `json:"schedule_id"`
	EmployeeID    string                  `json:"employee_id"`
	ShiftID       string                  `json:"shift_id"`
	Status        domain.AssignmentStatus `json:"status"`
	Priority      int                     `json:"priority"`
	Notes         *string                 `json:"notes,omitempty"`
	AssignedBy    string                  `json:"assigned_by"`
	AssignedAt    time.Time               `json:"assigned_at"`
	ConfirmedAt   *time.Time              `json:"confirmed_at,omitempty"`
	DeclineReason *string                 `json:"decline_reason,omitempty"`
	AutoAssigned  bool                    `json:"auto_assigned"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
	Employee      *employeeResponse       `json:"employee,omitempty"`
	Shift         *shiftResponse          `json:"shift,omitempty"`
}

func renderAssignment(a *domain.Assignment) assignmentResponse {
	resp := assignmentResponse{
		ID:            a.ID,
		ScheduleID:    a.ScheduleID,
		EmployeeID:    a.EmployeeID,
		ShiftID:       a.ShiftID,
		Status:        a.Status,
		Priority:      a.Priority,
		Notes:         a.Notes,
		AssignedBy:    a.AssignedBy,
		AssignedAt:    a.AssignedAt,
		ConfirmedAt:   a.ConfirmedAt,
		DeclineReason: a.DeclineReason,
		AutoAssigned:  a.AutoAssigned,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
	if a.Employee != nil {
		emp := renderEmployee(a.Employee)
		resp.Employee = &emp
	}
	if a.Shift != nil {
		sh := renderShift(a.Shift)
		resp.Shift = &sh
	}
	return resp
}

func renderAssignments(as []*domain.Assignment) []assignmentResponse {
	out := make([]assignmentResponse, 0, len(as))
	for _, a := range as {
		out = append(out, renderAssignment(a))
	}
	return out
}

type scheduleResponse struct {
	ID          string                `json:"id"`
	Title       string                `json:"title"`
	WeekStart   time.Time             `json:"week_start"`
	WeekEnd     time.Time             `json:"week_end"`
	Status      domain.ScheduleStatus `json:"status"`
	CreatedBy   string                `json:"created_by"`
	ApprovedBy  *string               `json:"approved_by,omitempty"`
	Version     int                   `json:"version"`
	ParentID    *string               `json:"parent_id,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
	Assignments []assignmentResponse  `json:"assignments,omitempty"`
}

func renderSchedule(s *domain.Schedule) scheduleResponse {
	resp := scheduleResponse{
		ID:         s.ID,
		Title:      s.Title,
		WeekStart:  s.WeekStart,
		WeekEnd:    s.WeekEnd,
		Status:     s.Status,
		CreatedBy:  s.CreatedBy,
		ApprovedBy: s.ApprovedBy,
		Version:    s.Version,
		ParentID:   s.ParentID,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
	if len(s.Assignments) > 0 {
		resp.Assignments = renderAssignments(s.Assignments)
	}
	return resp
}

func renderSchedules(ss []*domain.Schedule) []scheduleResponse {
	out := make([]scheduleResponse, 0, len(ss))
	for _, s := range ss {
		out = append(out, renderSchedule(s))
	}
	return out
}

type ruleResponse struct {
	ID         string             `json:"id"`
	Type       domain.RuleType    `json:"type"`
	EmployeeID *string            `json:"employee_id,omitempty"`
	Priority   int                `json:"priority"`
	Active     bool               `json:"active"`
	SourceText string             `json:"source_text"`
	Payload    domain.RulePayload `json:"payload"`
	Confidence float64            `json:"confidence"`
	CreatedAt  time.Time          `json:"created_at"`
}

func renderRule(r *domain.Rule) ruleResponse {
	return ruleResponse{
		ID:         r.ID,
		Type:       r.Type,
		EmployeeID: r.EmployeeID,
		Priority:   r.Priority,
		Active:     r.Active,
		SourceText: r.SourceText,
		Payload:    r.Payload,
		Confidence: r.Confidence,
		CreatedAt:  r.CreatedAt,
	}
}

func renderRules(rs []*domain.Rule) []ruleResponse {
	out := make([]ruleResponse, 0, len(rs))
	for _, r := range rs {
		out = append(out, renderRule(r))
	}
	return out
}

type notificationResponse struct {
	ID        string                      `json:"id"`
	Category  string                      `json:"category"`
	Priority  domain.NotificationPriority `json:"priority"`
	Title     string                      `json:"title"`
	Body      string                      `json:"body"`
	IsRead    bool                        `json:"is_read"`
	ActionURL *string                     `json:"action_url,omitempty"`
	CreatedAt time.Time                   `json:"created_at"`
}

func renderNotifications(ns []domain.Notification) []notificationResponse {
	out := make([]notificationResponse, 0, len(ns))
	for _, n := range ns {
		out = append(out, notificationResponse{
			ID:        n.ID,
			Category:  n.Category,
			Priority:  n.Priority,
			Title:     n.Title,
			Body:      n.Body,
			IsRead:    n.IsRead,
			ActionURL: n.ActionURL,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}
