package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rosterly/rosterd/internal/domain"
	"github.com/rosterly/rosterd/internal/transport/http/middleware"
	"github.com/rosterly/rosterd/internal/usecase"
)

type EmployeeHandler struct {
	employees *usecase.EmployeeUsecase
	errs      Errors
	logger    *slog.Logger
}

func NewEmployeeHandler(employees *usecase.EmployeeUsecase, errs Errors, logger *slog.Logger) *EmployeeHandler {
	return &EmployeeHandler{employees: employees, errs: errs, logger: logger.With("component", "employee_handler")}
}

type createEmployeeRequest struct {
	Email           string              `json:"email"              binding:"required,email"`
	Password        string              `json:"password"           binding:"required"`
	Role            domain.Role         `json:"role"               binding:"required"`
	FirstName       string              `json:"first_name"         binding:"required"`
	LastName        string              `json:"last_name"          binding:"required"`
	Phone           *string             `json:"phone"`
	HireDate        *time.Time          `json:"hire_date"`
	HourlyRate      float64             `json:"hourly_rate"`
	MaxHoursPerWeek int                 `json:"max_hours_per_week"`
	Qualifications  []string            `json:"qualifications"`
	Availability    domain.Availability `json:"availability"`
	DepartmentID    *string             `json:"department_id"`
}

func (h *EmployeeHandler) Create(c *gin.Context) {
	var req createEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs.BadRequest(c, err)
		return
	}

	emp, err := h.employees.Create(c.Request.Context(), middleware.Actor(c), usecase.CreateEmployeeInput{
		Email:           req.Email,
		Password:        req.Password,
		Role:            req.Role,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Phone:           req.Phone,
		HireDate:        req.HireDate,
		HourlyRate:      req.HourlyRate,
		MaxHoursPerWeek: req.MaxHoursPerWeek,
		Qualifications:  req.Qualifications,
		Availability:    req.Availability,
		DepartmentID:    req.DepartmentID,
	})
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"employee": renderEmployee(emp)})
}

func (h *EmployeeHandler) Get(c *gin.Context) {
	emp, err := h.employees.Get(c.Request.Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"employee": renderEmployee(emp)})
}

func (h *EmployeeHandler) List(c *gin.Context) {
	input := usecase.ListEmployeesInput{
		Search: c.Query("search"),
		Role:   domain.Role(c.Query("role")),
		Cursor: c.Query("cursor"),
		Limit:  queryInt(c, "limit", 0),
	}
	if v := c.Query("department_id"); v != "" {
		input.DepartmentID = &v
	}
	if v := c.Query("is_active"); v != "" {
		active := v == "true"
		input.IsActive = &active
	}

	result, err := h.employees.List(c.Request.Context(), middleware.Actor(c), input)
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"employees":   renderEmployees(result.Employees),
		"next_cursor": result.NextCursor,
	})
}

type updateEmployeeRequest struct {
	FirstName       *string             `json:"first_name"`
	LastName        *string             `json:"last_name"`
	Phone           *string             `json:"phone"`
	HireDate        *time.Time          `json:"hire_date"`
	HourlyRate      *float64            `json:"hourly_rate"`
	MaxHoursPerWeek *int                `json:"max_hours_per_week"`
	Qualifications  []string            `json:"qualifications"`
	Availability    domain.Availability `json:"availability"`
}

func (h *EmployeeHandler) Update(c *gin.Context) {
	var req updateEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs.BadRequest(c, err)
		return
	}

	emp, err := h.employees.Update(c.Request.Context(), middleware.Actor(c), c.Param("id"), usecase.UpdateEmployeeInput{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Phone:           req.Phone,
		HireDate:        req.HireDate,
		HourlyRate:      req.HourlyRate,
		MaxHoursPerWeek: req.MaxHoursPerWeek,
		Qualifications:  req.Qualifications,
		Availability:    req.Availability,
	})
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"employee": renderEmployee(emp)})
}

func (h *EmployeeHandler) Delete(c *gin.Context) {
	if err := h.employees.Delete(c.Request.Context(), middleware.Actor(c), c.Param("id")); err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type setStatusRequest struct {
	IsActive bool    `json:"is_active"`
	Reason   *string `json:"reason"`
}

func (h *EmployeeHandler) SetStatus(c *gin.Context) {
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs.BadRequest(c, err)
		return
	}
	if err := h.employees.SetStatus(c.Request.Context(), middleware.Actor(c), c.Param("id"), req.IsActive, req.Reason); err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type setRoleRequest struct {
	Role   domain.Role `json:"role" binding:"required"`
	Reason *string     `json:"reason"`
}

func (h *EmployeeHandler) SetRole(c *gin.Context) {
	var req setRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs.BadRequest(c, err)
		return
	}
	if err := h.employees.SetRole(c.Request.Context(), middleware.Actor(c), c.Param("id"), req.Role, req.Reason); err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type setDepartmentRequest struct {
	DepartmentID *string `json:"department_id"`
	Reason       *string `json:"reason"`
}

func (h *EmployeeHandler) SetDepartment(c *gin.Context) {
	var req setDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs.BadRequest(c, err)
		return
	}
	if err := h.employees.SetDepartment(c.Request.Context(), middleware.Actor(c), c.Param("id"), req.DepartmentID, req.Reason); err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// History serves the role, status and department audit trails; the field is
// fixed per route.
func (h *EmployeeHandler) History(field string) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := h.employees.History(c.Request.Context(), middleware.Actor(c),
			c.Param("id"), field, c.Query("cursor"), queryInt(c, "limit", 0))
		if err != nil {
			h.errs.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"entries":     renderHistory(result.Entries),
			"next_cursor": result.NextCursor,
		})
	}
}

func queryInt(c *gin.Context, name string, fallback int) int {
	v := c.Query(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
