package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rosterly/rosterd/internal/domain"
	"github.com/rosterly/rosterd/internal/repository"
	"github.com/rosterly/rosterd/internal/transport/http/middleware"
	"github.com/rosterly/rosterd/internal/usecase"
)

type AssignmentHandler struct {
	assignments *usecase.AssignmentUsecase
	errs        Errors
	logger      *slog.Logger
}

func NewAssignmentHandler(assignments *usecase.AssignmentUsecase, errs Errors, logger *slog.Logger) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments, errs: errs, logger: logger.With("component", "assignment_handler")}
}

type assignmentRequest struct {
	ScheduleID string  `json:"schedule_id"`
	EmployeeID string  `json:"employee_id" binding:"required"`
	ShiftID    string  `json:"shift_id"    binding:"required"`
	Priority   int     `json:"priority"`
	Notes      *string `json:"notes"`
}

func (h *AssignmentHandler) Create(c *gin.Context) {
	var req assignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs.BadRequest(c, err)
		return
	}

	a, err := h.assignments.Create(c.Request.Context(), middleware.Actor(c), usecase.AssignmentInput{
		ScheduleID: c.Param("id"),
		EmployeeID: req.EmployeeID,
		ShiftID:    req.ShiftID,
		Priority:   req.Priority,
		Notes:      req.Notes,
	})
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"assignment": renderAssignment(a)})
}

type bulkAssignmentsRequest struct {
	ScheduleID  string              `json:"schedule_id" binding:"required"`
	Assignments []assignmentRequest `json:"assignments" binding:"required"`
}

type bulkAssignmentsResponse struct {
	Created        []assignmentResponse   `json:"created"`
	Errors         []repository.BulkError `json:"errors"`
	TotalProcessed int                    `json:"total_processed"`
	TotalCreated   int                    `json:"total_created"`
	TotalErrors    int                    `json:"total_errors"`
}

// CreateBulk creates up to 500 assignments with per-row outcomes. A row
// failing validation does not block the rest of the batch.
func (h *AssignmentHandler) CreateBulk(c *gin.Context) {
	var req bulkAssignmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs.BadRequest(c, err)
		return
	}

	inputs := make([]usecase.AssignmentInput, 0, len(req.Assignments))
	for _, r := range req.Assignments {
		inputs = append(inputs, usecase.AssignmentInput{
			ScheduleID: req.ScheduleID,
			EmployeeID: r.EmployeeID,
			ShiftID:    r.ShiftID,
			Priority:   r.Priority,
			Notes:      r.Notes,
		})
	}

	result, err := h.assignments.CreateBulk(c.Request.Context(), middleware.Actor(c), req.ScheduleID, inputs)
	if err != nil {
		h.errs.Respond(c, err)
		return
	}

	status := http.StatusCreated
	if result.TotalCreated == 0 && result.TotalErrors > 0 {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, bulkAssignmentsResponse{
		Created:        renderAssignments(result.Created),
		Errors:         result.Errors,
		TotalProcessed: result.TotalProcessed,
		TotalCreated:   result.TotalCreated,
		TotalErrors:    result.TotalErrors,
	})
}

func (h *AssignmentHandler) Get(c *gin.Context) {
	a, err := h.assignments.Get(c.Request.Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignment": renderAssignment(a)})
}

func (h *AssignmentHandler) List(c *gin.Context) {
	input := repository.ListAssignmentsInput{
		Status: domain.AssignmentStatus(c.Query("status")),
	}
	if v := c.Query("schedule_id"); v != "" {
		input.ScheduleID = &v
	}
	if v := c.Query("employee_id"); v != "" {
		input.EmployeeID = &v
	}
	if v := c.Query("shift_id"); v != "" {
		input.ShiftID = &v
	}
	if v := c.Query("date_from"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			h.errs.BadRequest(c, err)
			return
		}
		input.DateFrom = &t
	}
	if v := c.Query("date_to"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			h.errs.BadRequest(c, err)
			return
		}
		input.DateTo = &t
	}
	input.Limit = queryInt(c, "limit", 0)

	result, err := h.assignments.List(c.Request.Context(), middleware.Actor(c), input, c.Query("cursor"))
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"assignments": renderAssignments(result.Assignments),
		"next_cursor": result.NextCursor,
	})
}

// BySchedule serves the full assignment set of one schedule through the
// read cache.
func (h *AssignmentHandler) BySchedule(c *gin.Context) {
	rows, err := h.assignments.BySchedule(c.Request.Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	out := make([]assignmentResponse, 0, len(rows))
	for i := range rows {
		out = append(out, renderAssignment(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"assignments": out})
}

type updateAssignmentRequest struct {
	Status   *domain.AssignmentStatus `json:"status"`
	Priority *int                     `json:"priority"`
	Notes    *string                  `json:"notes"`
}

func (h *AssignmentHandler) Update(c *gin.Context) {
	var req updateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs.BadRequest(c, err)
		return
	}

	a, err := h.assignments.Update(c.Request.Context(), middleware.Actor(c), c.Param("id"), usecase.UpdateAssignmentInput{
		Status:   req.Status,
		Priority: req.Priority,
		Notes:    req.Notes,
	})
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignment": renderAssignment(a)})
}

func (h *AssignmentHandler) Confirm(c *gin.Context) {
	a, err := h.assignments.Confirm(c.Request.Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignment": renderAssignment(a)})
}

type declineRequest struct {
	Reason string `json:"reason"`
}

func (h *AssignmentHandler) Decline(c *gin.Context) {
	var req declineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs.BadRequest(c, err)
		return
	}

	a, err := h.assignments.Decline(c.Request.Context(), middleware.Actor(c), c.Param("id"), req.Reason)
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignment": renderAssignment(a)})
}

func (h *AssignmentHandler) Delete(c *gin.Context) {
	if err := h.assignments.Delete(c.Request.Context(), middleware.Actor(c), c.Param("id")); err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CheckConflicts dry-runs the validation pipeline for a prospective
// assignment without writing anything.
func (h *AssignmentHandler) CheckConflicts(c *gin.Context) {
	var req assignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs.BadRequest(c, err)
		return
	}

	conflicts, err := h.assignments.CheckConflicts(c.Request.Context(), middleware.Actor(c), usecase.AssignmentInput{
		ScheduleID: req.ScheduleID,
		EmployeeID: req.EmployeeID,
		ShiftID:    req.ShiftID,
	})
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conflicts": conflicts})
}
