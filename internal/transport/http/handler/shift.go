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

type ShiftHandler struct {
	shifts *usecase.ShiftUsecase
	errs   Errors
	logger *slog.Logger
}

func NewShiftHandler(shifts *usecase.ShiftUsecase, errs Errors, logger *slog.Logger) *ShiftHandler {
	return &ShiftHandler{shifts: shifts, errs: errs, logger: logger.With("component", "shift_handler")}
}

const dateLayout = "2006-01-02"

type shiftRequest struct {
	Date          string           `json:"date" binding:"required"`
	Start         domain.Clock     `json:"start"`
	End           domain.Clock     `json:"end"`
	Type          domain.ShiftType `json:"type" binding:"required"`
	DepartmentID  *string          `json:"department_id"`
	RequiredStaff int              `json:"required_staff"`
	Priority      int              `json:"priority"`
	Requirements  []string         `json:"requirements"`
}

func (r shiftRequest) toInput() (usecase.ShiftInput, error) {
	date, err := time.Parse(dateLayout, r.Date)
	if err != nil {
		return usecase.ShiftInput{}, domain.Validation("date must be YYYY-MM-DD", map[string]string{"date": "invalid format"})
	}
	return usecase.ShiftInput{
		Date:          date,
		Start:         r.Start,
		End:           r.End,
		Type:          r.Type,
		DepartmentID:  r.DepartmentID,
		RequiredStaff: r.RequiredStaff,
		Priority:      r.Priority,
		Requirements:  r.Requirements,
	}, nil
}

func (h *ShiftHandler) Create(c *gin.Context) {
	var req shiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs.BadRequest(c, err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		h.errs.Respond(c, err)
		return
	}

	shift, err := h.shifts.Create(c.Request.Context(), middleware.Actor(c), input)
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"shift": renderShift(shift)})
}

type bulkShiftsRequest struct {
	Shifts []shiftRequest `json:"shifts" binding:"required"`
}

// CreateBulk inserts up to 500 shifts in one transaction, all-or-nothing.
func (h *ShiftHandler) CreateBulk(c *gin.Context) {
	var req bulkShiftsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs.BadRequest(c, err)
		return
	}

	inputs := make([]usecase.ShiftInput, 0, len(req.Shifts))
	for _, r := range req.Shifts {
		input, err := r.toInput()
		if err != nil {
			h.errs.Respond(c, err)
			return
		}
		inputs = append(inputs, input)
	}

	shifts, err := h.shifts.CreateBulk(c.Request.Context(), middleware.Actor(c), inputs)
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"shifts": renderShifts(shifts)})
}

func (h *ShiftHandler) Get(c *gin.Context) {
	shift, err := h.shifts.Get(c.Request.Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shift": renderShift(shift)})
}

func (h *ShiftHandler) List(c *gin.Context) {
	input := repository.ListShiftsInput{
		Type:   domain.ShiftType(c.Query("type")),
		Offset: queryInt(c, "offset", 0),
		Limit:  queryInt(c, "limit", 0),
	}
	if v := c.Query("department_id"); v != "" {
		input.DepartmentID = &v
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

	result, err := h.shifts.List(c.Request.Context(), middleware.Actor(c), input)
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"shifts": renderShifts(result.Shifts),
		"total":  result.Total,
	})
}

type updateShiftRequest struct {
	Date          *string           `json:"date"`
	Start         *domain.Clock     `json:"start"`
	End           *domain.Clock     `json:"end"`
	Type          *domain.ShiftType `json:"type"`
	RequiredStaff *int              `json:"required_staff"`
	Priority      *int              `json:"priority"`
	Requirements  []string          `json:"requirements"`
}

func (h *ShiftHandler) Update(c *gin.Context) {
	var req updateShiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs.BadRequest(c, err)
		return
	}

	input := usecase.UpdateShiftInput{
		Start:         req.Start,
		End:           req.End,
		Type:          req.Type,
		RequiredStaff: req.RequiredStaff,
		Priority:      req.Priority,
		Requirements:  req.Requirements,
	}
	if req.Date != nil {
		date, err := time.Parse(dateLayout, *req.Date)
		if err != nil {
			h.errs.BadRequest(c, err)
			return
		}
		input.Date = &date
	}

	shift, err := h.shifts.Update(c.Request.Context(), middleware.Actor(c), c.Param("id"), input)
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shift": renderShift(shift)})
}

func (h *ShiftHandler) Delete(c *gin.Context) {
	force := c.Query("force") == "true"
	if err := h.shifts.Delete(c.Request.Context(), middleware.Actor(c), c.Param("id"), force); err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
