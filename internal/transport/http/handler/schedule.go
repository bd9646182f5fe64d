package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rosterly/rosterd/internal/domain"
	"github.com/rosterly/rosterd/internal/repository"
	"github.com/rosterly/rosterd/internal/transport/http/middleware"
	"github.com/rosterly/rosterd/internal/usecase"
)

type ScheduleHandler struct {
	schedules *usecase.ScheduleUsecase
	errs      Errors
	logger    *slog.Logger
}

func NewScheduleHandler(schedules *usecase.ScheduleUsecase, errs Errors, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules, errs: errs, logger: logger.With("component", "schedule_handler")}
}

type createScheduleRequest struct {
	Title     string    `json:"title"      binding:"required"`
	WeekStart time.Time `json:"week_start" binding:"required"`
	WeekEnd   time.Time `json:"week_end"   binding:"required"`
}

func (h *ScheduleHandler) Create(c *gin.Context) {
	var req createScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs.BadRequest(c, err)
		return
	}

	sched, err := h.schedules.Create(c.Request.Context(), middleware.Actor(c), usecase.ScheduleInput{
		Title:     req.Title,
		WeekStart: req.WeekStart,
		WeekEnd:   req.WeekEnd,
	})
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"schedule": renderSchedule(sched)})
}

func (h *ScheduleHandler) Get(c *gin.Context) {
	withAssignments := c.DefaultQuery("include_assignments", "true") != "false"
	sched, err := h.schedules.Get(c.Request.Context(), middleware.Actor(c), c.Param("id"), withAssignments)
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedule": renderSchedule(sched)})
}

func (h *ScheduleHandler) List(c *gin.Context) {
	input := repository.ListSchedulesInput{
		Status:    domain.ScheduleStatus(c.Query("status")),
		CreatedBy: c.Query("created_by"),
		Offset:    queryInt(c, "offset", 0),
		Limit:     queryInt(c, "limit", 0),
	}
	if v := c.Query("week_from"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			h.errs.BadRequest(c, err)
			return
		}
		input.WeekFrom = &t
	}
	if v := c.Query("week_to"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			h.errs.BadRequest(c, err)
			return
		}
		input.WeekTo = &t
	}

	result, err := h.schedules.List(c.Request.Context(), middleware.Actor(c), input)
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"schedules": renderSchedules(result.Schedules),
		"total":     result.Total,
	})
}

type updateScheduleRequest struct {
	Title     *string    `json:"title"`
	WeekStart *time.Time `json:"week_start"`
	WeekEnd   *time.Time `json:"week_end"`
	Version   int        `json:"version" binding:"required"`
}

func (h *ScheduleHandler) Update(c *gin.Context) {
	var req updateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs.BadRequest(c, err)
		return
	}

	sched, err := h.schedules.Update(c.Request.Context(), middleware.Actor(c), c.Param("id"), usecase.UpdateScheduleInput{
		Title:     req.Title,
		WeekStart: req.WeekStart,
		WeekEnd:   req.WeekEnd,
		Version:   req.Version,
	})
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedule": renderSchedule(sched)})
}

func (h *ScheduleHandler) Submit(c *gin.Context) {
	h.transition(c, h.schedules.Submit)
}

func (h *ScheduleHandler) Approve(c *gin.Context) {
	h.transition(c, h.schedules.Approve)
}

func (h *ScheduleHandler) Publish(c *gin.Context) {
	h.transition(c, h.schedules.Publish)
}

func (h *ScheduleHandler) Archive(c *gin.Context) {
	h.transition(c, h.schedules.Archive)
}

func (h *ScheduleHandler) transition(c *gin.Context, fn func(ctx context.Context, actor usecase.Actor, id string) (*domain.Schedule, error)) {
	sched, err := fn(c.Request.Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedule": renderSchedule(sched)})
}

func (h *ScheduleHandler) Delete(c *gin.Context) {
	if err := h.schedules.Delete(c.Request.Context(), middleware.Actor(c), c.Param("id")); err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
