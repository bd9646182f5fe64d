package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rosterly/rosterd/internal/solver"
	"github.com/rosterly/rosterd/internal/transport/http/middleware"
	"github.com/rosterly/rosterd/internal/usecase"
)

type GenerateHandler struct {
	generate    *usecase.GenerateUsecase
	assignments *usecase.AssignmentUsecase
	errs        Errors
	logger      *slog.Logger
}

func NewGenerateHandler(generate *usecase.GenerateUsecase, assignments *usecase.AssignmentUsecase, errs Errors, logger *slog.Logger) *GenerateHandler {
	return &GenerateHandler{
		generate:    generate,
		assignments: assignments,
		errs:        errs,
		logger:      logger.With("component", "generate_handler"),
	}
}

type generateRequest struct {
	ScheduleID   string          `json:"schedule_id" binding:"required"`
	DepartmentID *string         `json:"department_id"`
	Weights      *solver.Weights `json:"weights"`
	Seed         int64           `json:"seed"`
	// Apply materializes the plan into assignment rows in the same request.
	// Without it the plan is returned for review only.
	Apply bool `json:"apply"`
	// Progress streams construction progress to the schedule's realtime
	// topic while the solver runs.
	Progress bool `json:"progress"`
}

func (r generateRequest) toInput() usecase.GenerateInput {
	weights := solver.DefaultWeights()
	if r.Weights != nil {
		weights = *r.Weights
	}
	return usecase.GenerateInput{
		ScheduleID:   r.ScheduleID,
		DepartmentID: r.DepartmentID,
		Weights:      weights,
		Seed:         r.Seed,
		Progress:     r.Progress,
	}
}

func (h *GenerateHandler) Generate(c *gin.Context) {
	h.run(c, h.generate.Generate)
}

// Optimize re-plans around the existing assignments instead of starting
// from scratch.
func (h *GenerateHandler) Optimize(c *gin.Context) {
	h.run(c, h.generate.Optimize)
}

func (h *GenerateHandler) run(c *gin.Context, fn func(ctx context.Context, actor usecase.Actor, input usecase.GenerateInput) (*solver.Plan, error)) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs.BadRequest(c, err)
		return
	}

	plan, err := fn(c.Request.Context(), middleware.Actor(c), req.toInput())
	if err != nil {
		h.errs.Respond(c, err)
		return
	}

	resp := gin.H{"plan": plan}
	if req.Apply {
		applied, err := h.assignments.ApplySolverPlan(c.Request.Context(), middleware.Actor(c), req.ScheduleID, plan)
		if err != nil {
			h.errs.Respond(c, err)
			return
		}
		resp["applied"] = applied
	}
	c.JSON(http.StatusOK, resp)
}

type validateScheduleRequest struct {
	ScheduleID string `json:"schedule_id" binding:"required"`
}

// Validate checks the schedule's current assignments against the hard
// constraints and reports every finding.
func (h *GenerateHandler) Validate(c *gin.Context) {
	var req validateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs.BadRequest(c, err)
		return
	}

	issues, err := h.generate.Validate(c.Request.Context(), middleware.Actor(c), req.ScheduleID)
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":  len(issues) == 0,
		"issues": issues,
	})
}
