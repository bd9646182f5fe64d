package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rosterly/rosterd/internal/domain"
	"github.com/rosterly/rosterd/internal/repository"
	"github.com/rosterly/rosterd/internal/transport/http/middleware"
	"github.com/rosterly/rosterd/internal/usecase"
)

type RuleHandler struct {
	rules  *usecase.RuleUsecase
	errs   Errors
	logger *slog.Logger
}

func NewRuleHandler(rules *usecase.RuleUsecase, errs Errors, logger *slog.Logger) *RuleHandler {
	return &RuleHandler{rules: rules, errs: errs, logger: logger.With("component", "rule_handler")}
}

type parseRuleRequest struct {
	Text string `json:"text" binding:"required"`
}

// Parse previews the structured interpretation of rule text without
// persisting anything. Ambiguous text comes back with candidates.
func (h *RuleHandler) Parse(c *gin.Context) {
	var req parseRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs.BadRequest(c, err)
		return
	}

	result, err := h.rules.Parse(c.Request.Context(), middleware.Actor(c), req.Text)
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type createRuleRequest struct {
	Text      string `json:"text" binding:"required"`
	Priority  int    `json:"priority"`
	Confirmed bool   `json:"confirmed"`
}

func (h *RuleHandler) Create(c *gin.Context) {
	var req createRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs.BadRequest(c, err)
		return
	}

	rule, err := h.rules.Create(c.Request.Context(), middleware.Actor(c), usecase.CreateRuleInput{
		Text:      req.Text,
		Priority:  req.Priority,
		Confirmed: req.Confirmed,
	})
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"rule": renderRule(rule)})
}

func (h *RuleHandler) Get(c *gin.Context) {
	rule, err := h.rules.Get(c.Request.Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rule": renderRule(rule)})
}

func (h *RuleHandler) List(c *gin.Context) {
	input := repository.ListRulesInput{
		Type:   domain.RuleType(c.Query("type")),
		Offset: queryInt(c, "offset", 0),
		Limit:  queryInt(c, "limit", 0),
	}
	if v := c.Query("employee_id"); v != "" {
		input.EmployeeID = &v
	}
	if v := c.Query("active"); v != "" {
		active := v == "true"
		input.Active = &active
	}

	result, err := h.rules.List(c.Request.Context(), middleware.Actor(c), input)
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"rules": renderRules(result.Rules),
		"total": result.Total,
	})
}

type updateRuleRequest struct {
	Priority *int  `json:"priority"`
	Active   *bool `json:"active"`
}

func (h *RuleHandler) Update(c *gin.Context) {
	var req updateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs.BadRequest(c, err)
		return
	}

	rule, err := h.rules.Update(c.Request.Context(), middleware.Actor(c), c.Param("id"), usecase.UpdateRuleInput{
		Priority: req.Priority,
		Active:   req.Active,
	})
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rule": renderRule(rule)})
}

func (h *RuleHandler) Delete(c *gin.Context) {
	if err := h.rules.Delete(c.Request.Context(), middleware.Actor(c), c.Param("id")); err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
