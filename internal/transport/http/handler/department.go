package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rosterly/rosterd/internal/transport/http/middleware"
	"github.com/rosterly/rosterd/internal/usecase"
)

type DepartmentHandler struct {
	departments *usecase.DepartmentUsecase
	errs        Errors
	logger      *slog.Logger
}

func NewDepartmentHandler(departments *usecase.DepartmentUsecase, errs Errors, logger *slog.Logger) *DepartmentHandler {
	return &DepartmentHandler{departments: departments, errs: errs, logger: logger.With("component", "department_handler")}
}

type createDepartmentRequest struct {
	Name     string  `json:"name" binding:"required"`
	ParentID *string `json:"parent_id"`
}

func (h *DepartmentHandler) Create(c *gin.Context) {
	var req createDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs.BadRequest(c, err)
		return
	}

	dept, err := h.departments.Create(c.Request.Context(), middleware.Actor(c), req.Name, req.ParentID)
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"department": renderDepartment(dept)})
}

func (h *DepartmentHandler) Get(c *gin.Context) {
	dept, err := h.departments.Get(c.Request.Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"department": renderDepartment(dept)})
}

func (h *DepartmentHandler) List(c *gin.Context) {
	depts, err := h.departments.List(c.Request.Context(), middleware.Actor(c))
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"departments": renderDepartments(depts)})
}

// Hierarchy returns the subtree rooted at the department, children nested.
func (h *DepartmentHandler) Hierarchy(c *gin.Context) {
	tree, err := h.departments.Subtree(c.Request.Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hierarchy": renderDepartments(tree)})
}

type updateDepartmentRequest struct {
	Name        *string `json:"name"`
	ParentID    *string `json:"parent_id"`
	ClearParent bool    `json:"clear_parent"`
}

func (h *DepartmentHandler) Update(c *gin.Context) {
	var req updateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs.BadRequest(c, err)
		return
	}

	dept, err := h.departments.Update(c.Request.Context(), middleware.Actor(c), c.Param("id"), usecase.UpdateDepartmentInput{
		Name:        req.Name,
		ParentID:    req.ParentID,
		ClearParent: req.ClearParent,
	})
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"department": renderDepartment(dept)})
}

func (h *DepartmentHandler) Delete(c *gin.Context) {
	force := c.Query("force") == "true"
	if err := h.departments.Delete(c.Request.Context(), middleware.Actor(c), c.Param("id"), force); err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
