package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rosterly/rosterd/internal/metrics"
	"github.com/rosterly/rosterd/internal/transport/http/middleware"
	"github.com/rosterly/rosterd/internal/usecase"
)

type AuthHandler struct {
	auth   *usecase.AuthUsecase
	errs   Errors
	logger *slog.Logger
}

func NewAuthHandler(auth *usecase.AuthUsecase, errs Errors, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, errs: errs, logger: logger.With("component", "auth_handler")}
}

type registerRequest struct {
	Email     string  `json:"email"      binding:"required,email"`
	Password  string  `json:"password"   binding:"required"`
	FirstName string  `json:"first_name" binding:"required"`
	LastName  string  `json:"last_name"  binding:"required"`
	Phone     *string `json:"phone"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs.BadRequest(c, err)
		return
	}

	emp, err := h.auth.Register(c.Request.Context(), usecase.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"employee": renderEmployee(emp)})
}

type loginRequest struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs.BadRequest(c, err)
		return
	}

	emp, pair, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		metrics.LoginFailuresTotal.Inc()
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"employee": renderEmployee(emp),
		"tokens": tokenResponse{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			ExpiresAt:    pair.ExpiresAt,
		},
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs.BadRequest(c, err)
		return
	}

	emp, pair, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"employee": renderEmployee(emp),
		"tokens": tokenResponse{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			ExpiresAt:    pair.ExpiresAt,
		},
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), middleware.Claims(c)); err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) Me(c *gin.Context) {
	emp, perms, err := h.auth.Me(c.Request.Context(), middleware.Actor(c).ID)
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"employee":    renderEmployee(emp),
		"permissions": perms,
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password" binding:"required"`
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs.BadRequest(c, err)
		return
	}

	err := h.auth.ChangePassword(c.Request.Context(), middleware.Actor(c), c.Param("id"), req.CurrentPassword, req.NewPassword)
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ResetPassword generates a temporary password for the target account and
// returns it once. The account is flagged to force a change on next login.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	temp, err := h.auth.ResetPassword(c.Request.Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"temporary_password": temp})
}
