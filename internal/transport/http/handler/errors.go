package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rosterly/rosterd/internal/domain"
	"github.com/rosterly/rosterd/internal/requestid"
)

const (
	errInternalServer = "Internal server error"
	errInvalidBody    = "Invalid request body"
)

// statusCode 499 is the de-facto "client closed request" code.
const statusClientClosed = 499

func statusOf(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusUnprocessableEntity
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindLocked:
		return http.StatusLocked
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	case domain.KindDeadlineExceeded, domain.KindSolverTimeout:
		return http.StatusGatewayTimeout
	case domain.KindSolverInfeasible:
		return http.StatusUnprocessableEntity
	case domain.KindCancelled:
		return statusClientClosed
	case domain.KindDependency:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Kind      domain.Kind       `json:"kind"`
	Code      string            `json:"code,omitempty"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	Retryable bool              `json:"retryable"`
	ErrorID   string            `json:"error_id,omitempty"`
}

// Errors holds the per-handler error rendering policy. In production the
// detail of internal failures is replaced with a stable error ID that can
// be grepped out of the logs.
type Errors struct {
	Production bool
	Logger     *slog.Logger
}

func (e Errors) Respond(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	body := errorBody{
		Kind:      kind,
		Message:   err.Error(),
		Retryable: domain.Retryable(kind),
	}

	var de *domain.Error
	if errors.As(err, &de) {
		body.Code = de.Code
		body.Fields = de.Fields
		body.Message = de.Message
	}

	if kind == domain.KindInternal {
		id := requestid.FromContext(c.Request.Context())
		e.Logger.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
		if e.Production {
			body.Message = errInternalServer
			body.ErrorID = id
		}
	}

	c.JSON(statusOf(kind), gin.H{"error": body})
}

// BadRequest is for malformed payloads caught during binding, before any
// domain validation runs.
func (e Errors) BadRequest(c *gin.Context, err error) {
	msg := errInvalidBody
	if !e.Production && err != nil {
		msg = err.Error()
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": errorBody{
		Kind:    domain.KindValidation,
		Message: msg,
	}})
}
