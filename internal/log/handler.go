package log

import (
	"context"
	"log/slog"

	"github.com/rosterly/rosterd/internal/requestid"
)

// ContextHandler wraps an slog.Handler and enriches every record with the
// request ID and the acting employee carried in the context, so one grep
// over request_id reconstructs a full request.
type ContextHandler struct {
	inner slog.Handler
}

func NewContextHandler(inner slog.Handler) *ContextHandler {
	return &ContextHandler{inner: inner}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := requestid.FromContext(ctx); id != "" {
		r.AddAttrs(slog.String("request_id", id))
	}
	if emp := requestid.EmployeeFromContext(ctx); emp != "" {
		r.AddAttrs(slog.String("employee_id", emp))
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{inner: h.inner.WithGroup(name)}
}
