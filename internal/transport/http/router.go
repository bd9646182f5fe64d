// Package httptransport wires the gin engine: the middleware pipeline and
// every API route group.
package httptransport

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"

	"github.com/rosterly/rosterd/internal/auth"
	"github.com/rosterly/rosterd/internal/broadcast"
	"github.com/rosterly/rosterd/internal/cache"
	"github.com/rosterly/rosterd/internal/transport/http/handler"
	"github.com/rosterly/rosterd/internal/transport/http/middleware"
	"github.com/rosterly/rosterd/internal/usecase"
)

// Deps carries everything the router needs. The handlers are built here so
// main stays a pure wiring file.
type Deps struct {
	Auth          *usecase.AuthUsecase
	Employees     *usecase.EmployeeUsecase
	Departments   *usecase.DepartmentUsecase
	Shifts        *usecase.ShiftUsecase
	Schedules     *usecase.ScheduleUsecase
	Assignments   *usecase.AssignmentUsecase
	Rules         *usecase.RuleUsecase
	Generate      *usecase.GenerateUsecase
	Notifications *usecase.NotificationUsecase

	TokenManager *auth.TokenManager
	Revoked      *auth.RevocationSet
	Caches       *cache.Caches
	Hub          *broadcast.Hub

	Production    bool
	CORSOrigins   []string
	LoginLimiter  *auth.RateLimiter
	WriteLimiter  *auth.RateLimiter
	ReadLimiter   *auth.RateLimiter
	SlowThreshold time.Duration
	Logger        *slog.Logger
}

func NewRouter(d Deps) *gin.Engine {
	if d.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.SlowThreshold <= 0 {
		d.SlowThreshold = time.Second
	}

	errs := handler.Errors{Production: d.Production, Logger: d.Logger}
	authH := handler.NewAuthHandler(d.Auth, errs, d.Logger)
	employeeH := handler.NewEmployeeHandler(d.Employees, errs, d.Logger)
	departmentH := handler.NewDepartmentHandler(d.Departments, errs, d.Logger)
	shiftH := handler.NewShiftHandler(d.Shifts, errs, d.Logger)
	scheduleH := handler.NewScheduleHandler(d.Schedules, errs, d.Logger)
	assignmentH := handler.NewAssignmentHandler(d.Assignments, errs, d.Logger)
	ruleH := handler.NewRuleHandler(d.Rules, errs, d.Logger)
	generateH := handler.NewGenerateHandler(d.Generate, d.Assignments, errs, d.Logger)
	notificationH := handler.NewNotificationHandler(d.Notifications, errs, d.Logger)
	cacheH := handler.NewCacheHandler(d.Caches, errs)
	wsH := handler.NewWSHandler(d.Hub, d.CORSOrigins, broadcast.DefaultHeartbeat, d.Logger)

	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Security(d.Production),
		middleware.CORS(d.CORSOrigins),
		middleware.BodyLimit(middleware.DefaultBodyLimit),
		sloggin.New(d.Logger),
		middleware.Metrics(),
		middleware.SlowRequest(d.SlowThreshold, d.Logger),
	)

	authed := middleware.Auth(d.TokenManager, d.Revoked)
	csrf := middleware.CSRF()

	api := r.Group("/api")

	api.GET("/csrf-token", middleware.IssueCSRFToken(d.Production))

	// Credential endpoints get the strictest limiter, keyed by client IP.
	login := api.Group("/auth", middleware.RateLimit(d.LoginLimiter, "login"))
	login.POST("/register", csrf, authH.Register)
	login.POST("/login", csrf, authH.Login)
	login.POST("/refresh", csrf, authH.Refresh)
	login.POST("/logout", authed, csrf, authH.Logout)
	api.GET("/auth/me", authed, middleware.RateLimit(d.ReadLimiter, "read"), authH.Me)

	read := api.Group("", authed, middleware.RateLimit(d.ReadLimiter, "read"))
	write := api.Group("", authed, middleware.RateLimit(d.WriteLimiter, "write"), csrf)

	read.GET("/employees", employeeH.List)
	read.GET("/employees/:id", employeeH.Get)
	read.GET("/employees/:id/status-history", employeeH.History("status"))
	read.GET("/employees/:id/role-history", employeeH.History("role"))
	read.GET("/employees/:id/department-history", employeeH.History("department"))
	write.POST("/employees", employeeH.Create)
	write.PATCH("/employees/:id", employeeH.Update)
	write.DELETE("/employees/:id", employeeH.Delete)
	write.PATCH("/employees/:id/status", employeeH.SetStatus)
	write.PATCH("/employees/:id/role", employeeH.SetRole)
	write.PATCH("/employees/:id/department", employeeH.SetDepartment)
	write.POST("/employees/:id/reset-password", authH.ResetPassword)
	write.PATCH("/employees/:id/change-password", authH.ChangePassword)

	read.GET("/departments", departmentH.List)
	read.GET("/departments/:id", departmentH.Get)
	read.GET("/departments/:id/hierarchy", departmentH.Hierarchy)
	write.POST("/departments", departmentH.Create)
	write.PATCH("/departments/:id", departmentH.Update)
	write.DELETE("/departments/:id", departmentH.Delete)

	read.GET("/shifts", shiftH.List)
	read.GET("/shifts/:id", shiftH.Get)
	write.POST("/shifts", shiftH.Create)
	write.POST("/shifts/bulk", shiftH.CreateBulk)
	write.PATCH("/shifts/:id", shiftH.Update)
	write.DELETE("/shifts/:id", shiftH.Delete)

	read.GET("/schedules", scheduleH.List)
	read.GET("/schedules/:id", scheduleH.Get)
	read.GET("/schedules/:id/assignments", assignmentH.BySchedule)
	write.POST("/schedules", scheduleH.Create)
	write.PATCH("/schedules/:id", scheduleH.Update)
	write.DELETE("/schedules/:id", scheduleH.Delete)
	write.POST("/schedules/:id/submit", scheduleH.Submit)
	write.POST("/schedules/:id/approve", scheduleH.Approve)
	write.POST("/schedules/:id/publish", scheduleH.Publish)
	write.POST("/schedules/:id/archive", scheduleH.Archive)
	write.POST("/schedules/:id/assignments", assignmentH.Create)

	read.GET("/assignments", assignmentH.List)
	read.GET("/assignments/:id", assignmentH.Get)
	write.POST("/assignments/bulk", assignmentH.CreateBulk)
	write.PUT("/assignments/:id", assignmentH.Update)
	write.DELETE("/assignments/:id", assignmentH.Delete)
	write.POST("/assignments/:id/confirm", assignmentH.Confirm)
	write.POST("/assignments/:id/decline", assignmentH.Decline)
	write.POST("/assignments/check-conflicts", assignmentH.CheckConflicts)

	read.GET("/rules", ruleH.List)
	read.GET("/rules/:id", ruleH.Get)
	write.POST("/rules/parse", ruleH.Parse)
	write.POST("/rules", ruleH.Create)
	write.PATCH("/rules/:id", ruleH.Update)
	write.DELETE("/rules/:id", ruleH.Delete)

	// Solver runs are writes: they hold the schedule lock and may replace
	// assignment rows.
	write.POST("/schedule/generate", generateH.Generate)
	write.POST("/schedule/optimize", generateH.Optimize)
	write.POST("/schedule/validate", generateH.Validate)

	read.GET("/notifications", notificationH.List)
	read.GET("/notifications/unread-count", notificationH.UnreadCount)
	write.POST("/notifications/:id/read", notificationH.MarkRead)

	read.GET("/cache/stats", cacheH.Stats)

	api.GET("/ws", authed, wsH.Serve)

	return r
}
