package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rosterly/rosterd/config"
	"github.com/rosterly/rosterd/internal/auth"
	"github.com/rosterly/rosterd/internal/broadcast"
	"github.com/rosterly/rosterd/internal/cache"
	"github.com/rosterly/rosterd/internal/email"
	"github.com/rosterly/rosterd/internal/health"
	"github.com/rosterly/rosterd/internal/infrastructure/postgres"
	"github.com/rosterly/rosterd/internal/locks"
	ctxlog "github.com/rosterly/rosterd/internal/log"
	"github.com/rosterly/rosterd/internal/metrics"
	"github.com/rosterly/rosterd/internal/rules"
	"github.com/rosterly/rosterd/internal/solver"
	"github.com/rosterly/rosterd/internal/sweeper"
	httptransport "github.com/rosterly/rosterd/internal/transport/http"
	"github.com/rosterly/rosterd/internal/usecase"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		stop()
		log.Fatalf("schema: %v", err)
	}
	go postgres.WatchPool(ctx, pool)

	redisURL := ""
	if cfg.CacheEnabled {
		redisURL = cfg.RedisURL
	}
	caches := cache.NewCaches(ctx, redisURL, logger)
	defer caches.Close()

	employeeRepo := postgres.NewEmployeeRepository(pool)
	departmentRepo := postgres.NewDepartmentRepository(pool)
	shiftRepo := postgres.NewShiftRepository(pool)
	scheduleRepo := postgres.NewScheduleRepository(pool)
	assignmentRepo := postgres.NewAssignmentRepository(pool)
	notificationRepo := postgres.NewNotificationRepository(pool)
	ruleRepo := postgres.NewRuleRepository(pool)
	tokenRepo := postgres.NewTokenRepository(pool)

	tm := auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL(), cfg.RefreshTokenTTL())
	revoked := auth.NewRevocationSet()
	defer revoked.Close()

	hub := broadcast.NewHub(cfg.ReplayBufferSize, logger)
	defer hub.Close()

	keyed := locks.NewKeyed()
	solverPool := solver.NewPool(cfg.SolverWorkers, cfg.SolverQueueWait())
	sender := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)
	parser := rules.NewParser(rules.DefaultSynonyms())

	authUC := usecase.NewAuthUsecase(employeeRepo, tokenRepo, tm, revoked, caches, sender, cfg.LockoutThreshold, logger)
	employeeUC := usecase.NewEmployeeUsecase(employeeRepo, departmentRepo, caches, logger)
	departmentUC := usecase.NewDepartmentUsecase(departmentRepo, caches, logger)
	shiftUC := usecase.NewShiftUsecase(shiftRepo, departmentRepo, caches, logger)
	scheduleUC := usecase.NewScheduleUsecase(scheduleRepo, assignmentRepo, notificationRepo, hub, caches, logger)
	assignmentUC := usecase.NewAssignmentUsecase(assignmentRepo, scheduleRepo, shiftRepo, employeeRepo,
		notificationRepo, hub, caches, keyed, cfg.ConfirmWindow(), logger)
	ruleUC := usecase.NewRuleUsecase(ruleRepo, employeeRepo, parser, logger)
	generateUC := usecase.NewGenerateUsecase(scheduleRepo, shiftRepo, employeeRepo, ruleRepo,
		assignmentRepo, solverPool, hub, cfg.SolverTimeBudget(), logger)
	notificationUC := usecase.NewNotificationUsecase(notificationRepo, caches, logger)

	confirmWindow := time.Duration(0)
	if cfg.ConfirmAuto {
		confirmWindow = cfg.ConfirmWindow()
	}
	sw := sweeper.New(assignmentRepo, notificationRepo, tokenRepo, hub,
		sweeper.Config{ConfirmWindow: confirmWindow}, logger)
	if err := sw.Start(); err != nil {
		stop()
		log.Fatalf("sweeper: %v", err)
	}
	defer sw.Stop()

	loginLimiter := auth.NewRateLimiter(auth.LimiterClass{PerMinute: cfg.RateLoginPerMin})
	writeLimiter := auth.NewRateLimiter(auth.LimiterClass{PerMinute: cfg.RateWritePerMin})
	readLimiter := auth.NewRateLimiter(auth.LimiterClass{PerMinute: cfg.RateReadPerMin})
	defer loginLimiter.Close()
	defer writeLimiter.Close()
	defer readLimiter.Close()

	metrics.Register()
	checker := health.NewChecker(pool, caches, logger, prometheus.DefaultRegisterer)

	router := httptransport.NewRouter(httptransport.Deps{
		Auth:          authUC,
		Employees:     employeeUC,
		Departments:   departmentUC,
		Shifts:        shiftUC,
		Schedules:     scheduleUC,
		Assignments:   assignmentUC,
		Rules:         ruleUC,
		Generate:      generateUC,
		Notifications: notificationUC,
		TokenManager:  tm,
		Revoked:       revoked,
		Caches:        caches,
		Hub:           hub,
		Production:    cfg.Production(),
		CORSOrigins:   cfg.AllowedOrigins(),
		LoginLimiter:  loginLimiter,
		WriteLimiter:  writeLimiter,
		ReadLimiter:   readLimiter,
		Logger:        logger,
	})

	srv := http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("server started", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
