package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/campus-ops/institute-api/api/swagger"
	"github.com/campus-ops/institute-api/internal/handler"
	"github.com/campus-ops/institute-api/internal/middleware"
	"github.com/campus-ops/institute-api/internal/models"
	"github.com/campus-ops/institute-api/internal/repository"
	"github.com/campus-ops/institute-api/internal/service"
	"github.com/campus-ops/institute-api/pkg/cache"
	"github.com/campus-ops/institute-api/pkg/config"
	"github.com/campus-ops/institute-api/pkg/database"
	"github.com/campus-ops/institute-api/pkg/jobs"
	"github.com/campus-ops/institute-api/pkg/logger"
	corsmiddleware "github.com/campus-ops/institute-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campus-ops/institute-api/pkg/middleware/requestid"
	"github.com/campus-ops/institute-api/pkg/storage"
)

// @title Institute Records API
// @version 1.0.0
// @description Meeting scheduler and workload governance for institutional course records
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	exportStore, err := storage.NewLocalStorage(cfg.Reports.ExportDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	leaveRepo := repository.NewLeaveRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      "institute-api",
	})
	policySvc := service.NewPolicyService(settingRepo, auditRepo, validate, logr, cfg.Scheduling, cfg.Workload)
	schedulerSvc := service.NewSchedulerService(courseRepo, sessionRepo, sessionRepo, leaveRepo, policySvc, auditRepo, metricsSvc, db, validate, logr)
	planSvc := service.NewPlanService(courseRepo, sessionRepo, leaveRepo, policySvc, auditRepo, metricsSvc, db, logr)
	workloadSvc := service.NewWorkloadService(teacherRepo, sessionRepo, policySvc, redisClient, cfg.Workload.CacheTTL, logr)
	analyticsSvc := service.NewAnalyticsService(analyticsRepo, courseRepo, redisClient, cfg.Reports.AnalyticsCacheTTL, logr)
	leaveSvc := service.NewLeaveService(leaveRepo, teacherRepo, auditRepo, validate, logr)
	rosterSvc := service.NewRosterService(teacherRepo, courseRepo, validate, logr)
	sessionSvc := service.NewSessionService(sessionRepo, courseRepo, logr)
	signer := storage.NewSignedURLSigner(cfg.JWT.Secret, cfg.Reports.ExportTTL)
	exportSvc := service.NewExportService(workloadSvc, schedulerSvc, exportStore, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.ExportTTL,
	}, logr, nil, nil)

	refreshQueue := jobs.NewQueue("report-refresh", func(ctx context.Context, job jobs.Job) error {
		weekStart, _ := job.Payload.(string)
		return workloadSvc.Refresh(ctx, weekStart)
	}, jobs.QueueConfig{Workers: 1, Logger: logr})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	refreshQueue.Start(ctx)
	defer refreshQueue.Stop()

	refresher := &workloadRefreshQueue{queue: refreshQueue}

	authHandler := handler.NewAuthHandler(authSvc)
	timetableHandler := handler.NewTimetableHandler(schedulerSvc, refresher)
	sessionHandler := handler.NewSessionHandler(schedulerSvc, sessionSvc, refresher)
	planHandler := handler.NewPlanHandler(planSvc, refresher)
	reportHandler := handler.NewReportHandler(workloadSvc, exportSvc)
	leaveHandler := handler.NewLeaveHandler(leaveSvc)
	settingHandler := handler.NewSettingHandler(policySvc)
	rosterHandler := handler.NewRosterHandler(rosterSvc)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	auditSink := func(c *gin.Context, entry *models.AuditLog) {
		if err := auditRepo.CreateAuditLog(c.Request.Context(), entry); err != nil {
			logr.Sugar().Warnw("failed to persist audit entry", "action", entry.Action, "error", err)
		}
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/exports/:token", middleware.OptionalJWT(authSvc), reportHandler.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	{
		authed.GET("/auth/me", authHandler.Me)

		authed.GET("/teachers", rosterHandler.ListTeachers)
		authed.GET("/teachers/:id", rosterHandler.GetTeacher)
		authed.GET("/teachers/:id/leaves", leaveHandler.ListByTeacher)
		authed.GET("/courses", rosterHandler.ListCourses)
		authed.GET("/courses/:id", rosterHandler.GetCourse)
		authed.GET("/courses/:id/sessions", sessionHandler.List)
		authed.GET("/courses/:id/plan", planHandler.Summary)
		authed.GET("/courses/:id/plan/suggest", planHandler.Suggest)
		authed.GET("/courses/:id/analytics", analyticsHandler.Course)
		authed.GET("/timetable/week", timetableHandler.Week)
		authed.GET("/reports/workload", reportHandler.Workload)
		authed.GET("/reports/workload/export", reportHandler.WorkloadExport)
		authed.GET("/reports/timetable/export", reportHandler.TimetableExport)
		authed.GET("/settings", settingHandler.List)
		authed.GET("/settings/:key", settingHandler.Get)
	}

	staff := api.Group("")
	staff.Use(middleware.JWT(authSvc))
	staff.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar))
	{
		staff.POST("/teachers", rosterHandler.CreateTeacher)
		staff.POST("/courses", rosterHandler.CreateCourse)
		staff.POST("/courses/:id/sessions", sessionHandler.Create)
		staff.DELETE("/sessions/:id", sessionHandler.Delete)
		staff.POST("/courses/:id/plan/apply", planHandler.Apply)
		staff.POST("/timetable/generate", timetableHandler.Generate)
		staff.POST("/leaves", leaveHandler.Create)
		staff.PUT("/leaves/:id/approve",
			middleware.Audit(auditSink, models.AuditActionLeaveApprove, "leave"),
			leaveHandler.Approve)
		staff.DELETE("/leaves/:id", leaveHandler.Delete)
	}

	admin := api.Group("")
	admin.Use(middleware.JWT(authSvc))
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	{
		admin.PUT("/settings/:key", settingHandler.Update)
		admin.PUT("/settings", settingHandler.BulkUpdate)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

// workloadRefreshQueue adapts the jobs queue to the handlers' refresher
// interface. Enqueue failures only cost report freshness, so they are dropped.
type workloadRefreshQueue struct {
	queue *jobs.Queue
}

func (w *workloadRefreshQueue) EnqueueRefresh(weekStart string) {
	_ = w.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "workload_refresh",
		Payload: weekStart,
	})
}
