package router

import (
	"context"
	"time"

	"tillshift/internal/config"
	"tillshift/internal/handler"
	"tillshift/internal/infra"
	"tillshift/internal/middleware"
	"tillshift/internal/model"
	"tillshift/internal/repository"
	"tillshift/internal/service"
	"tillshift/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
// ctx bounds the background purge of the rate limiters.
func New(ctx context.Context, cfg *config.Config, db *gorm.DB, rdb *redis.Client, salesCB *infra.CircuitBreaker) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	apiLimiter := middleware.NewRateLimiter(1000, time.Minute) // per IP
	loginLimiter := middleware.NewRateLimiter(10, time.Minute)
	writeLimiter := middleware.NewRateLimiter(60, time.Minute) // per operator
	for _, l := range []*middleware.RateLimiter{apiLimiter, loginLimiter, writeLimiter} {
		l.StartPurge(ctx)
	}

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.ErrorHandler())
	r.Use(apiLimiter.ByIP())

	// ── Repositories ─────────────────────────────────────────────────────────
	shiftRepo := repository.NewShiftRepository(db)
	tillRepo := repository.NewTillRepository(db)
	operatorRepo := repository.NewOperatorRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	opts := service.ShiftServiceOptions{
		Cache:        infra.NewActiveShiftCache(rdb),
		Dispatcher:   worker.NewDispatcher(rdb),
		Location:     cfg.Location(),
		StoreTimeout: cfg.StoreTimeout(),
		Thresholds: service.VarianceThresholds{
			WarnPct:     decimal.NewFromFloat(cfg.VarianceWarnPct),
			CriticalPct: decimal.NewFromFloat(cfg.VarianceCriticalPct),
		},
	}
	if cfg.SalesServiceURL != "" && salesCB != nil {
		opts.CashSource = infra.NewSalesClient(cfg.SalesServiceURL, salesCB)
	}
	shiftSvc := service.NewShiftService(shiftRepo, tillRepo, opts)
	tillSvc := service.NewTillService(tillRepo)
	authSvc := service.NewAuthService(operatorRepo, cfg)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	shiftsH := handler.NewShiftsHandler(shiftSvc)
	tillsH := handler.NewTillsHandler(tillSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, salesCB))

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", loginLimiter.ByIP(), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	anyRole := middleware.RequireRole(model.RoleCashier, model.RoleSupervisor, model.RoleAdmin)
	managers := middleware.RequireRole(model.RoleSupervisor, model.RoleAdmin)

	v1 := r.Group("/v1", jwtMW)
	{
		shifts := v1.Group("/shifts", anyRole)
		{
			shifts.POST("", writeLimiter.ByOperator(), shiftsH.Start)
			// static paths before /:id
			shifts.GET("/active", shiftsH.Active)
			shifts.GET("/mine", shiftsH.Mine)
			shifts.GET("/exists", shiftsH.Exists)
			shifts.GET("/open", managers, shiftsH.Open)
			shifts.GET("/history", managers, shiftsH.History)
			shifts.GET("/:id", shiftsH.Get)
			shifts.POST("/:id/close", writeLimiter.ByOperator(), shiftsH.Close)
		}

		v1.GET("/outlets/:outlet_id/tills", anyRole, tillsH.ListForOutlet)
	}

	// Swagger UI, only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
