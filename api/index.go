package handler

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"

	"taskboard-backend/pkg/config"
	"taskboard-backend/pkg/database"
	"taskboard-backend/pkg/handlers"
	customMiddleware "taskboard-backend/pkg/middleware"
	"taskboard-backend/pkg/services"
	"taskboard-backend/pkg/utils"
)

// maxBodyBytes 请求体上限
const maxBodyBytes = 1 << 20

// Deps 路由依赖
type Deps struct {
	Config *config.Config
	DB     database.Store
	Log    *logrus.Logger
	// LimiterStore is shared across routers so warm invocations keep their counters.
	LimiterStore limiter.Store
}

// NewRouter 组装Chi路由器
func NewRouter(deps Deps) (http.Handler, error) {
	cfg := deps.Config
	jwtService := utils.NewJWTService(cfg.JWTSecret, cfg.JWTTTL)
	svc := services.New(deps.DB, deps.Log, utils.NewBcryptHasher(0), jwtService)

	router := chi.NewRouter()
	if err := setupMiddleware(router, deps); err != nil {
		return nil, err
	}
	setupRoutes(router, deps, svc, jwtService)
	return router, nil
}

// setupMiddleware 设置全局中间件
func setupMiddleware(router *chi.Mux, deps Deps) error {
	cfg := deps.Config

	// 基础中间件
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(customMiddleware.Logger(deps.Log))
	router.Use(customMiddleware.Recovery(deps.Log, cfg.IsDevelopment()))

	// CORS中间件
	router.Use(customMiddleware.CORS(cfg.AllowedOrigins))

	if cfg.RateLimitEnabled {
		rl := customMiddleware.RateLimitConfig{
			Rate:     cfg.RateLimitRate,
			Storage:  cfg.RateLimitStorage,
			RedisURL: cfg.RateLimitRedisURL,
		}
		store := deps.LimiterStore
		if store == nil {
			store = customMiddleware.NewLimiterStore(rl, deps.Log)
		}
		limit, err := customMiddleware.RateLimit(rl, store, deps.Log)
		if err != nil {
			return err
		}
		router.Use(limit)
	}

	// 超时中间件（Vercel函数有时间限制）
	router.Use(middleware.Timeout(25 * time.Second))
	router.Use(customMiddleware.MaxBodySize(maxBodyBytes))
	router.Use(customMiddleware.ContentTypeJSON)

	// 开发环境额外中间件
	if cfg.IsDevelopment() {
		router.Use(middleware.Heartbeat("/ping"))
	}
	return nil
}

// setupRoutes 设置所有API路由
func setupRoutes(router *chi.Mux, deps Deps, svc *services.Service, tokens customMiddleware.TokenValidator) {
	cfg := deps.Config
	log := deps.Log

	healthHandler := handlers.NewHealthHandler(deps.DB, cfg.Environment, cfg.DatabaseDriver)
	orgsHandler := handlers.NewOrgsHandler(svc, log)
	authHandler := handlers.NewAuthHandler(svc, log)
	usersHandler := handlers.NewUsersHandler(svc, log)
	tasksHandler := handlers.NewTasksHandler(svc, log)
	queriesHandler := handlers.NewQueriesHandler(svc, log)

	// 健康检查端点
	router.Get("/", healthHandler.HealthCheck)

	if cfg.MetricsEnabled {
		router.Handle(cfg.MetricsPath, promhttp.Handler())
	}
	if cfg.IsDevelopment() {
		router.Get("/debug/db-pool", healthHandler.PoolStats)
	}

	router.Route("/api", func(r chi.Router) {
		// 公开路由（不需要认证）
		r.Post("/orgs/register", orgsHandler.Register)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
		})

		// 需要认证的路由
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.AuthMiddleware(tokens, log))

			r.Delete("/orgs/{orgID}", orgsHandler.Delete)

			r.Route("/users", func(r chi.Router) {
				r.Get("/me", usersHandler.GetProfile)
				r.Put("/me", usersHandler.UpdateProfile)
				r.Put("/me/password", usersHandler.ChangePassword)
				r.Delete("/me", usersHandler.DeleteOwnAccount)

				r.Get("/members", usersHandler.ListMembers)
				r.Post("/members", usersHandler.CreateMember)
				r.Put("/members/{userID}", usersHandler.UpdateMember)
				r.Delete("/members/{userID}", usersHandler.RemoveMember)

				r.Get("/all", usersHandler.ListAll)
				r.Post("/", usersHandler.Create)
				r.Put("/{userID}", usersHandler.Update)
				r.Delete("/{userID}", usersHandler.Delete)
			})

			r.Route("/tasks", func(r chi.Router) {
				r.Post("/", tasksHandler.Create)
				r.Get("/managed", tasksHandler.ListManaged)
				r.Get("/my", tasksHandler.ListAssigned)
				r.Get("/{taskID}", tasksHandler.Get)
				r.Put("/{taskID}", tasksHandler.Update)
				r.Patch("/{taskID}/status", tasksHandler.UpdateStatus)
				r.Delete("/{taskID}", tasksHandler.Delete)

				r.Post("/{taskID}/queries", queriesHandler.Raise)
				r.Get("/{taskID}/queries", queriesHandler.ListForTask)
			})

			r.Route("/queries/{queryID}", func(r chi.Router) {
				r.Post("/responses", queriesHandler.AddResponse)
				r.Get("/responses", queriesHandler.ListResponses)
				r.Patch("/responses/{responseID}", queriesHandler.EditResponse)
				r.Delete("/responses/{responseID}", queriesHandler.DeleteResponse)
				r.Patch("/resolve", queriesHandler.Resolve)
				r.Delete("/", queriesHandler.Delete)
			})
		})
	})

	// 404处理
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteError(w, utils.CodeNotFound, fmt.Sprintf("Route not found: %s %s", r.Method, r.URL.Path), "")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteError(w, utils.CodeMethodNotAllowed, fmt.Sprintf("Method not allowed: %s %s", r.Method, r.URL.Path), "")
	})
}

// DatabaseConfigFrom maps the process config onto the store config.
func DatabaseConfigFrom(cfg *config.Config) database.DatabaseConfig {
	return database.DatabaseConfig{
		Driver:      cfg.DatabaseDriver,
		PostgresDSN: cfg.PostgresDSN,
		SQLitePath:  cfg.SQLitePath,
		AutoMigrate: cfg.AutoMigrate,
	}
}

// 热启动之间复用的路由器
var (
	routerMu     sync.Mutex
	cachedRouter http.Handler
	cachedDB     database.Store
	limiterStore limiter.Store
	logger       *logrus.Logger
)

// Handler 是Vercel函数的入口点
// 这个函数实现了"单体路由模式"，将所有API端点集中在一个Chi路由器中管理
func Handler(w http.ResponseWriter, r *http.Request) {
	// 加载配置
	cfg, err := config.GetCached()
	if err != nil {
		utils.WriteError(w, utils.CodeInternal, "Configuration error", err.Error())
		return
	}
	if err := cfg.Validate(); err != nil {
		utils.WriteError(w, utils.CodeInternal, "Configuration error", err.Error())
		return
	}

	router, err := routerFor(r, cfg)
	if err != nil {
		utils.WriteError(w, utils.CodeInternal, "Initialization failed", "")
		return
	}
	router.ServeHTTP(w, r)
}

// routerFor rebuilds the router only when the pooled store was replaced.
func routerFor(r *http.Request, cfg *config.Config) (http.Handler, error) {
	routerMu.Lock()
	defer routerMu.Unlock()

	if logger == nil {
		logger = cfg.NewLogger()
	}
	db, err := database.GetDatabase(r.Context(), DatabaseConfigFrom(cfg), logger)
	if err != nil {
		logger.WithError(err).Error("database unavailable")
		return nil, err
	}
	if cachedRouter != nil && db == cachedDB {
		return cachedRouter, nil
	}

	if limiterStore == nil && cfg.RateLimitEnabled {
		limiterStore = customMiddleware.NewLimiterStore(customMiddleware.RateLimitConfig{
			Storage:  cfg.RateLimitStorage,
			RedisURL: cfg.RateLimitRedisURL,
		}, logger)
	}
	router, err := NewRouter(Deps{Config: cfg, DB: db, Log: logger, LimiterStore: limiterStore})
	if err != nil {
		logger.WithError(err).Error("router setup failed")
		return nil, err
	}
	cachedRouter, cachedDB = router, db
	return router, nil
}
