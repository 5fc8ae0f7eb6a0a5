package handlers

import (
	"net/http"
	"time"

	"taskboard-backend/pkg/database"
	"taskboard-backend/pkg/utils"
)

const serviceName = "taskboard-backend"

type HealthHandler struct {
	db          database.Store
	environment string
	driver      string
}

func NewHealthHandler(db database.Store, environment, driver string) *HealthHandler {
	if driver == "" {
		driver = database.DriverMemory
	}
	return &HealthHandler{db: db, environment: environment, driver: driver}
}

// HealthCheck 健康检查
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	dbStatus := "healthy"
	if err := h.db.HealthCheck(r.Context()); err != nil {
		dbStatus = "unhealthy: " + err.Error()
		status = "degraded"
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"service":     serviceName,
		"version":     "1.0.0",
		"environment": h.environment,
		"database":    h.driver,
		"db_status":   dbStatus,
		"timestamp":   time.Now().Unix(),
		"status":      status,
	})
}

// PoolStats 数据库连接池状态（调试用）
func (h *HealthHandler) PoolStats(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccessResponse(w, database.GetConnectionStats())
}
