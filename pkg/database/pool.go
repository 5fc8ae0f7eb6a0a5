package database

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// idleRecycleAfter is how long an unused SQL pool is kept before GetDatabase
// replaces it. In-memory stores are never recycled since that would drop their data.
const idleRecycleAfter = 30 * time.Minute

// DatabasePool 数据库连接池
type DatabasePool struct {
	instance Store
	config   DatabaseConfig
	mu       sync.RWMutex
	lastUsed time.Time
}

var (
	globalPool *DatabasePool
	poolMutex  sync.Mutex
)

// GetDatabase 获取数据库连接（单例模式 + 连接池）
func GetDatabase(ctx context.Context, config DatabaseConfig, log logrus.FieldLogger) (Store, error) {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool != nil && !shouldRecreateConnection(ctx, globalPool, config, log) {
		globalPool.mu.Lock()
		globalPool.lastUsed = time.Now()
		globalPool.mu.Unlock()
		log.Debug("reusing existing database connection")
		return globalPool.instance, nil
	}

	log.WithField("driver", config.Driver).Info("creating new database connection pool")
	if globalPool != nil && globalPool.instance != nil {
		_ = globalPool.instance.Close()
		globalPool = nil
	}

	instance, err := NewDatabase(ctx, config)
	if err != nil {
		return nil, err
	}
	if m, ok := instance.(interface{ Migrate(context.Context) error }); ok && config.AutoMigrate {
		if err := m.Migrate(ctx); err != nil {
			_ = instance.Close()
			return nil, err
		}
	}

	globalPool = &DatabasePool{
		instance: instance,
		config:   config,
		lastUsed: time.Now(),
	}
	return instance, nil
}

// shouldRecreateConnection 判断是否需要重新创建连接
func shouldRecreateConnection(ctx context.Context, pool *DatabasePool, newConfig DatabaseConfig, log logrus.FieldLogger) bool {
	if pool == nil || pool.instance == nil {
		return true
	}

	if pool.config != newConfig {
		log.Info("database configuration changed, recreating connection")
		return true
	}

	if _, isMemory := pool.instance.(*MemoryStore); isMemory {
		return false
	}

	pool.mu.RLock()
	expired := time.Since(pool.lastUsed) > idleRecycleAfter
	pool.mu.RUnlock()
	if expired {
		log.Info("database connection idle too long, recreating")
		return true
	}

	if err := pool.instance.HealthCheck(ctx); err != nil {
		log.WithError(err).Warn("database health check failed, recreating")
		return true
	}
	return false
}

// ResetDatabase closes and forgets the shared store.
func ResetDatabase() {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool != nil && globalPool.instance != nil {
		_ = globalPool.instance.Close()
	}
	globalPool = nil
}

// GetConnectionStats 获取连接池统计信息
func GetConnectionStats() map[string]interface{} {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool == nil {
		return map[string]interface{}{
			"status":    "no_connection",
			"last_used": nil,
		}
	}

	globalPool.mu.RLock()
	lastUsed := globalPool.lastUsed
	globalPool.mu.RUnlock()

	return map[string]interface{}{
		"status":    "connected",
		"driver":    globalPool.config.Driver,
		"last_used": lastUsed.Format(time.RFC3339),
		"age":       time.Since(lastUsed).String(),
	}
}
