package database

import (
	"sync"
	"time"

	"teamhub-backend/pkg/config"
)

// databasePool caches one live backend per process so warm requests
// reuse the connection instead of reopening it.
type databasePool struct {
	instance DatabaseInterface
	dsn      string
	path     string
	mu       sync.RWMutex
	lastUsed time.Time
}

var (
	globalPool *databasePool
	poolMutex  sync.Mutex
)

// GetDatabase returns the shared database, creating or replacing it
// when the configuration changed or the connection went stale.
func GetDatabase(cfg *config.Config) (DatabaseInterface, error) {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool != nil && !shouldRecreate(globalPool, cfg) {
		globalPool.mu.Lock()
		globalPool.lastUsed = time.Now()
		globalPool.mu.Unlock()
		return globalPool.instance, nil
	}

	if globalPool != nil && globalPool.instance != nil {
		globalPool.instance.Close()
	}

	instance, err := NewDatabase(cfg)
	if err != nil {
		return nil, err
	}
	globalPool = &databasePool{
		instance: instance,
		dsn:      cfg.PostgresDSN,
		path:     cfg.SQLitePath,
		lastUsed: time.Now(),
	}
	return instance, nil
}

func shouldRecreate(pool *databasePool, cfg *config.Config) bool {
	if pool.instance == nil {
		return true
	}
	if pool.dsn != cfg.PostgresDSN || pool.path != cfg.SQLitePath {
		return true
	}

	pool.mu.RLock()
	expired := time.Since(pool.lastUsed) > 30*time.Minute
	pool.mu.RUnlock()
	if expired {
		return true
	}

	return pool.instance.HealthCheck() != nil
}
