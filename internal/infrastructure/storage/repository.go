package storage

import (
	"fmt"
	"log/slog"
	"time"

	"bridgewatch/internal/application"
	"bridgewatch/internal/config"
	"bridgewatch/internal/infrastructure/cache"
	"bridgewatch/internal/infrastructure/mysql"
	"bridgewatch/internal/infrastructure/sqlite"
)

// Open returns the snapshot and report store selected by DB_DRIVER.
func Open(cfg config.Config) (application.Repository, error) {
	switch cfg.DBDriver {
	case "mysql":
		repo, err := mysql.NewRepository(cfg.DBDSN)
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		return repo, nil
	case "sqlite", "":
		repo, err := sqlite.NewRepository(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.DBDriver)
	}
}

// OpenReportCache prefers Redis and falls back to an in-process cache when
// Redis is not configured or cannot be reached.
func OpenReportCache(addr string, ttl time.Duration) application.ReportCache {
	if addr != "" {
		redisCache, err := cache.NewRedisReports(addr, ttl)
		if err == nil {
			return redisCache
		}
		slog.Warn("redis unavailable, using in-memory report cache", "addr", addr, "err", err)
	}
	return cache.NewMemoryReports(ttl)
}
