package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"bridgewatch/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	reportVersionKey = "bridgewatch:reports:version"
	reportKeyPrefix  = "bridgewatch:reports:v"
	defaultTTL       = 5 * time.Minute
)

// RedisReports caches the latest report per bridge. Keys embed a version
// counter so Invalidate drops every cached report with one INCR.
type RedisReports struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisReports(addr string, ttl time.Duration) (*RedisReports, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, errors.New("redis addr is required")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisReports{client: client, ttl: ttl}, nil
}

func (c *RedisReports) GetReport(ctx context.Context, bridge string) (domain.Report, bool) {
	version, ok := c.version(ctx)
	if !ok {
		return domain.Report{}, false
	}
	cached, err := c.client.Get(ctx, reportKey(version, bridge)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Debug("report cache read failed", "bridge", bridge, "err", err)
		}
		return domain.Report{}, false
	}
	var report domain.Report
	if err := json.Unmarshal([]byte(cached), &report); err != nil {
		return domain.Report{}, false
	}
	return report, true
}

func (c *RedisReports) SetReport(ctx context.Context, report domain.Report) {
	version, ok := c.version(ctx)
	if !ok {
		return
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, reportKey(version, report.Bridge), payload, c.ttl).Err(); err != nil {
		slog.Debug("report cache write failed", "bridge", report.Bridge, "err", err)
	}
}

// Invalidate makes every cached report unreachable.
func (c *RedisReports) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, reportVersionKey).Err()
}

func (c *RedisReports) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisReports) Close() error {
	return c.client.Close()
}

func (c *RedisReports) version(ctx context.Context) (string, bool) {
	version, err := c.client.Get(ctx, reportVersionKey).Result()
	if err == nil {
		return version, true
	}
	if errors.Is(err, redis.Nil) {
		return "0", true
	}
	return "", false
}

func reportKey(version, bridge string) string {
	return reportKeyPrefix + version + ":bridge=" + strings.ToLower(bridge)
}
