package cache

import (
	"context"
	"strings"
	"time"

	"bridgewatch/internal/domain"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryReports is the in-process report cache used when Redis is not configured.
type MemoryReports struct {
	items *gocache.Cache
}

func NewMemoryReports(ttl time.Duration) *MemoryReports {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &MemoryReports{items: gocache.New(ttl, 2*ttl)}
}

func (c *MemoryReports) GetReport(_ context.Context, bridge string) (domain.Report, bool) {
	value, ok := c.items.Get(strings.ToLower(bridge))
	if !ok {
		return domain.Report{}, false
	}
	report, ok := value.(domain.Report)
	return report, ok
}

func (c *MemoryReports) SetReport(_ context.Context, report domain.Report) {
	c.items.SetDefault(strings.ToLower(report.Bridge), report)
}

func (c *MemoryReports) Invalidate(context.Context) error {
	c.items.Flush()
	return nil
}
