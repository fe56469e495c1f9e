package daybook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sahakari/sahakari-cbs/internal/shared"
)

// ReportCache keeps generated EOD reports in Redis. A closed day's ledger
// is immutable, so a plain TTL entry is sufficient.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReportCache instantiates the cache helper.
func NewReportCache(client *redis.Client, ttl time.Duration) *ReportCache {
	return &ReportCache{client: client, ttl: ttl}
}

// Load returns the cached report when present.
func (c *ReportCache) Load(ctx context.Context, tenantID string, date shared.BSDate) (EODReport, bool) {
	if c == nil || c.client == nil {
		return EODReport{}, false
	}
	payload, err := c.client.Get(ctx, reportKey(tenantID, date)).Bytes()
	if err != nil {
		return EODReport{}, false
	}
	var report EODReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return EODReport{}, false
	}
	return report, true
}

// Store persists a report. Failures are ignored by callers; the report is
// derived data and can always be regenerated.
func (c *ReportCache) Store(ctx context.Context, report EODReport) error {
	if c == nil || c.client == nil {
		return nil
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, reportKey(report.TenantID, report.Date), payload, c.ttl).Err()
}

func reportKey(tenantID string, date shared.BSDate) string {
	return fmt.Sprintf("cbs:eod:%s:%s", tenantID, date)
}
