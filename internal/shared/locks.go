package shared

import "fmt"

// InterestBatchLockKey builds redis keys for interest batch runs. Day-book
// transitions serialize on a Postgres advisory lock instead, so no redis
// key exists for them.
func InterestBatchLockKey(tenantID string, date BSDate) string {
	return fmt.Sprintf("cbs:interest:%s:%s:lock", tenantID, date)
}
