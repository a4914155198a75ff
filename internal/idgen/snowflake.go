package idgen

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/snowflake"

	"mkt-settle-api/internal/logger"
)

var node atomic.Pointer[snowflake.Node]

// InitNode nodeID 0-1023，多实例部署时必须互不相同
func InitNode(nodeID int64) error {
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		return fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	node.Store(n)
	return nil
}

// New 销售、分账、提现、批次主键
func New() uint64 {
	n := node.Load()
	if n == nil {
		panic("idgen: snowflake node not initialized")
	}
	return uint64(n.Generate().Int64())
}

// BatchNo 打款批次号 PB20260315-<id>，日期取 UTC
func BatchNo(t time.Time, id uint64) string {
	return fmt.Sprintf("PB%s-%d", t.UTC().Format("20060102"), id)
}

// WatchClock 时间回拨检测。snowflake 回拨期间会生成重复 ID，检测到直接退出进程
func WatchClock(ctx context.Context) {
	last := time.Now().UnixMilli()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			current := now.UnixMilli()
			if current < last {
				logger.Biz().Fatalf("system clock moved backward: last=%d now=%d", last, current)
			}
			last = current
		}
	}
}
