package utils

import (
	"context"
	"fmt"
	"time"

	"mkt-settle-api/internal/logger"
)

// DoWithRetry 失败后按固定间隔重试，ctx 取消时立即返回
func DoWithRetry(ctx context.Context, maxRetries int, interval time.Duration, fn func() error) error {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		logger.Biz().WithError(err).WithField("attempt", fmt.Sprintf("%d/%d", attempt, maxRetries)).Warn("retry")
		if attempt == maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		case <-time.After(interval):
		}
	}
	return err
}
