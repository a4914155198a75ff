package rediskey

import (
	"fmt"
	"strings"

	"mkt-settle-api/internal/config"
)

func prefix() string {
	if name := strings.TrimSpace(config.C.Project.Name); name != "" {
		return name
	}
	return "mkt-settle"
}

// FeeConfigKey 费率版本缓存
func FeeConfigKey(version int) string {
	return fmt.Sprintf("%s:fee:config:%d", prefix(), version)
}

// BatchSubmitLockKey 批次提交分布式锁
func BatchSubmitLockKey(batchID uint64) string {
	return fmt.Sprintf("%s:payout:batch:lock:%d", prefix(), batchID)
}

// TransferFailCounterKey 每日转账失败计数
func TransferFailCounterKey(date string) string {
	return fmt.Sprintf("%s:payout:fail:%s", prefix(), date)
}

// TransferHealthKey 转账渠道成功率
func TransferHealthKey(provider string) string {
	return fmt.Sprintf("%s:transfer:success_rate:%s", prefix(), provider)
}
