package timeutil

import (
	"sort"
	"time"
)

// NowUTC 返回当前 UTC 时间
func NowUTC() time.Time {
	return time.Now().UTC()
}

// FormatISO8601 格式化为 RFC3339 (2025-10-03T06:45:21Z)
func FormatISO8601(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// FormatDate YYYY-MM-DD，结算批次以 UTC 日期命名
func FormatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ParseDate 解析 UTC 日期
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, time.UTC)
}

// StartOfDay UTC 零点
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// normalizeDays 去重排序，丢弃非法日期（1-28 之外的日子有的月份不存在）
func normalizeDays(days []int) []int {
	seen := make(map[int]bool, len(days))
	out := make([]int, 0, len(days))
	for _, d := range days {
		if d < 1 || d > 28 || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	if len(out) == 0 {
		out = []int{1, 15}
	}
	sort.Ints(out)
	return out
}

// IsPayoutWindow t 是否落在打款日（UTC）
func IsPayoutWindow(t time.Time, days []int) bool {
	day := t.UTC().Day()
	for _, d := range normalizeDays(days) {
		if d == day {
			return true
		}
	}
	return false
}

// NextPayoutWindow 返回严格晚于 t 的下一个打款日零点（UTC）
func NextPayoutWindow(t time.Time, days []int) time.Time {
	days = normalizeDays(days)
	start := StartOfDay(t)
	for _, d := range days {
		candidate := time.Date(start.Year(), start.Month(), d, 0, 0, 0, 0, time.UTC)
		if candidate.After(t) {
			return candidate
		}
	}
	next := time.Date(start.Year(), start.Month()+1, days[0], 0, 0, 0, 0, time.UTC)
	return next
}

// CurrentPayoutWindow 返回不晚于 t 的最近一个打款日零点，作为批次的 window 标识
func CurrentPayoutWindow(t time.Time, days []int) time.Time {
	days = normalizeDays(days)
	start := StartOfDay(t)
	for i := len(days) - 1; i >= 0; i-- {
		candidate := time.Date(start.Year(), start.Month(), days[i], 0, 0, 0, 0, time.UTC)
		if !candidate.After(start) {
			return candidate
		}
	}
	return time.Date(start.Year(), start.Month()-1, days[len(days)-1], 0, 0, 0, 0, time.UTC)
}
