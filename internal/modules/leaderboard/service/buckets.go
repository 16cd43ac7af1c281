package service

import (
	"fmt"
	"time"
)

const (
	ScopeDaily   = "daily"
	ScopeWeekly  = "weekly"
	ScopeMonthly = "monthly"
	ScopeAllTime = "alltime"
)

// BucketKey derives the bucket name for a scope from wall-clock now, e.g.
// daily:2025-01-10, weekly:2025-W02, monthly:2025-01, alltime.
func BucketKey(scope string, now time.Time) string {
	switch scope {
	case ScopeDaily:
		return fmt.Sprintf("daily:%s", now.Format("2006-01-02"))
	case ScopeWeekly:
		year, week := now.ISOWeek()
		return fmt.Sprintf("weekly:%d-W%02d", year, week)
	case ScopeMonthly:
		return fmt.Sprintf("monthly:%s", now.Format("2006-01"))
	default:
		return ScopeAllTime
	}
}

// AllBucketKeys returns the four bucket names every grant lands in.
func AllBucketKeys(now time.Time) []string {
	return []string{
		BucketKey(ScopeDaily, now),
		BucketKey(ScopeWeekly, now),
		BucketKey(ScopeMonthly, now),
		BucketKey(ScopeAllTime, now),
	}
}

// ValidScope reports whether scope names a known leaderboard timeframe.
func ValidScope(scope string) bool {
	switch scope {
	case ScopeDaily, ScopeWeekly, ScopeMonthly, ScopeAllTime:
		return true
	}
	return false
}
