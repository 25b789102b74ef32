package models

import "time"

// SystemMetrics is a point-in-time summary of instrumentation counters.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	Admissions               uint64    `json:"admissions"`
	Rejections               uint64    `json:"rejections"`
	EmailsSent               uint64    `json:"emails_sent"`
	EmailsFailed             uint64    `json:"emails_failed"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
