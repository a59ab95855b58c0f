package measure

import "time"

// Measure keeps one metric per kind of server call.
type Measure interface {
	AddMetric(name string) Metric
	GetMetric(name string) Metric
	AllMetrics() map[string]Metric
}

// Metric aggregates the durations of one kind of server call.
type Metric interface {
	// AddDuration records the round trip of a successful call.
	AddDuration(elapsed time.Duration)
	// AddServerDuration records the processing time reported by the server.
	AddServerDuration(elapsed time.Duration)
	// AddFailure records a failed call.
	AddFailure(elapsed time.Duration)
	AVGDuration() time.Duration
	AVGServerDuration() time.Duration
	LastServerDuration() time.Duration
	Total() int64
	Failures() int64
}
