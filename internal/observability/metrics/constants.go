// Package metrics provides Prometheus metric families for timekeeper components.
package metrics

// Histogram bucket parameters shared by the metric families.
const (
	// BucketStart1ms is the first exponential bucket (1ms).
	BucketStart1ms = 0.001
	// BucketFactor2 doubles each bucket.
	BucketFactor2 = 2
	// BucketCount12 spans 1ms to ~2s.
	BucketCount12 = 12
	// BucketCount15 spans 1ms to ~16s.
	BucketCount15 = 15
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusPartial = "partial"
)
