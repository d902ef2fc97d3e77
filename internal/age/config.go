// Package age classifies scanned files into age buckets and ranks
// directories whose entire contents have gone cold.
package age

import "time"

// Bucket names a contiguous age range, identified by the largest age it
// accepts. Buckets are evaluated in order; a file falls into the first
// bucket whose MaxAge exceeds its age.
type Bucket struct {
	Name   string
	MaxAge time.Duration
}

// unboundedAge marks a bucket with no upper limit ("Older").
const unboundedAge = time.Duration(1<<63 - 1)

// DefaultBuckets returns the five buckets from the canonical
// classification scenario: Today, This Week, This Month, This Year,
// Older.
func DefaultBuckets() []Bucket {
	return []Bucket{
		{Name: "Today", MaxAge: 24 * time.Hour},
		{Name: "This Week", MaxAge: 7 * 24 * time.Hour},
		{Name: "This Month", MaxAge: 30 * 24 * time.Hour},
		{Name: "This Year", MaxAge: 365 * 24 * time.Hour},
		{Name: "Older", MaxAge: unboundedAge},
	}
}

// unknownBucketName labels files with no known modification time.
const unknownBucketName = "Unknown"

// Config controls age classification.
type Config struct {
	Buckets        []Bucket
	StaleThreshold time.Duration
	MinStaleSize   uint64
	MaxStaleDirs   int
	// ReferenceTime anchors age computation; zero means "now", captured
	// once at the start of Analyze for reproducibility within one report.
	ReferenceTime time.Time
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		Buckets:        DefaultBuckets(),
		StaleThreshold: 180 * 24 * time.Hour,
		MinStaleSize:   10 * 1024 * 1024,
		MaxStaleDirs:   20,
	}
}
