package age

import "time"

// BucketStats summarizes one age bucket's contents.
type BucketStats struct {
	Name      string
	FileCount int
	TotalSize uint64
}

// StaleDirectory is a directory whose every file descendant has aged
// past a threshold.
type StaleDirectory struct {
	Path          string
	Size          uint64
	FileCount     int
	NewestFileAge time.Duration
}

// AgeReport is the total result of one age-analysis pass.
type AgeReport struct {
	Buckets          []BucketStats
	StaleDirectories []StaleDirectory
	TotalFiles       int
	TotalSize        uint64
	AverageAge       time.Duration
	MedianAgeBucket  string
}
