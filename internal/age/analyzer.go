// Classification shape grounded on internal/model's sort-by-field
// pattern (model/sort.go): stale-directory ranking uses a
// size-descending, natural-name-ascending order like the one the scanner
// applies to sibling nodes (without the scanner's case folding), here
// applied to a flattened candidate list instead of Node.Children.
package age

import (
	"sort"
	"time"

	"github.com/maruel/natural"

	"github.com/sadopc/diskaudit/internal/model"
)

// Analyzer runs one age-classification pass. Stateless: safe to reuse
// across calls, unlike Scanner/Finder which are single-use (an analysis
// pass touches no shared mutable state across goroutines).
type Analyzer struct{}

// New creates an Analyzer.
func New() *Analyzer { return &Analyzer{} }

// Analyze classifies every file in tree into an age bucket and ranks
// stale directories. Total; never fails.
func (a *Analyzer) Analyze(tree *model.Tree, cfg Config) *AgeReport {
	ref := cfg.ReferenceTime
	if ref.IsZero() {
		ref = time.Now()
	}
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = DefaultBuckets()
	}

	bucketCounts := make([]BucketStats, len(buckets))
	for i, b := range buckets {
		bucketCounts[i].Name = b.Name
	}
	var unknown BucketStats
	unknown.Name = unknownBucketName

	var totalFiles int
	var totalSize uint64
	var weightedAgeSum float64
	var knownSizeSum uint64

	type fileAge struct {
		age  time.Duration
		size uint64
	}
	var knownAges []fileAge

	for _, f := range model.Files(tree.Root) {
		totalFiles++
		totalSize += f.Size

		if f.Timestamps.Modified == nil {
			unknown.FileCount++
			unknown.TotalSize += f.Size
			continue
		}

		fileAgeVal := ref.Sub(*f.Timestamps.Modified)
		if fileAgeVal < 0 {
			fileAgeVal = 0
		}

		idx := classify(buckets, fileAgeVal)
		bucketCounts[idx].FileCount++
		bucketCounts[idx].TotalSize += f.Size

		weightedAgeSum += float64(fileAgeVal) * float64(f.Size)
		knownSizeSum += f.Size
		knownAges = append(knownAges, fileAge{age: fileAgeVal, size: f.Size})
	}

	result := make([]BucketStats, 0, len(bucketCounts)+1)
	result = append(result, bucketCounts...)
	if unknown.FileCount > 0 {
		result = append(result, unknown)
	}

	var averageAge time.Duration
	if knownSizeSum > 0 {
		averageAge = time.Duration(weightedAgeSum / float64(knownSizeSum))
	}

	var median string
	if len(knownAges) > 0 {
		sort.Slice(knownAges, func(i, j int) bool { return knownAges[i].age < knownAges[j].age })
		mid := knownAges[len(knownAges)/2]
		median = buckets[classify(buckets, mid.age)].Name
	}

	stale := a.findStaleDirectories(tree, ref, cfg)

	return &AgeReport{
		Buckets:          result,
		StaleDirectories: stale,
		TotalFiles:       totalFiles,
		TotalSize:        totalSize,
		AverageAge:       averageAge,
		MedianAgeBucket:  median,
	}
}

// classify returns the index of the first bucket whose MaxAge exceeds
// fileAge.
func classify(buckets []Bucket, fileAge time.Duration) int {
	for i, b := range buckets {
		if b.MaxAge > fileAge {
			return i
		}
	}
	return len(buckets) - 1
}

type dirAggregate struct {
	node          *model.Node
	fileCount     int
	size          uint64
	newestAge     time.Duration
	allKnownStale bool
}

func (a *Analyzer) findStaleDirectories(tree *model.Tree, ref time.Time, cfg Config) []StaleDirectory {
	var aggregates []dirAggregate
	computeDirAges(tree.Root, ref, cfg.StaleThreshold, &aggregates)

	candidates := make([]dirAggregate, 0, len(aggregates))
	for _, agg := range aggregates {
		if agg.fileCount == 0 || !agg.allKnownStale {
			continue
		}
		if agg.size < cfg.MinStaleSize {
			continue
		}
		candidates = append(candidates, agg)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].size != candidates[j].size {
			return candidates[i].size > candidates[j].size
		}
		return natural.Less(candidates[i].node.Name, candidates[j].node.Name)
	})

	if cfg.MaxStaleDirs > 0 && len(candidates) > cfg.MaxStaleDirs {
		candidates = candidates[:cfg.MaxStaleDirs]
	}

	result := make([]StaleDirectory, len(candidates))
	for i, c := range candidates {
		result[i] = StaleDirectory{
			Path:          c.node.Path(),
			Size:          c.size,
			FileCount:     c.fileCount,
			NewestFileAge: c.newestAge,
		}
	}
	return result
}

// computeDirAges performs a single post-order pass over n's subtree,
// appending one dirAggregate per directory node to out. A directory
// containing any file with unknown modification time can never be
// stale — there is no way to confirm its age is above the threshold.
func computeDirAges(n *model.Node, ref time.Time, threshold time.Duration, out *[]dirAggregate) dirAggregate {
	agg := dirAggregate{node: n, newestAge: unboundedAge, allKnownStale: true}

	for _, c := range n.Children {
		switch c.Kind {
		case model.KindFile:
			if c.Timestamps.Modified == nil {
				agg.allKnownStale = false
				agg.fileCount++
				agg.size += c.Size
				continue
			}
			fileAgeVal := ref.Sub(*c.Timestamps.Modified)
			if fileAgeVal < 0 {
				fileAgeVal = 0
			}
			agg.fileCount++
			agg.size += c.Size
			if fileAgeVal < agg.newestAge {
				agg.newestAge = fileAgeVal
			}
			if fileAgeVal < threshold {
				agg.allKnownStale = false
			}
		case model.KindDirectory:
			child := computeDirAges(c, ref, threshold, out)
			agg.fileCount += child.fileCount
			agg.size += child.size
			if child.fileCount > 0 && child.newestAge < agg.newestAge {
				agg.newestAge = child.newestAge
			}
			if !child.allKnownStale {
				agg.allKnownStale = false
			}
		}
	}

	*out = append(*out, agg)
	return agg
}
