// Phase structure grounded on ivoronin-dupedog's screener (size/sibling
// grouping) and verifier (worker-pool progressive hashing), collapsed
// from dupedog's open-ended chunk state machine into the two fixed
// stages (partial, full) this pipeline's config calls for.
package dupes

import (
	"context"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/edsrzf/mmap-go"
	"github.com/zeebo/blake3"

	"github.com/sadopc/diskaudit/internal/model"
	"github.com/sadopc/diskaudit/internal/util"
)

// mmapThreshold is the file size at or above which phase 3 uses a memory-mapped
// read instead of a buffered stream.
const mmapThreshold = 128 * 1024

// streamBlockSize matches dupedog's blockSize read-buffer constant.
const streamBlockSize = 64 * 1024

// Finder runs one duplicate-detection pass. Single-use: create with New,
// call Find once.
type Finder struct {
	hub *progressHub
}

// New creates a Finder.
func New() *Finder {
	return &Finder{hub: newProgressHub()}
}

// Subscribe returns a broadcast receiver of Progress snapshots.
func (f *Finder) Subscribe() <-chan Progress {
	return f.hub.Subscribe()
}

// digestGroup is a set of candidates sharing one digest, carried between
// phases so the final full-content digest never needs recomputing.
type digestGroup struct {
	digest []byte
	files  []candidate
}

// Find runs the three-phase pipeline against tree and returns a total
// report: unreadable candidate files are dropped with a warning, never a
// fatal error.
func (f *Finder) Find(ctx context.Context, tree *model.Tree, cfg Config) (*DuplicateReport, error) {
	start := time.Now()
	state := &findState{cfg: cfg, startTime: start}

	buckets := phase1SizeBuckets(tree, cfg)
	state.filesAnalyzed = candidatesCount(buckets)

	groups := bucketsToGroups(buckets)
	if cfg.QuickCompare {
		partial := state.runPhase(ctx, f.hub, "partial", groups, func(c candidate) ([]byte, error) {
			return partialHash(c.path, cfg.PartialHeadBytes, cfg.PartialTailBytes)
		})
		groups = make([][]candidate, len(partial))
		for i, g := range partial {
			groups[i] = g.files
		}
	}

	full := state.runPhase(ctx, f.hub, "full", groups, func(c candidate) ([]byte, error) {
		return fullHash(c.path)
	})

	report := buildReport(full, cfg, state.filesAnalyzed, state.warnings)
	f.hub.Finish(Progress{
		Phase:         "full",
		FilesAnalyzed: int64(state.filesAnalyzed),
		GroupsFound:   int64(len(report.Groups)),
		StartTime:     start,
		Duration:      time.Since(start),
	})

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

type findState struct {
	cfg           Config
	startTime     time.Time
	filesAnalyzed int

	warnMu   sync.Mutex
	warnings []model.ScanWarning
}

func (s *findState) warn(path string, err error) {
	s.warnMu.Lock()
	s.warnings = append(s.warnings, model.ScanWarning{Kind: model.WarnReadError, Path: path, Message: err.Error()})
	s.warnMu.Unlock()
}

// phase1SizeBuckets walks the already-built tree (not the filesystem) and
// buckets surviving files by exact size. Buckets with fewer than two
// entries are discarded — they cannot be duplicates.
func phase1SizeBuckets(tree *model.Tree, cfg Config) map[uint64][]candidate {
	buckets := make(map[uint64][]candidate)
	model.Walk(tree.Root, func(n *model.Node) bool {
		if n.Kind != model.KindFile {
			return true
		}
		if n.Size < cfg.MinSize {
			return true
		}
		if cfg.MaxSize != nil && n.Size > *cfg.MaxSize {
			return true
		}
		if util.MatchAny(cfg.ExcludeGlobs, n.Name) {
			return true
		}
		if n.Inode != nil && n.Size == 0 && n.RawSize != 0 {
			return true // a further link to an inode already counted
		}
		buckets[n.Size] = append(buckets[n.Size], candidate{node: n, path: n.Path()})
		return true
	})
	for size, files := range buckets {
		if len(files) < 2 {
			delete(buckets, size)
		}
	}
	return buckets
}

func candidatesCount(buckets map[uint64][]candidate) int {
	n := 0
	for _, files := range buckets {
		n += len(files)
	}
	return n
}

func bucketsToGroups(buckets map[uint64][]candidate) [][]candidate {
	groups := make([][]candidate, 0, len(buckets))
	for _, files := range buckets {
		groups = append(groups, files)
	}
	return groups
}

// runPhase hashes every candidate in every input group on a fixed worker
// pool, regroups survivors by digest within their original group, and
// discards singleton digests. Grounded on the verifier's
// jobCh/resultsCh/pending-WaitGroup shape, simplified to a single stage
// since this pipeline has no further sub-ranges to spawn per job.
func (s *findState) runPhase(ctx context.Context, hub *progressHub, phase string, groups [][]candidate, hashFn func(candidate) ([]byte, error)) []digestGroup {
	jobCh := make(chan []candidate, len(groups))
	for _, g := range groups {
		jobCh <- g
	}
	close(jobCh)

	resultsCh := make(chan digestGroup, len(groups))

	var wg sync.WaitGroup
	var progressMu sync.Mutex
	var analyzed, hashed int64
	var lastPublish time.Time
	workers := s.cfg.workers()
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for group := range jobCh {
				select {
				case <-ctx.Done():
					continue
				default:
				}

				byDigest := make(map[string]*digestGroup)
				var groupHashed int64
				for _, c := range group {
					digest, err := hashFn(c)
					if err != nil {
						s.warn(c.path, err)
						continue
					}
					groupHashed++
					key := hex.EncodeToString(digest)
					dg, ok := byDigest[key]
					if !ok {
						dg = &digestGroup{digest: digest}
						byDigest[key] = dg
					}
					dg.files = append(dg.files, c)
				}
				progressMu.Lock()
				analyzed += int64(len(group))
				hashed += groupHashed
				if time.Since(lastPublish) >= s.cfg.ProgressEvery {
					lastPublish = time.Now()
					hub.Publish(Progress{Phase: phase, FilesAnalyzed: analyzed, BytesHashed: hashed, StartTime: s.startTime, Duration: time.Since(s.startTime)})
				}
				progressMu.Unlock()

				for _, dg := range byDigest {
					if len(dg.files) >= 2 {
						resultsCh <- *dg
					}
				}
			}
		}()
	}
	wg.Wait()
	close(resultsCh)

	out := make([]digestGroup, 0, len(groups))
	for r := range resultsCh {
		out = append(out, r)
	}
	return out
}

// partialHash hashes the head+tail probe window for path, or the whole
// file if it is smaller than head+tail combined.
func partialHash(path string, head, tail int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()

	h := blake3.New()
	if size <= int64(head+tail) {
		if _, err := io.Copy(h, f); err != nil {
			return nil, err
		}
		return h.Sum(nil), nil
	}

	headBuf := make([]byte, head)
	if _, err := io.ReadFull(f, headBuf); err != nil {
		return nil, err
	}
	h.Write(headBuf)

	if _, err := f.Seek(-int64(tail), io.SeekEnd); err != nil {
		return nil, err
	}
	tailBuf := make([]byte, tail)
	if _, err := io.ReadFull(f, tailBuf); err != nil {
		return nil, err
	}
	h.Write(tailBuf)

	return h.Sum(nil), nil
}

// fullHash computes the full-content BLAKE3 digest of path, using a
// memory-mapped read for files at or above mmapThreshold and a buffered
// stream below it.
func fullHash(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	h := blake3.New()
	if info.Size() == 0 {
		return h.Sum(nil), nil
	}
	if info.Size() >= mmapThreshold {
		return fullHashMmap(f, h)
	}
	return fullHashStream(f, h)
}

func fullHashMmap(f *os.File, h hash.Hash) ([]byte, error) {
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return fullHashStream(f, h)
	}
	defer m.Unmap()
	if _, err := h.Write(m); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

func fullHashStream(f *os.File, h hash.Hash) ([]byte, error) {
	buf := make([]byte, streamBlockSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

func buildReport(groups []digestGroup, cfg Config, filesAnalyzed int, warnings []model.ScanWarning) *DuplicateReport {
	result := make([]DuplicateGroup, 0, len(groups))
	filesWithDup := 0
	var totalDupSize, totalWasted uint64

	for _, dg := range groups {
		paths := make([]string, len(dg.files))
		for i, c := range dg.files {
			paths[i] = c.path
		}
		sort.Strings(paths)

		size := dg.files[0].node.Size
		var ch model.ContentHash
		copy(ch[:], dg.digest)

		wasted := size * uint64(len(paths)-1)
		result = append(result, DuplicateGroup{
			Hash:        ch,
			Size:        size,
			Paths:       paths,
			WastedBytes: wasted,
		})
		filesWithDup += len(paths)
		totalDupSize += size * uint64(len(paths))
		totalWasted += wasted
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].WastedBytes != result[j].WastedBytes {
			return result[i].WastedBytes > result[j].WastedBytes
		}
		return result[i].Hash.Less(result[j].Hash)
	})

	if cfg.MaxGroups != nil && len(result) > *cfg.MaxGroups {
		result = result[:*cfg.MaxGroups]
	}

	return &DuplicateReport{
		Groups:              result,
		TotalDuplicateSize:  totalDupSize,
		TotalWastedSpace:    totalWasted,
		FilesAnalyzed:       filesAnalyzed,
		FilesWithDuplicates: filesWithDup,
		GroupCount:          len(result),
		Warnings:            warnings,
	}
}
