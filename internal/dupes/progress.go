package dupes

import (
	"sync"
	"time"
)

// Progress reports duplicate-detection progress across all three phases.
type Progress struct {
	Phase          string // "size", "partial", "full"
	FilesAnalyzed  int64
	GroupsFound    int64
	BytesHashed    int64
	Done           bool
	StartTime      time.Time
	Duration       time.Duration
}

// progressHub is the same lossy-intermediate/guaranteed-terminal
// broadcaster used by internal/scanner, reimplemented here rather than
// shared across packages to keep each engine's progress type independent.
type progressHub struct {
	mu   sync.Mutex
	subs []chan Progress
}

func newProgressHub() *progressHub { return &progressHub{} }

func (h *progressHub) Subscribe() <-chan Progress {
	ch := make(chan Progress, 4)
	h.mu.Lock()
	h.subs = append(h.subs, ch)
	h.mu.Unlock()
	return ch
}

func (h *progressHub) Publish(p Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- p:
		default:
		}
	}
}

func (h *progressHub) Finish(p Progress) {
	p.Done = true
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		ch <- p
		close(ch)
	}
	h.subs = nil
}
