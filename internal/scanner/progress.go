package scanner

import (
	"sync"
	"time"
)

// Progress reports scanning progress. Fields are monotonic
// non-decreasing across a single scan (spec §5).
type Progress struct {
	CurrentPath  string
	FilesScanned int64
	DirsScanned  int64
	BytesScanned int64
	Errors       int64
	Done         bool
	StartTime    time.Time
	Duration     time.Duration
}

// progressHub is a multi-subscriber broadcaster: slow subscribers may
// miss intermediate snapshots (non-blocking send, buffered channel with
// drop-when-full), but the terminal snapshot is always delivered — it is
// sent with a blocking send to every still-open subscriber, per spec
// §4.1 ("the terminal snapshot... is guaranteed") and the design note
// modeling this as "a bounded ring buffer with a dedicated final slot".
type progressHub struct {
	mu   sync.Mutex
	subs []chan Progress
}

func newProgressHub() *progressHub {
	return &progressHub{}
}

// Subscribe returns a new receiver channel. The hub closes it once the
// terminal snapshot has been delivered.
func (h *progressHub) Subscribe() <-chan Progress {
	ch := make(chan Progress, 4)
	h.mu.Lock()
	h.subs = append(h.subs, ch)
	h.mu.Unlock()
	return ch
}

// Publish sends an intermediate snapshot to every subscriber, dropping it
// for any subscriber whose buffer is full.
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

// Finish delivers the terminal snapshot to every subscriber (blocking, so
// it is never dropped) and closes every subscriber channel.
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

// ItemsPerSecond returns the scan rate for the snapshot.
func (p Progress) ItemsPerSecond() float64 {
	if p.Duration.Seconds() == 0 {
		return 0
	}
	return float64(p.FilesScanned+p.DirsScanned) / p.Duration.Seconds()
}
