package mediahttp

import (
	"sync"

	"github.com/tanq16/mediafetch/internal/utils"
)

// ProgressTracker is the byte counter shared by every fetch of one file.
// The observer runs under the lock and must not block.
type ProgressTracker struct {
	mu          sync.Mutex
	transferred int64
	total       int64
	onUpdate    func(done, total int64)
}

func NewProgressTracker(total int64, onUpdate func(done, total int64)) *ProgressTracker {
	return &ProgressTracker{total: max(total, 0), onUpdate: onUpdate}
}

func (p *ProgressTracker) Add(n int64) {
	if n <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transferred += n
	if p.onUpdate != nil {
		p.onUpdate(p.transferred, p.total)
	}
}

// SetTotal fills in a size learned after the probe. A known total is kept.
func (p *ProgressTracker) SetTotal(total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.total == 0 && total > 0 {
		p.total = total
	}
}

func (p *ProgressTracker) Snapshot() utils.ProgressState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return utils.ProgressState{Transferred: p.transferred, Total: p.total}
}
