package mediahttp

import (
	"sync"
	"testing"
)

func TestProgressTrackerConcurrentAdds(t *testing.T) {
	var last int64
	monotonic := true
	tracker := NewProgressTracker(5000, func(done, total int64) {
		if done < last {
			monotonic = false
		}
		last = done
	})

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				tracker.Add(1)
				tracker.Add(-5)
			}
		}()
	}
	wg.Wait()

	state := tracker.Snapshot()
	if state.Transferred != 5000 {
		t.Errorf("Expected 5000 bytes, got %d", state.Transferred)
	}
	if state.Total != 5000 {
		t.Errorf("Expected total 5000, got %d", state.Total)
	}
	if !monotonic {
		t.Error("Expected observer to see a non-decreasing count")
	}
}

func TestProgressTrackerSetTotal(t *testing.T) {
	tracker := NewProgressTracker(0, nil)
	tracker.SetTotal(10)
	tracker.SetTotal(20)
	if got := tracker.Snapshot().Total; got != 10 {
		t.Errorf("Expected first known total to stick, got %d", got)
	}
}
