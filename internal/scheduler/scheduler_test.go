package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tanq16/mediafetch/internal/output"
	"github.com/tanq16/mediafetch/internal/utils"
)

type fakeDownloader struct {
	active    atomic.Int32
	peak      atomic.Int32
	started   atomic.Int32
	failURL   string
	onStarted func()
}

func (f *fakeDownloader) Download(ctx context.Context, req utils.DownloadRequest, onProgress func(done, total int64)) utils.DownloadOutcome {
	f.started.Add(1)
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	if f.onStarted != nil {
		f.onStarted()
	}
	time.Sleep(time.Duration(rand.IntN(15)) * time.Millisecond)
	onProgress(10, 10)
	if req.URL == f.failURL {
		return utils.DownloadOutcome{Request: req, Err: errors.New("boom")}
	}
	return utils.DownloadOutcome{Request: req, FinalPath: req.OutputPath(), Mode: utils.ModeDirect, Bytes: 10}
}

type recordingSink struct {
	mu      sync.Mutex
	batches []int
	errors  int
	next    int
}

func (r *recordingSink) RegisterFunction(string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	return r.next
}
func (r *recordingSink) SetMessage(int, string)                           {}
func (r *recordingSink) AddProgressBarToStream(int, int64, int64, string) {}
func (r *recordingSink) Complete(int, string)                             {}
func (r *recordingSink) ReportError(int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors++
}
func (r *recordingSink) BatchProgress(_ string, done, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, done)
}

func requests(n int) []utils.DownloadRequest {
	reqs := make([]utils.DownloadRequest, n)
	for i := range reqs {
		reqs[i] = utils.DownloadRequest{URL: fmt.Sprintf("http://example.com/file%d.bin", i), OutputDir: "out"}
	}
	return reqs
}

func TestDownloadAllPreservesOrder(t *testing.T) {
	reqs := requests(20)
	fake := &fakeDownloader{failURL: reqs[7].URL}
	sink := &recordingSink{}
	outcomes := New(fake, 4, sink).DownloadAll(context.Background(), reqs)

	if len(outcomes) != len(reqs) {
		t.Fatalf("Expected %d outcomes, got %d", len(reqs), len(outcomes))
	}
	for i, o := range outcomes {
		if o.Request.URL != reqs[i].URL {
			t.Errorf("Expected outcome %d to belong to %s, got %s", i, reqs[i].URL, o.Request.URL)
		}
		if (i == 7) != (o.Err != nil) {
			t.Errorf("Unexpected error state for outcome %d: %v", i, o.Err)
		}
	}
	if peak := fake.peak.Load(); peak > 4 {
		t.Errorf("Expected at most 4 concurrent downloads, got %d", peak)
	}
	if sink.errors != 1 {
		t.Errorf("Expected 1 reported error, got %d", sink.errors)
	}
	if last := sink.batches[len(sink.batches)-1]; last != 20 {
		t.Errorf("Expected batch progress to end at 20, got %d", last)
	}
}

func TestDownloadAllEmpty(t *testing.T) {
	outcomes := New(&fakeDownloader{}, 3, nil).DownloadAll(context.Background(), nil)
	if len(outcomes) != 0 {
		t.Errorf("Expected no outcomes, got %d", len(outcomes))
	}
}

func TestDownloadAllCancellation(t *testing.T) {
	reqs := requests(10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fake := &fakeDownloader{}
	fake.onStarted = cancel
	outcomes := New(fake, 1, output.Discard).DownloadAll(ctx, reqs)

	if started := fake.started.Load(); started != 1 {
		t.Errorf("Expected only the first download to start, got %d", started)
	}
	if outcomes[0].Err != nil {
		t.Errorf("Expected in-flight download to finish, got %v", outcomes[0].Err)
	}
	for i, o := range outcomes[1:] {
		if !errors.Is(o.Err, context.Canceled) {
			t.Errorf("Expected outcome %d to be cancelled, got %v", i+1, o.Err)
		}
		if o.Request.URL != reqs[i+1].URL {
			t.Errorf("Expected cancelled outcome %d to keep its request", i+1)
		}
	}
}

func TestSummarize(t *testing.T) {
	outcomes := []utils.DownloadOutcome{
		{Request: utils.DownloadRequest{URL: "a"}},
		{Request: utils.DownloadRequest{URL: "b"}, Cached: true},
		{Request: utils.DownloadRequest{URL: "c"}, Err: errors.New("nope")},
	}
	summary := Summarize(outcomes)
	if summary.Total != 3 || summary.Succeeded != 2 || summary.Cached != 1 || summary.Failed != 1 {
		t.Errorf("Unexpected summary %+v", summary)
	}
	if err := summary.Err(); err == nil {
		t.Error("Expected an aggregated error")
	}
	if err := Summarize(outcomes[:2]).Err(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}
