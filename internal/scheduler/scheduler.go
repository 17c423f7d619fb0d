package scheduler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/mediafetch/internal/output"
	"github.com/tanq16/mediafetch/internal/utils"
)

const batchLabel = "Downloads"

// Downloader is the single-file engine the scheduler fans requests out to.
type Downloader interface {
	Download(ctx context.Context, req utils.DownloadRequest, onProgress func(done, total int64)) utils.DownloadOutcome
}

// Scheduler runs many downloads over a fixed pool of workers.
type Scheduler struct {
	downloader Downloader
	workers    int
	sink       output.Sink
}

func New(downloader Downloader, workers int, sink output.Sink) *Scheduler {
	if sink == nil {
		sink = output.Discard
	}
	return &Scheduler{downloader: downloader, workers: max(workers, 1), sink: sink}
}

type indexedRequest struct {
	index int
	req   utils.DownloadRequest
}

// DownloadAll returns one outcome per request, in request order, regardless
// of completion order. Once ctx is done, requests not yet started resolve to
// an outcome carrying the context error.
func (s *Scheduler) DownloadAll(ctx context.Context, requests []utils.DownloadRequest) []utils.DownloadOutcome {
	outcomes := make([]utils.DownloadOutcome, len(requests))
	if len(requests) == 0 {
		return outcomes
	}

	jobCh := make(chan indexedRequest, len(requests))
	for i, req := range requests {
		jobCh <- indexedRequest{index: i, req: req}
	}
	close(jobCh)

	var finished int
	var mu sync.Mutex
	s.sink.BatchProgress(batchLabel, 0, len(requests))

	var wg sync.WaitGroup
	for i := range min(s.workers, len(requests)) {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for job := range jobCh {
				outcomes[job.index] = s.process(ctx, job.req)
				mu.Lock()
				finished++
				s.sink.BatchProgress(batchLabel, finished, len(requests))
				mu.Unlock()
			}
			log.Debug().Str("op", "scheduler").Msgf("Worker %d drained the queue", workerID)
		}(i)
	}
	wg.Wait()
	return outcomes
}

func (s *Scheduler) process(ctx context.Context, req utils.DownloadRequest) utils.DownloadOutcome {
	name := filepath.Base(req.OutputPath())
	id := s.sink.RegisterFunction(name)
	if err := ctx.Err(); err != nil {
		s.sink.ReportError(id, err)
		return utils.DownloadOutcome{Request: req, Err: err}
	}
	s.sink.SetMessage(id, fmt.Sprintf("Downloading %s", name))

	var lastDraw time.Time
	outcome := s.downloader.Download(ctx, req, func(done, total int64) {
		// called under the tracker lock; throttle redraws
		if now := time.Now(); now.Sub(lastDraw) >= 100*time.Millisecond || (total > 0 && done >= total) {
			lastDraw = now
			s.sink.AddProgressBarToStream(id, done, total, progressText(done, total))
		}
	})

	switch {
	case outcome.Err != nil:
		s.sink.ReportError(id, outcome.Err)
	case outcome.Cached:
		s.sink.Complete(id, fmt.Sprintf("Cached %s", name))
	default:
		s.sink.Complete(id, fmt.Sprintf("Completed %s (%s)", name, utils.FormatBytes(uint64(outcome.Bytes))))
	}
	return outcome
}

func progressText(done, total int64) string {
	if total <= 0 {
		return utils.FormatBytes(uint64(done))
	}
	return fmt.Sprintf("%s / %s", utils.FormatBytes(uint64(min(done, total))), utils.FormatBytes(uint64(total)))
}

// Summary condenses a batch for reporting and exit codes.
type Summary struct {
	Total     int
	Succeeded int
	Cached    int
	Failed    int
	Failures  []utils.DownloadOutcome
}

// Summarize counts outcomes. Cached outcomes are also counted as succeeded.
func Summarize(outcomes []utils.DownloadOutcome) Summary {
	summary := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		if o.Err != nil {
			summary.Failed++
			summary.Failures = append(summary.Failures, o)
			continue
		}
		summary.Succeeded++
		if o.Cached {
			summary.Cached++
		}
	}
	return summary
}

func (s Summary) Err() error {
	if s.Failed == 0 {
		return nil
	}
	errs := make([]error, 0, len(s.Failures))
	for _, o := range s.Failures {
		errs = append(errs, fmt.Errorf("%s: %w", o.Request.URL, o.Err))
	}
	return fmt.Errorf("%d of %d downloads failed: %w", s.Failed, s.Total, errors.Join(errs...))
}
