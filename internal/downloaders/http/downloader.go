package mediahttp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/mediafetch/internal/utils"
)

type Config struct {
	Connections int
	Retries     int
	RetryDelay  time.Duration
	BufferSize  int
	UseCache    bool
	CheckSpace  bool
}

// Downloader fetches single files over a shared HTTP client. It is safe for
// concurrent use by several batch workers.
type Downloader struct {
	client utils.HTTPDoer
	cfg    Config
}

func NewDownloader(client utils.HTTPDoer, cfg Config) *Downloader {
	if cfg.Connections <= 0 {
		cfg.Connections = 4
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = utils.DefaultRetryDelay
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = utils.DefaultBufferSize
	}
	return &Downloader{client: client, cfg: cfg}
}

func (d *Downloader) retrier(label string) utils.Retrier {
	r := utils.NewRetrier(d.cfg.Retries, d.cfg.RetryDelay)
	r.OnRetry = func(attempt int, err error) {
		log.Debug().Str("op", "http/downloader").Err(err).Msgf("Retrying %s after attempt %d", label, attempt)
	}
	return r
}

// Download runs one request to a terminal outcome. onProgress receives the
// cumulative byte count and the expected total (0 when unknown); it may be nil.
func (d *Downloader) Download(ctx context.Context, req utils.DownloadRequest, onProgress func(done, total int64)) utils.DownloadOutcome {
	start := time.Now()
	outputPath := req.OutputPath()
	outcome := utils.DownloadOutcome{Request: req}
	finish := func() utils.DownloadOutcome {
		outcome.Duration = time.Since(start)
		if outcome.Err != nil {
			log.Debug().Str("op", "http/downloader").Err(outcome.Err).Msgf("Download of %s failed", req.URL)
		}
		return outcome
	}

	if d.cfg.UseCache && utils.FileExists(outputPath) {
		outcome.Cached = true
		outcome.Mode = utils.ModeCached
		outcome.FinalPath = outputPath
		outcome.Bytes = fileSize(outputPath)
		log.Info().Str("op", "http/downloader").Msgf("Using cached file %s", outputPath)
		return finish()
	}
	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			outcome.Err = fmt.Errorf("error creating output directory: %w", err)
			return finish()
		}
	}

	probe := d.Probe(ctx, req.URL)
	tracker := NewProgressTracker(probe.TotalSize, onProgress)
	segmented := ShouldSegment(req, probe)
	if need := requiredSpace(probe.TotalSize, segmented); d.cfg.CheckSpace && need > 0 {
		if err := utils.EnsureFreeSpace(filepath.Dir(outputPath), need); err != nil {
			outcome.Err = err
			return finish()
		}
	}

	var err error
	if segmented {
		outcome.Mode = utils.ModeSegmented
		outcome.Bytes, err = d.segmentedDownload(ctx, req.URL, outputPath, probe.TotalSize, req.SegmentSize, tracker)
	} else {
		outcome.Mode = utils.ModeDirect
		outcome.Bytes, err = d.directDownload(ctx, req.URL, outputPath, tracker)
	}
	if err != nil {
		outcome.Err = err
		return finish()
	}
	outcome.FinalPath = outputPath
	log.Info().Str("op", "http/downloader").Msgf("Downloaded %s (%s, %s)", outputPath, utils.FormatBytes(uint64(outcome.Bytes)), outcome.Mode)
	return finish()
}

// requiredSpace is the disk a download needs at its peak. Segmented mode holds
// the parts and the assembled file at the same time.
func requiredSpace(totalSize int64, segmented bool) int64 {
	if segmented {
		return 2 * totalSize
	}
	return totalSize
}
