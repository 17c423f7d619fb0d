package mediahttp

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/mediafetch/internal/utils"
)

// directDownload streams the whole resource into <output>.part and renames it
// into place once the body is complete. Retries resume from the bytes on disk
// when the server honours ranges.
func (d *Downloader) directDownload(ctx context.Context, link, outputPath string, tracker *ProgressTracker) (int64, error) {
	tempPath := utils.DirectPartPath(outputPath)
	tracker.Add(fileSize(tempPath))

	retrier := d.retrier("direct download")
	attempts, err := retrier.Do(ctx, func(int) error {
		return d.directAttempt(ctx, link, tempPath, tracker)
	})
	if err != nil {
		return 0, &FetchError{Index: -1, URL: link, Attempts: attempts, Err: err}
	}

	size := fileSize(tempPath)
	if err := os.Rename(tempPath, outputPath); err != nil {
		return 0, fmt.Errorf("error renaming (finalizing) output file: %w", err)
	}
	log.Debug().Str("op", "http/simple-downloader").Msgf("Direct download of %s finished with %d bytes", outputPath, size)
	return size, nil
}

func (d *Downloader) directAttempt(ctx context.Context, link, tempPath string, tracker *ProgressTracker) error {
	resumeOffset := fileSize(tempPath)
	if resumeOffset > 0 && resumeOffset == tracker.Snapshot().Total {
		log.Debug().Str("op", "http/simple-downloader").Msgf("%s already holds all %d bytes", tempPath, resumeOffset)
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return utils.Permanent(fmt.Errorf("error creating request: %w", err))
	}
	if resumeOffset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", resumeOffset))
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("error executing request: %w", err)
	}
	defer resp.Body.Close()

	flag := os.O_WRONLY | os.O_CREATE
	switch {
	case resumeOffset > 0 && resp.StatusCode == http.StatusPartialContent:
		flag |= os.O_APPEND
		log.Debug().Str("op", "http/simple-downloader").Msgf("Resuming %s at byte %d", tempPath, resumeOffset)
	case resumeOffset > 0 && resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		if unsatisfiedRangeSize(resp) == resumeOffset {
			log.Debug().Str("op", "http/simple-downloader").Msgf("%s already holds all %d bytes", tempPath, resumeOffset)
			return nil
		}
		// the partial no longer matches the resource; start over
		os.Remove(tempPath)
		return fmt.Errorf("resume offset %d rejected by server", resumeOffset)
	default:
		if err := utils.CheckStatus(resp, http.StatusOK); err != nil {
			return err
		}
		flag |= os.O_TRUNC
		resumeOffset = 0
		if resp.ContentLength > 0 {
			tracker.SetTotal(resp.ContentLength)
		}
	}

	outFile, err := os.OpenFile(tempPath, flag, 0644)
	if err != nil {
		return utils.Permanent(fmt.Errorf("error opening output file: %w", err))
	}
	defer outFile.Close()

	written, err := d.copyBody(outFile, resp.Body, tracker)
	if err != nil {
		return err
	}
	if resp.ContentLength >= 0 && written != resp.ContentLength {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", resp.ContentLength, written)
	}
	if err := outFile.Sync(); err != nil {
		return utils.Permanent(fmt.Errorf("error flushing output file: %w", err))
	}
	return nil
}

// unsatisfiedRangeSize reads N from a 416 "Content-Range: bytes */N", or -1.
func unsatisfiedRangeSize(resp *http.Response) int64 {
	var size int64
	if _, err := fmt.Sscanf(resp.Header.Get("Content-Range"), "bytes */%d", &size); err != nil {
		return -1
	}
	return size
}
