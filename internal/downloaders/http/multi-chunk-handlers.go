package mediahttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/mediafetch/internal/utils"
)

// FetchSegment downloads one byte range into seg.TempPath. A part file left
// by an earlier attempt or run is resumed, and a complete one is reused
// without a request. Bytes already on disk are credited to the tracker once,
// so progress never moves backwards across retries.
func (d *Downloader) FetchSegment(ctx context.Context, link string, seg *utils.Segment, tracker *ProgressTracker) error {
	seg.Status = utils.SegmentInFlight
	have := fileSize(seg.TempPath)
	if have > seg.Size() {
		os.Remove(seg.TempPath)
		have = 0
	}
	tracker.Add(have)
	if have == seg.Size() {
		log.Debug().Str("op", "http/multi-chunk").Msgf("Reusing complete part %s", seg.TempPath)
		seg.Status = utils.SegmentSucceeded
		return nil
	}

	retrier := d.retrier(fmt.Sprintf("segment %d", seg.Index))
	attempts, err := retrier.Do(ctx, func(int) error {
		return d.fetchSegmentAttempt(ctx, link, seg, tracker)
	})
	if err != nil {
		seg.Status = utils.SegmentFailed
		return &FetchError{Index: seg.Index, URL: link, Attempts: attempts, Err: err}
	}
	seg.Status = utils.SegmentSucceeded
	return nil
}

func (d *Downloader) fetchSegmentAttempt(ctx context.Context, link string, seg *utils.Segment, tracker *ProgressTracker) error {
	have := fileSize(seg.TempPath)
	if have > seg.Size() {
		// an overlong body from a previous attempt
		if err := os.Remove(seg.TempPath); err != nil {
			return utils.Permanent(fmt.Errorf("error removing corrupt part: %w", err))
		}
		have = 0
	}
	if have == seg.Size() {
		return nil
	}
	start := seg.Start + have

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return utils.Permanent(fmt.Errorf("error creating request: %w", err))
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, seg.End))
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("error executing request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		return utils.Permanent(fmt.Errorf("server returned the full body for a range request: %w", utils.ErrRangeRequestsNotSupported))
	}
	if err := utils.CheckStatus(resp, http.StatusPartialContent); err != nil {
		return err
	}

	flag := os.O_WRONLY | os.O_CREATE
	if have > 0 {
		flag |= os.O_APPEND
	} else {
		flag |= os.O_TRUNC
	}
	partFile, err := os.OpenFile(seg.TempPath, flag, 0644)
	if err != nil {
		return utils.Permanent(fmt.Errorf("error opening part file: %w", err))
	}
	defer partFile.Close()

	expected := seg.End - start + 1
	written, err := d.copyBody(partFile, resp.Body, tracker)
	if err != nil {
		return err
	}
	if written != expected {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expected, written)
	}
	return nil
}

// copyBody streams body into dst, reporting every chunk to the tracker.
// Local write failures are permanent; read failures are retryable.
func (d *Downloader) copyBody(dst io.Writer, body io.Reader, tracker *ProgressTracker) (int64, error) {
	buffer := make([]byte, d.cfg.BufferSize)
	var written int64
	for {
		n, readErr := body.Read(buffer)
		if n > 0 {
			if _, err := dst.Write(buffer[:n]); err != nil {
				return written, utils.Permanent(fmt.Errorf("error writing to output file: %w", err))
			}
			written += int64(n)
			tracker.Add(int64(n))
		}
		if errors.Is(readErr, io.EOF) {
			return written, nil
		}
		if readErr != nil {
			return written, fmt.Errorf("error reading response body: %w", readErr)
		}
	}
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
