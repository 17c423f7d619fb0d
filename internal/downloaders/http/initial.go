package mediahttp

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/mediafetch/internal/utils"
)

// Probe issues a HEAD request for size and range support. Any failure
// degrades to an unknown size without range support, which forces a direct
// download.
func (d *Downloader) Probe(ctx context.Context, link string) utils.ProbeResult {
	result, err := d.probe(ctx, link)
	if err != nil {
		perr := &ProbeError{URL: link, Err: err}
		log.Warn().Str("op", "http/initial").Err(perr).Msg("Probe failed, falling back to direct download")
		return utils.ProbeResult{}
	}
	log.Debug().Str("op", "http/initial").Msgf("Probe for %s: size=%d ranges=%t", link, result.TotalSize, result.RangeSupported)
	return result
}

func (d *Downloader) probe(ctx context.Context, link string) (utils.ProbeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, link, nil)
	if err != nil {
		return utils.ProbeResult{}, fmt.Errorf("error creating HEAD request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return utils.ProbeResult{}, fmt.Errorf("error executing HEAD request: %w", err)
	}
	defer resp.Body.Close()
	if err := utils.CheckStatus(resp, http.StatusOK); err != nil {
		return utils.ProbeResult{}, err
	}
	var size int64
	if contentLength := resp.Header.Get("Content-Length"); contentLength != "" {
		size, err = strconv.ParseInt(contentLength, 10, 64)
		if err != nil {
			return utils.ProbeResult{}, fmt.Errorf("invalid Content-Length %q: %w", contentLength, err)
		}
	} else if resp.ContentLength > 0 {
		size = resp.ContentLength
	}
	rangeSupported := strings.EqualFold(strings.TrimSpace(resp.Header.Get("Accept-Ranges")), "bytes")
	if !rangeSupported {
		log.Debug().Str("op", "http/initial").Err(utils.ErrRangeRequestsNotSupported).Msg(link)
	}
	return utils.ProbeResult{TotalSize: max(size, 0), RangeSupported: rangeSupported}, nil
}

// ShouldSegment reports whether req is fetched in ranges given its probe.
func ShouldSegment(req utils.DownloadRequest, probe utils.ProbeResult) bool {
	return req.Segmenting &&
		probe.RangeSupported &&
		probe.TotalSize > 0 &&
		req.SegmentSize > 0 &&
		probe.TotalSize >= req.SegmentSize
}

// PlanSegments splits [0, totalSize) into contiguous ranges of segmentSize;
// the last range may be shorter.
func PlanSegments(totalSize, segmentSize int64, outputPath string) []utils.Segment {
	if totalSize <= 0 || segmentSize <= 0 {
		return nil
	}
	segments := make([]utils.Segment, 0, (totalSize+segmentSize-1)/segmentSize)
	for start := int64(0); start < totalSize; start += segmentSize {
		index := len(segments)
		segments = append(segments, utils.Segment{
			Index:    index,
			Start:    start,
			End:      min(start+segmentSize, totalSize) - 1,
			TempPath: utils.PartPath(outputPath, index),
			Status:   utils.SegmentPending,
		})
	}
	return segments
}
