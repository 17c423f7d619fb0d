package mediahttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/mediafetch/internal/utils"
	"golang.org/x/sync/errgroup"
)

// segmentedDownload fetches every planned range through a pool bounded by
// the connection count, then assembles the parts. Assembly starts only after
// every segment has reached a terminal state.
func (d *Downloader) segmentedDownload(ctx context.Context, link, outputPath string, totalSize, segmentSize int64, tracker *ProgressTracker) (int64, error) {
	segments := PlanSegments(totalSize, segmentSize, outputPath)
	log.Debug().Str("op", "http/multi-down").Msgf("Fetching %s in %d segments with %d connections", outputPath, len(segments), d.cfg.Connections)

	failures := make([]*FetchError, len(segments))
	var g errgroup.Group
	g.SetLimit(d.cfg.Connections)
	for i := range segments {
		seg := &segments[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				seg.Status = utils.SegmentFailed
				failures[i] = &FetchError{Index: seg.Index, URL: link, Err: err}
				return nil
			}
			if err := d.FetchSegment(ctx, link, seg, tracker); err != nil {
				var fetchErr *FetchError
				if !errors.As(err, &fetchErr) {
					fetchErr = &FetchError{Index: seg.Index, URL: link, Err: err}
				}
				failures[i] = fetchErr
			}
			return nil
		})
	}
	g.Wait()

	segErr := &SegmentsError{URL: link}
	for _, f := range failures {
		if f != nil {
			segErr.Failures = append(segErr.Failures, f)
		}
	}
	if len(segErr.Failures) > 0 {
		log.Debug().Str("op", "http/multi-down").Msgf("Segments %v failed, keeping parts for a later run", segErr.Indices())
		return 0, segErr
	}
	return assembleFile(outputPath, segments, totalSize)
}

// assembleFile concatenates the parts in ascending index order into a temp
// file and renames it over outputPath once complete. On failure the temp file
// is removed and the parts are left in place.
func assembleFile(outputPath string, segments []utils.Segment, totalSize int64) (int64, error) {
	tempPath := utils.AssemblyPath(outputPath)
	destFile, err := os.Create(tempPath)
	if err != nil {
		return 0, &ReassemblyError{Path: outputPath, Index: -1, Err: err}
	}
	fail := func(index int, err error) (int64, error) {
		destFile.Close()
		os.Remove(tempPath)
		return 0, &ReassemblyError{Path: outputPath, Index: index, Err: err}
	}

	var totalWritten int64
	for _, seg := range segments {
		written, err := appendPart(destFile, seg.TempPath)
		if err != nil {
			return fail(seg.Index, err)
		}
		if written != seg.Size() {
			return fail(seg.Index, fmt.Errorf("part holds %d bytes, expected %d", written, seg.Size()))
		}
		totalWritten += written
	}
	if totalWritten != totalSize {
		return fail(-1, fmt.Errorf("assembled %d bytes, expected %d", totalWritten, totalSize))
	}
	if err := destFile.Sync(); err != nil {
		return fail(-1, err)
	}
	if err := destFile.Close(); err != nil {
		os.Remove(tempPath)
		return 0, &ReassemblyError{Path: outputPath, Index: -1, Err: err}
	}
	if err := os.Rename(tempPath, outputPath); err != nil {
		os.Remove(tempPath)
		return 0, &ReassemblyError{Path: outputPath, Index: -1, Err: err}
	}

	for _, seg := range segments {
		if err := os.Remove(seg.TempPath); err != nil {
			log.Warn().Str("op", "http/multi-down").Err(err).Msgf("Failed to remove part %s", seg.TempPath)
		}
	}
	return totalWritten, nil
}

func appendPart(dst io.Writer, partPath string) (int64, error) {
	partFile, err := os.Open(partPath)
	if err != nil {
		return 0, err
	}
	defer partFile.Close()
	return io.Copy(dst, partFile)
}
