package utils

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"time"
)

// DownloadRequest describes one logical file to fetch. It is not mutated once
// handed to a downloader.
type DownloadRequest struct {
	URL         string
	OutputDir   string
	FileName    string
	Segmenting  bool
	SegmentSize int64
}

// OutputPath returns the final destination of the request, inferring a file
// name from the URL when none was given.
func (r DownloadRequest) OutputPath() string {
	name := r.FileName
	if name == "" {
		name = fileNameFromURL(r.URL)
	}
	return filepath.Join(r.OutputDir, name)
}

func fileNameFromURL(link string) string {
	if parsed, err := url.Parse(link); err == nil {
		if base := path.Base(parsed.Path); base != "" && base != "/" && base != "." {
			return SanitizeFileName(base)
		}
	}
	return fmt.Sprintf("download_%d", time.Now().Unix())
}

type ProbeResult struct {
	TotalSize      int64
	RangeSupported bool
}

type SegmentStatus int

const (
	SegmentPending SegmentStatus = iota
	SegmentInFlight
	SegmentSucceeded
	SegmentFailed
)

func (s SegmentStatus) String() string {
	switch s {
	case SegmentPending:
		return "pending"
	case SegmentInFlight:
		return "in-flight"
	case SegmentSucceeded:
		return "succeeded"
	case SegmentFailed:
		return "failed"
	}
	return "unknown"
}

// Segment is an inclusive byte range of a remote resource backed by its own
// part file.
type Segment struct {
	Index    int
	Start    int64
	End      int64
	TempPath string
	Status   SegmentStatus
}

func (s Segment) Size() int64 {
	return s.End - s.Start + 1
}

type ProgressState struct {
	Transferred int64
	Total       int64
}

type DownloadMode string

const (
	ModeDirect    DownloadMode = "direct"
	ModeSegmented DownloadMode = "segmented"
	ModeCached    DownloadMode = "cached"
)

// DownloadOutcome is the terminal result of one DownloadRequest.
type DownloadOutcome struct {
	Request   DownloadRequest
	FinalPath string
	Err       error
	Cached    bool
	Mode      DownloadMode
	Bytes     int64
	Duration  time.Duration
}

func (o DownloadOutcome) OK() bool {
	return o.Err == nil
}

// Episode is one playable part of a content ID with separate media streams.
type Episode struct {
	Title    string
	VideoURL string
	AudioURL string
}

func (e Episode) Resolved() bool {
	return e.VideoURL != "" && e.AudioURL != ""
}

// DownloadEntry is a single line of a batch manifest.
type DownloadEntry struct {
	URL       string `yaml:"link"`
	OutputDir string `yaml:"op,omitempty"`
	FileName  string `yaml:"name,omitempty"`
	Segments  *bool  `yaml:"segments,omitempty"`
}
