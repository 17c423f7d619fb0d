package utils

import (
	"errors"
	"regexp"
	"time"
)

const DefaultBufferSize = 1024 * 1024 // 1MB read chunk
const DefaultSegmentSize = 25 * 1024 * 1024
const DefaultRetries = 3
const DefaultRetryDelay = time.Second
const DefaultPartTTL = 7 * 24 * time.Hour
const ToolUserAgent = "mediafetch/1.0"

var ErrRangeRequestsNotSupported = errors.New("range requests are not supported")
var ErrInsufficientSpace = errors.New("insufficient disk space")
var ErrReadTimeout = errors.New("no data received before the read timeout")
var PartFileRegex = regexp.MustCompile(`\.(part\d*|assembling|merging(\.[^.]+)?)$`)

var unsafeFileChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]+`)

// Local-only User-Agent list
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:135.0) Gecko/20100101 Firefox/135.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64; rv:135.0) Gecko/20100101 Firefox/135.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.3 Safari/605.1.15",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36 Edg/133.0.0.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.0.0 Safari/537.36 Edg/132.0.0.0",
}
