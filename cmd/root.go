package cmd

import (
	"context"
	"fmt"
	"io"
	u "net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	mediahttp "github.com/tanq16/mediafetch/internal/downloaders/http"
	"github.com/tanq16/mediafetch/internal/output"
	"github.com/tanq16/mediafetch/internal/utils"
	"golang.org/x/term"
)

var (
	workers       int
	connections   int
	segmentSize   string
	noSegments    bool
	timeout       time.Duration
	kaTimeout     time.Duration
	retries       int
	userAgent     string
	proxyURL      string
	proxyUsername string
	proxyPassword string
	headers       []string
	cookies       []string
	bearerToken   string
	limitRate     string
	noCache       bool
	plainOutput   bool
	logFile       string
	debug         bool
	partTTL       time.Duration
)

var MediafetchVersion = "dev"

var (
	globalHTTPConfig utils.HTTPClientConfig
	logCloser        io.Closer
)

var rootCmd = &cobra.Command{
	Use:           "mediafetch",
	Short:         "Segmented media downloader with audio/video merging",
	Version:       MediafetchVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		closer, err := utils.InitLogger(debug, logFile)
		if err != nil {
			return fmt.Errorf("error opening log file: %v", err)
		}
		logCloser = closer
		globalHTTPConfig, err = buildHTTPConfig()
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		output.PrintError(err.Error())
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.IntVarP(&workers, "workers", "w", 2, "Number of files to download in parallel")
	flags.IntVarP(&connections, "connections", "c", 8, "Number of concurrent segment requests per file")
	flags.StringVar(&segmentSize, "segment-size", "25MiB", "Byte range size per segment (eg. 10MB, 25MiB)")
	flags.BoolVar(&noSegments, "no-segments", false, "Always download files in a single request")
	flags.DurationVarP(&timeout, "timeout", "t", 3*time.Minute, "Timeout for connecting, for response headers and between body reads (eg. 30s, 2m)")
	flags.DurationVarP(&kaTimeout, "keep-alive-timeout", "k", 90*time.Second, "Keep-alive timeout for client (eg. 10s, 1m, 80s)")
	flags.IntVarP(&retries, "retries", "r", utils.DefaultRetries, "Extra attempts per request after the first")
	flags.StringVarP(&userAgent, "user-agent", "a", utils.ToolUserAgent, "User agent (\"randomize\" picks a browser agent)")
	flags.StringVarP(&proxyURL, "proxy", "p", "", "HTTP/HTTPS proxy URL (e.g., proxy.example.com:8080)")
	flags.StringVar(&proxyUsername, "proxy-username", "", "Proxy username (if not provided in proxy URL)")
	flags.StringVar(&proxyPassword, "proxy-password", "", "Proxy password (if not provided in proxy URL)")
	flags.StringArrayVarP(&headers, "header", "H", []string{}, "Custom headers (like 'Referer: https://example.com'); can be specified multiple times")
	flags.StringArrayVar(&cookies, "cookie", []string{}, "Session cookie as name=value; can be specified multiple times")
	flags.StringVar(&bearerToken, "bearer-token", "", "Bearer token sent with every request")
	flags.StringVar(&limitRate, "limit-rate", "", "Total bandwidth cap per second (eg. 5MB)")
	flags.BoolVar(&noCache, "no-cache", false, "Download even when the output file already exists")
	flags.BoolVar(&plainOutput, "plain", false, "Plain progress output (default when not on a terminal)")
	flags.StringVar(&logFile, "log-file", "", "Write logs to a file instead of stderr")
	flags.BoolVar(&debug, "debug", false, "Enable debug logging")
	flags.DurationVar(&partTTL, "part-ttl", utils.DefaultPartTTL, "Remove part files older than this before starting (0 disables)")

	rootCmd.AddCommand(newFetchCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newEpisodeCmd())
	rootCmd.AddCommand(newMergeCmd())
	rootCmd.AddCommand(newCleanCmd())
}

func buildHTTPConfig() (utils.HTTPClientConfig, error) {
	agent := userAgent
	if agent == "randomize" {
		agent = utils.GetRandomUserAgent()
	}
	proxy, user, pass := proxyURL, proxyUsername, proxyPassword
	// credentials embedded in the proxy URL
	parsedProxy, err := u.Parse(proxy)
	if err == nil && parsedProxy.User != nil && user == "" {
		user = parsedProxy.User.Username()
		if password, set := parsedProxy.User.Password(); set {
			pass = password
		}
		parsedProxy.User = nil
		proxy = parsedProxy.String()
	}
	var rateLimit int64
	if limitRate != "" {
		bytesPerSecond, err := humanize.ParseBytes(limitRate)
		if err != nil {
			return utils.HTTPClientConfig{}, fmt.Errorf("invalid --limit-rate %q: %v", limitRate, err)
		}
		rateLimit = int64(bytesPerSecond)
	}
	return utils.HTTPClientConfig{
		Timeout:        timeout,
		KATimeout:      kaTimeout,
		ProxyURL:       proxy,
		ProxyUsername:  user,
		ProxyPassword:  pass,
		UserAgent:      agent,
		Headers:        utils.ParseHeaderArgs(headers),
		Cookies:        utils.ParseCookieArgs(cookies),
		BearerToken:    bearerToken,
		RateLimit:      rateLimit,
		HighThreadMode: workers*connections > 16,
	}, nil
}

func parseSegmentSize() (int64, error) {
	size, err := humanize.ParseBytes(segmentSize)
	if err != nil || size == 0 {
		return 0, fmt.Errorf("invalid --segment-size %q", segmentSize)
	}
	return int64(size), nil
}

// baseRequest carries the segmenting flags every request of a run shares.
func baseRequest(outputDir string) (utils.DownloadRequest, error) {
	size, err := parseSegmentSize()
	if err != nil {
		return utils.DownloadRequest{}, err
	}
	return utils.DownloadRequest{OutputDir: outputDir, Segmenting: !noSegments, SegmentSize: size}, nil
}

func newDownloader(client utils.HTTPDoer) *mediahttp.Downloader {
	return mediahttp.NewDownloader(client, mediahttp.Config{
		Connections: connections,
		Retries:     retries,
		RetryDelay:  utils.DefaultRetryDelay,
		UseCache:    !noCache,
		CheckSpace:  true,
	})
}

// newSink picks the live display on a terminal and the plain one otherwise.
// The returned function stops the display and prints its summary.
func newSink() (output.Sink, func()) {
	if plainOutput || debug || !term.IsTerminal(int(os.Stdout.Fd())) {
		plain := output.NewPlainDisplay(os.Stderr)
		return plain, plain.Close
	}
	if logFile == "" {
		// console logs would tear the redrawn screen; the summary lists errors
		zerolog.SetGlobalLevel(zerolog.Disabled)
	}
	manager := output.NewManager()
	manager.StartDisplay()
	return manager, manager.StopDisplay
}

// scopeCookies binds --cookie values to link's site, or to every host under
// domain when one is given.
func scopeCookies(link, domain string) {
	if globalHTTPConfig.CookieURL == "" {
		globalHTTPConfig.CookieURL = link
	}
	if domain == "" {
		return
	}
	for _, c := range globalHTTPConfig.Cookies {
		if c.Domain == "" {
			c.Domain = domain
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func sweepParts(dir string) {
	if partTTL <= 0 {
		return
	}
	removed, err := utils.SweepStaleParts(dir, partTTL)
	if err != nil {
		log.Warn().Str("op", "cmd/root").Err(err).Msgf("Could not sweep part files in %s", dir)
		return
	}
	if len(removed) > 0 {
		log.Info().Str("op", "cmd/root").Msgf("Removed %d stale part files from %s", len(removed), dir)
	}
}
