package cmd

import (
	"fmt"
	u "net/url"

	"github.com/spf13/cobra"
	"github.com/tanq16/mediafetch/internal/output"
	"github.com/tanq16/mediafetch/internal/scheduler"
	"github.com/tanq16/mediafetch/internal/utils"
)

func newFetchCmd() *cobra.Command {
	var outputDir string
	var fileName string

	cmd := &cobra.Command{
		Use:   "fetch URL... [--output DIR] [--name FILE]",
		Short: "Download one or more files over HTTP/HTTPS",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if fileName != "" && len(args) > 1 {
				return fmt.Errorf("--name can only be used with a single URL")
			}
			base, err := baseRequest(outputDir)
			if err != nil {
				return err
			}
			requests := make([]utils.DownloadRequest, 0, len(args))
			for _, arg := range args {
				if parsed, err := u.Parse(arg); err != nil || parsed.Host == "" {
					return fmt.Errorf("invalid URL format: %s", arg)
				}
				req := base
				req.URL = arg
				req.FileName = fileName
				requests = append(requests, req)
			}
			scopeCookies(requests[0].URL, "")
			return runDownloads(requests, outputDir)
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory")
	cmd.Flags().StringVarP(&fileName, "name", "n", "", "Output file name (inferred from the URL if not provided)")
	return cmd
}

// runDownloads sends requests through one scheduler and reports the batch.
func runDownloads(requests []utils.DownloadRequest, sweepDirs ...string) error {
	for _, dir := range sweepDirs {
		sweepParts(dirOrCwd(dir))
	}
	ctx, cancel := signalContext()
	defer cancel()

	client := utils.NewMediaHTTPClient(globalHTTPConfig)
	sink, stop := newSink()
	outcomes := scheduler.New(newDownloader(client), workers, sink).DownloadAll(ctx, requests)
	stop()

	summary := scheduler.Summarize(outcomes)
	output.PrintInfo(fmt.Sprintf("%d downloaded, %d cached, %d failed", summary.Succeeded-summary.Cached, summary.Cached, summary.Failed))
	return summary.Err()
}

func dirOrCwd(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}
