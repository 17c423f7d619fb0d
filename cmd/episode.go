package cmd

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/tanq16/mediafetch/internal/downloaders/bilibili"
	"github.com/tanq16/mediafetch/internal/export"
	"github.com/tanq16/mediafetch/internal/merger"
	"github.com/tanq16/mediafetch/internal/output"
	"github.com/tanq16/mediafetch/internal/pipeline"
	"github.com/tanq16/mediafetch/internal/scheduler"
	"github.com/tanq16/mediafetch/internal/utils"
)

func newEpisodeCmd() *cobra.Command {
	var outputDir string
	var ffmpegPath string
	var mergeWorkers int
	var keepInputs bool
	var s3Opts export.S3Options

	cmd := &cobra.Command{
		Use:     "episode ID [--output DIR]",
		Aliases: []string{"bv"},
		Short:   "Download every part of a BV id and merge its video and audio",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			ffmpeg, err := merger.EnsureFFmpeg(ffmpegPath)
			if err != nil {
				return err
			}
			base, err := baseRequest(outputDir)
			if err != nil {
				return err
			}
			if outputDir == "" {
				outputDir = pipeline.DefaultOutputDir(id)
			}
			sweepParts(outputDir)

			ctx, cancel := signalContext()
			defer cancel()
			opts := pipeline.Options{
				OutputDir:   outputDir,
				Segmenting:  base.Segmenting,
				SegmentSize: base.SegmentSize,
				UseCache:    !noCache,
				KeepInputs:  keepInputs,
			}
			if s3Opts.Bucket != "" {
				exporter, err := export.NewS3Exporter(ctx, s3Opts)
				if err != nil {
					return err
				}
				opts.Exporter = exporter
			}

			scopeCookies(bilibili.Referer, "bilibili.com")
			client := utils.NewMediaHTTPClient(globalHTTPConfig)
			if !hasHeader(globalHTTPConfig.Headers, "Referer") {
				client.SetHeader("Referer", bilibili.Referer)
			}
			resolver := bilibili.New(client, retries)
			resolver.Workers = workers

			sink, stop := newSink()
			p := pipeline.New(resolver, scheduler.New(newDownloader(client), workers, sink), merger.New(ffmpeg, mergeWorkers), opts)
			report, err := p.Run(ctx, id)
			stop()
			if report == nil {
				return err
			}
			printReport(report)
			return err
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (default data/downloads/<ID>)")
	cmd.Flags().StringVar(&ffmpegPath, "ffmpeg", "", "Path to the ffmpeg executable (searched in PATH if not provided)")
	cmd.Flags().IntVar(&mergeWorkers, "merge-workers", runtime.NumCPU(), "Number of ffmpeg processes to run at once (0 for unbounded)")
	cmd.Flags().BoolVar(&keepInputs, "keep-inputs", false, "Keep the video and audio files after merging")
	cmd.Flags().StringVar(&s3Opts.Bucket, "s3-bucket", "", "Upload merged files to this S3 bucket")
	cmd.Flags().StringVar(&s3Opts.Prefix, "s3-prefix", "", "Key prefix for uploaded files")
	cmd.Flags().StringVar(&s3Opts.Profile, "s3-profile", "", "AWS shared config profile")
	cmd.Flags().StringVar(&s3Opts.Region, "s3-region", "", "AWS region override")
	return cmd
}

func hasHeader(headers map[string]string, name string) bool {
	for key := range headers {
		if http.CanonicalHeaderKey(key) == http.CanonicalHeaderKey(name) {
			return true
		}
	}
	return false
}

func printReport(report *pipeline.Report) {
	for _, ep := range report.Episodes {
		switch {
		case ep.OK() && ep.ExportURI != "":
			output.PrintSuccess(fmt.Sprintf("%s (%s) -> %s", ep.OutputPath, ep.Status, ep.ExportURI))
		case ep.OK():
			output.PrintSuccess(fmt.Sprintf("%s (%s)", ep.OutputPath, ep.Status))
		default:
			output.PrintError(fmt.Sprintf("%s (%s): %v", ep.Episode.Title, ep.Status, ep.Err))
		}
	}
	output.PrintInfo(fmt.Sprintf("%d of %d parts ready in %s", len(report.Episodes)-report.Failed(), len(report.Episodes), report.OutputDir))
}
