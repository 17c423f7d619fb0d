package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tanq16/mediafetch/internal/utils"
)

func newBatchCmd() *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "batch YAML_FILE [--output DIR]",
		Short: "Download every link listed in a YAML manifest",
		Long: `Download every link listed in a YAML manifest:

  downloads:
    - link: https://example.com/a.mp4
    - link: https://example.com/b.mp4
      op: media          # output directory
      name: b-copy.mp4   # output file name
      segments: false    # per-entry segmenting override`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := utils.ReadManifest(args[0])
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return fmt.Errorf("no downloads found in %s", args[0])
			}
			base, err := baseRequest(outputDir)
			if err != nil {
				return err
			}
			requests := make([]utils.DownloadRequest, 0, len(entries))
			dirs := map[string]bool{}
			var sweepDirs []string
			for _, entry := range entries {
				req := entry.Request(base)
				requests = append(requests, req)
				if !dirs[req.OutputDir] {
					dirs[req.OutputDir] = true
					sweepDirs = append(sweepDirs, req.OutputDir)
				}
			}
			scopeCookies(requests[0].URL, "")
			return runDownloads(requests, sweepDirs...)
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Default output directory for entries without op")
	return cmd
}
