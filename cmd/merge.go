package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tanq16/mediafetch/internal/merger"
	"github.com/tanq16/mediafetch/internal/output"
)

func newMergeCmd() *cobra.Command {
	var ffmpegPath string
	var removeInputs bool

	cmd := &cobra.Command{
		Use:   "merge VIDEO AUDIO OUTPUT",
		Short: "Combine a video and an audio file without re-encoding",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ffmpeg, err := merger.EnsureFFmpeg(ffmpegPath)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			m := merger.New(ffmpeg, 1)
			job := m.Add(args[0], args[1], args[2])
			if _, err := m.Run(ctx); err != nil {
				return err
			}
			if removeInputs {
				if err := job.RemoveInputs(); err != nil {
					return err
				}
			}
			output.PrintSuccess("Merged " + job.OutputPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&ffmpegPath, "ffmpeg", "", "Path to the ffmpeg executable (searched in PATH if not provided)")
	cmd.Flags().BoolVar(&removeInputs, "remove-inputs", false, "Delete the video and audio files after a successful merge")
	return cmd
}
