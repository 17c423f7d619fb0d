package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tanq16/mediafetch/internal/output"
	"github.com/tanq16/mediafetch/internal/utils"
)

func newCleanCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "clean [DIR] [--older-than DURATION]",
		Short: "Remove leftover part files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			// a zero age still has to remove everything
			ttl := max(olderThan, time.Nanosecond)
			removed, err := utils.SweepStaleParts(dir, ttl)
			if err != nil {
				return fmt.Errorf("error cleaning %s: %v", dir, err)
			}
			for _, path := range removed {
				output.PrintDetail(path)
			}
			output.PrintSuccess(fmt.Sprintf("Removed %d part files", len(removed)))
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Only remove part files older than this")
	return cmd
}
