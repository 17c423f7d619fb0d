package utils

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/disk"
)

// EnsureFreeSpace fails when dir's filesystem has fewer than need bytes
// available. Filesystems that cannot be inspected are let through.
func EnsureFreeSpace(dir string, need int64) error {
	if need <= 0 {
		return nil
	}
	usage, err := disk.Usage(dir)
	if err != nil {
		log.Debug().Str("op", "utils/disk").Err(err).Msgf("Skipping free space check for %s", dir)
		return nil
	}
	if usage.Free < uint64(need) {
		return fmt.Errorf("%w: need %s, have %s in %s", ErrInsufficientSpace,
			FormatBytes(uint64(need)), FormatBytes(usage.Free), dir)
	}
	return nil
}
