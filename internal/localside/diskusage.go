package localside

import (
	"fmt"

	"github.com/shirou/gopsutil/v4/disk"
)

// diskUsage reports used/total bytes for the filesystem backing root,
// grounded on the teacher's gopsutil-based host stats probe (previously
// only used server-side). It backs the local Side's DiskUsage, which the
// status command prints; no write path calls it, and local ENOSPC is
// detected from the write error itself (wrapWriteErr).
func diskUsage(root string) (usedBytes, totalBytes int64, err error) {
	usage, err := disk.Usage(root)
	if err != nil {
		return 0, 0, fmt.Errorf("disk usage for %s: %w", root, err)
	}
	return int64(usage.Used), int64(usage.Total), nil
}
