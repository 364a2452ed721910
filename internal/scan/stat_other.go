//go:build !linux

package scan

import (
	"io/fs"
	"time"
)

// changeTime falls back to the modification time on platforms without a
// Stat_t change time.
func changeTime(info fs.FileInfo) time.Time {
	return info.ModTime()
}
