//go:build linux

package scan

import (
	"io/fs"
	"syscall"
	"time"
)

// changeTime returns the inode change time, the closest thing to a creation
// time most Unix filesystems expose.
func changeTime(info fs.FileInfo) time.Time {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(stat.Ctim.Sec, stat.Ctim.Nsec)
	}
	return info.ModTime()
}
