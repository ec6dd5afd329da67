//go:build windows

package indexer

import (
	"os"
	"syscall"
)

// fileCreatedAt returns the file's creation time. Returns 0 when
// unavailable.
func fileCreatedAt(info os.FileInfo) int64 {
	stat, ok := info.Sys().(*syscall.Win32FileAttributeData)
	if !ok {
		return 0
	}
	return stat.CreationTime.Nanoseconds() / 1e6
}
