//go:build darwin

package indexer

import (
	"os"
	"syscall"
)

// fileCreatedAt returns the file's birth time. Returns 0 when unavailable.
func fileCreatedAt(info os.FileInfo) int64 {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0
	}
	return stat.Birthtimespec.Sec*1000 + stat.Birthtimespec.Nsec/1e6
}
