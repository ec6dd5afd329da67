//go:build linux

package indexer

import (
	"os"
	"syscall"
)

// fileCreatedAt returns the best creation-time approximation available on
// Linux: the inode change time. Returns 0 when unavailable.
func fileCreatedAt(info os.FileInfo) int64 {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0
	}
	return stat.Ctim.Sec*1000 + stat.Ctim.Nsec/1e6
}
