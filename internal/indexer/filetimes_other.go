//go:build !linux && !darwin && !windows

package indexer

import "os"

// fileCreatedAt falls back to the modification time on platforms without a
// usable creation or change time.
func fileCreatedAt(info os.FileInfo) int64 {
	return info.ModTime().UnixMilli()
}
