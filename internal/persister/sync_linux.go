//go:build linux

package persister

import (
	"os"

	"golang.org/x/sys/unix"
)

// syncFile issues a data-only sync on Linux, skipping the inode metadata
// flush (*os.File).Sync performs, the same trade-off
// lightkafka/internal/store/segment.go makes with its raw MSYNC syscall,
// generalized here into a portable, build-tagged helper.
func syncFile(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}
