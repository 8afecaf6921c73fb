//go:build !linux

package persister

import "os"

func syncFile(f *os.File) error {
	return f.Sync()
}
