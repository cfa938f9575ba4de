//go:build linux

package lidisk

import (
	"os"

	"golang.org/x/sys/unix"
)

// DropPageCache asks the kernel to evict the cached pages of path, so that
// the next run reads from the device. Dirty pages are not written back.
func DropPageCache(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_DONTNEED)
}
