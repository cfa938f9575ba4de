//go:build linux

package fs

import (
	"errors"

	"golang.org/x/sys/unix"
)

const directFlag = unix.O_DIRECT

func isDirectRejected(err error) bool {
	return errors.Is(err, unix.EINVAL)
}
