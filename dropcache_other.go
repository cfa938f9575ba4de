//go:build !linux

package lidisk

import "errors"

// ErrDropCacheUnsupported is returned by DropPageCache outside Linux.
var ErrDropCacheUnsupported = errors.New("page cache eviction is not supported on this platform")

// DropPageCache is a no-op outside Linux.
func DropPageCache(string) error { return ErrDropCacheUnsupported }
