package fs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// File represents an open file.
type File interface {
	io.ReadWriteCloser
	io.ReaderAt
	Sync() error
	Stat() (os.FileInfo, error)
	Name() string
}

// FileSystem abstracts file system operations for testability.
type FileSystem interface {
	OpenFile(name string, flag int, perm os.FileMode) (File, error)
	Stat(name string) (os.FileInfo, error)
	MkdirAll(path string, perm os.FileMode) error
	Remove(name string) error
}

// LocalFS implements FileSystem using the local os package.
type LocalFS struct{}

func (LocalFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	return os.OpenFile(name, flag, perm)
}

func (LocalFS) Stat(name string) (os.FileInfo, error) { return os.Stat(name) }
func (LocalFS) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}
func (LocalFS) Remove(name string) error { return os.Remove(name) }

// Default is the default local file system.
var Default FileSystem = LocalFS{}

// ErrDirectUnsupported is returned when the file system rejects O_DIRECT.
var ErrDirectUnsupported = errors.New("fs: direct I/O not supported")

// OpenRead opens name read-only. When direct is set the page cache is
// bypassed (O_DIRECT); if the underlying file system refuses the flag the
// returned error wraps ErrDirectUnsupported.
func OpenRead(fsys FileSystem, name string, direct bool) (File, error) {
	if fsys == nil {
		fsys = Default
	}
	flag := os.O_RDONLY
	if direct {
		if directFlag == 0 {
			return nil, fmt.Errorf("%w: %s", ErrDirectUnsupported, name)
		}
		flag |= directFlag
	}
	f, err := fsys.OpenFile(name, flag, 0)
	if err != nil {
		if direct && isDirectRejected(err) {
			return nil, fmt.Errorf("%w: %s: %w", ErrDirectUnsupported, name, err)
		}
		return nil, err
	}
	return f, nil
}

// OpenReadBestEffort is OpenRead that falls back to a buffered handle when
// direct I/O is unsupported. The second result reports whether the handle
// bypasses the page cache.
func OpenReadBestEffort(fsys FileSystem, name string, direct bool) (File, bool, error) {
	f, err := OpenRead(fsys, name, direct)
	if err == nil {
		return f, direct, nil
	}
	if !direct || !errors.Is(err, ErrDirectUnsupported) {
		return nil, false, err
	}
	f, err = OpenRead(fsys, name, false)
	return f, false, err
}

// OpenFiles opens one read handle per name, rooted at dir, falling back to
// buffered handles where direct I/O is unsupported. The second result
// reports whether every handle is direct. On failure every handle opened so
// far is closed.
func OpenFiles(fsys FileSystem, dir string, names []string, direct bool) ([]File, bool, error) {
	files := make([]File, 0, len(names))
	allDirect := direct
	for _, name := range names {
		f, d, err := OpenReadBestEffort(fsys, filepath.Join(dir, name), direct)
		if err != nil {
			_ = CloseFiles(files)
			return nil, false, err
		}
		allDirect = allDirect && d
		files = append(files, f)
	}
	return files, allDirect, nil
}

// CloseFiles closes every handle and returns the joined close errors.
func CloseFiles(files []File) error {
	var errs []error
	for _, f := range files {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
