package atomicfile

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

// ErrCancelled is returned by calls made after RemoveIfNotClosed
var ErrCancelled = errors.New("cancelled")

var _ io.WriteCloser = &File{}

// File writes a replacement for a file atomically: content goes to a
// temporary file in the destination directory and Close syncs it and
// renames it over the destination. If anything fails along the way the
// temporary file is deleted and the destination is left untouched.
type File struct {
	dstPath string
	dir     string
	tmpPath string
	tmpFile *os.File
	err     error
}

// New creates a File that will atomically replace path on Close.
func New(path string) (*File, error) {
	dir, name := filepath.Split(path)
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrInvalid}
	}

	// fails early if the destination directory doesn't exist
	tmpFile, err := os.CreateTemp(dir, name)
	if err != nil {
		return nil, err
	}
	return &File{
		dstPath: path,
		dir:     dir,
		tmpPath: tmpFile.Name(),
		tmpFile: tmpFile,
	}, nil
}

// remember the first error and clean up the temporary file
func (f *File) handleError(err error) error {
	if err == nil {
		return nil
	}
	if f.err == nil {
		f.err = err
	}
	_ = f.Close()
	return err
}

// Write writes data to the temporary file.
func (f *File) Write(d []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	n, err := f.tmpFile.Write(d)
	return n, f.handleError(err)
}

func (f *File) alreadyClosed() bool {
	return f.tmpFile == nil
}

// RemoveIfNotClosed deletes the temporary file if Close wasn't called
// yet; the destination is not replaced. Use with defer to clean up when
// an error or a panic prevents reaching Close. After Close it's a no-op.
func (f *File) RemoveIfNotClosed() {
	if f == nil || f.alreadyClosed() {
		return
	}
	f.err = ErrCancelled
	_ = f.Close()
}

// Close syncs the temporary file and renames it over the destination.
// If a prior Write failed (or RemoveIfNotClosed was called), the
// temporary file is deleted instead and the first error is returned.
// Calling Close more than once returns the same result.
func (f *File) Close() error {
	if f.alreadyClosed() {
		return f.err
	}
	tmpFile := f.tmpFile
	f.tmpFile = nil

	// https://www.joeshaw.org/dont-defer-close-on-writable-files/
	errSync := tmpFile.Sync()
	errClose := tmpFile.Close()

	didRename := false
	defer func() {
		if !didRename {
			_ = os.Remove(f.tmpPath)
		}
	}()

	if f.err != nil {
		return f.err
	}
	err := errSync
	if err == nil {
		err = errClose
	}
	if err == nil {
		err = os.Rename(f.tmpPath, f.dstPath)
		didRename = err == nil
		// sync the directory so the rename itself survives a crash
		if fdir, _ := os.Open(f.dir); fdir != nil {
			_ = fdir.Sync()
			_ = fdir.Close()
		}
	}
	f.err = err
	return f.err
}
