package atomicfile

import (
	"os"
	"path/filepath"
	"testing"
)

func assertFileExists(t *testing.T, path string) {
	t.Helper()
	st, err := os.Stat(path)
	if err != nil {
		t.Fatalf("file '%s' doesn't exist, os.Stat() failed with '%s'", path, err)
	}
	if !st.Mode().IsRegular() {
		t.Fatalf("path '%s' exists but is not a file (mode: %d)", path, int(st.Mode()))
	}
}

func assertFileNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Fatalf("file '%s' exists, expected to not exist", path)
	}
}

func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("error: %s", err)
	}
}

func assertFileContent(t *testing.T, path string, content string) {
	t.Helper()
	d, err := os.ReadFile(path)
	assertNoError(t, err)
	if string(d) != content {
		t.Fatalf("path: '%s', expected content %q, got %q", path, content, string(d))
	}
}

func TestReplace(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out.txt")
	err := os.WriteFile(dst, []byte("old"), 0644)
	assertNoError(t, err)

	f, err := New(dst)
	assertNoError(t, err)
	assertFileExists(t, f.tmpPath)

	n, err := f.Write([]byte("new content"))
	assertNoError(t, err)
	if n != len("new content") {
		t.Fatalf("expected %d bytes written, got %d", len("new content"), n)
	}
	// destination must be untouched until Close
	assertFileContent(t, dst, "old")

	err = f.Close()
	assertNoError(t, err)
	assertFileNotExists(t, f.tmpPath)
	assertFileContent(t, dst, "new content")

	// calling Close twice is a no-op
	err = f.Close()
	assertNoError(t, err)
}

func TestCreatesDestination(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "fresh.txt")
	f, err := New(dst)
	assertNoError(t, err)
	err = f.Close()
	assertNoError(t, err)
	assertFileExists(t, dst)
	assertFileContent(t, dst, "")
}

func TestRemoveIfNotClosed(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out.txt")
	f, err := New(dst)
	assertNoError(t, err)
	assertFileExists(t, f.tmpPath)

	_, err = f.Write([]byte("doomed"))
	assertNoError(t, err)

	f.RemoveIfNotClosed()
	assertFileNotExists(t, f.tmpPath)
	assertFileNotExists(t, dst)

	// cancelled state is sticky
	if _, err = f.Write([]byte("more")); err != ErrCancelled {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if err = f.Close(); err != ErrCancelled {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestRemoveIfNotClosedAfterClose(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out.txt")
	f, err := New(dst)
	assertNoError(t, err)
	_, err = f.Write([]byte("kept"))
	assertNoError(t, err)
	err = f.Close()
	assertNoError(t, err)

	// a no-op after Close, the destination stays
	f.RemoveIfNotClosed()
	assertFileContent(t, dst, "kept")
}

func TestPanicCleanup(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out.txt")
	f, err := New(dst)
	assertNoError(t, err)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected to panic")
			}
		}()
		defer f.RemoveIfNotClosed()
		_, err := f.Write([]byte("foo"))
		assertNoError(t, err)
		panic("simulating a crash")
	}()

	assertFileNotExists(t, f.tmpPath)
	assertFileNotExists(t, dst)
}

func TestMissingDirectory(t *testing.T) {
	// no point writing anything if the destination can't be created,
	// so New checks early
	dst := filepath.Join(t.TempDir(), "no-such-dir", "out.txt")
	f, err := New(dst)
	if err == nil {
		t.Fatalf("expected an error")
	}
	if f != nil {
		t.Fatalf("expected f to be nil, got %v", f)
	}
}
