package wal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tidwall/pretty"

	"github.com/walio/wal/atomicfile"
)

// ErrClosed is returned by operations on a closed Log
var ErrClosed = errors.New("log is closed")

// Log is a durable append-only record log backed by a single file.
type Log struct {
	// Path of the backing file, created if absent. Set before
	// calling OpenLog.
	Path string
	// Mode controls handling of corrupted lines during recovery
	// and ReadAll. Default is Lenient.
	Mode ReadMode

	absPath string
	file    *os.File
	nextID  uint64
	mu      sync.Mutex
}

// OpenLog opens the backing file of l, creating it if absent, and
// recovers the id counter by scanning existing records: the next id is
// max(existing ids)+1, or 0 if the file is empty. The scan honors
// l.Mode. Can be called on an already-opened Log to re-open it.
func OpenLog(l *Log) error {
	if l.Path == "" {
		return fmt.Errorf("path is not set")
	}
	absPath, err := filepath.Abs(l.Path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for '%s': %w", l.Path, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := os.OpenFile(absPath, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open '%s': %w", absPath, err)
	}
	recs, err := scanRecords(file, l.Mode)
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to recover from '%s': %w", absPath, err)
	}

	if l.file != nil {
		// re-opening: drop the old handle so only one exists
		l.file.Close()
	}
	l.absPath = absPath
	l.file = file
	l.nextID = 0
	for _, rec := range recs {
		if rec.ID >= l.nextID {
			l.nextID = rec.ID + 1
		}
	}
	return nil
}

// Open opens (creating if absent) a lenient-mode log at path.
func Open(path string) (*Log, error) {
	l := &Log{Path: path}
	if err := OpenLog(l); err != nil {
		return nil, err
	}
	return l, nil
}

// Append assigns the next id and the current time to data, persists the
// record at the end of the log and syncs the file before returning.
// The returned Record is the caller's durably persisted copy.
func (l *Log) Append(data []byte) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return Record{}, ErrClosed
	}

	rec := Record{
		ID:        l.nextID,
		Timestamp: uint64(time.Now().Unix()),
		Data:      data,
	}
	line, err := marshalRecord(rec)
	if err != nil {
		return Record{}, err
	}
	if _, err = l.file.Seek(0, io.SeekEnd); err != nil {
		return Record{}, fmt.Errorf("failed to seek to end: %w", err)
	}
	if _, err = l.file.Write(line); err != nil {
		return Record{}, fmt.Errorf("failed to write record %d: %w", rec.ID, err)
	}
	if err = l.file.Sync(); err != nil {
		return Record{}, fmt.Errorf("failed to sync after record %d: %w", rec.ID, err)
	}
	l.nextID++
	return rec, nil
}

// ReadAll returns all stored records in append order. It's a
// non-destructive snapshot: neither the file nor the id counter is
// mutated. In Lenient mode lines that fail to parse are skipped, in
// Strict mode the first one fails the whole read.
func (l *Log) ReadAll() ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil, ErrClosed
	}
	return l.readAllLocked()
}

func (l *Log) readAllLocked() ([]Record, error) {
	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to start: %w", err)
	}
	return scanRecords(l.file, l.Mode)
}

// Remove deletes the record with the given id, preserving the order of
// the remaining records. Removing an id that doesn't exist is a no-op.
//
// The log is compacted by writing the surviving records to a temporary
// file in the same directory, syncing it and renaming it over the
// original, so a crash mid-removal leaves either the old or the new
// content on disk.
func (l *Log) Remove(id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return ErrClosed
	}

	recs, err := l.readAllLocked()
	if err != nil {
		return err
	}
	found := false
	kept := recs[:0]
	for _, rec := range recs {
		if rec.ID == id {
			found = true
			continue
		}
		kept = append(kept, rec)
	}
	if !found {
		return nil
	}

	w, err := atomicfile.New(l.absPath)
	if err != nil {
		return fmt.Errorf("failed to create compaction file: %w", err)
	}
	defer w.RemoveIfNotClosed()
	for _, rec := range kept {
		line, err := marshalRecord(rec)
		if err != nil {
			return err
		}
		if _, err = w.Write(line); err != nil {
			return fmt.Errorf("failed to write compaction file: %w", err)
		}
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("failed to finalize compaction: %w", err)
	}

	// the old handle still points at the replaced file
	old := l.file
	l.file = nil
	old.Close()
	file, err := os.OpenFile(l.absPath, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to re-open after compaction: %w", err)
	}
	l.file = file
	return nil
}

// Clear truncates the log to empty. The id counter is not reset: ids
// keep increasing monotonically so that already-handed-out ids are
// never re-assigned within one log lifetime.
func (l *Log) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return ErrClosed
	}
	if err := l.file.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate: %w", err)
	}
	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to start: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync after truncate: %w", err)
	}
	return nil
}

// NextID returns the id the next Append will assign. The counter is
// in-memory, so it stays readable after Close; re-opening recovers it
// from the file again.
func (l *Log) NextID() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nextID
}

// Close releases the file handle. Operations on a closed Log return
// ErrClosed. Calling Close more than once is a no-op.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Dump writes a pretty-printed JSON listing of all stored records to w,
// for debugging and log inspection.
func (l *Log) Dump(w io.Writer) error {
	recs, err := l.ReadAll()
	if err != nil {
		return err
	}
	for _, rec := range recs {
		d, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode record %d: %w", rec.ID, err)
		}
		if _, err = w.Write(pretty.Pretty(d)); err != nil {
			return err
		}
	}
	return nil
}
