// Package wal provides a durable, append-only record log backed by a
// single file.
//
// Callers persist binary payloads before treating them as "in flight",
// then replay or selectively remove them once acknowledged. This makes
// it possible to recover work after a crash or a downstream failure.
//
// # Log Structure
//
// A Log is backed by one flat file with one JSON-encoded record per
// line. Each record has an id (unique, strictly increasing), a creation
// timestamp in unix seconds and an opaque payload. There is no header,
// footer or checksum.
//
// # Basic Usage
//
//	l, err := wal.Open("work.wal")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Close()
//
//	// persist before processing
//	rec, err := l.Append([]byte("payload"))
//
//	// after a restart, replay unacknowledged records
//	recs, err := l.ReadAll()
//
//	// acknowledge by removing
//	err = l.Remove(rec.ID)
//
// # Corrupted Records
//
// How corrupted lines are handled is selected by Mode: Lenient (the
// default) skips lines that fail to parse, both during recovery and in
// ReadAll; Strict fails the whole scan on the first bad line.
//
// # Durability
//
// Every Append syncs the file before returning, trading throughput for
// simplicity. Remove compacts the log by writing the surviving records
// to a temporary file and renaming it over the original, so a crash
// mid-removal leaves either the old or the new content, never a torn
// file.
//
// # Thread Safety
//
// A Log is safe for concurrent use within one process. All operations
// are serialized by a mutex. Two processes opening the same path will
// race destructively; nothing guards against that.
package wal
