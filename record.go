package wal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Record is one logged unit of data.
type Record struct {
	// ID is unique and strictly increasing per log lifetime
	ID uint64 `json:"id"`
	// Timestamp is the creation time in unix seconds
	Timestamp uint64 `json:"timestamp"`
	// Data is the opaque payload
	Data []byte `json:"data"`
}

// ErrInvalidRecord is returned (wrapped) when a stored line cannot be
// parsed and the log is in Strict mode.
var ErrInvalidRecord = errors.New("invalid record")

// ReadMode selects how corrupted lines are handled during recovery
// and ReadAll.
type ReadMode int

const (
	// Lenient skips lines that fail to parse and returns only
	// successfully parsed records
	Lenient ReadMode = iota
	// Strict fails the whole scan on the first line that doesn't parse
	Strict
)

// marshalRecord encodes rec as a single line, trailing newline included
func marshalRecord(rec Record) ([]byte, error) {
	d, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record %d: %w", rec.ID, err)
	}
	return append(d, '\n'), nil
}

// parseRecordLine parses a single line (without the trailing newline)
// into rec. rec is passed in to allow re-use, can't be nil.
//
// A record line must be a JSON object carrying id and timestamp;
// "null" and "{}" decode without error but are not records, so field
// presence is checked explicitly. data may be null: that's how an
// empty payload is stored.
func parseRecordLine(line []byte, rec *Record) error {
	var raw struct {
		ID        *uint64 `json:"id"`
		Timestamp *uint64 `json:"timestamp"`
		Data      []byte  `json:"data"`
	}
	if err := json.Unmarshal(line, &raw); err != nil {
		return fmt.Errorf("%w: %v in line: %s", ErrInvalidRecord, err, line)
	}
	if raw.ID == nil || raw.Timestamp == nil {
		return fmt.Errorf("%w: missing id or timestamp in line: %s", ErrInvalidRecord, line)
	}
	rec.ID = *raw.ID
	rec.Timestamp = *raw.Timestamp
	rec.Data = raw.Data
	return nil
}

// scanRecords reads newline-delimited records from r, preserving their
// order. Empty lines are skipped. Lines that fail to parse are skipped
// in Lenient mode and fail the scan in Strict mode.
func scanRecords(r io.Reader, mode ReadMode) ([]Record, error) {
	br := bufio.NewReader(r)
	var recs []Record
	lineNo := 0
	for {
		line, err := br.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("failed to read line: %w", err)
		}
		atEOF := err == io.EOF
		lineNo++
		if d := bytes.TrimSpace(line); len(d) > 0 {
			var rec Record
			perr := parseRecordLine(d, &rec)
			if perr != nil && mode == Strict {
				return nil, fmt.Errorf("line %d: %w", lineNo, perr)
			}
			if perr == nil {
				recs = append(recs, rec)
			}
		}
		if atEOF {
			return recs, nil
		}
	}
}
