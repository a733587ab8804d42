package wal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// RecoveryResult is the outcome of one Recover invocation.
type RecoveryResult struct {
	// Success reports whether the file had a valid header and was scanned.
	Success bool

	// ValidRecords counts checksum-valid records found before the first
	// invalid one.
	ValidRecords int

	// CorruptRecords counts record frames rejected by the scan. The scan
	// stops at the first one, so this is 0 or 1 for torn tails; trailing
	// garbage shorter than a record header is removed without being counted
	// as a record.
	CorruptRecords int

	// BytesTruncated is the number of bytes removed from the tail.
	BytesTruncated int64

	// Message is a human-readable diagnostic.
	Message string
}

// Record is one valid record returned by ReadAll.
type Record struct {
	ProducerID int64
	Payload    []byte
}

// Recover validates the log file at path and truncates any crash-torn tail
// back to the last fully durable record. It never runs concurrently with an
// active writer on the same file. A torn tail is an expected post-crash
// condition: the scan stops at the first invalid frame and reports counts
// instead of failing. An error is returned only for unexpected I/O failures.
func Recover(path string) (RecoveryResult, error) {
	size, res, ok, err := checkFile(path)
	if !ok {
		return res, err
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return RecoveryResult{}, fmt.Errorf("durlog: open %s: %w", path, err)
	}
	defer f.Close()

	validEnd, valid, corrupt, err := scanRecords(f, FileHeaderSize, size, nil)
	if err != nil {
		return RecoveryResult{}, err
	}

	truncated := size - validEnd
	if truncated > 0 {
		if err := f.Truncate(validEnd); err != nil {
			return RecoveryResult{}, fmt.Errorf("durlog: truncate %s: %w", path, err)
		}
		// Make the truncation itself durable so a reopening writer sees a
		// clean append point even after another crash.
		if err := f.Sync(); err != nil {
			return RecoveryResult{}, fmt.Errorf("durlog: force truncation: %w", err)
		}
	}

	msg := "file is clean"
	if truncated > 0 {
		msg = fmt.Sprintf("truncated %d bytes", truncated)
	}
	return RecoveryResult{
		Success:        true,
		ValidRecords:   valid,
		CorruptRecords: corrupt,
		BytesTruncated: truncated,
		Message:        msg,
	}, nil
}

// Verify runs the same scan as Recover without modifying the file.
// BytesTruncated reports how many tail bytes Recover would remove.
func Verify(path string) (RecoveryResult, error) {
	size, res, ok, err := checkFile(path)
	if !ok {
		return res, err
	}

	f, err := os.Open(path)
	if err != nil {
		return RecoveryResult{}, fmt.Errorf("durlog: open %s: %w", path, err)
	}
	defer f.Close()

	validEnd, valid, corrupt, err := scanRecords(f, FileHeaderSize, size, nil)
	if err != nil {
		return RecoveryResult{}, err
	}

	msg := "file is clean"
	if size-validEnd > 0 {
		msg = fmt.Sprintf("%d trailing bytes would be truncated", size-validEnd)
	}
	return RecoveryResult{
		Success:        true,
		ValidRecords:   valid,
		CorruptRecords: corrupt,
		BytesTruncated: size - validEnd,
		Message:        msg,
	}, nil
}

// ReadAll performs the same scan as Recover without truncating, returning
// every valid record in file order and stopping at the first invalid one.
// A missing or headerless file yields no records and no error.
func ReadAll(path string) ([]Record, error) {
	_, _, ok, err := checkFile(path)
	if err != nil || !ok {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("durlog: open %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("durlog: stat %s: %w", path, err)
	}

	var records []Record
	_, _, _, err = scanRecords(f, FileHeaderSize, st.Size(), func(rec Record) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ScanFrom reads valid records starting at offset, calling fn for each, and
// returns the offset just past the last valid record. It stops quietly at
// the first invalid or incomplete frame; the caller may resume from the
// returned offset once more bytes have been appended. fn returning an error
// aborts the scan with that error.
func ScanFrom(f *os.File, offset int64, fn func(Record) error) (int64, error) {
	st, err := f.Stat()
	if err != nil {
		return offset, fmt.Errorf("durlog: stat: %w", err)
	}
	validEnd, _, _, err := scanRecords(f, offset, st.Size(), fn)
	return validEnd, err
}

// checkFile validates existence and header. ok reports whether record
// scanning should proceed; when false, res describes why (err is reserved
// for unexpected I/O failures).
func checkFile(path string) (size int64, res RecoveryResult, ok bool, err error) {
	st, serr := os.Stat(path)
	if serr != nil {
		if errors.Is(serr, os.ErrNotExist) {
			return 0, RecoveryResult{Message: "file does not exist"}, false, nil
		}
		return 0, RecoveryResult{}, false, fmt.Errorf("durlog: stat %s: %w", path, serr)
	}
	size = st.Size()
	if size < FileHeaderSize {
		return size, RecoveryResult{
			Message: fmt.Sprintf("file too small for header: %d bytes", size),
		}, false, nil
	}

	f, oerr := os.Open(path)
	if oerr != nil {
		return size, RecoveryResult{}, false, fmt.Errorf("durlog: open %s: %w", path, oerr)
	}
	defer f.Close()

	hdr := make([]byte, FileHeaderSize)
	if _, rerr := io.ReadFull(f, hdr); rerr != nil {
		return size, RecoveryResult{}, false, fmt.Errorf("durlog: read file header: %w", rerr)
	}
	if herr := CheckFileHeader(hdr); herr != nil {
		return size, RecoveryResult{Message: herr.Error()}, false, nil
	}
	return size, RecoveryResult{}, true, nil
}

// scanRecords walks record frames from offset up to size. It returns the
// end offset of the last valid record, the count of valid records, and the
// count of rejected frames (0 or 1). The first frame failing any check,
// including an incomplete frame at end-of-file, halts the scan; it is never
// repaired, only reported.
func scanRecords(f *os.File, offset, size int64, fn func(Record) error) (validEnd int64, valid, corrupt int, err error) {
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return offset, 0, 0, fmt.Errorf("durlog: seek: %w", err)
	}
	r := bufio.NewReaderSize(f, 256<<10)

	validEnd = offset
	pos := offset
	hdr := make([]byte, RecordHeaderSize)
	var payload []byte

	for pos+RecordHeaderSize <= size {
		if _, rerr := io.ReadFull(r, hdr); rerr != nil {
			if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
				corrupt++
				break
			}
			return validEnd, valid, corrupt, fmt.Errorf("durlog: read record header: %w", rerr)
		}
		frameLength, storedSum, producerID := parseRecordHeader(hdr)

		if frameLength < minFrameLength || frameLength > maxFrameLength {
			corrupt++
			break
		}
		payloadLen := int64(frameLength) - minFrameLength
		recordEnd := pos + RecordHeaderSize + payloadLen
		if recordEnd > size {
			corrupt++
			break
		}

		if int64(cap(payload)) < payloadLen {
			payload = make([]byte, payloadLen)
		}
		payload = payload[:payloadLen]
		if _, rerr := io.ReadFull(r, payload); rerr != nil {
			if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
				corrupt++
				break
			}
			return validEnd, valid, corrupt, fmt.Errorf("durlog: read record payload: %w", rerr)
		}

		if recordChecksum(producerID, payload) != storedSum {
			corrupt++
			break
		}

		if fn != nil {
			rec := Record{ProducerID: producerID, Payload: append([]byte(nil), payload...)}
			if ferr := fn(rec); ferr != nil {
				return validEnd, valid, corrupt, ferr
			}
		}
		valid++
		validEnd = recordEnd
		pos = recordEnd
	}
	return validEnd, valid, corrupt, nil
}
