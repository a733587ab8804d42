package wal

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"testing"
	"time"
)

func TestFileHeaderRoundTrip(t *testing.T) {
	hdr := encodeFileHeader(time.UnixMilli(1700000000000))
	if len(hdr) != FileHeaderSize {
		t.Fatalf("expected %d header bytes, got %d", FileHeaderSize, len(hdr))
	}
	if err := CheckFileHeader(hdr); err != nil {
		t.Fatalf("CheckFileHeader returned error: %v", err)
	}
	if got := int64(binary.BigEndian.Uint64(hdr[16:24])); got != 1700000000000 {
		t.Fatalf("expected creation time 1700000000000, got %d", got)
	}
}

func TestCheckFileHeaderRejects(t *testing.T) {
	good := encodeFileHeader(time.Now())

	short := good[:16]
	if err := CheckFileHeader(short); err == nil {
		t.Fatal("expected error for short header")
	}

	badMagic := append([]byte(nil), good...)
	badMagic[0] ^= 0xFF
	if err := CheckFileHeader(badMagic); err == nil {
		t.Fatal("expected error for bad magic")
	}

	badVersion := append([]byte(nil), good...)
	binary.BigEndian.PutUint32(badVersion[8:12], 99)
	if err := CheckFileHeader(badVersion); err == nil {
		t.Fatal("expected error for unsupported version")
	}
}

func TestAppendRecordLayout(t *testing.T) {
	payload := []byte("hello, log")
	frame := appendRecord(nil, 7, payload)

	if len(frame) != RecordHeaderSize+len(payload) {
		t.Fatalf("expected frame of %d bytes, got %d", RecordHeaderSize+len(payload), len(frame))
	}

	frameLength, sum, producerID := parseRecordHeader(frame)
	if frameLength != uint32(8+len(payload)) {
		t.Fatalf("expected frame length %d, got %d", 8+len(payload), frameLength)
	}
	if producerID != 7 {
		t.Fatalf("expected producer 7, got %d", producerID)
	}
	if !bytes.Equal(frame[RecordHeaderSize:], payload) {
		t.Fatalf("payload mismatch: %q", frame[RecordHeaderSize:])
	}

	// The checksum covers producerId+payload, not the length field.
	var idBuf [8]byte
	binary.BigEndian.PutUint64(idBuf[:], 7)
	want := crc32.ChecksumIEEE(append(idBuf[:], payload...))
	if sum != want {
		t.Fatalf("expected checksum %#x, got %#x", want, sum)
	}
	if recordChecksum(7, payload) != want {
		t.Fatalf("recordChecksum disagrees with reference value")
	}
}

func TestAppendRecordEmptyPayload(t *testing.T) {
	frame := appendRecord(nil, 1, []byte{})
	frameLength, _, _ := parseRecordHeader(frame)
	if frameLength != minFrameLength {
		t.Fatalf("expected minimum frame length %d, got %d", minFrameLength, frameLength)
	}
	if len(frame) != RecordHeaderSize {
		t.Fatalf("expected %d bytes for empty payload, got %d", RecordHeaderSize, len(frame))
	}
}
