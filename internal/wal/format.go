package wal

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"time"
)

// On-disk layout, all fields big-endian.
//
// File header, written once at creation (32 bytes):
//
//	[magic:int64][version:int32][flags:int32][createdAtMillis:int64][reserved:int64]
//
// Record frame:
//
//	[frameLength:uint32][checksum:uint32][producerId:int64][payload:frameLength-8]
//
// frameLength covers producerId+payload. checksum is CRC-32 (IEEE) over
// producerId+payload; the length field is not covered, so a corrupted length
// is caught by the sanity bounds and the fit-within-file check instead.
const (
	// Magic identifies a durlog file ("DURLOG" followed by a format byte).
	Magic int64 = 0x4455524C4F4701

	// FormatVersion is the current on-disk format version.
	FormatVersion int32 = 1

	// FileHeaderSize is the fixed size of the file header in bytes.
	FileHeaderSize = 32

	// RecordHeaderSize is the fixed per-record overhead in bytes.
	RecordHeaderSize = 16

	// minFrameLength is the frame length of a record with an empty payload.
	minFrameLength = 8

	// maxFrameLength is the sanity bound on a stored frame length. Anything
	// larger is treated as corruption regardless of the file size.
	maxFrameLength = 64 << 20
)

// encodeFileHeader returns the 32-byte file header with the given creation
// timestamp.
func encodeFileHeader(createdAt time.Time) []byte {
	buf := make([]byte, FileHeaderSize)
	binary.BigEndian.PutUint64(buf[0:8], uint64(Magic))
	binary.BigEndian.PutUint32(buf[8:12], uint32(FormatVersion))
	binary.BigEndian.PutUint32(buf[12:16], 0) // flags
	binary.BigEndian.PutUint64(buf[16:24], uint64(createdAt.UnixMilli()))
	binary.BigEndian.PutUint64(buf[24:32], 0) // reserved
	return buf
}

// CheckFileHeader validates a 32-byte header read from an existing file.
func CheckFileHeader(buf []byte) error {
	if len(buf) < FileHeaderSize {
		return fmt.Errorf("short file header: %d bytes", len(buf))
	}
	if magic := int64(binary.BigEndian.Uint64(buf[0:8])); magic != Magic {
		return fmt.Errorf("invalid magic: %#x", magic)
	}
	if v := int32(binary.BigEndian.Uint32(buf[8:12])); v != FormatVersion {
		return fmt.Errorf("unsupported format version: %d", v)
	}
	return nil
}

// recordChecksum computes the CRC-32 over producerID+payload.
func recordChecksum(producerID int64, payload []byte) uint32 {
	var idBuf [8]byte
	binary.BigEndian.PutUint64(idBuf[:], uint64(producerID))
	sum := crc32.ChecksumIEEE(idBuf[:])
	return crc32.Update(sum, crc32.IEEETable, payload)
}

// appendRecord serializes one record frame onto dst and returns the extended
// slice.
func appendRecord(dst []byte, producerID int64, payload []byte) []byte {
	var hdr [RecordHeaderSize]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(minFrameLength+len(payload)))
	binary.BigEndian.PutUint32(hdr[4:8], recordChecksum(producerID, payload))
	binary.BigEndian.PutUint64(hdr[8:16], uint64(producerID))
	dst = append(dst, hdr[:]...)
	return append(dst, payload...)
}

// parseRecordHeader decodes a 16-byte record header.
func parseRecordHeader(buf []byte) (frameLength uint32, checksum uint32, producerID int64) {
	frameLength = binary.BigEndian.Uint32(buf[0:4])
	checksum = binary.BigEndian.Uint32(buf[4:8])
	producerID = int64(binary.BigEndian.Uint64(buf[8:16]))
	return
}
