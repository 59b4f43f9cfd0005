// Package wal implements GraphLite's write-ahead log: a binary,
// append-only, segment-rotated, CRC-protected record of transactional
// events, bit-exact with the format in
// original_source/graphlite/src/txn/wal.rs (WALEntry::serialize/
// deserialize). hash/crc32 (IEEE polynomial) is the Go standard library's
// direct analogue of the Rust crc32fast crate used there, so no
// third-party CRC package is pulled in — see DESIGN.md.
package wal

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/graphlite-db/graphlite/pkg/errs"
)

// Magic precedes every entry and the file header, per spec.md's durability
// invariant ("every WAL entry on disk is preceded by the magic 0x53594E57").
const Magic uint32 = 0x53594E57

// Version is the on-disk WAL format version written into the file header.
const Version uint16 = 1

// MaxFileSize is the rotation threshold: 64 MiB per segment.
const MaxFileSize int64 = 64 * 1024 * 1024

// FileHeaderSize is magic(4) + version(2) + timestamp(8) + reserved(50).
const FileHeaderSize = 4 + 2 + 8 + 50

// EntryType discriminates the four WAL record kinds.
type EntryType byte

const (
	TransactionBegin     EntryType = 1
	TransactionOperation EntryType = 2
	TransactionCommit    EntryType = 3
	TransactionRollback  EntryType = 4
)

func (t EntryType) String() string {
	switch t {
	case TransactionBegin:
		return "TransactionBegin"
	case TransactionOperation:
		return "TransactionOperation"
	case TransactionCommit:
		return "TransactionCommit"
	case TransactionRollback:
		return "TransactionRollback"
	default:
		return "Unknown"
	}
}

// OperationType is the byte-coded statement kind carried by
// TransactionOperation entries. NoOperation (255) marks entries that carry
// no statement (Begin/Commit/Rollback).
type OperationType byte

const (
	OpSelect       OperationType = 0
	OpMatch        OperationType = 1
	OpInsert       OperationType = 10
	OpUpdate       OperationType = 11
	OpSet          OperationType = 12
	OpDelete       OperationType = 13
	OpRemove       OperationType = 14
	OpCreateTable  OperationType = 20
	OpCreateGraph  OperationType = 21
	OpAlterTable   OperationType = 22
	OpDropTable    OperationType = 23
	OpDropGraph    OperationType = 24
	OpCreateUser   OperationType = 25
	OpDropUser     OperationType = 26
	OpCreateRole   OperationType = 27
	OpDropRole     OperationType = 28
	OpGrantRole    OperationType = 29
	OpRevokeRole   OperationType = 30
	OpBegin        OperationType = 31
	OpCommit       OperationType = 32
	OpRollback     OperationType = 33
	OpOther        OperationType = 99
	OpNone         OperationType = 255
)

// AffectsCatalog reports whether an operation of this type (or carrying
// this description) must also be mirrored into the catalog substream,
// mirroring wal.rs's affects_catalog.
func AffectsCatalog(op OperationType, description string) bool {
	switch op {
	case OpCreateTable, OpCreateGraph, OpDropTable, OpDropGraph:
		return true
	}
	for _, marker := range []string{"SCHEMA", "INDEX", "CONSTRAINT", "VIEW"} {
		if bytes.Contains([]byte(description), []byte(marker)) {
			return true
		}
	}
	return false
}

// Entry is one WAL record.
type Entry struct {
	EntryType     EntryType
	TransactionID uint64
	GlobalSeq     uint64
	TxnSeq        uint64
	TimestampNS   uint64
	OperationType OperationType // OpNone when EntryType is not TransactionOperation
	Description   string
}

// Serialize encodes the entry exactly as wal.rs's WALEntry::serialize:
// magic(4) + entry_type(1) + transaction_id(8) + global_seq(8) + txn_seq(8)
// + timestamp_ns(8) + op_type_byte(1) + desc_len(4) + desc(var) + crc32(4),
// all integers little-endian.
func (e *Entry) Serialize() []byte {
	desc := []byte(e.Description)
	body := make([]byte, 0, 4+1+8+8+8+8+1+4+len(desc))

	buf4 := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf4, Magic)
	body = append(body, buf4...)

	body = append(body, byte(e.EntryType))

	buf8 := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf8, e.TransactionID)
	body = append(body, buf8...)

	binary.LittleEndian.PutUint64(buf8, e.GlobalSeq)
	body = append(body, buf8...)

	binary.LittleEndian.PutUint64(buf8, e.TxnSeq)
	body = append(body, buf8...)

	binary.LittleEndian.PutUint64(buf8, e.TimestampNS)
	body = append(body, buf8...)

	opByte := byte(OpNone)
	if e.EntryType == TransactionOperation {
		opByte = byte(e.OperationType)
	}
	body = append(body, opByte)

	binary.LittleEndian.PutUint32(buf4, uint32(len(desc)))
	body = append(body, buf4...)
	body = append(body, desc...)

	crc := crc32.ChecksumIEEE(body)
	crcBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(crcBuf, crc)
	return append(body, crcBuf...)
}

// DeserializeEntry decodes one entry from the head of buf, returning the
// entry and the number of bytes consumed. It returns a WALError of
// CorruptedEntry sub-kind when the magic, length, or CRC does not match.
func DeserializeEntry(buf []byte) (*Entry, int, error) {
	const minLen = 4 + 1 + 8 + 8 + 8 + 8 + 1 + 4
	if len(buf) < minLen {
		return nil, 0, errs.Wrap(errs.KindWAL, "entry shorter than fixed header", errs.ErrWALCorrupted).
			WithSubKind(string(errs.WALCorrupted))
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != Magic {
		return nil, 0, errs.Wrap(errs.KindWAL, "bad magic", errs.ErrWALCorrupted).
			WithSubKind(string(errs.WALCorrupted))
	}
	entryType := EntryType(buf[4])
	txnID := binary.LittleEndian.Uint64(buf[5:13])
	globalSeq := binary.LittleEndian.Uint64(buf[13:21])
	txnSeq := binary.LittleEndian.Uint64(buf[21:29])
	ts := binary.LittleEndian.Uint64(buf[29:37])
	opByte := buf[37]
	descLen := binary.LittleEndian.Uint32(buf[38:42])

	total := minLen + int(descLen) + 4
	if len(buf) < total {
		return nil, 0, errs.Wrap(errs.KindWAL, "entry truncated", errs.ErrWALCorrupted).
			WithSubKind(string(errs.WALCorrupted))
	}

	desc := string(buf[42 : 42+int(descLen)])
	gotCRC := binary.LittleEndian.Uint32(buf[42+int(descLen) : total])
	wantCRC := crc32.ChecksumIEEE(buf[0 : 42+int(descLen)])
	if gotCRC != wantCRC {
		return nil, 0, errs.Wrap(errs.KindWAL, "crc mismatch", errs.ErrWALCorrupted).
			WithSubKind(string(errs.WALCorrupted))
	}

	e := &Entry{
		EntryType:     entryType,
		TransactionID: txnID,
		GlobalSeq:     globalSeq,
		TxnSeq:        txnSeq,
		TimestampNS:   ts,
		OperationType: OperationType(opByte),
		Description:   desc,
	}
	if entryType != TransactionOperation {
		e.OperationType = OpNone
	}
	return e, total, nil
}

// WriteFileHeader writes the 64-byte segment header: magic(4) +
// version(2) + timestamp(8) + reserved(50).
func WriteFileHeader(timestampNS uint64) []byte {
	buf := make([]byte, FileHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], Magic)
	binary.LittleEndian.PutUint16(buf[4:6], Version)
	binary.LittleEndian.PutUint64(buf[6:14], timestampNS)
	// bytes 14:64 are reserved, left zero.
	return buf
}

// ReadFileHeader validates and strips the 64-byte segment header.
func ReadFileHeader(buf []byte) (timestampNS uint64, err error) {
	if len(buf) < FileHeaderSize {
		return 0, fmt.Errorf("wal: file shorter than header")
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != Magic {
		return 0, fmt.Errorf("wal: bad file header magic")
	}
	return binary.LittleEndian.Uint64(buf[6:14]), nil
}
