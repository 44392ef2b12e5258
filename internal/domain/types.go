// Package domain holds the core data types shared by every component of the
// view-call execution engine: block heights, contract identifiers, revision
// hashes, and the account record wire format (spec.md §3, §6).
package domain

import (
	"encoding/binary"
	"fmt"
)

// Height is a monotone, non-negative block height. A view call pins exactly
// one Height for the duration of its execution.
type Height = uint64

// ContractID is the opaque account/contract identifier (spec.md §3 "C").
type ContractID = string

// RevisionHash names an immutable payload at a specific resource revision
// (spec.md §3 "R"). It is opaque and fixed-length in practice, but callers
// should not assume a particular length beyond what the store returns.
type RevisionHash []byte

func (r RevisionHash) String() string {
	return fmt.Sprintf("%x", []byte(r))
}

// AccountRecordSize is the fixed on-wire size of an AccountRecord: 72 bytes
// (spec.md §6: amount(16) || locked(16) || code_hash(32) || storage_usage(8)).
const AccountRecordSize = 16 + 16 + 32 + 8

// AccountRecord is the fixed-layout binary account record (spec.md §3, §6).
type AccountRecord struct {
	Amount        [16]byte // u128 LE
	Locked        [16]byte // u128 LE
	CodeHash      [32]byte
	StorageUsage  uint64 // u64 LE
}

// EncodeAccountRecord serializes an AccountRecord to its 72-byte wire format:
// little-endian, concatenated, no padding.
func EncodeAccountRecord(rec AccountRecord) []byte {
	buf := make([]byte, AccountRecordSize)
	copy(buf[0:16], rec.Amount[:])
	copy(buf[16:32], rec.Locked[:])
	copy(buf[32:64], rec.CodeHash[:])
	binary.LittleEndian.PutUint64(buf[64:72], rec.StorageUsage)
	return buf
}

// DecodeAccountRecord parses the 72-byte wire format produced by
// EncodeAccountRecord. It fails if data is not exactly AccountRecordSize
// bytes long.
func DecodeAccountRecord(data []byte) (AccountRecord, error) {
	var rec AccountRecord
	if len(data) != AccountRecordSize {
		return rec, fmt.Errorf("account record: expected %d bytes, got %d", AccountRecordSize, len(data))
	}
	copy(rec.Amount[:], data[0:16])
	copy(rec.Locked[:], data[16:32])
	copy(rec.CodeHash[:], data[32:64])
	rec.StorageUsage = binary.LittleEndian.Uint64(data[64:72])
	return rec, nil
}
