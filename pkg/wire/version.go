// Package wire defines the versioned binary records persisted by the ledger.
//
// Every record starts with a fixed header followed by a body of protobuf
// wire-format fields:
//
//	+------+---------+--------+----------------------+
//	| Type | Version | Length | Body (protowire)     |
//	| 1B   | 1B      | 4B BE  | Variable             |
//	+------+---------+--------+----------------------+
//
// Length is the body length, not including the header. Field numbers are
// never reused; decoders skip fields they do not know so that later minor
// additions stay readable by older code. A record with a different Version
// is rejected with ErrUnsupportedVersion rather than guessed at.
package wire

import (
	"fmt"

	"github.com/pzverkov/quantum-agility/internal/constants"
)

// HeaderSize is the size of the record header in bytes.
const HeaderSize = 6

// Version is the record format version written by this package.
const Version = constants.FormatVersion

// RecordType identifies the kind of a record.
type RecordType uint8

const (
	TypeKEMPublicKey RecordType = iota + 1
	TypeKEMSecretKey
	TypeKEMCiphertext
	TypeSigPublicKey
	TypeSigSecretKey
	TypeSignature
	TypePayload
	TypeEntry
	TypeState
	TypeKeyRing
	TypeStreamHeader
	TypeArchive
	TypeKeyFile
)

var recordTypeNames = map[RecordType]string{
	TypeKEMPublicKey:  "kem-public-key",
	TypeKEMSecretKey:  "kem-secret-key",
	TypeKEMCiphertext: "kem-ciphertext",
	TypeSigPublicKey:  "sig-public-key",
	TypeSigSecretKey:  "sig-secret-key",
	TypeSignature:     "signature",
	TypePayload:       "payload",
	TypeEntry:         "entry",
	TypeState:         "state",
	TypeKeyRing:       "keyring",
	TypeStreamHeader:  "stream-header",
	TypeArchive:       "archive",
	TypeKeyFile:       "keyfile",
}

// String returns the record type name.
func (t RecordType) String() string {
	if n, ok := recordTypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("record(%d)", uint8(t))
}

// Valid reports whether t is a known record type.
func (t RecordType) Valid() bool {
	_, ok := recordTypeNames[t]
	return ok
}
