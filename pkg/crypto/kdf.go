// kdf.go implements key derivation and the hashes used for chaining.
//
// Key derivation is HKDF (RFC 5869) instantiated with SHA3-256. Extract
// concentrates the entropy of the raw hybrid shared secret (classical bytes
// followed by post-quantum bytes) into a pseudorandom key; Expand binds the
// output to a versioned label and any caller context such as a KEM
// transcript. Changing the label yields an unrelated key.
//
// Chain digests and transcripts use SHA3-256 directly.
package crypto

import (
	"encoding/binary"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"

	"github.com/pzverkov/quantum-agility/internal/constants"
	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
)

// maxKDFOutput is the HKDF-SHA3-256 limit of 255 hash blocks.
const maxKDFOutput = 255 * constants.HashSize

// HKDF derives outputLen bytes from secret with HKDF-SHA3-256.
//
// The info string is built as a length-prefixed encoding of label followed by
// each context component, so ("ab","c") and ("a","bc") never collide.
// An empty label is rejected.
func HKDF(secret, salt []byte, label string, outputLen int, context ...[]byte) ([]byte, error) {
	if label == "" {
		return nil, qerrors.NewCryptoError("HKDF", qerrors.ErrMissingLabel)
	}
	if outputLen <= 0 || outputLen > maxKDFOutput {
		return nil, qerrors.NewCryptoError("HKDF", qerrors.ErrInvalidKeySize)
	}
	if len(secret) == 0 {
		return nil, qerrors.NewCryptoError("HKDF", qerrors.ErrInvalidKeySize)
	}

	info := lengthPrefixed(append([][]byte{[]byte(label)}, context...)...)
	r := hkdf.New(sha3.New256, secret, salt, info)

	out := make([]byte, outputLen)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, qerrors.NewCryptoError("HKDF", err)
	}
	return out, nil
}

// TranscriptHash computes SHA3-256 over length-prefixed components under a
// domain separator.
func TranscriptHash(domain string, components ...[]byte) []byte {
	h := sha3.New256()
	h.Write(lengthPrefixed(append([][]byte{[]byte(domain)}, components...)...))
	return h.Sum(nil)
}

// ChainDigest computes the next ledger tip, SHA3-256(prev || data).
//
// prev is either empty (genesis) or a previous digest of fixed length, so the
// plain concatenation is unambiguous.
func ChainDigest(prev, data []byte) []byte {
	h := sha3.New256()
	h.Write(prev)
	h.Write(data)
	return h.Sum(nil)
}

// lengthPrefixed encodes count || (len || component)* with 4-byte big-endian
// integers.
func lengthPrefixed(components ...[]byte) []byte {
	size := 4
	for _, c := range components {
		size += 4 + len(c)
	}
	out := make([]byte, 0, size)
	out = binary.BigEndian.AppendUint32(out, uint32(len(components)))
	for _, c := range components {
		out = binary.BigEndian.AppendUint32(out, uint32(len(c)))
		out = append(out, c...)
	}
	return out
}
