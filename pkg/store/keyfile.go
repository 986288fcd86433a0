package store

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"

	"github.com/pzverkov/quantum-agility/internal/constants"
	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/crypto"
	"github.com/pzverkov/quantum-agility/pkg/envelope"
	"github.com/pzverkov/quantum-agility/pkg/wire"
)

// KeyFileParams are the argon2id cost parameters of a key file.
type KeyFileParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultKeyFileParams follow the RFC 9106 second recommendation.
var DefaultKeyFileParams = KeyFileParams{Time: 3, Memory: 64 * 1024, Threads: 4}

// Upper bounds accepted when reading a key file.
const (
	maxKeyFileTime   = 64
	maxKeyFileMemory = 4 << 20
	keyFileSaltSize  = 16
)

const (
	fieldKFSalt    wire.Number = 1
	fieldKFTime    wire.Number = 2
	fieldKFMemory  wire.Number = 3
	fieldKFThreads wire.Number = 4
	fieldKFPayload wire.Number = 5
)

// Validate checks the parameters against the bounds accepted on read.
func (p KeyFileParams) Validate() error {
	if p.Time == 0 || p.Time > maxKeyFileTime || p.Memory < 8*uint32(p.Threads) || p.Memory > maxKeyFileMemory || p.Threads == 0 {
		return qerrors.NewConfigError("keyfile.params", fmt.Sprintf("%+v", p), qerrors.ErrInvalidEncoding)
	}
	return nil
}

func (p KeyFileParams) aad(salt []byte) []byte {
	var buf [9]byte
	binary.BigEndian.PutUint32(buf[0:4], p.Time)
	binary.BigEndian.PutUint32(buf[4:8], p.Memory)
	buf[8] = p.Threads
	return crypto.TranscriptHash(constants.LabelKeyFile, salt, buf[:])
}

func (p KeyFileParams) key(passphrase, salt []byte) ([]byte, error) {
	stretched := argon2.IDKey(passphrase, salt, p.Time, p.Memory, p.Threads, envelope.KeySize)
	defer crypto.Zeroize(stretched)
	return envelope.DeriveKey(stretched, constants.LabelKeyFile, salt)
}

// SealKeyFile encrypts secret under passphrase and returns the key file
// record.
func SealKeyFile(secret, passphrase []byte, params KeyFileParams) ([]byte, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	salt, err := crypto.SecureRandomBytes(keyFileSaltSize)
	if err != nil {
		return nil, err
	}
	key, err := params.key(passphrase, salt)
	if err != nil {
		return nil, err
	}
	defer crypto.Zeroize(key)

	payload, err := envelope.Encrypt(key, secret, params.aad(salt))
	if err != nil {
		return nil, err
	}
	sealed, err := payload.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return wire.NewEncoder(wire.TypeKeyFile).
		Bytes(fieldKFSalt, salt).
		Uint(fieldKFTime, uint64(params.Time)).
		Uint(fieldKFMemory, uint64(params.Memory)).
		Uint(fieldKFThreads, uint64(params.Threads)).
		Bytes(fieldKFPayload, sealed).
		Finish()
}

// OpenKeyFile decrypts a key file record. A wrong passphrase or a modified
// file yields ErrBadPassphrase.
func OpenKeyFile(data, passphrase []byte) ([]byte, error) {
	f, err := wire.Decode(wire.TypeKeyFile, data)
	if err != nil {
		return nil, err
	}
	params := KeyFileParams{
		Time:    uint32(f.Uint(fieldKFTime)),
		Memory:  uint32(f.Uint(fieldKFMemory)),
		Threads: uint8(f.Uint(fieldKFThreads)),
	}
	if f.Uint(fieldKFTime) > maxKeyFileTime || f.Uint(fieldKFMemory) > maxKeyFileMemory || f.Uint(fieldKFThreads) > 255 {
		return nil, fmt.Errorf("%w: key file cost parameters out of range", qerrors.ErrInvalidEncoding)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	salt, err := f.Bytes(fieldKFSalt)
	if err != nil {
		return nil, err
	}
	if len(salt) != keyFileSaltSize {
		return nil, fmt.Errorf("%w: key file salt", qerrors.ErrInvalidEncoding)
	}
	sealed, err := f.Bytes(fieldKFPayload)
	if err != nil {
		return nil, err
	}
	payload, err := envelope.ParsePayload(sealed)
	if err != nil {
		return nil, err
	}

	key, err := params.key(passphrase, salt)
	if err != nil {
		return nil, err
	}
	defer crypto.Zeroize(key)

	secret, err := envelope.Decrypt(key, payload, params.aad(salt))
	if err != nil {
		return nil, qerrors.NewStorageError("keyfile", "open", qerrors.ErrBadPassphrase)
	}
	return secret, nil
}

// WriteKeyFile seals secret and writes it to path with mode 0600. The file
// is replaced atomically.
func WriteKeyFile(path string, secret, passphrase []byte, params KeyFileParams) error {
	data, err := SealKeyFile(secret, passphrase, params)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data, 0o600)
}

// ReadKeyFile reads and decrypts the key file at path.
func ReadKeyFile(path string, passphrase []byte) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, qerrors.NewStorageError("keyfile", "read", err)
	}
	return OpenKeyFile(data, passphrase)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return qerrors.NewStorageError("keyfile", "write", err)
	}
	tmpName := tmp.Name()
	cleanup := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return qerrors.NewStorageError("keyfile", "write", err)
	}

	if err := tmp.Chmod(perm); err != nil {
		return cleanup(err)
	}
	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return qerrors.NewStorageError("keyfile", "write", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return qerrors.NewStorageError("keyfile", "write", err)
	}
	return nil
}
