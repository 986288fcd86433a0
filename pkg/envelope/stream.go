package envelope

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/pzverkov/quantum-agility/internal/constants"
	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/crypto"
	"github.com/pzverkov/quantum-agility/pkg/hybridkem"
	"github.com/pzverkov/quantum-agility/pkg/wire"
)

// Stream format:
//
//	header record (wire.TypeStreamHeader): mode, KEM ciphertext, suite,
//	                                       nonce prefix, chunk size
//	frame*: | final 1B | length 4B BE | ciphertext || tag |
//
// Chunk i is sealed with nonce prefix || uint64(i) and associated data
// H(header) || uint64(i) || final. Exactly one frame has final set and it
// is the last one, so truncation, reordering and appended frames are all
// detected.

const (
	fieldStreamMode   wire.Number = 1
	fieldStreamKEM    wire.Number = 2
	fieldStreamSuite  wire.Number = 3
	fieldStreamPrefix wire.Number = 4
	fieldStreamChunk  wire.Number = 5
)

const frameHeaderSize = 5

// StreamEncryptor encrypts a byte stream to a hybrid KEM public key. The
// key is fresh per stream. Close must be called to write the final frame.
type StreamEncryptor struct {
	w          io.Writer
	aead       *crypto.AEAD
	prefix     []byte
	headerHash []byte
	chunkSize  int
	buf        []byte
	counter    uint64
	closed     bool
}

// NewStreamEncryptor encapsulates to pk under mode, writes the stream
// header to w, and returns an encryptor for the body. chunkSize <= 0 selects
// constants.StreamChunkSize.
func NewStreamEncryptor(w io.Writer, pk *hybridkem.PublicKey, mode hybridkem.Mode, chunkSize int) (*StreamEncryptor, error) {
	if chunkSize <= 0 {
		chunkSize = constants.StreamChunkSize
	}
	if chunkSize > constants.MaxPayloadSize {
		return nil, qerrors.ErrMessageTooLarge
	}

	ct, ss, err := hybridkem.Encapsulate(pk, mode)
	if err != nil {
		return nil, err
	}
	defer crypto.Zeroize(ss)

	key, err := DeriveKey(ss, constants.LabelStream, hybridkem.Transcript(pk, ct))
	if err != nil {
		return nil, err
	}
	defer crypto.Zeroize(key)

	suite := crypto.DefaultCipherSuite()
	a, err := crypto.NewAEAD(suite, key)
	if err != nil {
		return nil, err
	}
	prefix, err := crypto.SecureRandomBytes(a.NonceSize() - 8)
	if err != nil {
		return nil, err
	}

	ctBytes, err := ct.MarshalBinary()
	if err != nil {
		return nil, err
	}
	header, err := wire.NewEncoder(wire.TypeStreamHeader).
		Uint(fieldStreamMode, uint64(mode.Uint16())).
		Bytes(fieldStreamKEM, ctBytes).
		Uint(fieldStreamSuite, uint64(suite)).
		Bytes(fieldStreamPrefix, prefix).
		Uint(fieldStreamChunk, uint64(chunkSize)).
		Finish()
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(header); err != nil {
		return nil, err
	}

	return &StreamEncryptor{
		w:          w,
		aead:       a,
		prefix:     prefix,
		headerHash: crypto.TranscriptHash(constants.LabelStream, header),
		chunkSize:  chunkSize,
		buf:        make([]byte, 0, chunkSize),
	}, nil
}

// Write buffers p and writes every complete chunk. A full chunk is held
// back until more data arrives or Close is called, so that the final frame
// is never empty unless the whole stream is.
func (e *StreamEncryptor) Write(p []byte) (int, error) {
	if e.closed {
		return 0, errors.New("envelope: write to closed stream")
	}
	n := len(p)
	for len(p) > 0 {
		if len(e.buf) == e.chunkSize {
			if err := e.flush(false); err != nil {
				return n - len(p), err
			}
		}
		take := min(e.chunkSize-len(e.buf), len(p))
		e.buf = append(e.buf, p[:take]...)
		p = p[take:]
	}
	return n, nil
}

// Close writes the final frame. It does not close the underlying writer.
func (e *StreamEncryptor) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	err := e.flush(true)
	crypto.Zeroize(e.buf)
	return err
}

func (e *StreamEncryptor) flush(final bool) error {
	if e.counter >= constants.MaxSealsPerKey {
		return qerrors.ErrNonceExhausted
	}
	sealed, err := e.aead.SealWithNonce(streamNonce(e.prefix, e.counter), e.buf, streamAAD(e.headerHash, e.counter, final))
	if err != nil {
		return err
	}

	frame := make([]byte, frameHeaderSize, frameHeaderSize+len(sealed))
	if final {
		frame[0] = 1
	}
	binary.BigEndian.PutUint32(frame[1:], uint32(len(sealed)))
	if _, err := e.w.Write(append(frame, sealed...)); err != nil {
		return err
	}

	e.counter++
	e.buf = e.buf[:0]
	return nil
}

// StreamDecryptor reads a stream written by StreamEncryptor. Read returns
// only authenticated plaintext; a stream that ends before its final frame
// fails with ErrStreamTruncated.
type StreamDecryptor struct {
	r          *bufio.Reader
	aead       *crypto.AEAD
	prefix     []byte
	headerHash []byte
	chunkSize  int
	counter    uint64
	pending    []byte
	done       bool
	err        error
}

// NewStreamDecryptor reads the stream header from r and recovers the
// stream key with sk. sk must carry its public key.
func NewStreamDecryptor(r io.Reader, sk *hybridkem.SecretKey) (*StreamDecryptor, error) {
	br := bufio.NewReader(r)
	header, err := wire.ReadRecord(br)
	if err != nil {
		return nil, fmt.Errorf("envelope: reading stream header: %w", err)
	}
	f, err := wire.Decode(wire.TypeStreamHeader, header)
	if err != nil {
		return nil, err
	}

	mode, err := hybridkem.ModeFromUint16(uint16(f.Uint(fieldStreamMode)))
	if err != nil {
		return nil, err
	}
	ctBytes, err := f.Bytes(fieldStreamKEM)
	if err != nil {
		return nil, err
	}
	ct, err := hybridkem.ParseCiphertext(ctBytes)
	if err != nil {
		return nil, err
	}
	if sk == nil || sk.Public == nil {
		return nil, qerrors.ErrInvalidPrivateKey
	}

	ss, err := hybridkem.Decapsulate(ct, sk, mode)
	if err != nil {
		return nil, err
	}
	defer crypto.Zeroize(ss)

	key, err := DeriveKey(ss, constants.LabelStream, hybridkem.Transcript(sk.Public, ct))
	if err != nil {
		return nil, err
	}
	defer crypto.Zeroize(key)

	a, err := crypto.NewAEAD(constants.CipherSuite(f.Uint(fieldStreamSuite)), key)
	if err != nil {
		return nil, err
	}
	prefix, err := f.Bytes(fieldStreamPrefix)
	if err != nil {
		return nil, err
	}
	if len(prefix) != a.NonceSize()-8 {
		return nil, qerrors.ErrInvalidNonce
	}
	chunk := f.Uint(fieldStreamChunk)
	if chunk == 0 || chunk > constants.MaxPayloadSize {
		return nil, fmt.Errorf("%w: stream chunk size %d", qerrors.ErrInvalidEncoding, chunk)
	}

	return &StreamDecryptor{
		r:          br,
		aead:       a,
		prefix:     prefix,
		headerHash: crypto.TranscriptHash(constants.LabelStream, header),
		chunkSize:  int(chunk),
	}, nil
}

// Read implements io.Reader.
func (d *StreamDecryptor) Read(p []byte) (int, error) {
	for len(d.pending) == 0 {
		if d.err != nil {
			return 0, d.err
		}
		if d.done {
			d.err = d.checkTrailing()
			return 0, d.err
		}
		if err := d.next(); err != nil {
			d.err = err
			return 0, err
		}
	}
	n := copy(p, d.pending)
	d.pending = d.pending[n:]
	return n, nil
}

func (d *StreamDecryptor) next() error {
	var hdr [frameHeaderSize]byte
	if _, err := io.ReadFull(d.r, hdr[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return qerrors.ErrStreamTruncated
		}
		return err
	}
	if hdr[0] > 1 {
		return fmt.Errorf("%w: bad frame flag", qerrors.ErrInvalidEncoding)
	}
	final := hdr[0] == 1
	length := binary.BigEndian.Uint32(hdr[1:])
	if int64(length) > int64(d.chunkSize)+constants.TagSize || length < constants.TagSize {
		return fmt.Errorf("%w: frame length %d", qerrors.ErrInvalidEncoding, length)
	}

	sealed := make([]byte, length)
	if _, err := io.ReadFull(d.r, sealed); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return qerrors.ErrStreamTruncated
		}
		return err
	}

	pt, err := d.aead.OpenWithNonce(streamNonce(d.prefix, d.counter), sealed, streamAAD(d.headerHash, d.counter, final))
	if err != nil {
		return qerrors.NewCryptoError("envelope.StreamDecryptor", qerrors.ErrAuthenticationFailed)
	}
	d.counter++
	d.pending = pt
	d.done = final
	return nil
}

func (d *StreamDecryptor) checkTrailing() error {
	if _, err := d.r.ReadByte(); err == io.EOF {
		return io.EOF
	}
	return fmt.Errorf("%w: data after final frame", qerrors.ErrInvalidEncoding)
}

func streamNonce(prefix []byte, counter uint64) []byte {
	nonce := make([]byte, 0, len(prefix)+8)
	nonce = append(nonce, prefix...)
	return binary.BigEndian.AppendUint64(nonce, counter)
}

func streamAAD(headerHash []byte, counter uint64, final bool) []byte {
	aad := make([]byte, 0, len(headerHash)+9)
	aad = append(aad, headerHash...)
	aad = binary.BigEndian.AppendUint64(aad, counter)
	if final {
		return append(aad, 1)
	}
	return append(aad, 0)
}
