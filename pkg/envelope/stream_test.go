package envelope_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/crypto"
	"github.com/pzverkov/quantum-agility/pkg/envelope"
	"github.com/pzverkov/quantum-agility/pkg/hybridkem"
	"github.com/pzverkov/quantum-agility/pkg/registry"
)

const testChunk = 1024

func streamKeys(t *testing.T) (*hybridkem.PublicKey, *hybridkem.SecretKey, hybridkem.Mode) {
	t.Helper()
	mode := hybridkem.HybridMode(registry.Lattice)
	pk, sk, err := hybridkem.GenerateKeyPair(mode)
	if err != nil {
		t.Fatal(err)
	}
	return pk, sk, mode
}

func encryptStream(t *testing.T, pk *hybridkem.PublicKey, mode hybridkem.Mode, pt []byte, writes int) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc, err := envelope.NewStreamEncryptor(&buf, pk, mode, testChunk)
	if err != nil {
		t.Fatalf("NewStreamEncryptor failed: %v", err)
	}
	step := max(len(pt)/writes, 1)
	for off := 0; off < len(pt); off += step {
		if _, err := enc.Write(pt[off:min(off+step, len(pt))]); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return buf.Bytes()
}

func TestStreamRoundTrip(t *testing.T) {
	pk, sk, mode := streamKeys(t)
	for _, size := range []int{0, 1, testChunk - 1, testChunk, testChunk + 1, 3*testChunk + 500, 4 * testChunk} {
		for _, writes := range []int{1, 7} {
			pt, _ := crypto.SecureRandomBytes(max(size, 1))
			pt = pt[:size]

			data := encryptStream(t, pk, mode, pt, writes)
			dec, err := envelope.NewStreamDecryptor(bytes.NewReader(data), sk)
			if err != nil {
				t.Fatalf("NewStreamDecryptor failed: %v", err)
			}
			got, err := io.ReadAll(dec)
			if err != nil {
				t.Fatalf("size %d/%d writes: ReadAll failed: %v", size, writes, err)
			}
			if !bytes.Equal(got, pt) {
				t.Errorf("size %d/%d writes: round trip mismatch", size, writes)
			}
		}
	}
}

func TestStreamTruncationDetected(t *testing.T) {
	pk, sk, mode := streamKeys(t)
	pt := bytes.Repeat([]byte("x"), 3*testChunk+10)
	data := encryptStream(t, pk, mode, pt, 1)

	// Drop the final frame: 10 bytes of plaintext plus header and tag.
	cut := data[:len(data)-(5+10+16)]
	dec, err := envelope.NewStreamDecryptor(bytes.NewReader(cut), sk)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.ReadAll(dec); !errors.Is(err, qerrors.ErrStreamTruncated) {
		t.Errorf("got %v, want ErrStreamTruncated", err)
	}

	// Cut in the middle of a frame.
	dec, _ = envelope.NewStreamDecryptor(bytes.NewReader(data[:len(data)-3]), sk)
	if _, err := io.ReadAll(dec); !errors.Is(err, qerrors.ErrStreamTruncated) {
		t.Errorf("mid-frame cut: got %v, want ErrStreamTruncated", err)
	}
}

func TestStreamTamperingDetected(t *testing.T) {
	pk, sk, mode := streamKeys(t)
	pt := bytes.Repeat([]byte("y"), 2*testChunk+1)
	data := encryptStream(t, pk, mode, pt, 1)

	// The final frame is 1 flag byte, a 4-byte length, 1 sealed byte and
	// a 16-byte tag.
	const finalFrame = 5 + 1 + 16
	tests := []struct {
		name   string
		offset int
		want   error
	}{
		{"tag", len(data) - 1, qerrors.ErrAuthenticationFailed},
		{"ciphertext", len(data) - 17, qerrors.ErrAuthenticationFailed},
		{"length field", len(data) - finalFrame + 2, qerrors.ErrInvalidEncoding},
	}
	for _, tt := range tests {
		tampered := append([]byte{}, data...)
		tampered[tt.offset] ^= 0x01
		dec, err := envelope.NewStreamDecryptor(bytes.NewReader(tampered), sk)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.ReadAll(dec); !errors.Is(err, tt.want) {
			t.Errorf("tampered %s: got %v, want %v", tt.name, err, tt.want)
		}
	}

	trailing := append(append([]byte{}, data...), 0x00)
	dec, _ = envelope.NewStreamDecryptor(bytes.NewReader(trailing), sk)
	if _, err := io.ReadAll(dec); !errors.Is(err, qerrors.ErrInvalidEncoding) {
		t.Errorf("trailing data: got %v, want ErrInvalidEncoding", err)
	}
}

func TestStreamWrongKey(t *testing.T) {
	pk, _, mode := streamKeys(t)
	_, other, _ := streamKeys(t)
	data := encryptStream(t, pk, mode, []byte("secret"), 1)

	dec, err := envelope.NewStreamDecryptor(bytes.NewReader(data), other)
	if err == nil {
		_, err = io.ReadAll(dec)
	}
	if err == nil {
		t.Error("stream decrypted with the wrong key")
	}
}

func TestStreamWriteAfterClose(t *testing.T) {
	pk, _, mode := streamKeys(t)
	enc, err := envelope.NewStreamEncryptor(io.Discard, pk, mode, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Write([]byte("late")); err == nil {
		t.Error("Write after Close succeeded")
	}
	if err := enc.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
