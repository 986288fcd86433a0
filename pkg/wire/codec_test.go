package wire_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/wire"
)

func TestRoundTrip(t *testing.T) {
	rec, err := wire.NewEncoder(wire.TypeEntry).
		Uint(1, 42).
		Bool(2, true).
		Bytes(3, []byte("payload")).
		Bytes(4, []byte{}).
		Repeated(5, [][]byte{[]byte("a"), []byte("b")}).
		Finish()
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	f, err := wire.Decode(wire.TypeEntry, rec)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if f.Uint(1) != 42 {
		t.Errorf("Uint(1) = %d, want 42", f.Uint(1))
	}
	if !f.Bool(2) {
		t.Error("Bool(2) = false, want true")
	}
	b, err := f.Bytes(3)
	if err != nil || !bytes.Equal(b, []byte("payload")) {
		t.Errorf("Bytes(3) = %q, %v", b, err)
	}
	if !f.Has(4) {
		t.Error("empty non-nil field lost its presence")
	}
	if f.Has(9) {
		t.Error("absent field reported present")
	}
	if got := f.Repeated(5); len(got) != 2 || string(got[1]) != "b" {
		t.Errorf("Repeated(5) = %q", got)
	}
	if _, err := f.Bytes(5); !errors.Is(err, qerrors.ErrInvalidEncoding) {
		t.Errorf("Bytes on repeated field: got %v", err)
	}
}

func TestDecodeDoesNotAlias(t *testing.T) {
	rec, _ := wire.NewEncoder(wire.TypePayload).Bytes(1, []byte("abc")).Finish()
	f, err := wire.Decode(wire.TypePayload, rec)
	if err != nil {
		t.Fatal(err)
	}
	for i := range rec {
		rec[i] = 0
	}
	if b, _ := f.Bytes(1); string(b) != "abc" {
		t.Errorf("decoded bytes alias input: %q", b)
	}
}

func TestDecodeRejects(t *testing.T) {
	good, _ := wire.NewEncoder(wire.TypeState).Uint(1, 7).Bytes(2, []byte("x")).Finish()

	wrongVersion := append([]byte{}, good...)
	wrongVersion[1] = wire.Version + 1

	truncated := good[:len(good)-1]

	dupVarint := wire.NewEncoder(wire.TypeState).Uint(1, 1).Uint(1, 2)
	dup, _ := dupVarint.Finish()

	bad := []byte{byte(wire.TypeState), wire.Version, 0, 0, 0, 1, 0xff}

	tests := []struct {
		name string
		typ  wire.RecordType
		data []byte
		want error
	}{
		{"short", wire.TypeState, []byte{1, 2}, qerrors.ErrInvalidEncoding},
		{"wrong type", wire.TypeEntry, good, qerrors.ErrInvalidEncoding},
		{"wrong version", wire.TypeState, wrongVersion, qerrors.ErrUnsupportedVersion},
		{"truncated", wire.TypeState, truncated, qerrors.ErrInvalidEncoding},
		{"duplicate varint", wire.TypeState, dup, qerrors.ErrInvalidEncoding},
		{"bad tag", wire.TypeState, bad, qerrors.ErrInvalidEncoding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := wire.Decode(tt.typ, tt.data); !errors.Is(err, tt.want) {
				t.Errorf("Decode: got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestUnknownFieldsSkipped(t *testing.T) {
	rec, _ := wire.NewEncoder(wire.TypeState).Uint(1, 3).Finish()
	// Append a fixed32 field that no reader knows about.
	extra := protowire.AppendTag(nil, 99, protowire.Fixed32Type)
	extra = protowire.AppendFixed32(extra, 0xdeadbeef)
	rec = append(rec, extra...)
	rec[5] += byte(len(extra))

	f, err := wire.Decode(wire.TypeState, rec)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if f.Uint(1) != 3 {
		t.Errorf("Uint(1) = %d, want 3", f.Uint(1))
	}
}

func TestReadRecord(t *testing.T) {
	a, _ := wire.NewEncoder(wire.TypeEntry).Bytes(1, []byte("first")).Finish()
	b, _ := wire.NewEncoder(wire.TypeState).Uint(1, 2).Finish()
	r := bytes.NewReader(append(append([]byte{}, a...), b...))

	got, err := wire.ReadRecord(r)
	if err != nil || !bytes.Equal(got, a) {
		t.Fatalf("first record: %x, %v", got, err)
	}
	got, err = wire.ReadRecord(r)
	if err != nil || !bytes.Equal(got, b) {
		t.Fatalf("second record: %x, %v", got, err)
	}
	if _, err := wire.ReadRecord(r); err != io.EOF {
		t.Errorf("after last record: got %v, want io.EOF", err)
	}

	if _, err := wire.ReadRecord(bytes.NewReader(a[:len(a)-2])); err != io.ErrUnexpectedEOF {
		t.Errorf("truncated body: got %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestPeekType(t *testing.T) {
	rec, _ := wire.NewEncoder(wire.TypeKeyRing).Finish()
	typ, err := wire.PeekType(rec)
	if err != nil || typ != wire.TypeKeyRing {
		t.Errorf("PeekType = %v, %v", typ, err)
	}
	if !typ.Valid() || wire.RecordType(200).Valid() {
		t.Error("Valid() misclassified record types")
	}
}

func FuzzDecode(f *testing.F) {
	seed, _ := wire.NewEncoder(wire.TypeEntry).Uint(1, 1).Bytes(2, []byte("x")).Finish()
	f.Add(seed)
	f.Add([]byte{})
	f.Fuzz(func(t *testing.T, data []byte) {
		fields, err := wire.Decode(wire.TypeEntry, data)
		if err == nil && fields == nil {
			t.Fatal("nil fields without error")
		}
	})
}
