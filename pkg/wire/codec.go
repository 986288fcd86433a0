package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/pzverkov/quantum-agility/internal/constants"
	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
)

// Number is a field number within a record body.
type Number = protowire.Number

// Encoder builds a single record.
type Encoder struct {
	typ RecordType
	buf []byte
}

// NewEncoder starts a record of the given type.
func NewEncoder(t RecordType) *Encoder {
	buf := make([]byte, HeaderSize, 256)
	buf[0] = byte(t)
	buf[1] = Version
	return &Encoder{typ: t, buf: buf}
}

// Uint appends a varint field. Zero values are omitted.
func (e *Encoder) Uint(n Number, v uint64) *Encoder {
	if v == 0 {
		return e
	}
	e.buf = protowire.AppendTag(e.buf, n, protowire.VarintType)
	e.buf = protowire.AppendVarint(e.buf, v)
	return e
}

// Bool appends a boolean field. False is omitted.
func (e *Encoder) Bool(n Number, v bool) *Encoder {
	if !v {
		return e
	}
	return e.Uint(n, 1)
}

// Bytes appends a length-delimited field. Nil slices are omitted; an empty
// non-nil slice is written so that presence survives the round trip.
func (e *Encoder) Bytes(n Number, b []byte) *Encoder {
	if b == nil {
		return e
	}
	e.buf = protowire.AppendTag(e.buf, n, protowire.BytesType)
	e.buf = protowire.AppendBytes(e.buf, b)
	return e
}

// Repeated appends one length-delimited field per element.
func (e *Encoder) Repeated(n Number, items [][]byte) *Encoder {
	for _, b := range items {
		e.buf = protowire.AppendTag(e.buf, n, protowire.BytesType)
		e.buf = protowire.AppendBytes(e.buf, b)
	}
	return e
}

// Finish writes the header length and returns the encoded record.
func (e *Encoder) Finish() ([]byte, error) {
	if len(e.buf) > constants.MaxRecordSize {
		return nil, fmt.Errorf("%w: %s record of %d bytes", qerrors.ErrMessageTooLarge, e.typ, len(e.buf))
	}
	binary.BigEndian.PutUint32(e.buf[2:HeaderSize], uint32(len(e.buf)-HeaderSize))
	return e.buf, nil
}

// Fields is a decoded record body.
type Fields struct {
	uints    map[Number]uint64
	bytes    map[Number][]byte
	repeated map[Number][][]byte
}

// Decode parses a record, checking its type, version and length.
//
// Byte fields are copied, so the result does not alias data. Unknown field
// numbers are skipped; a field that appears twice is an encoding error
// unless it is read back with Repeated.
func Decode(want RecordType, data []byte) (*Fields, error) {
	body, err := body(want, data)
	if err != nil {
		return nil, err
	}

	f := &Fields{
		uints:    make(map[Number]uint64),
		bytes:    make(map[Number][]byte),
		repeated: make(map[Number][][]byte),
	}
	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			return nil, encodingError(want, protowire.ParseError(n))
		}
		body = body[n:]

		switch typ {
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(body)
			if m < 0 {
				return nil, encodingError(want, protowire.ParseError(m))
			}
			if _, dup := f.uints[num]; dup {
				return nil, encodingError(want, fmt.Errorf("duplicate field %d", num))
			}
			f.uints[num] = v
			body = body[m:]
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(body)
			if m < 0 {
				return nil, encodingError(want, protowire.ParseError(m))
			}
			c := append([]byte{}, v...)
			f.repeated[num] = append(f.repeated[num], c)
			f.bytes[num] = c
			body = body[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, body)
			if m < 0 {
				return nil, encodingError(want, protowire.ParseError(m))
			}
			body = body[m:]
		}
	}
	return f, nil
}

// Uint returns a varint field, or 0 when absent.
func (f *Fields) Uint(n Number) uint64 { return f.uints[n] }

// Bool returns a boolean field.
func (f *Fields) Bool(n Number) bool { return f.uints[n] != 0 }

// Bytes returns a single length-delimited field, or nil when absent.
// It fails when the field was repeated.
func (f *Fields) Bytes(n Number) ([]byte, error) {
	if len(f.repeated[n]) > 1 {
		return nil, fmt.Errorf("%w: duplicate field %d", qerrors.ErrInvalidEncoding, n)
	}
	return f.bytes[n], nil
}

// Has reports whether a length-delimited field was present.
func (f *Fields) Has(n Number) bool {
	_, ok := f.bytes[n]
	return ok
}

// Repeated returns every occurrence of a length-delimited field in order.
func (f *Fields) Repeated(n Number) [][]byte { return f.repeated[n] }

// PeekType returns the record type of data without decoding the body.
func PeekType(data []byte) (RecordType, error) {
	if len(data) < HeaderSize {
		return 0, fmt.Errorf("%w: short header", qerrors.ErrInvalidEncoding)
	}
	return RecordType(data[0]), nil
}

// ReadRecord reads one complete record from r.
func ReadRecord(r io.Reader) ([]byte, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(header[2:HeaderSize])
	if int64(length) > constants.MaxRecordSize {
		return nil, qerrors.ErrMessageTooLarge
	}

	record := make([]byte, HeaderSize+int(length))
	copy(record, header)
	if _, err := io.ReadFull(r, record[HeaderSize:]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return record, nil
}

func body(want RecordType, data []byte) ([]byte, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: short %s header", qerrors.ErrInvalidEncoding, want)
	}
	if RecordType(data[0]) != want {
		return nil, fmt.Errorf("%w: got %s record, want %s", qerrors.ErrInvalidEncoding, RecordType(data[0]), want)
	}
	if data[1] != Version {
		return nil, fmt.Errorf("%w: %s record version %d", qerrors.ErrUnsupportedVersion, want, data[1])
	}
	length := binary.BigEndian.Uint32(data[2:HeaderSize])
	if int64(length) > constants.MaxRecordSize {
		return nil, qerrors.ErrMessageTooLarge
	}
	if uint64(len(data)-HeaderSize) != uint64(length) {
		return nil, fmt.Errorf("%w: %s length %d, have %d", qerrors.ErrInvalidEncoding, want, length, len(data)-HeaderSize)
	}
	return data[HeaderSize:], nil
}

func encodingError(t RecordType, err error) error {
	return fmt.Errorf("%w: %s: %v", qerrors.ErrInvalidEncoding, t, err)
}
