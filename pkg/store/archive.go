package store

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"

	"github.com/pzverkov/quantum-agility/internal/constants"
	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/metrics"
	"github.com/pzverkov/quantum-agility/pkg/wire"
)

// Archive layout, inside one xz stream:
//
//	header record  (format name, entry count, state)
//	item record    (index, entry) for each entry, in order
const (
	fieldArchiveFormat wire.Number = 1
	fieldArchiveCount  wire.Number = 2
	fieldArchiveState  wire.Number = 3
	fieldArchiveIndex  wire.Number = 4
	fieldArchiveEntry  wire.Number = 5
)

// Export writes the full content of s to w as an xz-compressed archive.
func Export(ctx context.Context, s Store, w io.Writer) (err error) {
	ctx, end := metrics.StartSpan(ctx, metrics.SpanArchiveExport, metrics.SpanAttributes{})
	defer func() { end(err) }()

	snap, err := s.Load(ctx)
	if err != nil {
		return err
	}

	xw, err := xz.NewWriter(w)
	if err != nil {
		return qerrors.NewStorageError("archive", "export", err)
	}

	header, err := wire.NewEncoder(wire.TypeArchive).
		Bytes(fieldArchiveFormat, []byte(constants.FormatName)).
		Uint(fieldArchiveCount, uint64(len(snap.Entries))).
		Bytes(fieldArchiveState, snap.State).
		Finish()
	if err != nil {
		return err
	}
	if _, err := xw.Write(header); err != nil {
		return qerrors.NewStorageError("archive", "export", err)
	}

	for i, entry := range snap.Entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		item, err := wire.NewEncoder(wire.TypeArchive).
			Uint(fieldArchiveIndex, uint64(i)+1).
			Bytes(fieldArchiveEntry, nonNilBlob(entry)).
			Finish()
		if err != nil {
			return err
		}
		if _, err := xw.Write(item); err != nil {
			return qerrors.NewStorageError("archive", "export", err)
		}
	}

	if err := xw.Close(); err != nil {
		return qerrors.NewStorageError("archive", "export", err)
	}
	return nil
}

// Import reads an archive written by Export into s, which must be empty.
// The state record is written once every entry has been appended.
func Import(ctx context.Context, s Store, r io.Reader) (imported int, err error) {
	ctx, end := metrics.StartSpan(ctx, metrics.SpanArchiveImport, metrics.SpanAttributes{})
	defer func() { end(err) }()

	xr, err := xz.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("%w: archive: %v", qerrors.ErrInvalidEncoding, err)
	}

	record, err := wire.ReadRecord(xr)
	if err != nil {
		return 0, archiveReadError(err)
	}
	header, err := wire.Decode(wire.TypeArchive, record)
	if err != nil {
		return 0, err
	}
	format, err := header.Bytes(fieldArchiveFormat)
	if err != nil {
		return 0, err
	}
	if string(format) != constants.FormatName {
		return 0, fmt.Errorf("%w: archive format %q", qerrors.ErrUnsupportedVersion, format)
	}
	count := header.Uint(fieldArchiveCount)
	state, err := header.Bytes(fieldArchiveState)
	if err != nil {
		return 0, err
	}

	var n uint64
	for ; n < count; n++ {
		if err := ctx.Err(); err != nil {
			return int(n), err
		}
		record, err := wire.ReadRecord(xr)
		if err != nil {
			return int(n), archiveReadError(err)
		}
		item, err := wire.Decode(wire.TypeArchive, record)
		if err != nil {
			return int(n), err
		}
		if item.Uint(fieldArchiveIndex) != n+1 {
			return int(n), fmt.Errorf("%w: archive item %d out of order", qerrors.ErrInvalidEncoding, n)
		}
		entry, err := item.Bytes(fieldArchiveEntry)
		if err != nil {
			return int(n), err
		}
		if err := s.Append(ctx, n, entry, nil); err != nil {
			return int(n), err
		}
	}

	if _, err := wire.ReadRecord(xr); !errors.Is(err, io.EOF) {
		if err == nil {
			err = fmt.Errorf("%w: trailing archive data", qerrors.ErrInvalidEncoding)
		}
		return int(n), archiveReadError(err)
	}
	if state != nil {
		if err := s.PutState(ctx, state); err != nil {
			return int(n), err
		}
	}
	return int(n), nil
}

func archiveReadError(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: archive truncated", qerrors.ErrInvalidEncoding)
	}
	if errors.Is(err, qerrors.ErrInvalidEncoding) || errors.Is(err, qerrors.ErrMessageTooLarge) {
		return err
	}
	return fmt.Errorf("%w: archive: %v", qerrors.ErrInvalidEncoding, err)
}
