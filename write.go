package zpack

import (
	"io"
	"os"
)

// writeDirectory serializes the in-memory directory map to w starting at
// dirOffset, followed by the end-of-directory trailer, and refreshes the
// archive's Stats. It is shared by Write (writing to the live archive file)
// and Repack (writing to the rebuilt sibling file).
//
// Go map iteration order is randomized, so entries are emitted in sorted
// name order rather than the original's unordered_map traversal order;
// every size/offset invariant holds regardless of emission order.
func (a *Archive) writeDirectory(w io.WriteSeeker, dirOffset uint64) (uint64, error) {
	if _, err := w.Seek(int64(dirOffset), io.SeekStart); err != nil {
		a.lastErr = ErrWriteWrongSeek
		a.lastIOErr = err
		return 0, err
	}

	var stats Stats
	var dirSize uint32
	var localsSize uint64

	names := a.sortedNames()
	for _, name := range names {
		entry := a.dir[name]

		stats.FilesSizeCompressed += entry.Header.CompressedSize
		stats.FilesSizeUncompressed += entry.Header.UncompressedSize

		if _, err := w.Write(entry.Header.encode()); err != nil {
			a.lastErr = ErrWriteWrongSeek
			a.lastIOErr = err
			return 0, err
		}
		if _, err := w.Write([]byte(entry.Filename)); err != nil {
			a.lastErr = ErrWriteWrongSeek
			a.lastIOErr = err
			return 0, err
		}
		for _, extra := range entry.Extra {
			if _, err := w.Write(extra.encode()); err != nil {
				a.lastErr = ErrWriteWrongSeek
				a.lastIOErr = err
				return 0, err
			}
			dirSize += localFileExtraFieldSize
			localsSize += localFileExtraFieldSize
		}
		if _, err := w.Write([]byte(entry.Comment)); err != nil {
			a.lastErr = ErrWriteWrongSeek
			a.lastIOErr = err
			return 0, err
		}

		dirSize += directoryFileHeaderSize + uint32(len(entry.Filename)) + uint32(len(entry.Comment))
		localsSize += localFileHeaderSize + uint64(len(entry.Filename))
	}

	eod := endOfDirectory{
		Signature:       magicEndOfDirectory,
		RecordsNumber:   uint16(len(a.dir)),
		CommentLen:      0,
		DirRecordOffset: dirOffset,
		DirRecordSize:   dirSize,
	}
	if _, err := w.Write(eod.encode()); err != nil {
		a.lastErr = ErrWriteWrongSeek
		a.lastIOErr = err
		return 0, err
	}
	a.dirEnd = eod

	stats.ArchiveSize = stats.FilesSizeCompressed + uint64(dirSize) + endOfDirectorySize + localsSize
	stats.Records = uint32(len(a.dir))
	lastOffset := dirOffset + uint64(dirSize) + endOfDirectorySize
	stats.LastOffset = lastOffset
	stats.DirectoryOffset = eod.DirRecordOffset

	a.stats = stats

	a.debugLog().Debug().
		Uint64("dirOffset", dirOffset).
		Uint32("dirSize", dirSize).
		Uint64("lastOffset", lastOffset).
		Uint32("records", stats.Records).
		Msg("zpack: wrote directory")

	return lastOffset, nil
}

// Write flushes the in-memory directory to disk (§4.8). If removes have
// shrunk the archive below its previously known extent, the file is
// truncated; otherwise the repack heuristic is evaluated and Repack is
// invoked if the dead-space ratio crosses its threshold.
func (a *Archive) Write() error {
	a.assertIdle()
	a.state = stateFlushing
	defer func() { a.state = stateOpen }()

	if a.file == nil {
		return nil
	}

	lastOffset, err := a.writeDirectory(a.file, a.dirEnd.DirRecordOffset)
	if err != nil {
		return err
	}

	if lastOffset < a.borderOffset {
		a.debugLog().Debug().
			Uint64("borderOffset", a.borderOffset).
			Uint64("lastOffset", lastOffset).
			Msg("zpack: archive shrank, truncating")

		if err := a.file.Close(); err != nil {
			a.lastErr = ErrOpeningArchiveFile
			a.lastIOErr = err
			return err
		}
		if err := os.Truncate(a.path, int64(lastOffset)); err != nil {
			a.lastErr = ErrOpeningArchiveFile
			a.lastIOErr = err
			return err
		}
		f, err := os.OpenFile(a.path, os.O_RDWR, 0o644)
		if err != nil {
			a.lastErr = ErrOpeningArchiveFile
			a.lastIOErr = err
			return err
		}
		a.file = f
		a.borderOffset = lastOffset
		return nil
	}

	a.borderOffset = lastOffset

	if a.stats.ArchiveSize == 0 {
		return nil
	}

	ratio := float64(a.borderOffset) / float64(a.stats.ArchiveSize)
	threshold := repackRatioSmall
	switch {
	case a.stats.ArchiveSize > repackMediumCap:
		threshold = repackRatioLarge
	case a.stats.ArchiveSize > repackSmallCap:
		threshold = repackRatioMedium
	}

	if ratio > threshold {
		a.debugLog().Debug().
			Float64("ratio", ratio).
			Float64("threshold", threshold).
			Msg("zpack: repack threshold crossed")
		return a.Repack()
	}

	return nil
}

// Repack rebuilds the archive file, excluding tombstoned payload bytes left
// by Remove (§4.9). A sibling file is written first and atomically renamed
// over the original so a failure mid-repack leaves the original untouched.
func (a *Archive) Repack() error {
	// Repack is reachable two ways: called directly by a caller (idle,
	// stateOpen) or internally from Write's repack heuristic (already
	// mid-flush, stateFlushing) — the only nested transition the state
	// machine allows (§4.10: "Open → Flushing → Open on write; may step
	// through Repacking → Open within Flushing").
	var resume engineState
	switch a.state {
	case stateOpen:
		resume = stateOpen
	case stateFlushing:
		resume = stateFlushing
	default:
		panic("zpack: reentrant or concurrent use of Archive")
	}
	a.state = stateRepacking
	defer func() { a.state = resume }()

	if a.file == nil {
		a.lastErr = ErrOpeningArchiveFile
		return ErrOpeningArchiveFile
	}

	repackPath := a.path + "r"
	sibling, err := os.Create(repackPath)
	if err != nil {
		a.lastErr = ErrOpeningRepackFile
		a.lastIOErr = err
		return err
	}

	ibufSize := a.blockSizeBytes
	if ibufSize > a.blockSizeMax {
		ibufSize = a.blockSizeMax
	}
	copyBuf := make([]byte, ibufSize)

	var siblingPos uint64
	for _, name := range a.sortedNames() {
		entry := a.dir[name]

		movedMax := entry.Header.CompressedSize + localFileHeaderSize +
			uint64(len(entry.Filename)) + uint64(entry.Header.ExtraLen)

		headerBuf := make([]byte, localFileHeaderSize)
		if _, err := a.file.ReadAt(headerBuf, int64(entry.Header.OffsetRecord)); err != nil {
			sibling.Close()
			a.lastErr = ErrReadLocalHeader
			a.lastIOErr = err
			return err
		}
		var check localFileHeader
		if err := check.decode(headerBuf); err != nil || check.Signature != magicLocalHeader {
			sibling.Close()
			a.lastErr = ErrReadLocalHeader
			return ErrReadLocalHeader
		}

		section := io.NewSectionReader(a.file, int64(entry.Header.OffsetRecord), int64(movedMax))
		n, err := io.CopyBuffer(sibling, section, copyBuf)
		if err != nil || uint64(n) != movedMax {
			sibling.Close()
			a.lastErr = ErrUnknown
			a.lastIOErr = err
			return err
		}

		entry.Header.OffsetRecord = siblingPos
		entry.Header.OffsetFile = siblingPos + localFileHeaderSize +
			uint64(len(entry.Filename)) + uint64(entry.Header.ExtraLen)
		siblingPos += movedMax

		a.debugLog().Debug().Str("name", name).Uint64("moved", uint64(n)).Msg("zpack: repacked entry")
	}

	if _, err := a.writeDirectory(sibling, siblingPos); err != nil {
		sibling.Close()
		return err
	}

	if err := sibling.Close(); err != nil {
		a.lastErr = ErrOpeningRepackFile
		a.lastIOErr = err
		return err
	}
	if err := a.file.Close(); err != nil {
		a.lastErr = ErrOpeningArchiveFile
		a.lastIOErr = err
		return err
	}

	if err := os.Rename(repackPath, a.path); err != nil {
		a.lastErr = ErrOpeningArchiveFile
		a.lastIOErr = err
		return err
	}

	f, err := os.OpenFile(a.path, os.O_RDWR, 0o644)
	if err != nil {
		a.lastErr = ErrOpeningArchiveFile
		a.lastIOErr = err
		return err
	}
	a.file = f

	info, err := f.Stat()
	if err == nil {
		a.borderOffset = uint64(info.Size())
	}

	return nil
}
