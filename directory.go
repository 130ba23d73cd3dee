package zpack

import "io"

// readDirectory loads the trailing end-of-directory record and the central
// directory it points to into the in-memory map (§4.4 step 4). On a short
// read or signature mismatch it sets the matching error code and aborts,
// leaving the file handle open for the caller to decide what to do next.
func (a *Archive) readDirectory() error {
	size, err := a.file.Seek(0, io.SeekEnd)
	if err != nil {
		a.lastErr = ErrOpeningArchiveFile
		a.lastIOErr = err
		return err
	}
	if size < endOfDirectorySize {
		a.lastErr = ErrReadDirectoryEnd
		return ErrReadDirectoryEnd
	}

	buf := make([]byte, endOfDirectorySize)
	if _, err := a.file.ReadAt(buf, size-endOfDirectorySize); err != nil {
		a.lastErr = ErrReadDirectoryEnd
		a.lastIOErr = err
		return err
	}

	var eod endOfDirectory
	if err := eod.decode(buf); err != nil {
		a.lastErr = ErrReadDirectoryEnd
		return err
	}

	if eod.Signature != magicEndOfDirectory {
		a.dirEnd = endOfDirectory{}
		a.lastErr = ErrDirectoryEndSignature
		return ErrDirectoryEndSignature
	}

	a.dirEnd = eod

	a.debugLog().Debug().
		Uint32("signature", eod.Signature).
		Uint16("recordsNumber", eod.RecordsNumber).
		Uint64("dirRecordOffset", eod.DirRecordOffset).
		Uint32("dirRecordSize", eod.DirRecordSize).
		Msg("zpack: read end-of-directory")

	if eod.RecordsNumber == 0 {
		return nil
	}

	a.dir = make(map[string]*directoryEntry, eod.RecordsNumber)

	if _, err := a.file.Seek(int64(eod.DirRecordOffset), io.SeekStart); err != nil {
		a.lastErr = ErrOpeningArchiveFile
		a.lastIOErr = err
		return err
	}

	r := &sequentialReader{f: a.file}
	for i := uint16(0); i < eod.RecordsNumber; i++ {
		entry, err := a.readDirectoryEntry(r)
		if err != nil {
			return err
		}
		a.dir[entry.Filename] = entry
	}

	return nil
}

func (a *Archive) readDirectoryEntry(r *sequentialReader) (*directoryEntry, error) {
	headerBuf, err := r.readN(directoryFileHeaderSize)
	if err != nil {
		a.lastErr = ErrReadEntryHeader
		a.lastIOErr = err
		return nil, err
	}

	var dfh directoryFileHeader
	if err := dfh.decode(headerBuf); err != nil {
		a.lastErr = ErrReadEntryHeader
		return nil, err
	}

	var filename string
	if dfh.FilenameLen > 0 {
		nameBuf, err := r.readN(int(dfh.FilenameLen))
		if err != nil {
			a.lastErr = ErrReadEntryName
			a.lastIOErr = err
			return nil, err
		}
		filename = string(nameBuf)
	}

	extraCount := dfh.ExtraLen / localFileExtraFieldSize
	extras := make([]localFileExtraField, 0, extraCount)
	for j := uint16(0); j < extraCount; j++ {
		extraBuf, err := r.readN(localFileExtraFieldSize)
		if err != nil {
			a.lastErr = ErrReadEntryExtra
			a.lastIOErr = err
			return nil, err
		}
		var extra localFileExtraField
		if err := extra.decode(extraBuf); err != nil {
			a.lastErr = ErrReadEntryExtra
			return nil, err
		}
		extras = append(extras, extra)
	}

	var comment string
	if dfh.CommentLen > 0 {
		commentBuf, err := r.readN(int(dfh.CommentLen))
		if err != nil {
			a.lastErr = ErrReadEntryComment
			a.lastIOErr = err
			return nil, err
		}
		comment = string(commentBuf)
	}

	a.debugLog().Debug().
		Str("filename", filename).
		Uint16("general", dfh.General).
		Uint16("compressMethod", dfh.CompressMethod).
		Uint64("compressedSize", dfh.CompressedSize).
		Uint64("uncompressedSize", dfh.UncompressedSize).
		Uint64("offsetFile", dfh.OffsetFile).
		Uint64("offsetRecord", dfh.OffsetRecord).
		Uint32("crc32", dfh.CRC32).
		Msg("zpack: read directory entry")

	return &directoryEntry{
		Header:   dfh,
		Extra:    extras,
		Filename: filename,
		Comment:  comment,
	}, nil
}

// sequentialReader accumulates short reads from *os.File's current offset
// into exact-sized chunks, since io.ReadFull semantics are what every
// directory-parse step in §4.4 needs.
type sequentialReader struct {
	f io.Reader
}

func (r *sequentialReader) readN(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.f, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
