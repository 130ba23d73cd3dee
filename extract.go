package zpack

import (
	"bytes"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
)

// extract reverses packData for a single entry, writing decompressed
// payload bytes to sink and verifying the stored CRC-32 (§4.7).
func (a *Archive) extract(entry *directoryEntry, sink io.Writer) error {
	if _, err := a.file.Seek(int64(entry.Header.OffsetFile), io.SeekStart); err != nil {
		a.lastErr = ErrExtractGeneral
		a.lastIOErr = err
		return err
	}

	ibufSize := a.blockSizeBytes
	if ibufSize > a.blockSizeMax {
		ibufSize = a.blockSizeMax
	}
	if ibufSize > entry.Header.CompressedSize {
		ibufSize = entry.Header.CompressedSize
	}
	if ibufSize == 0 {
		ibufSize = 1
	}

	method := entry.Header.CompressMethod
	streamed := entry.Header.General&flagStreamed != 0

	crc := crc32.NewIEEE()
	chunk := make([]byte, ibufSize)

	var sd streamDecompressor
	var comp compressor
	if method != compressNone {
		comp = newCompressor(method)
		if streamed {
			sd = comp.newStreamDecompressor()
		}
	}

	var readed uint64
	for readed < entry.Header.CompressedSize {
		left := entry.Header.CompressedSize - readed
		want := ibufSize
		if left < want {
			want = left
		}
		n, err := io.ReadFull(a.file, chunk[:want])
		if err != nil {
			a.lastErr = ErrExtractGeneral
			a.lastIOErr = err
			return err
		}
		readed += uint64(n)

		switch {
		case method == compressNone:
			if _, err := sink.Write(chunk[:n]); err != nil {
				a.lastErr = ErrExtractGeneral
				a.lastIOErr = err
				return err
			}
			crc.Write(chunk[:n])
		case !streamed:
			predicted, err := comp.frameContentSize(chunk[:n])
			if err != nil {
				a.lastErr = ErrExtractGeneral
				a.lastIOErr = err
				return err
			}
			obuf := make([]byte, predicted)
			outN, err := comp.decompressBlock(chunk[:n], obuf)
			if err != nil {
				a.lastErr = ErrExtractGeneral
				a.lastIOErr = err
				return err
			}
			if _, err := sink.Write(obuf[:outN]); err != nil {
				a.lastErr = ErrExtractGeneral
				a.lastIOErr = err
				return err
			}
			crc.Write(obuf[:outN])
		default:
			if err := sd.consume(sink, chunk[:n], func(p []byte) { crc.Write(p) }); err != nil {
				a.lastErr = ErrExtractGeneral
				a.lastIOErr = err
				return err
			}
		}
	}

	if streamed && sd != nil {
		if err := sd.end(); err != nil {
			a.lastErr = ErrExtractGeneral
			a.lastIOErr = err
			return err
		}
	}

	if crc.Sum32() != entry.Header.CRC32 {
		a.debugLog().Debug().
			Str("name", entry.Filename).
			Uint32("computed", crc.Sum32()).
			Uint32("stored", entry.Header.CRC32).
			Msg("zpack: CRC-32 mismatch on extract")
		a.lastErr = ErrCRCMismatch
	}

	return nil
}

// ExtractStr returns name's decompressed content, or an empty string if
// name is not present in the archive.
func (a *Archive) ExtractStr(name string) string {
	a.assertIdle()
	a.state = stateWriting
	defer func() { a.state = stateOpen }()

	entry, ok := a.dir[name]
	if !ok {
		return ""
	}

	var buf bytes.Buffer
	_ = a.extract(entry, &buf)
	return buf.String()
}

// ExtractFile writes name's decompressed content to destDir/entry.filename,
// creating any missing parent directories, then applies the entry's stored
// Permissions extra field (if any) directly to the written file's path —
// the original calls its permission-apply on the write status rather than
// the path, which we treat as a bug and do not reproduce (§9 open question).
func (a *Archive) ExtractFile(name, destDir string) bool {
	a.assertIdle()
	a.state = stateWriting
	defer func() { a.state = stateOpen }()

	entry, ok := a.dir[name]
	if !ok {
		return false
	}

	destPath := filepath.Join(destDir, filepath.FromSlash(entry.Filename))
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		a.lastErr = ErrExtractGeneral
		a.lastIOErr = err
		return false
	}

	out, err := os.Create(destPath)
	if err != nil {
		a.lastErr = ErrExtractGeneral
		a.lastIOErr = err
		return false
	}
	defer out.Close()

	if err := a.extract(entry, out); err != nil {
		return false
	}

	perms := os.FileMode(defaultItemPerms)
	if v, ok := entry.permissions(); ok {
		perms = os.FileMode(v)
	}
	if err := os.Chmod(destPath, perms); err != nil {
		a.lastErr = ErrExtractGeneral
		a.lastIOErr = err
		return false
	}

	return true
}
