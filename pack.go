package zpack

import (
	"bytes"
	"hash/crc32"
	"io"
	"os"
	"path"
	"strings"
	"time"
)

// defaultItemPerms mirrors the original's literal
// owner_read|owner_write|others_read permission bits used when packing an
// in-memory item that has no real filesystem permissions to copy.
const defaultItemPerms = 0o604

// normalizeName joins dir and base the way packFile/packItem do: no
// duplicate slash, an empty dir passes base through unchanged.
func normalizeName(dir, base string) string {
	if dir == "" {
		return base
	}
	if strings.HasSuffix(dir, "/") {
		return dir + base
	}
	return dir + "/" + base
}

// PackFile reads path from the filesystem and stores it in the archive
// under dir/basename(path), preserving its size, modification time and
// POSIX permission bits.
func (a *Archive) PackFile(srcPath, dir, comment string) error {
	a.assertIdle()
	a.state = stateWriting
	defer func() { a.state = stateOpen }()

	f, err := os.Open(srcPath)
	if err != nil {
		a.lastErr = ErrPackFileOpen
		a.lastIOErr = err
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		a.lastErr = ErrPackFileOpen
		a.lastIOErr = err
		return err
	}

	name := normalizeName(dir, path.Base(filepathToSlash(srcPath)))
	perms := uint16(info.Mode().Perm())

	return a.packData(f, name, perms, uint64(info.Size()), info.ModTime().Unix(), comment, compressZstd)
}

// PackItem stores an in-memory buffer under dir/name.
func (a *Archive) PackItem(name string, data []byte, dir, comment string) error {
	a.assertIdle()
	a.state = stateWriting
	defer func() { a.state = stateOpen }()

	if len(data) == 0 {
		a.lastErr = ErrPackItemSize
		return ErrPackItemSize
	}

	itemName := normalizeName(dir, name)
	mtime := time.Now().Unix()

	return a.packData(bytes.NewReader(data), itemName, defaultItemPerms, uint64(len(data)), mtime, comment, compressZstd)
}

// packData is the shared routine behind PackFile and PackItem (§4.5).
func (a *Archive) packData(source io.Reader, name string, perms uint16, size uint64, mtime int64, comment string, method uint16) error {
	if existing, ok := a.dir[name]; ok {
		if existing.Header.UncompressedSize == size && existing.Header.Mtime == mtime {
			a.debugLog().Debug().Str("name", name).Msg("zpack: pack no-op, identical size and mtime")
			return nil
		}
	}

	ibufSize := a.blockSizeBytes
	if ibufSize > a.blockSizeMax {
		ibufSize = a.blockSizeMax
	}

	singleStep := size <= ibufSize
	if singleStep && size <= smallItemThreshold {
		method = compressNone
	}

	var general uint16
	if !singleStep {
		general |= flagStreamed
	}

	offsetStart := a.dirEnd.DirRecordOffset

	localHdr := localFileHeader{
		Signature:        magicLocalHeader,
		Version:          formatVersion,
		General:          general,
		Compression:      method,
		FilenameLen:      uint16(len(name)),
		CRC32:            0,
		CompressedSize:   size,
		UncompressedSize: size,
		Mtime:            mtime,
		OffsetGap:        0,
		ExtraLen:         localFileExtraFieldSize,
	}

	extraPerms := localFileExtraField{ID: extraPermissions, Value: perms}

	if _, err := a.file.Seek(int64(offsetStart), io.SeekStart); err != nil {
		a.lastErr = ErrOpeningArchiveFile
		a.lastIOErr = err
		return err
	}
	if err := a.writeAll(localHdr.encode()); err != nil {
		return err
	}
	if err := a.writeAll([]byte(name)); err != nil {
		return err
	}
	if err := a.writeAll(extraPerms.encode()); err != nil {
		return err
	}

	fileOffset, err := a.file.Seek(0, io.SeekCurrent)
	if err != nil {
		a.lastErr = ErrOpeningArchiveFile
		a.lastIOErr = err
		return err
	}

	var crc32Result uint32
	var compressedSize uint64

	if singleStep {
		buf := make([]byte, size)
		n, err := io.ReadFull(source, buf)
		if err != nil && err != io.ErrUnexpectedEOF {
			a.lastErr = ErrPackFileOpen
			a.lastIOErr = err
			return err
		}
		buf = buf[:n]
		crc32Result = crc32.ChecksumIEEE(buf)

		if method != compressNone {
			comp := newCompressor(method)
			out := make([]byte, comp.bound(uint64(n)))
			written, err := comp.compressBlock(buf, out)
			if err != nil {
				a.lastErr = ErrPackFileOpen
				a.lastIOErr = err
				return err
			}
			compressedSize = written
			if err := a.writeAll(out[:written]); err != nil {
				return err
			}
		} else {
			compressedSize = uint64(n)
			if err := a.writeAll(buf); err != nil {
				return err
			}
		}
	} else {
		crc := crc32.NewIEEE()
		chunk := make([]byte, ibufSize)

		var sc streamCompressor
		if method != compressNone {
			sc = newCompressor(method).newStreamCompressor()
		}

		for {
			n, rerr := source.Read(chunk)
			if n > 0 {
				crc.Write(chunk[:n])
				if sc != nil {
					if err := sc.consume(a.file, chunk[:n]); err != nil {
						a.lastErr = ErrPackFileOpen
						a.lastIOErr = err
						return err
					}
				} else if err := a.writeAll(chunk[:n]); err != nil {
					return err
				}
			}
			if rerr == io.EOF {
				break
			}
			if rerr != nil {
				a.lastErr = ErrPackFileOpen
				a.lastIOErr = rerr
				return rerr
			}
		}

		if sc != nil {
			if err := sc.end(a.file); err != nil {
				a.lastErr = ErrPackFileOpen
				a.lastIOErr = err
				return err
			}
			compressedSize = sc.bytesWritten()
		} else {
			compressedSize = size
		}
		crc32Result = crc.Sum32()

		rewind, err := a.file.Seek(0, io.SeekCurrent)
		if err != nil {
			a.lastErr = ErrOpeningArchiveFile
			a.lastIOErr = err
			return err
		}
		localHdr.CRC32 = crc32Result
		localHdr.UncompressedSize = size
		localHdr.CompressedSize = compressedSize
		if _, err := a.file.Seek(int64(offsetStart), io.SeekStart); err != nil {
			a.lastErr = ErrOpeningArchiveFile
			a.lastIOErr = err
			return err
		}
		if err := a.writeAll(localHdr.encode()); err != nil {
			return err
		}
		if _, err := a.file.Seek(rewind, io.SeekStart); err != nil {
			a.lastErr = ErrOpeningArchiveFile
			a.lastIOErr = err
			return err
		}
	}

	if singleStep {
		rewind, err := a.file.Seek(0, io.SeekCurrent)
		if err != nil {
			a.lastErr = ErrOpeningArchiveFile
			a.lastIOErr = err
			return err
		}
		localHdr.CRC32 = crc32Result
		localHdr.CompressedSize = compressedSize
		localHdr.Compression = method
		if _, err := a.file.Seek(int64(offsetStart), io.SeekStart); err != nil {
			a.lastErr = ErrOpeningArchiveFile
			a.lastIOErr = err
			return err
		}
		if err := a.writeAll(localHdr.encode()); err != nil {
			return err
		}
		if _, err := a.file.Seek(rewind, io.SeekStart); err != nil {
			a.lastErr = ErrOpeningArchiveFile
			a.lastIOErr = err
			return err
		}
	}

	offsetEnd, err := a.file.Seek(0, io.SeekCurrent)
	if err != nil {
		a.lastErr = ErrOpeningArchiveFile
		a.lastIOErr = err
		return err
	}

	dfh := directoryFileHeader{
		Signature:        magicDirectoryEntry,
		VersionBy:        formatVersion,
		VersionMin:       formatVersionMin,
		General:          general,
		CompressMethod:   method,
		CRC32:            crc32Result,
		Mtime:            mtime,
		CompressedSize:   compressedSize,
		UncompressedSize: size,
		OffsetFile:       uint64(fileOffset),
		OffsetRecord:     offsetStart,
		FilenameLen:      uint16(len(name)),
		ExtraLen:         localFileExtraFieldSize,
		CommentLen:       uint16(len(comment)),
	}

	a.dir[name] = &directoryEntry{
		Header:   dfh,
		Extra:    []localFileExtraField{extraPerms},
		Filename: name,
		Comment:  comment,
	}

	a.dirEnd.DirRecordOffset = uint64(offsetEnd)

	a.debugLog().Debug().
		Str("name", name).
		Uint64("offsetRecord", offsetStart).
		Uint64("offsetFile", uint64(fileOffset)).
		Uint64("compressedSize", compressedSize).
		Uint64("uncompressedSize", size).
		Msg("zpack: packed item")

	return nil
}

func (a *Archive) writeAll(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	_, err := a.file.Write(p)
	if err != nil {
		a.lastErr = ErrOpeningArchiveFile
		a.lastIOErr = err
	}
	return err
}

// filepathToSlash turns every backslash into a forward slash, on every
// platform, so that PackFile's path.Base call treats both as separators.
func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
