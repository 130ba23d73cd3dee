package zpack

import "errors"

// Signature magic values. All little-endian on disk; bytes spell "NS" in
// the low 16 bits followed by a record-kind tag byte and a fixed 0x02/06/08
// marker, matching the proprietary layout this format uses instead of any
// standard archive signature.
const (
	magicLocalHeader    uint32 = 0x0201534E
	magicDirectoryEntry uint32 = 0x0605534E
	magicEndOfDirectory uint32 = 0x0807534E
)

// Format version written by this implementation.
const (
	formatVersion    uint16 = 1
	formatVersionMin uint16 = 1
)

// General-purpose flag bits carried in LocalFileHeader.General and
// DirectoryFileHeader.General.
const (
	flagStreamed uint16 = 1 << 0
)

// Compression method tags.
const (
	compressNone uint16 = iota
	compressZstd
	compressZstdStream
)

// Extra-field identifiers.
const (
	extraPermissions uint16 = 1
)

const (
	localFileHeaderSize    = 50
	localFileExtraFieldSize = 4
	directoryFileHeaderSize = 68
	endOfDirectorySize      = 20
)

var errShortRecord = errors.New("zpack: short record read")

// localFileHeader is the fixed 50-byte prefix written immediately before an
// item's name, extras and payload.
type localFileHeader struct {
	Signature        uint32
	Version          uint16
	General          uint16
	Compression      uint16
	FilenameLen      uint16
	CRC32            uint32
	CompressedSize   uint64
	UncompressedSize uint64
	Mtime            int64
	OffsetGap        uint64
	ExtraLen         uint16
}

func (h *localFileHeader) encode() []byte {
	buf := make([]byte, localFileHeaderSize)
	b := writeBuf(buf)
	b.uint32(h.Signature)
	b.uint16(h.Version)
	b.uint16(h.General)
	b.uint16(h.Compression)
	b.uint16(h.FilenameLen)
	b.uint32(h.CRC32)
	b.uint64(h.CompressedSize)
	b.uint64(h.UncompressedSize)
	b.int64(h.Mtime)
	b.uint64(h.OffsetGap)
	b.uint16(h.ExtraLen)
	return buf
}

func (h *localFileHeader) decode(buf []byte) error {
	if len(buf) < localFileHeaderSize {
		return errShortRecord
	}
	b := readBuf(buf)
	h.Signature = b.uint32()
	h.Version = b.uint16()
	h.General = b.uint16()
	h.Compression = b.uint16()
	h.FilenameLen = b.uint16()
	h.CRC32 = b.uint32()
	h.CompressedSize = b.uint64()
	h.UncompressedSize = b.uint64()
	h.Mtime = b.int64()
	h.OffsetGap = b.uint64()
	h.ExtraLen = b.uint16()
	return nil
}

// localFileExtraField is a single 4-byte (id, value) pair. Currently only
// the Permissions id (1) is emitted, carrying POSIX permission bits.
type localFileExtraField struct {
	ID    uint16
	Value uint16
}

func (e *localFileExtraField) encode() []byte {
	buf := make([]byte, localFileExtraFieldSize)
	b := writeBuf(buf)
	b.uint16(e.ID)
	b.uint16(e.Value)
	return buf
}

func (e *localFileExtraField) decode(buf []byte) error {
	if len(buf) < localFileExtraFieldSize {
		return errShortRecord
	}
	b := readBuf(buf)
	e.ID = b.uint16()
	e.Value = b.uint16()
	return nil
}

// directoryFileHeader is the fixed 68-byte central-directory record for a
// single item: a superset of localFileHeader's fields plus the offsets
// needed for random-access lookup and a trailing comment length.
type directoryFileHeader struct {
	Signature        uint32
	VersionBy        uint16
	VersionMin       uint16
	General          uint16
	CompressMethod   uint16
	CRC32            uint32
	Mtime            int64
	CompressedSize   uint64
	UncompressedSize uint64
	OffsetFile       uint64
	OffsetRecord     uint64
	FilenameLen      uint16
	ExtraLen         uint16
	CommentLen       uint16
	AttrsInternal    uint16
	AttrsExternal    uint32
}

func (h *directoryFileHeader) encode() []byte {
	buf := make([]byte, directoryFileHeaderSize)
	b := writeBuf(buf)
	b.uint32(h.Signature)
	b.uint16(h.VersionBy)
	b.uint16(h.VersionMin)
	b.uint16(h.General)
	b.uint16(h.CompressMethod)
	b.uint32(h.CRC32)
	b.int64(h.Mtime)
	b.uint64(h.CompressedSize)
	b.uint64(h.UncompressedSize)
	b.uint64(h.OffsetFile)
	b.uint64(h.OffsetRecord)
	b.uint16(h.FilenameLen)
	b.uint16(h.ExtraLen)
	b.uint16(h.CommentLen)
	b.uint16(h.AttrsInternal)
	b.uint32(h.AttrsExternal)
	return buf
}

func (h *directoryFileHeader) decode(buf []byte) error {
	if len(buf) < directoryFileHeaderSize {
		return errShortRecord
	}
	b := readBuf(buf)
	h.Signature = b.uint32()
	h.VersionBy = b.uint16()
	h.VersionMin = b.uint16()
	h.General = b.uint16()
	h.CompressMethod = b.uint16()
	h.CRC32 = b.uint32()
	h.Mtime = b.int64()
	h.CompressedSize = b.uint64()
	h.UncompressedSize = b.uint64()
	h.OffsetFile = b.uint64()
	h.OffsetRecord = b.uint64()
	h.FilenameLen = b.uint16()
	h.ExtraLen = b.uint16()
	h.CommentLen = b.uint16()
	h.AttrsInternal = b.uint16()
	h.AttrsExternal = b.uint32()
	return nil
}

// endOfDirectory is the fixed 20-byte trailer locating the central
// directory; it is always the final bytes of a consistent archive.
type endOfDirectory struct {
	Signature       uint32
	RecordsNumber   uint16
	CommentLen      uint16
	DirRecordOffset uint64
	DirRecordSize   uint32
}

func (e *endOfDirectory) encode() []byte {
	buf := make([]byte, endOfDirectorySize)
	b := writeBuf(buf)
	b.uint32(e.Signature)
	b.uint16(e.RecordsNumber)
	b.uint16(e.CommentLen)
	b.uint64(e.DirRecordOffset)
	b.uint32(e.DirRecordSize)
	return buf
}

func (e *endOfDirectory) decode(buf []byte) error {
	if len(buf) < endOfDirectorySize {
		return errShortRecord
	}
	b := readBuf(buf)
	e.Signature = b.uint32()
	e.RecordsNumber = b.uint16()
	e.CommentLen = b.uint16()
	e.DirRecordOffset = b.uint64()
	e.DirRecordSize = b.uint32()
	return nil
}

// directoryEntry is the in-memory, authoritative view of one archived
// item: the on-disk directoryFileHeader plus its extras, name and comment.
type directoryEntry struct {
	Header   directoryFileHeader
	Extra    []localFileExtraField
	Filename string
	Comment  string
}

func (e *directoryEntry) permissions() (uint16, bool) {
	for _, x := range e.Extra {
		if x.ID == extraPermissions {
			return x.Value, true
		}
	}
	return 0, false
}
