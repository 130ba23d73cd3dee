package zpack

import "testing"

func TestLocalFileHeaderRoundTrip(t *testing.T) {
	h := localFileHeader{
		Signature:        magicLocalHeader,
		Version:          formatVersion,
		General:          flagStreamed,
		Compression:      compressZstd,
		FilenameLen:      7,
		CRC32:            0xdeadbeef,
		CompressedSize:   1234,
		UncompressedSize: 5678,
		Mtime:            1700000000,
		OffsetGap:        0,
		ExtraLen:         localFileExtraFieldSize,
	}

	buf := h.encode()
	if len(buf) != localFileHeaderSize {
		t.Fatalf("encode length = %d, want %d", len(buf), localFileHeaderSize)
	}

	var got localFileHeader
	if err := got.decode(buf); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestLocalFileHeaderDecodeShort(t *testing.T) {
	var h localFileHeader
	if err := h.decode(make([]byte, localFileHeaderSize-1)); err != errShortRecord {
		t.Fatalf("decode short buffer: got %v, want errShortRecord", err)
	}
}

func TestLocalFileExtraFieldRoundTrip(t *testing.T) {
	e := localFileExtraField{ID: extraPermissions, Value: 0o644}
	buf := e.encode()
	if len(buf) != localFileExtraFieldSize {
		t.Fatalf("encode length = %d, want %d", len(buf), localFileExtraFieldSize)
	}
	var got localFileExtraField
	if err := got.decode(buf); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != e {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, e)
	}
}

func TestDirectoryFileHeaderRoundTrip(t *testing.T) {
	h := directoryFileHeader{
		Signature:        magicDirectoryEntry,
		VersionBy:        formatVersion,
		VersionMin:       formatVersionMin,
		General:          0,
		CompressMethod:   compressZstd,
		CRC32:            0x01234567,
		Mtime:            1700000001,
		CompressedSize:   100,
		UncompressedSize: 200,
		OffsetFile:       300,
		OffsetRecord:     42,
		FilenameLen:      4,
		ExtraLen:         localFileExtraFieldSize,
		CommentLen:       3,
	}

	buf := h.encode()
	if len(buf) != directoryFileHeaderSize {
		t.Fatalf("encode length = %d, want %d", len(buf), directoryFileHeaderSize)
	}

	var got directoryFileHeader
	if err := got.decode(buf); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestEndOfDirectoryRoundTrip(t *testing.T) {
	e := endOfDirectory{
		Signature:       magicEndOfDirectory,
		RecordsNumber:   5,
		CommentLen:      0,
		DirRecordOffset: 9999,
		DirRecordSize:   321,
	}

	buf := e.encode()
	if len(buf) != endOfDirectorySize {
		t.Fatalf("encode length = %d, want %d", len(buf), endOfDirectorySize)
	}

	var got endOfDirectory
	if err := got.decode(buf); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != e {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, e)
	}
}

func TestDirectoryEntryPermissions(t *testing.T) {
	entry := &directoryEntry{
		Extra: []localFileExtraField{{ID: extraPermissions, Value: 0o755}},
	}
	perm, ok := entry.permissions()
	if !ok || perm != 0o755 {
		t.Fatalf("permissions() = (%o, %v), want (0755, true)", perm, ok)
	}

	empty := &directoryEntry{}
	if _, ok := empty.permissions(); ok {
		t.Fatalf("permissions() on entry with no extras reported ok")
	}
}
