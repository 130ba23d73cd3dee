// Package zpack implements the ZPack single-file archive container: a
// random-access file holding named, optionally Zstandard-compressed byte
// blobs plus a trailing directory, in the style of a bespoke (non-ZIP)
// archive format.
package zpack

import "encoding/binary"

// writeBuf is a little bump allocator over a fixed byte slice, mirroring
// the teacher's writeBuf helper: each call consumes and advances past the
// bytes it writes so record encoders read top-to-bottom like the wire
// layout they produce.
type writeBuf []byte

func (b *writeBuf) uint16(v uint16) {
	binary.LittleEndian.PutUint16((*b)[:2], v)
	*b = (*b)[2:]
}

func (b *writeBuf) uint32(v uint32) {
	binary.LittleEndian.PutUint32((*b)[:4], v)
	*b = (*b)[4:]
}

func (b *writeBuf) uint64(v uint64) {
	binary.LittleEndian.PutUint64((*b)[:8], v)
	*b = (*b)[8:]
}

func (b *writeBuf) int64(v int64) {
	b.uint64(uint64(v))
}

// readBuf is the decode counterpart of writeBuf.
type readBuf []byte

func (b *readBuf) uint16() uint16 {
	v := binary.LittleEndian.Uint16((*b)[:2])
	*b = (*b)[2:]
	return v
}

func (b *readBuf) uint32() uint32 {
	v := binary.LittleEndian.Uint32((*b)[:4])
	*b = (*b)[4:]
	return v
}

func (b *readBuf) uint64() uint64 {
	v := binary.LittleEndian.Uint64((*b)[:8])
	*b = (*b)[8:]
	return v
}

func (b *readBuf) int64() int64 {
	return int64(b.uint64())
}
