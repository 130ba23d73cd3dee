package zpack

import "io"

// compressor is the capability set the engine requires from a compression
// backend: block mode for single-step payloads and streaming mode for
// payloads too large to buffer. newCompressor takes no direction and the
// returned value can compress and decompress; the engine builds a fresh
// one for each pack or extract and uses it in one direction only.
type compressor interface {
	// bound returns an upper bound on the compressed size of inSize bytes
	// of input, sized so a single-step compressBlock call never overflows
	// its output buffer.
	bound(inSize uint64) uint64

	// compressBlock compresses in into out, returning the number of bytes
	// written to out.
	compressBlock(in, out []byte) (uint64, error)

	// frameContentSize peeks at a compressed block's header to recover the
	// original uncompressed size, used to size decompressBlock's output
	// buffer ahead of time.
	frameContentSize(in []byte) (uint64, error)

	// decompressBlock decompresses in into out, returning the number of
	// bytes written to out.
	decompressBlock(in, out []byte) (uint64, error)

	// newStreamCompressor returns a fresh streaming compressor bound to
	// this backend's settings.
	newStreamCompressor() streamCompressor

	// newStreamDecompressor returns a fresh streaming decompressor.
	newStreamDecompressor() streamDecompressor
}

// streamCompressor drives a multi-chunk compress pass: consume feeds input
// bytes and writes any resulting compressed output to sink; end flushes any
// buffered state. bytesWritten reports the total compressed bytes emitted
// across all consume/end calls, used to back-patch the local header.
type streamCompressor interface {
	consume(sink io.Writer, p []byte) error
	end(sink io.Writer) error
	bytesWritten() uint64
}

// streamDecompressor is the read-side counterpart. observe, when non-nil,
// is called with each chunk of decompressed output so the caller can feed
// an incremental CRC-32 without buffering the whole payload.
type streamDecompressor interface {
	consume(sink io.Writer, p []byte, observe func([]byte)) error
	end() error
}

// newCompressor returns the backend for the given on-disk compression
// method tag. compressNone has no backend: callers must special-case it
// before reaching here.
func newCompressor(method uint16) compressor {
	switch method {
	case compressZstd, compressZstdStream:
		return newZstdCompressor()
	default:
		return nil
	}
}
