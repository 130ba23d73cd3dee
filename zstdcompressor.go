package zpack

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

// zstdCompressor is the compressor backend for compressZstd and
// compressZstdStream. Block-mode calls reuse a single lazily created
// encoder/decoder pair, which klauspost/compress documents as safe for
// repeated EncodeAll/DecodeAll use.
type zstdCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstdCompressor() *zstdCompressor {
	return &zstdCompressor{}
}

func (z *zstdCompressor) encoder() *zstd.Encoder {
	if z.enc == nil {
		// Target is irrelevant for EncodeAll/Reset-based use; io.Discard
		// keeps the encoder from ever writing anywhere on its own.
		z.enc, _ = zstd.NewWriter(io.Discard, zstd.WithEncoderLevel(zstd.SpeedDefault))
	}
	return z.enc
}

func (z *zstdCompressor) decoder() *zstd.Decoder {
	if z.dec == nil {
		z.dec, _ = zstd.NewReader(nil)
	}
	return z.dec
}

// bound is a worst-case compressed-size estimate (klauspost/compress does
// not export ZSTD_compressBound): input size plus inSize/255 plus a fixed
// 64 bytes for the frame header and block headers.
func (z *zstdCompressor) bound(inSize uint64) uint64 {
	return inSize + inSize/255 + 64
}

func (z *zstdCompressor) compressBlock(in, out []byte) (uint64, error) {
	result := z.encoder().EncodeAll(in, out[:0])
	return uint64(len(result)), nil
}

func (z *zstdCompressor) frameContentSize(in []byte) (uint64, error) {
	var header zstd.Header
	if err := header.Decode(in); err != nil {
		return 0, err
	}
	if !header.HasFCS {
		return 0, errFrameContentSizeUnknown
	}
	return header.FrameContentSize, nil
}

func (z *zstdCompressor) decompressBlock(in, out []byte) (uint64, error) {
	decoded, err := z.decoder().DecodeAll(in, out[:0])
	if err != nil {
		return 0, err
	}
	return uint64(len(decoded)), nil
}

func (z *zstdCompressor) newStreamCompressor() streamCompressor {
	enc, _ := zstd.NewWriter(io.Discard, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return &zstdStreamCompressor{enc: enc}
}

func (z *zstdCompressor) newStreamDecompressor() streamDecompressor {
	return newZstdStreamDecompressor()
}

// countingWriter tallies bytes written to an underlying writer, the same
// bookkeeping shape the teacher's countWriter serves in its central
// directory writer, adapted here to track compressed-stream output.
type countingWriter struct {
	w io.Writer
	n uint64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += uint64(n)
	return n, err
}

// zstdStreamCompressor adapts *zstd.Encoder's push-based Write/Close API to
// the streamCompressor capability set, lazily binding the encoder to its
// sink on the first consume so callers can construct it before the
// destination writer is known.
type zstdStreamCompressor struct {
	enc     *zstd.Encoder
	cw      *countingWriter
	started bool
}

func (s *zstdStreamCompressor) ensureStarted(sink io.Writer) {
	if s.started {
		return
	}
	s.cw = &countingWriter{w: sink}
	s.enc.Reset(s.cw)
	s.started = true
}

func (s *zstdStreamCompressor) consume(sink io.Writer, p []byte) error {
	s.ensureStarted(sink)
	_, err := s.enc.Write(p)
	return err
}

func (s *zstdStreamCompressor) end(sink io.Writer) error {
	s.ensureStarted(sink)
	return s.enc.Close()
}

func (s *zstdStreamCompressor) bytesWritten() uint64 {
	if s.cw == nil {
		return 0
	}
	return s.cw.n
}

// zstdStreamDecompressor bridges the push-based consume(sink, chunk) API
// this package needs onto *zstd.Decoder's pull-based Read, by running the
// decoder over an in-process pipe: consume feeds compressed bytes in,
// a background goroutine drains decompressed bytes out to the sink.
type zstdStreamDecompressor struct {
	pw      *io.PipeWriter
	done    chan error
	started bool
}

func newZstdStreamDecompressor() *zstdStreamDecompressor {
	return &zstdStreamDecompressor{done: make(chan error, 1)}
}

func (s *zstdStreamDecompressor) ensureStarted(sink io.Writer, observe func([]byte)) {
	if s.started {
		return
	}
	s.started = true
	pr, pw := io.Pipe()
	s.pw = pw
	dec, err := zstd.NewReader(pr)
	if err != nil {
		pr.CloseWithError(err)
		s.done <- err
		return
	}
	go func() {
		defer dec.Close()
		buf := make([]byte, 32*1024)
		for {
			n, rerr := dec.Read(buf)
			if n > 0 {
				if _, werr := sink.Write(buf[:n]); werr != nil {
					pr.CloseWithError(werr)
					s.done <- werr
					return
				}
				if observe != nil {
					observe(buf[:n])
				}
			}
			if rerr == io.EOF {
				s.done <- nil
				return
			}
			if rerr != nil {
				pr.CloseWithError(rerr)
				s.done <- rerr
				return
			}
		}
	}()
}

func (s *zstdStreamDecompressor) consume(sink io.Writer, p []byte, observe func([]byte)) error {
	s.ensureStarted(sink, observe)
	_, err := s.pw.Write(p)
	return err
}

func (s *zstdStreamDecompressor) end() error {
	if s.pw == nil {
		return nil
	}
	s.pw.Close()
	return <-s.done
}

var errFrameContentSizeUnknown = zstdErr("zpack: zstd frame has no content size")

type zstdErr string

func (e zstdErr) Error() string { return string(e) }
