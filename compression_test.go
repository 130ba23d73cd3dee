package zpack

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestZstdBlockRoundTrip(t *testing.T) {
	z := newZstdCompressor()
	input := []byte(strings.Repeat("the quick brown fox jumps over the lazy dog ", 50))

	out := make([]byte, z.bound(uint64(len(input))))
	n, err := z.compressBlock(input, out)
	if err != nil {
		t.Fatalf("compressBlock: %v", err)
	}
	compressed := out[:n]
	if uint64(len(compressed)) >= uint64(len(input)) {
		t.Fatalf("compressed size %d not smaller than input %d", len(compressed), len(input))
	}

	size, err := z.frameContentSize(compressed)
	if err != nil {
		t.Fatalf("frameContentSize: %v", err)
	}
	if size != uint64(len(input)) {
		t.Fatalf("frameContentSize = %d, want %d", size, len(input))
	}

	decoded := make([]byte, size)
	dn, err := z.decompressBlock(compressed, decoded)
	if err != nil {
		t.Fatalf("decompressBlock: %v", err)
	}
	if !bytes.Equal(decoded[:dn], input) {
		t.Fatalf("decompressed bytes do not match input")
	}
}

func TestZstdStreamRoundTrip(t *testing.T) {
	z := newZstdCompressor()
	sc := z.newStreamCompressor()

	var compressed bytes.Buffer
	chunks := []string{"hello ", "streaming ", "world ", strings.Repeat("x", 4096)}
	for _, c := range chunks {
		if err := sc.consume(&compressed, []byte(c)); err != nil {
			t.Fatalf("consume: %v", err)
		}
	}
	if err := sc.end(&compressed); err != nil {
		t.Fatalf("end: %v", err)
	}
	if sc.bytesWritten() != uint64(compressed.Len()) {
		t.Fatalf("bytesWritten() = %d, want %d", sc.bytesWritten(), compressed.Len())
	}

	want := strings.Join(chunks, "")

	sd := z.newStreamDecompressor()
	var out bytes.Buffer
	var observed bytes.Buffer
	observe := func(p []byte) { observed.Write(p) }

	compressedBytes := compressed.Bytes()
	mid := len(compressedBytes) / 2
	if err := sd.consume(&out, compressedBytes[:mid], observe); err != nil {
		t.Fatalf("consume first half: %v", err)
	}
	if err := sd.consume(&out, compressedBytes[mid:], observe); err != nil {
		t.Fatalf("consume second half: %v", err)
	}
	if err := sd.end(); err != nil {
		t.Fatalf("end: %v", err)
	}

	if out.String() != want {
		t.Fatalf("decompressed = %q, want %q", out.String(), want)
	}
	if observed.String() != want {
		t.Fatalf("observed bytes = %q, want %q", observed.String(), want)
	}
}

func TestFrameContentSizeUnknown(t *testing.T) {
	z := newZstdCompressor()
	if _, err := z.frameContentSize([]byte("not a zstd frame")); err == nil {
		t.Fatalf("frameContentSize on garbage input returned no error")
	}
}

func TestNewCompressorNoneHasNoBackend(t *testing.T) {
	if c := newCompressor(compressNone); c != nil {
		t.Fatalf("newCompressor(compressNone) = %v, want nil", c)
	}
}

func TestCountingWriter(t *testing.T) {
	var buf bytes.Buffer
	cw := &countingWriter{w: &buf}
	var w io.Writer = cw
	n, err := w.Write([]byte("12345"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 5 || cw.n != 5 {
		t.Fatalf("n=%d cw.n=%d, want 5/5", n, cw.n)
	}
}
