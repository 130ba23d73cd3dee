package zpack

import (
	"os"
	"sort"

	"github.com/rs/zerolog"
)

// Default working-buffer size: payloads at or below this size are packed
// in a single step; larger payloads are streamed. Mirrors the original's
// blockSizeMax constant (6 MiB).
const defaultBlockSize = 6 * 1024 * 1024

// smallItemThreshold: items at or below this size are stored uncompressed,
// since Zstandard's fixed overhead would make compression counterproductive.
const smallItemThreshold = 80

// Repack trigger thresholds: borderOffset/archiveSize ratios above which
// write() calls repack() to reclaim dead space left by removed entries.
const (
	repackRatioSmall  = 1.5 // archiveSize <= 10 MiB
	repackRatioMedium = 1.2 // 10 MiB < archiveSize <= 30 MiB
	repackRatioLarge  = 1.1 // archiveSize > 30 MiB
	repackSmallCap    = 10 * 1024 * 1024
	repackMediumCap   = 30 * 1024 * 1024
)

// engine state, asserted at the top of every state-transitioning exported
// method: only one operation runs at a time and the engine is never
// reentered mid-operation (§4.10).
type engineState int

const (
	stateClosed engineState = iota
	stateOpen
	stateWriting
	stateFlushing
	stateRepacking
)

// assertIdle panics if the archive is not in its idle Open state. Every
// exported method that transitions state calls this first: a reentrant or
// concurrent call arriving mid-operation is a caller bug, not a condition
// the engine can recover from (§5: "concurrent access to the same archive
// is undefined").
func (a *Archive) assertIdle() {
	if a.state != stateOpen {
		panic("zpack: reentrant or concurrent use of Archive")
	}
}

// Stats reports the archive's size accounting, refreshed by every Write.
type Stats struct {
	FilesSizeUncompressed uint64
	FilesSizeCompressed   uint64
	ArchiveSize           uint64
	Records               uint32
	LastOffset            uint64
	DirectoryOffset       uint64
}

// Archive is the single-threaded engine owning one archive file's handle
// and in-memory directory. It must not be shared between goroutines.
type Archive struct {
	file *os.File
	path string

	dir    map[string]*directoryEntry
	dirEnd endOfDirectory

	borderOffset uint64

	blockSizeMax   uint64
	blockSizeBytes uint64

	state engineState

	lastErr   ErrorCode
	lastIOErr error

	stats Stats

	logger *zerolog.Logger
}

// Option configures an Archive at Open time.
type Option func(*Archive)

// WithLogger attaches a structured logger used for the same debug
// checkpoints the original implementation emitted under its ZPACK_DEBUG
// build flag. A nil logger (the default) keeps the engine silent.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Archive) { a.logger = &l }
}

// WithBlockSize overrides the working-buffer size used for single-step
// packing, extraction and repack copies. It is clamped to blockSizeMax.
func WithBlockSize(n uint64) Option {
	return func(a *Archive) {
		if n > 0 {
			a.blockSizeBytes = n
		}
	}
}

// Open opens path for random-access read/write, creating it if it does not
// exist. When truncate is true, an existing file is emptied first. If the
// file is non-empty and not being truncated, its trailing directory is
// read back into memory (§4.4).
func Open(path string, truncate bool, opts ...Option) (*Archive, error) {
	a := &Archive{
		path:           path,
		dir:            make(map[string]*directoryEntry),
		blockSizeMax:   defaultBlockSize,
		blockSizeBytes: defaultBlockSize,
	}
	for _, opt := range opts {
		opt(a)
	}

	flags := os.O_RDWR
	if truncate {
		flags |= os.O_CREATE | os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if os.IsNotExist(err) {
		f, err = os.OpenFile(path, flags|os.O_CREATE, 0o644)
	}
	if err != nil {
		a.lastErr = ErrOpeningArchiveFile
		a.lastIOErr = err
		a.debugLog().Debug().Err(err).Str("path", path).Msg("zpack: open failed")
		return a, err
	}

	a.file = f
	a.state = stateOpen

	info, err := f.Stat()
	if err != nil {
		a.lastErr = ErrOpeningArchiveFile
		a.lastIOErr = err
		return a, err
	}
	a.borderOffset = uint64(info.Size())

	a.debugLog().Debug().
		Str("path", path).
		Uint64("borderOffset", a.borderOffset).
		Bool("truncate", truncate).
		Msg("zpack: opening archive")

	if !truncate && info.Size() > 0 {
		if err := a.readDirectory(); err != nil {
			a.debugLog().Debug().Err(err).Msg("zpack: reading directory failed")
		}
	}

	return a, nil
}

// Close releases the underlying file handle. It is a no-op if the archive
// is already closed.
func (a *Archive) Close() error {
	if a.file == nil {
		a.state = stateClosed
		return nil
	}
	a.assertIdle()
	err := a.file.Close()
	a.file = nil
	a.state = stateClosed
	return err
}

// Clear resets the sticky error code to ErrOK without touching the
// underlying file or directory state.
func (a *Archive) Clear() {
	a.lastErr = ErrOK
}

// Stats returns the accounting captured by the most recent Write.
func (a *Archive) Stats() Stats {
	return a.stats
}

// LastError returns the sticky error code set by the most recent failing
// operation.
func (a *Archive) LastError() ErrorCode {
	return a.lastErr
}

// Good reports whether the archive's file handle and sticky error code are
// both in a healthy state.
func (a *Archive) Good() bool {
	return a.file != nil && a.lastIOErr == nil && a.lastErr == ErrOK
}

// Fail reports whether the last operation produced an I/O error or a
// non-OK sticky error code.
func (a *Archive) Fail() bool {
	return a.lastIOErr != nil || a.lastErr != ErrOK
}

// Bad reports whether the archive's file handle is gone or an error code is
// set. Unlike Fail it does not look at the last I/O error, and it is true
// for a closed archive.
func (a *Archive) Bad() bool {
	return a.file == nil || a.lastErr != ErrOK
}

// Names returns every item name currently in the directory, in sorted
// order, for callers that need to enumerate an archive's contents (list,
// bulk extract).
func (a *Archive) Names() []string {
	return a.sortedNames()
}

// sortedNames returns directory entry names in a stable, deterministic
// order. Go map iteration order is randomized, unlike the original's
// std::unordered_map traversal; sorting here keeps Write/Repack output
// byte-for-byte reproducible across runs while preserving every offset and
// size invariant from the unordered original.
func (a *Archive) sortedNames() []string {
	names := make([]string, 0, len(a.dir))
	for name := range a.dir {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
