package zpack

// ErrorCode is the flat error enumeration the engine reports through
// Good/Fail/Bad and its sticky last-error field. It mirrors the original
// implementation's Errors enum one-for-one, plus ErrCRCMismatch, so callers
// inspecting a specific failure mode have a stable, documented set of values.
type ErrorCode int

const (
	ErrOK ErrorCode = iota
	ErrReadDirectoryEnd
	ErrDirectoryEndSignature
	ErrOpeningArchiveFile
	ErrOpeningRepackFile
	ErrReadEntryHeader
	ErrReadEntryName
	ErrReadEntryExtra
	ErrReadEntryComment
	ErrReadLocalHeader
	ErrPackFileOpen
	ErrPackItemSize
	ErrExtractGeneral
	ErrWriteWrongSeek
	ErrCRCMismatch
	ErrUnknown
)

var errorCodeText = map[ErrorCode]string{
	ErrOK:                    "ok",
	ErrReadDirectoryEnd:      "zpack: failed to read end-of-directory record",
	ErrDirectoryEndSignature: "zpack: end-of-directory signature mismatch",
	ErrOpeningArchiveFile:    "zpack: failed to open archive file",
	ErrOpeningRepackFile:     "zpack: failed to open repack sibling file",
	ErrReadEntryHeader:       "zpack: failed to read directory entry header",
	ErrReadEntryName:         "zpack: failed to read directory entry name",
	ErrReadEntryExtra:        "zpack: failed to read directory entry extra field",
	ErrReadEntryComment:      "zpack: failed to read directory entry comment",
	ErrReadLocalHeader:       "zpack: failed to read local file header during repack",
	ErrPackFileOpen:          "zpack: failed to open source file for packing",
	ErrPackItemSize:          "zpack: item data is empty",
	ErrExtractGeneral:        "zpack: extraction failed",
	ErrWriteWrongSeek:        "zpack: write landed at an invalid seek position",
	ErrCRCMismatch:           "zpack: CRC-32 mismatch on extracted payload",
	ErrUnknown:               "zpack: unknown error",
}

// Error implements the error interface so ErrorCode can be returned and
// compared (errors.Is-style) directly.
func (e ErrorCode) Error() string {
	if s, ok := errorCodeText[e]; ok {
		return s
	}
	return errorCodeText[ErrUnknown]
}
