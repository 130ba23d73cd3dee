package zpack

import "github.com/rs/zerolog"

// debugLog returns the archive's configured logger, or a disabled logger
// when none was set via WithLogger. Every call site in this package treats
// the zero value the same way the original's ZPACK_DEBUG macro treats a
// build without the flag: the calls compile away to nothing of consequence.
func (a *Archive) debugLog() *zerolog.Logger {
	if a.logger == nil {
		disabled := zerolog.Nop()
		return &disabled
	}
	return a.logger
}
