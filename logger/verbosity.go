package logger

import "go.uber.org/zap/zapcore"

// Verbosity level constants for CLI flag counts.
const (
	VerbosityDefault = 0 // No flags: configured level
	VerbosityInfo    = 1 // -v
	VerbosityDebug   = 2 // -vv: + per-request table shape, backend calls
)

// LevelForVerbosity returns the level name to initialize with, given the
// configured level and the number of -v flags. Flags only ever lower the threshold.
func LevelForVerbosity(configured string, verbosity int) string {
	switch {
	case verbosity >= VerbosityDebug:
		return zapcore.DebugLevel.String()
	case verbosity == VerbosityInfo:
		lvl, err := ParseLevel(configured)
		if err != nil || lvl > zapcore.InfoLevel {
			return zapcore.InfoLevel.String()
		}
		return lvl.String()
	default:
		return configured
	}
}
