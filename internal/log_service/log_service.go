package log_service

import (
	"strings"
	"time"
)

const (
	DebugLevel = "DEBUG"
	InfoLevel  = "INFO"
	WarnLevel  = "WARN"
	ErrorLevel = "ERROR"
)

const (
	DebugLevelValue = iota
	InfoLevelValue
	WarnLevelValue
	ErrorLevelValue
)

type LogEvent struct {
	Timestamp time.Time
	NodeID    string
	Message   string
	Metadata  map[string]any
}

type LogService interface {
	Debug(event LogEvent)
	Info(event LogEvent)
	Warn(event LogEvent)
	Error(event LogEvent)
}

// GetLevelValue maps a level name to its ordinal. Unknown names are treated as
// DEBUG so nothing is filtered by accident.
func GetLevelValue(level string) int {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case InfoLevel:
		return InfoLevelValue
	case WarnLevel:
		return WarnLevelValue
	case ErrorLevel:
		return ErrorLevelValue
	default:
		return DebugLevelValue
	}
}

// IsValidLevel reports whether level names one of the four known levels.
func IsValidLevel(level string) bool {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case DebugLevel, InfoLevel, WarnLevel, ErrorLevel:
		return true
	}
	return false
}
