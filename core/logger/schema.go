package logger

import "strings"

const (
	// LevelDebug represents the debug severity level name.
	LevelDebug = "DEBUG"
	// LevelInfo represents the info severity level name.
	LevelInfo = "INFO"
	// LevelWarn represents the warning severity level name.
	LevelWarn = "WARN"
	// LevelError represents the error severity level name.
	LevelError = "ERROR"
)

var allowedLevels = map[string]string{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

var allowedStatus = map[string]struct{}{
	"ok":      {},
	"fail":    {},
	"skip":    {},
	"retry":   {},
	"revoked": {},
}

func normalizeLevel(level string) string {
	if level == "" {
		return LevelInfo
	}
	if mapped, ok := allowedLevels[strings.ToLower(level)]; ok {
		return mapped
	}
	return strings.ToUpper(level)
}

func normalizeStatus(status string) string {
	lowered := strings.ToLower(strings.TrimSpace(status))
	if _, ok := allowedStatus[lowered]; ok {
		return lowered
	}
	return status
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"update_id",
	"user_id",
	"chat_id",
	"chat_type",
	"handler",
	"cb_key",
	"district_id",
	"outcome",
	"duration_ms",
	"wait_ms",
	"messages",
	"kb",
	"recipients",
	"delivered",
	"removed",
	"failed",
	"payload",
	"lang",
	"username",
	"mode",
	"listen",
	"public_url",
	"db",
	"host",
	"port",
	"err",
	"err_kind",
	"cause",
	"attempts",
}
