package logger

import "strings"

var levelNames = map[string]string{
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
}

var allowedStatus = map[string]bool{
	"ok":           true,
	"fail":         true,
	"skip":         true,
	"retry":        true,
	"rate_limited": true,
	"cancelled":    true,
	"rejected":     true,
}

var allowedOutcome = map[string]string{
	"ok":           "ok",
	"fail":         "fail",
	"cancelled":    "cancelled",
	"rate_limited": "rate_limited",
	"dropped":      "dropped",
}

func normalizeLevel(level string) string {
	if mapped, ok := levelNames[strings.ToLower(level)]; ok {
		return mapped
	}
	if level == "" {
		return "INFO"
	}
	return strings.ToUpper(level)
}

// normalizeStatus lowercases known statuses and maps "error" onto "fail".
func normalizeStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	if s == "error" {
		return "fail"
	}
	if allowedStatus[s] {
		return s
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
	"rid_full",
	"update_id",
	"user_id",
	"chat_id",
	"handler",
	"op",
	"cb_key",
	"topic",
	"question",
	"token",
	"option",
	"remaining_s",
	"correct",
	"total",
	"reason",
	"outcome",
	"duration_ms",
	"count",
	"key",
	"backend",
	"mode",
	"listen",
	"public_url",
	"http_code",
	"err",
	"retryable",
	"attempts",
	"backoff_ms",
	"retry_after_ms",
}
