package logging

import (
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

// RedactedPlaceholder replaces every masked value.
const RedactedPlaceholder = "[REDACTED]"

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-[A-Za-z0-9_-]{20,}`),          // OpenAI
	regexp.MustCompile(`fc-[A-Za-z0-9]{24,}`),            // Firecrawl
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/-]{16,}=*`),
	regexp.MustCompile(`(?i)\b[a-f0-9]{32,}\b`),          // hex keys
	regexp.MustCompile(`(?i)[a-z0-9._%+-]+@[a-z0-9.-]+_[A-Za-z0-9]{20,}`), // pdf.co style "user@host_key"
	regexp.MustCompile(`(?i)((?:password|secret|token|api[_-]?key|apikey)\s*[:=]\s*)[^\s,;&"']{6,}`),
}

// Key fragments that mark a field as a credential regardless of its value.
var sensitiveKeyFragments = []string{
	"API_KEY",
	"APIKEY",
	"ACCESS_KEY",
	"AUTHORIZATION",
	"PASSWORD",
	"SECRET",
	"TOKEN",
	"X-API-KEY",
}

// Redact masks credentials found anywhere in value.
func Redact(value string) string {
	if value == "" {
		return value
	}
	out := value
	for _, p := range secretPatterns {
		if p.NumSubexp() > 0 {
			out = p.ReplaceAllString(out, "${1}"+RedactedPlaceholder)
			continue
		}
		out = p.ReplaceAllString(out, RedactedPlaceholder)
	}
	return out
}

// IsSensitiveKey reports whether a field name denotes a credential.
func IsSensitiveKey(key string) bool {
	upper := strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
	for _, frag := range sensitiveKeyFragments {
		if strings.Contains(upper, strings.ReplaceAll(frag, "-", "_")) {
			return true
		}
	}
	return false
}

// MaskKey shows enough of a key to identify it in logs: the first four and
// last four characters. Short keys are fully masked.
func MaskKey(key string) string {
	switch {
	case key == "":
		return "[empty]"
	case len(key) <= 12:
		return "****"
	default:
		return key[:4] + "****" + key[len(key)-4:]
	}
}

// ParseLevel maps a level name to a zap level, returning def when the name
// is empty or unknown.
func ParseLevel(name string, def zapcore.Level) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return def
	}
}
