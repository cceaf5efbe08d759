package logger

import (
	"regexp"
	"strings"
)

const redactedValue = "[REDACTED]"

// sensitiveDataPatterns match credentials embedded in free text such as
// URLs and driver errors.
var sensitiveDataPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9-._~+/]+=*)`),
	regexp.MustCompile(`(eyJ[a-zA-Z0-9_-]{5,}\.eyJ[a-zA-Z0-9_-]{5,})\.[a-zA-Z0-9_-]{5,}`),
	regexp.MustCompile(`(?i)((password|secret|token)[\s:=]+)([^;,\s]{3,})`),
}

// sensitiveKeywords mark field keys whose values are never logged.
var sensitiveKeywords = []string{"password", "secret", "token", "authorization", "jwt"}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(key, kw) {
			return true
		}
	}
	return false
}

// RedactSensitiveData replaces bearer tokens, JWT signatures and inline
// secrets in input with [REDACTED].
func RedactSensitiveData(input string) string {
	for _, pattern := range sensitiveDataPatterns {
		input = pattern.ReplaceAllString(input, "$1"+redactedValue)
	}
	return input
}

// RedactSensitiveFields returns fields with credential-like keys blanked
// and the remaining string values passed through RedactSensitiveData.
func RedactSensitiveFields(fields []Field) []Field {
	out := make([]Field, len(fields))
	for i, f := range fields {
		out[i] = f
		v, ok := f.Value.(string)
		switch {
		case !ok || v == "":
		case isSensitiveKey(f.Key):
			out[i].Value = redactedValue
		default:
			out[i].Value = RedactSensitiveData(v)
		}
	}
	return out
}
