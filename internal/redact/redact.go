// Package redact removes credentials and other sensitive details from
// strings before they are logged, stored as a job's error message or
// returned in an error response.
//
// Provider SDK errors often echo the request URL or the rejected API key,
// and extraction errors can name storage paths, so every error that leaves
// the process passes through this package first.
package redact

import "regexp"

// Redaction placeholders.
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
)

type rule struct {
	re          *regexp.Regexp
	replacement string
}

// secretRules strip credentials. Order matters: specific key formats run
// before the generic key=value rule.
var secretRules = []rule{
	{regexp.MustCompile(`(?i)(postgres|postgresql|mysql|mongodb|db|database|connection)://[^@\s]+@`), RedactedCredentialPlaceholder},
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), "[REDACTED_JWT]"},
	// Gemini, OpenAI and Anthropic key formats.
	{regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`), RedactedKeyPlaceholder},
	{regexp.MustCompile(`sk-[A-Za-z0-9_\-]{20,}`), RedactedKeyPlaceholder},
	{regexp.MustCompile(`(?i)([?&](?:key|api_key|access_token|token)=)[^&\s"']+`), "${1}" + RedactedKeyPlaceholder},
	{regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]?['"]?)[^'"&\s]{3,}`), RedactedCredentialPlaceholder},
	{regexp.MustCompile(`(?i)(api[_-]?key|token|secret|access|auth)\s*[:=]\s*['"]?[A-Za-z0-9_\-.~+/]{8,}`), RedactedKeyPlaceholder},
	{regexp.MustCompile(`(AKIA|AccessKey(Id)?)([^a-zA-Z0-9])?[A-Z0-9]{8,}`), RedactedKeyPlaceholder},
}

// detailRules strip internals that are safe to log but not to show a
// client: paths, stack traces, SQL and hosts.
var detailRules = []rule{
	{regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(\n\t.*)+`), "[STACK_TRACE_REDACTED]"},
	{regexp.MustCompile(`(?i)(SELECT|INSERT|UPDATE|DELETE|CREATE|ALTER|DROP|GRANT)[\s\w,*()]+(?:FROM|INTO|SET|TABLE|DATABASE|SCHEMA|VIEW)(?:[\s\w,*()='"]+)?`), "[REDACTED_SQL]"},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "[REDACTED_EMAIL]"},
	{regexp.MustCompile(`(/[\w.-]+){2,}`), RedactedPathPlaceholder},
	{regexp.MustCompile(`[A-Za-z]:\\[^\\]+(\\[^\\]+)+`), RedactedPathPlaceholder},
	{regexp.MustCompile(`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}(?::\d{1,5})?\b`), "[REDACTED_HOST]"},
}

func apply(rules []rule, input string) string {
	for _, r := range rules {
		input = r.re.ReplaceAllString(input, r.replacement)
	}
	return input
}

// Secrets removes credentials and API keys from input and leaves the rest
// of the message readable. Job error messages shown to their owner use it.
func Secrets(input string) string {
	if input == "" {
		return input
	}
	return apply(secretRules, input)
}

// String removes credentials and internal details from input.
func String(input string) string {
	if input == "" {
		return input
	}
	return apply(detailRules, apply(secretRules, input))
}

// Error redacts err.Error() with String.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
