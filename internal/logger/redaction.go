package logger

import (
	"io"
	"regexp"
)

const redacted = "[REDACTED]"

// Redactor masks secrets in log output. Session credentials are the main
// concern: they are bearer material for the upstream API and must never
// reach a log file.
type Redactor struct {
	rules []rule
}

// rule replaces every match of re with repl; repl may reference the
// pattern's capture groups.
type rule struct {
	re   *regexp.Regexp
	repl string
}

func keepPrefix(pattern string) rule {
	return rule{re: regexp.MustCompile(pattern), repl: "${1}" + redacted}
}

// NewRedactor creates a new redactor with default patterns
func NewRedactor() *Redactor {
	return &Redactor{
		rules: []rule{
			// JSON "credential" fields, as written by the session codec
			{
				re:   regexp.MustCompile(`("credential"\s*:\s*)"(?:[^"\\]|\\.)*"`),
				repl: `${1}"` + redacted + `"`,
			},

			// credential=... / credential: ... in plain text
			keepPrefix(`(?i)(credential[\s:=]+)[^\s",}]+`),

			// Authorization headers
			keepPrefix(`(?i)(Bearer\s+)[A-Za-z0-9._~+/=-]+`),
			keepPrefix(`(?i)(Basic\s+)[A-Za-z0-9+/=]{8,}`),

			// API keys
			{re: regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`), repl: redacted},

			// Passwords and generic secrets
			keepPrefix(`(?i)((?:password|secret)["\s:=]+)[^\s",}]+`),
		},
	}
}

// AddPattern adds a custom redaction pattern. The whole match is replaced.
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.rules = append(r.rules, rule{re: re, repl: redacted})
	return nil
}

// Redact redacts sensitive information from a string
func (r *Redactor) Redact(s string) string {
	result := s
	for _, rule := range r.rules {
		result = rule.re.ReplaceAllString(result, rule.repl)
	}
	return result
}

// Wrap wraps an io.Writer to redact sensitive information
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{
		writer:   w,
		redactor: r,
	}
}

type redactingWriter struct {
	writer   io.Writer
	redactor *Redactor
}

// Write reports len(p) on success; the redacted line may differ in length
// and zerolog treats a short count as an error.
func (w *redactingWriter) Write(p []byte) (int, error) {
	if _, err := w.writer.Write([]byte(w.redactor.Redact(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}
