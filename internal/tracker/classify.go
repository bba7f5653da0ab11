package tracker

import (
	"strings"
	"unicode/utf8"
)

// Fallback error kinds when no rule matches.
const (
	ErrorCommandFailed = "command_failed"
	ErrorUnknown       = "unknown_error"
)

// classificationRule maps an error kind to the output substrings that
// identify it.
type classificationRule struct {
	kind     string
	patterns []string
}

// classificationRules is evaluated in order against combined
// stderr+stdout; the first rule with any matching substring wins, so
// more specific kinds come first.
var classificationRules = []classificationRule{
	{"module_not_found", []string{"ModuleNotFoundError", "No module named"}},
	{"file_not_found", []string{"FileNotFoundError", "No such file"}},
	{"permission_denied", []string{"PermissionError", "Permission denied"}},
	{"syntax_error", []string{"SyntaxError"}},
	{"type_error", []string{"TypeError"}},
	{"pre_commit_failed", []string{"pre-commit", "failed"}},
	{"type_check_failed", []string{"mypy", "error"}},
	{"linting_failed", []string{"ruff"}},
	{"import_error", []string{"ImportError", "cannot import"}},
	{"test_failed", []string{"FAILED", "ERROR", "test"}},
	{"no_verify_used", []string{"--no-verify"}},
}

// Classify assigns an error kind to the event by first-match-wins
// substring rules, falling back to command_failed for nonzero exits and
// unknown_error otherwise.
func Classify(e *Event) string {
	combined := e.Stderr + e.Stdout

	for _, rule := range classificationRules {
		for _, pattern := range rule.patterns {
			if strings.Contains(combined, pattern) {
				return rule.kind
			}
		}
	}

	if e.ExitCode != 0 {
		return ErrorCommandFailed
	}
	return ErrorUnknown
}

// maxMessageLen bounds the stored error message.
const maxMessageLen = 200

// ExtractMessage returns a concise single-line error message: the first
// non-blank line of stderr, falling back to stdout.
func ExtractMessage(e *Event) string {
	for _, source := range []string{e.Stderr, e.Stdout} {
		for _, line := range strings.Split(source, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if len(line) > maxMessageLen {
				// Cut on a rune boundary, never mid-character.
				cut := maxMessageLen
				for cut > 0 && !utf8.RuneStart(line[cut]) {
					cut--
				}
				return line[:cut]
			}
			return line
		}
	}
	return "No error message"
}
