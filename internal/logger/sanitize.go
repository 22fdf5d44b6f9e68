package logger

import (
	"strings"
	"unicode/utf8"
)

const maxValueLen = 256

// Sanitize prepares a request-supplied value for logging: control characters
// are replaced so a value cannot forge extra log lines, and long values are cut.
func Sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return ' '
		}
		return r
	}, s)
	return Truncate(s, maxValueLen)
}

// Truncate keeps at most the first n bytes of s and marks the cut with "...".
// The cut never splits a UTF-8 sequence.
func Truncate(s string, n int) string {
	if n < 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
