package storage

import (
	engerr "dementia-mcp/internal/errors"
)

// TranslatePlaceholders converts `?` positional placeholders into the
// PostgreSQL `$N` dialect. Question marks inside single-quoted literals,
// double-quoted identifiers and SQL comments are left alone. Statements that
// mix `?` with `$N` are rejected; pure `$N` statements pass through.
func TranslatePlaceholders(query string) (string, error) {
	hasQuestion := false
	hasDollar := false

	out := make([]byte, 0, len(query)+8)
	n := 0

	const (
		stNormal = iota
		stSingle
		stDouble
		stLineComment
		stBlockComment
	)
	state := stNormal

	for i := 0; i < len(query); i++ {
		ch := query[i]

		switch state {
		case stSingle:
			out = append(out, ch)
			if ch == '\'' {
				// '' is an escaped quote inside the literal
				if i+1 < len(query) && query[i+1] == '\'' {
					out = append(out, '\'')
					i++
				} else {
					state = stNormal
				}
			}
			continue
		case stDouble:
			out = append(out, ch)
			if ch == '"' {
				state = stNormal
			}
			continue
		case stLineComment:
			out = append(out, ch)
			if ch == '\n' {
				state = stNormal
			}
			continue
		case stBlockComment:
			out = append(out, ch)
			if ch == '*' && i+1 < len(query) && query[i+1] == '/' {
				out = append(out, '/')
				i++
				state = stNormal
			}
			continue
		}

		switch {
		case ch == '\'':
			state = stSingle
			out = append(out, ch)
		case ch == '"':
			state = stDouble
			out = append(out, ch)
		case ch == '-' && i+1 < len(query) && query[i+1] == '-':
			state = stLineComment
			out = append(out, ch)
		case ch == '/' && i+1 < len(query) && query[i+1] == '*':
			state = stBlockComment
			out = append(out, ch)
		case ch == '?':
			hasQuestion = true
			n++
			out = appendOrdinal(out, n)
		case ch == '$' && i+1 < len(query) && isDigit(query[i+1]):
			hasDollar = true
			out = append(out, ch)
		default:
			out = append(out, ch)
		}
	}

	if hasQuestion && hasDollar {
		return "", engerr.Validation("mixed placeholder styles in statement")
	}
	return string(out), nil
}

func appendOrdinal(out []byte, n int) []byte {
	out = append(out, '$')
	if n < 10 {
		return append(out, byte('0'+n))
	}
	var digits [8]byte
	i := len(digits)
	for n > 0 {
		i--
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return append(out, digits[i:]...)
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
