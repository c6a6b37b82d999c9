package detection

import (
	"strings"
	"unicode/utf8"
)

// window cuts the evidence window around body[start:end], extended by
// before runes to the left and after runes to the right. Line breaks are
// collapsed to spaces and the result is trimmed. limit > 0 caps the
// result to that many runes.
func window(body string, start, end, before, after, limit int) string {
	from := backRunes(body, start, before)
	to := forwardRunes(body, end, after)
	s := strings.TrimSpace(collapseNewlines(body[from:to]))
	if limit > 0 && utf8.RuneCountInString(s) > limit {
		s = truncateRunes(s, limit)
	}
	return s
}

// lookback returns up to n runes of body ending at i.
func lookback(body string, i, n int) string {
	return body[backRunes(body, i, n):i]
}

func backRunes(s string, i, n int) int {
	for ; n > 0 && i > 0; n-- {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
	}
	return i
}

func forwardRunes(s string, i, n int) int {
	for ; n > 0 && i < len(s); n-- {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return i
}

func truncateRunes(s string, n int) string {
	return s[:forwardRunes(s, 0, n)]
}

var newlineReplacer = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func collapseNewlines(s string) string {
	return newlineReplacer.Replace(s)
}
