// Package normalize repairs response text that some servers emit with
// byte-level `\xHH` escapes inside what should be JSON string content.
package normalize

import (
	"strings"
)

// RepairUnicode replaces every unescaped `\xHH` sequence in text with
// the character U+00HH so a JSON decoder accepts it. A `\x` whose
// backslash is itself escaped (`\\x41`) is left alone, and characters
// that cannot appear raw inside a JSON string (quote, backslash,
// controls) are written as `\u00HH`. The result never contains a new
// unescaped `\xHH`, so applying RepairUnicode twice equals applying it
// once.
func RepairUnicode(text string) string {
	if !strings.Contains(text, `\x`) {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))

	backslashes := 0
	for i := 0; i < len(text); i++ {
		c := text[i]

		if c == '\\' && backslashes%2 == 0 && i+3 < len(text) && text[i+1] == 'x' {
			hi, okHi := unhex(text[i+2])
			lo, okLo := unhex(text[i+3])
			if okHi && okLo {
				writeChar(&b, hi<<4|lo)
				backslashes = 0
				i += 3
				continue
			}
		}

		b.WriteByte(c)
		if c == '\\' {
			backslashes++
		} else {
			backslashes = 0
		}
	}

	return b.String()
}

func writeChar(b *strings.Builder, v byte) {
	if v < 0x20 || v == '"' || v == '\\' {
		const hexDigits = "0123456789abcdef"
		b.WriteString(`\u00`)
		b.WriteByte(hexDigits[v>>4])
		b.WriteByte(hexDigits[v&0x0f])
		return
	}
	b.WriteRune(rune(v))
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
