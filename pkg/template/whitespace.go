package template

import (
	"fmt"
	"strings"
)

// Whitespace selects how literal text whitespace is handled at parse time.
type Whitespace uint8

const (
	// Condense drops whitespace-only text that spans a line break, keeps
	// other whitespace-only text as a single space, and folds runs inside
	// text that contain a newline or span two or more characters into one
	// space. A solitary space is never altered.
	Condense Whitespace = iota
	// Preserve keeps text byte-for-byte.
	Preserve
	// Trim drops whitespace-only text and trims the ends of every run.
	Trim
)

func (w Whitespace) String() string {
	switch w {
	case Condense:
		return "condense"
	case Preserve:
		return "preserve"
	case Trim:
		return "trim"
	}
	return fmt.Sprintf("Whitespace(%d)", w)
}

// ParseWhitespace parses a policy name as used in configuration.
func ParseWhitespace(s string) (Whitespace, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "condense":
		return Condense, nil
	case "preserve":
		return Preserve, nil
	case "trim":
		return Trim, nil
	}
	return Condense, fmt.Errorf("unknown whitespace policy %q", s)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func isBlank(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isSpace(s[i]) {
			return false
		}
	}
	return true
}

// blankRun applies the policy to a run of text holding no interpolation
// that is whitespace-only. ok=false drops it.
func (w Whitespace) blankRun(s string) (string, bool) {
	switch w {
	case Preserve:
		return s, true
	case Trim:
		return "", false
	}
	if strings.ContainsAny(s, "\n\r") {
		return "", false
	}
	return " ", true
}

// literal applies the policy to one literal piece of a text run.
func (w Whitespace) literal(s string) string {
	if w != Condense {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if !isSpace(s[i]) {
			b.WriteByte(s[i])
			i++
			continue
		}
		j := i
		newline := false
		for j < len(s) && isSpace(s[j]) {
			if s[j] == '\n' || s[j] == '\r' {
				newline = true
			}
			j++
		}
		if j-i == 1 && !newline {
			b.WriteByte(s[i])
		} else {
			b.WriteByte(' ')
		}
		i = j
	}
	return b.String()
}
