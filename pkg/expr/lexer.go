package expr

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// tokenKind identifies a lexical token of the expression language.
type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString

	tokLParen   // (
	tokRParen   // )
	tokLBracket // [
	tokRBracket // ]
	tokLBrace   // {
	tokRBrace   // }
	tokComma    // ,
	tokDot      // .
	tokColon    // :
	tokQuestion // ?
	tokSemi     // ;

	tokPlus    // +
	tokMinus   // -
	tokStar    // *
	tokSlash   // /
	tokPercent // %
	tokBang    // !
	tokEqEq    // ==
	tokBangEq  // !=
	tokLt      // <
	tokLtEq    // <=
	tokGt      // >
	tokGtEq    // >=
	tokAndAnd  // &&
	tokOrOr    // ||

	tokAssign      // =
	tokPlusAssign  // +=
	tokMinusAssign // -=
)

var tokenNames = map[tokenKind]string{
	tokEOF:         "end of expression",
	tokIdent:       "identifier",
	tokNumber:      "number",
	tokString:      "string",
	tokLParen:      "(",
	tokRParen:      ")",
	tokLBracket:    "[",
	tokRBracket:    "]",
	tokLBrace:      "{",
	tokRBrace:      "}",
	tokComma:       ",",
	tokDot:         ".",
	tokColon:       ":",
	tokQuestion:    "?",
	tokSemi:        ";",
	tokPlus:        "+",
	tokMinus:       "-",
	tokStar:        "*",
	tokSlash:       "/",
	tokPercent:     "%",
	tokBang:        "!",
	tokEqEq:        "==",
	tokBangEq:      "!=",
	tokLt:          "<",
	tokLtEq:        "<=",
	tokGt:          ">",
	tokGtEq:        ">=",
	tokAndAnd:      "&&",
	tokOrOr:        "||",
	tokAssign:      "=",
	tokPlusAssign:  "+=",
	tokMinusAssign: "-=",
}

func (k tokenKind) String() string {
	if s, ok := tokenNames[k]; ok {
		return s
	}
	return "unknown"
}

// token is a single lexed token. Pos is the byte offset into the source.
type token struct {
	kind tokenKind
	text string
	pos  int
}

// lex tokenizes src. The returned slice always ends with a tokEOF token.
func lex(src string) ([]token, error) {
	var toks []token
	pos := 0
	for pos < len(src) {
		r, size := utf8.DecodeRuneInString(src[pos:])
		switch {
		case unicode.IsSpace(r):
			pos += size
			continue
		case isIdentStart(r):
			start := pos
			for pos < len(src) {
				r, size = utf8.DecodeRuneInString(src[pos:])
				if !isIdentPart(r) {
					break
				}
				pos += size
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:pos], pos: start})
			continue
		case r >= '0' && r <= '9':
			start := pos
			pos = scanNumber(src, pos)
			toks = append(toks, token{kind: tokNumber, text: src[start:pos], pos: start})
			continue
		case r == '"' || r == '\'':
			s, end, err := scanString(src, pos)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokString, text: s, pos: pos})
			pos = end
			continue
		}

		kind, width := punct(src[pos:])
		if width == 0 {
			return nil, &ParseError{Pos: pos, Msg: "unexpected character " + quoteRune(r)}
		}
		toks = append(toks, token{kind: kind, text: src[pos : pos+width], pos: pos})
		pos += width
	}
	toks = append(toks, token{kind: tokEOF, pos: len(src)})
	return toks, nil
}

func punct(s string) (tokenKind, int) {
	if len(s) >= 2 {
		switch s[:2] {
		case "==":
			return tokEqEq, 2
		case "!=":
			return tokBangEq, 2
		case "<=":
			return tokLtEq, 2
		case ">=":
			return tokGtEq, 2
		case "&&":
			return tokAndAnd, 2
		case "||":
			return tokOrOr, 2
		case "+=":
			return tokPlusAssign, 2
		case "-=":
			return tokMinusAssign, 2
		}
	}
	switch s[0] {
	case '(':
		return tokLParen, 1
	case ')':
		return tokRParen, 1
	case '[':
		return tokLBracket, 1
	case ']':
		return tokRBracket, 1
	case '{':
		return tokLBrace, 1
	case '}':
		return tokRBrace, 1
	case ',':
		return tokComma, 1
	case '.':
		return tokDot, 1
	case ':':
		return tokColon, 1
	case '?':
		return tokQuestion, 1
	case ';':
		return tokSemi, 1
	case '+':
		return tokPlus, 1
	case '-':
		return tokMinus, 1
	case '*':
		return tokStar, 1
	case '/':
		return tokSlash, 1
	case '%':
		return tokPercent, 1
	case '!':
		return tokBang, 1
	case '<':
		return tokLt, 1
	case '>':
		return tokGt, 1
	case '=':
		return tokAssign, 1
	}
	return tokEOF, 0
}

func scanNumber(src string, pos int) int {
	for pos < len(src) && isDigit(src[pos]) {
		pos++
	}
	if pos+1 < len(src) && src[pos] == '.' && isDigit(src[pos+1]) {
		pos++
		for pos < len(src) && isDigit(src[pos]) {
			pos++
		}
	}
	if pos < len(src) && (src[pos] == 'e' || src[pos] == 'E') {
		p := pos + 1
		if p < len(src) && (src[p] == '+' || src[p] == '-') {
			p++
		}
		if p < len(src) && isDigit(src[p]) {
			for p < len(src) && isDigit(src[p]) {
				p++
			}
			pos = p
		}
	}
	return pos
}

// scanString scans a quoted string starting at pos and returns its unescaped
// content and the offset just past the closing quote.
func scanString(src string, pos int) (string, int, error) {
	quote := src[pos]
	var b strings.Builder
	i := pos + 1
	for i < len(src) {
		c := src[i]
		switch {
		case c == quote:
			return b.String(), i + 1, nil
		case c == '\\':
			if i+1 >= len(src) {
				return "", 0, &ParseError{Pos: i, Msg: "unterminated escape sequence"}
			}
			switch e := src[i+1]; e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '\\', '\'', '"':
				b.WriteByte(e)
			default:
				return "", 0, &ParseError{Pos: i, Msg: "unknown escape sequence \\" + string(e)}
			}
			i += 2
		default:
			b.WriteByte(c)
			i++
		}
	}
	return "", 0, &ParseError{Pos: pos, Msg: "unterminated string literal"}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}

// IsIdent reports whether s is a valid identifier of the expression language.
func IsIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 && !isIdentStart(r) {
			return false
		}
		if !isIdentPart(r) {
			return false
		}
	}
	return !isKeyword(s)
}

func isKeyword(s string) bool {
	switch s {
	case "true", "false", "null", "nil", "in":
		return true
	}
	return false
}

func quoteRune(r rune) string {
	return "'" + string(r) + "'"
}
