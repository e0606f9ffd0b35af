package template

import (
	"errors"
	"fmt"
	"sort"
)

// Position is a location in template source. Line and Col are 1-based;
// Col counts bytes.
type Position struct {
	Offset int
	Line   int
	Col    int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// ErrorKind classifies a ParseError.
type ErrorKind uint8

const (
	UnterminatedTag ErrorKind = iota + 1
	MismatchedClose
	UnknownDirective
	MalformedInterpolation
	UnresolvedComponent
	InvalidExpression
	OrphanElse
	MisplacedDirective
	UnexpectedEOF
)

var kindNames = map[ErrorKind]string{
	UnterminatedTag:        "unterminated tag",
	MismatchedClose:        "mismatched closing tag",
	UnknownDirective:       "unknown directive",
	MalformedInterpolation: "malformed interpolation",
	UnresolvedComponent:    "unresolved component",
	InvalidExpression:      "invalid expression",
	OrphanElse:             "v-else without v-if",
	MisplacedDirective:     "misplaced directive",
	UnexpectedEOF:          "unexpected end of template",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "parse error"
}

// Sentinels for errors.Is matching against a ParseError's kind.
var (
	ErrUnterminatedTag        = errors.New(UnterminatedTag.String())
	ErrMismatchedClose        = errors.New(MismatchedClose.String())
	ErrUnknownDirective       = errors.New(UnknownDirective.String())
	ErrMalformedInterpolation = errors.New(MalformedInterpolation.String())
	ErrUnresolvedComponent    = errors.New(UnresolvedComponent.String())
	ErrInvalidExpression      = errors.New(InvalidExpression.String())
	ErrOrphanElse             = errors.New(OrphanElse.String())
	ErrMisplacedDirective     = errors.New(MisplacedDirective.String())
	ErrUnexpectedEOF          = errors.New(UnexpectedEOF.String())
)

var kindErrors = map[ErrorKind]error{
	UnterminatedTag:        ErrUnterminatedTag,
	MismatchedClose:        ErrMismatchedClose,
	UnknownDirective:       ErrUnknownDirective,
	MalformedInterpolation: ErrMalformedInterpolation,
	UnresolvedComponent:    ErrUnresolvedComponent,
	InvalidExpression:      ErrInvalidExpression,
	OrphanElse:             ErrOrphanElse,
	MisplacedDirective:     ErrMisplacedDirective,
	UnexpectedEOF:          ErrUnexpectedEOF,
}

// ParseError reports malformed template source.
type ParseError struct {
	Kind ErrorKind
	Name string // template name, if known
	Pos  Position
	Msg  string
}

func (e *ParseError) Error() string {
	name := e.Name
	if name == "" {
		name = "template"
	}
	return fmt.Sprintf("%s:%s: %s: %s", name, e.Pos, e.Kind, e.Msg)
}

// Unwrap exposes the kind sentinel, so errors.Is(err, ErrOrphanElse) works.
func (e *ParseError) Unwrap() error {
	return kindErrors[e.Kind]
}

// lineIndex maps byte offsets to line/column positions.
type lineIndex []int

func newLineIndex(src string) lineIndex {
	idx := lineIndex{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			idx = append(idx, i+1)
		}
	}
	return idx
}

func (l lineIndex) position(off int) Position {
	line := sort.Search(len(l), func(i int) bool { return l[i] > off }) - 1
	if line < 0 {
		line = 0
	}
	return Position{Offset: off, Line: line + 1, Col: off - l[line] + 1}
}
