package errors

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Category groups error codes.
type Category string

const (
	CategoryCompile  Category = "compile"
	CategoryRuntime  Category = "runtime"
	CategoryProtocol Category = "protocol"
	CategoryConfig   Category = "config"
	CategoryCLI      Category = "cli"
)

// Location is a position in a source file. Line and Column are 1-based.
type Location struct {
	File   string
	Line   int
	Column int
}

// String returns the location as file:line:col.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Error is a coded diagnostic: what went wrong, where, and what to try.
type Error struct {
	// Code is a registered identifier such as "V002".
	Code     string
	Category Category
	// Message is the one-line summary.
	Message string
	// Detail is the specific failure, usually the underlying error text.
	Detail   string
	Location *Location
	// Context holds the source lines around Location, starting at
	// ContextStart.
	Context      []string
	ContextStart int
	Suggestion   string
	Wrapped      error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Location != nil {
		b.WriteString(e.Location.String())
		b.WriteString(": ")
	}
	if e.Code != "" {
		b.WriteString(e.Code)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// WithLocation sets the location and reads the surrounding lines from file
// when it exists.
func (e *Error) WithLocation(file string, line, column int) *Error {
	e.Location = &Location{File: file, Line: line, Column: column}
	e.Context, e.ContextStart = readContextLines(file, line, contextLines)
	return e
}

// WithSource replaces the context with lines taken from src, for sources
// that never lived in a file.
func (e *Error) WithSource(src string) *Error {
	if e.Location == nil {
		return e
	}
	e.Context, e.ContextStart = contextFrom(strings.Split(src, "\n"), e.Location.Line, contextLines)
	return e
}

// WithSuggestion sets the hint shown under the error.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// WithDetail sets the detail text.
func (e *Error) WithDetail(d string) *Error {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *Error) Wrap(err error) *Error {
	e.Wrapped = err
	return e
}

const contextLines = 5

func readContextLines(filename string, target, size int) ([]string, int) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, 0
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for len(lines) < target+size/2 && scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return contextFrom(lines, target, size)
}

func contextFrom(lines []string, target, size int) ([]string, int) {
	if target < 1 || target > len(lines) {
		return nil, 0
	}
	start := target - size/2
	if start < 1 {
		start = 1
	}
	end := target + size/2
	if end > len(lines) {
		end = len(lines)
	}
	return append([]string(nil), lines[start-1:end]...), start
}

// New creates an Error from a registered code.
func New(code string) *Error {
	tmpl, ok := registry[code]
	if !ok {
		return &Error{Code: code, Message: "Unknown error"}
	}
	return &Error{
		Code:       code,
		Category:   tmpl.Category,
		Message:    tmpl.Message,
		Suggestion: tmpl.Suggestion,
	}
}

// Newf creates an uncoded Error with a formatted message.
func Newf(category Category, format string, args ...any) *Error {
	return &Error{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}
