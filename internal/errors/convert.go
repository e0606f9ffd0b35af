package errors

import (
	stderrors "errors"

	"github.com/vango-dev/villain/pkg/compiler"
	"github.com/vango-dev/villain/pkg/expr"
	"github.com/vango-dev/villain/pkg/reactive"
	"github.com/vango-dev/villain/pkg/scheduler"
	"github.com/vango-dev/villain/pkg/template"
)

var parseCodes = map[template.ErrorKind]string{
	template.UnterminatedTag:        "V001",
	template.MismatchedClose:        "V002",
	template.UnknownDirective:       "V003",
	template.MalformedInterpolation: "V004",
	template.UnresolvedComponent:    "V005",
	template.InvalidExpression:      "V006",
	template.OrphanElse:             "V007",
	template.MisplacedDirective:     "V008",
	template.UnexpectedEOF:          "V009",
}

// FromError converts an error from the compiler or the update engine into
// a coded diagnostic. Errors it cannot classify are wrapped under
// fallback. A nil err returns nil.
func FromError(err error, fallback string) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}

	var pe *template.ParseError
	if stderrors.As(err, &pe) {
		out := New(parseCodes[pe.Kind]).WithDetail(pe.Msg).Wrap(err)
		if pe.Name != "" && pe.Pos.Line > 0 {
			out.WithLocation(pe.Name, pe.Pos.Line, pe.Pos.Col)
		}
		return out
	}

	var ne *compiler.NodeError
	if stderrors.As(err, &ne) {
		return New("V020").WithDetail(ne.Err.Error()).Wrap(err)
	}

	code := fallback
	var xe *expr.ParseError
	switch {
	case stderrors.As(err, &xe):
		code = "V006"
	case stderrors.Is(err, reactive.ErrCycleDetected):
		code = "V021"
	case stderrors.Is(err, compiler.ErrInvalidName):
		code = "V010"
	case stderrors.Is(err, compiler.ErrUnknownComponent):
		code = "V022"
	case stderrors.Is(err, compiler.ErrNotCompiled):
		code = "V023"
	case stderrors.Is(err, scheduler.ErrUnknownNode), stderrors.Is(err, scheduler.ErrNoListener):
		code = "V024"
	}
	return New(code).WithDetail(err.Error()).Wrap(err)
}

// Diagnose is FromError for an error raised while compiling src, which is
// used for the source context when the file cannot be read.
func Diagnose(err error, src string) *Error {
	e := FromError(err, "V006")
	if e != nil && e.Location != nil && len(e.Context) == 0 {
		e.WithSource(src)
	}
	return e
}
