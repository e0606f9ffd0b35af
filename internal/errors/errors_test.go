package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vango-dev/villain/pkg/compiler"
	"github.com/vango-dev/villain/pkg/reactive"
	"github.com/vango-dev/villain/pkg/template"
)

func TestNew(t *testing.T) {
	err := New("V002")
	if err.Category != CategoryCompile {
		t.Errorf("Category = %q, want compile", err.Category)
	}
	if err.Message != "Mismatched closing tag" {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Suggestion == "" {
		t.Error("registered suggestion not copied")
	}

	unknown := New("V999")
	if unknown.Message != "Unknown error" {
		t.Errorf("unknown code Message = %q", unknown.Message)
	}
}

func TestRegistryCodes(t *testing.T) {
	codes := Codes()
	for i, code := range codes {
		if !strings.HasPrefix(code, "V") || len(code) != 4 {
			t.Errorf("malformed code %q", code)
		}
		if i > 0 && codes[i-1] >= code {
			t.Errorf("codes not sorted at %q", code)
		}
		tmpl, _ := Lookup(code)
		if tmpl.Message == "" || tmpl.Category == "" {
			t.Errorf("%s has no message or category", code)
		}
	}
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"code only", New("V021"), "V021: Dependency cycle detected"},
		{"uncoded", Newf(CategoryCLI, "bad %s", "thing"), "bad thing"},
		{
			"located with detail",
			&Error{Code: "V002", Message: "Mismatched closing tag", Detail: "expected </p>", Location: &Location{File: "a.vue", Line: 3, Column: 2}},
			"a.vue:3:2: V002: Mismatched closing tag: expected </p>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLocationString(t *testing.T) {
	if got := (&Location{File: "x.vue", Line: 10, Column: 5}).String(); got != "x.vue:10:5" {
		t.Errorf("String() = %q", got)
	}
	if got := (&Location{File: "x.vue", Line: 10}).String(); got != "x.vue:10" {
		t.Errorf("String() = %q", got)
	}
	var nilLoc *Location
	if got := nilLoc.String(); got != "" {
		t.Errorf("nil String() = %q", got)
	}
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := New("V020").Wrap(cause)
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should see the wrapped error")
	}
}

func TestContextFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Card.vue")
	src := "<div>\n  <p>\n    {{ title }}\n  </div>\n</div>\n<span/>\n<b/>\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	err := New("V002").WithLocation(path, 4, 3)
	if err.ContextStart != 2 {
		t.Errorf("ContextStart = %d, want 2", err.ContextStart)
	}
	want := []string{"  <p>", "    {{ title }}", "  </div>", "</div>", "<span/>"}
	if strings.Join(err.Context, "|") != strings.Join(want, "|") {
		t.Errorf("Context = %q, want %q", err.Context, want)
	}

	first := New("V002").WithLocation(path, 1, 1)
	if first.ContextStart != 1 || len(first.Context) != 3 {
		t.Errorf("context at line 1 = %d lines from %d", len(first.Context), first.ContextStart)
	}

	missing := New("V002").WithLocation(filepath.Join(t.TempDir(), "nope.vue"), 2, 1)
	if missing.Context != nil {
		t.Errorf("missing file produced context %q", missing.Context)
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New("V002").WithDetail("expected </p>, found </div>")
	err.Location = &Location{File: "Card.vue", Line: 3, Column: 3}
	err.WithSource("<div>\n  <p>\n  </div>")

	out := err.Format()
	for _, want := range []string{
		"ERROR V002: Mismatched closing tag",
		"Card.vue:3:3",
		"→    3 │   </div>",
		"       │   ^",
		"expected </p>, found </div>",
		"Hint: Closing tags must match",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("Format() used colors while disabled")
	}
}

func TestFormatJSON(t *testing.T) {
	err := New("V005").WithDetail("<Card> is not declared")
	err.Location = &Location{File: "App.vue", Line: 2, Column: 4}

	var got map[string]any
	if e := json.Unmarshal([]byte(err.FormatJSON()), &got); e != nil {
		t.Fatalf("FormatJSON is not valid JSON: %v", e)
	}
	if got["code"] != "V005" || got["category"] != "compile" {
		t.Errorf("FormatJSON = %v", got)
	}
	loc, _ := got["location"].(map[string]any)
	if loc["file"] != "App.vue" || loc["line"] != float64(2) {
		t.Errorf("location = %v", loc)
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("one two three four five six", 9)
	want := []string{"one two", "three", "four five", "six"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Errorf("wrapText = %q, want %q", lines, want)
	}
	if wrapText("", 10) != nil {
		t.Error("empty text should wrap to nil")
	}
}

func TestFromError(t *testing.T) {
	reg := compiler.NewRegistry()
	_, parseErr := compiler.Compile("Card", "<div>\n  <p>\n  </div>", reg, compiler.Options{})
	if parseErr == nil {
		t.Fatal("expected a parse error")
	}

	tests := []struct {
		name string
		err  error
		code string
	}{
		{"parse error", parseErr, "V002"},
		{"wrapped parse error", fmt.Errorf("compiling: %w", parseErr), "V002"},
		{"cycle", fmt.Errorf("total: %w", reactive.ErrCycleDetected), "V021"},
		{"unknown component", fmt.Errorf("Nope: %w", compiler.ErrUnknownComponent), "V022"},
		{"node error", &compiler.NodeError{Pos: template.Position{Line: 1, Col: 1}, Err: fmt.Errorf("x is not a number")}, "V020"},
		{"unclassified", fmt.Errorf("disk full"), "V081"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError(tt.err, "V081")
			if got.Code != tt.code {
				t.Errorf("code = %s, want %s", got.Code, tt.code)
			}
			if !stderrors.Is(got, tt.err) && !stderrors.Is(tt.err, got.Wrapped) {
				t.Error("original error not wrapped")
			}
		})
	}

	if FromError(nil, "V081") != nil {
		t.Error("FromError(nil) should be nil")
	}
	coded := New("V060")
	if FromError(coded, "V081") != coded {
		t.Error("an *Error should pass through unchanged")
	}
}

func TestDiagnoseUsesSource(t *testing.T) {
	src := "<ul>\n  <li v-else>x</li>\n</ul>"
	_, err := compiler.Compile("List", src, compiler.NewRegistry(), compiler.Options{Path: "List.vue"})
	if err == nil {
		t.Fatal("expected a parse error")
	}
	d := Diagnose(err, src)
	if d.Code != "V007" {
		t.Fatalf("code = %s, want V007", d.Code)
	}
	if d.Location == nil || d.Location.File != "List.vue" || d.Location.Line != 2 {
		t.Fatalf("location = %v", d.Location)
	}
	if len(d.Context) != 3 || d.ContextStart != 1 {
		t.Errorf("context = %q from %d", d.Context, d.ContextStart)
	}
}
