package template

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type mapResolver map[string]string

func (m mapResolver) Resolve(tag string) (string, bool) {
	name, ok := m[tag]
	return name, ok
}

var testComponents = mapResolver{"Counter": "Counter", "todo-item": "TodoItem"}

func mustParse(t *testing.T, src string, ws Whitespace) *Template {
	t.Helper()
	tmpl, err := Parse(src, Options{Components: testComponents, Whitespace: ws})
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	return tmpl
}

func outline(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

func TestParseOutline(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "directives",
			src: `<div class="app" :title="name">
  <p v-if="count > 0">Count: {{ count }}</p>
  <p v-else-if="count < 0">negative</p>
  <p v-else>zero</p>
  <ul>
    <li v-for="(item, i) in items" :key="item.id" @click="select(item)">{{ i }}: {{ item.name }}</li>
  </ul>
  <Counter :start="1" @change="total = $event" />
</div>`,
			want: outline(
				`<div>`,
				`  @static class="app"`,
				`  @bind title=name`,
				`  if (count > 0)`,
				`    <p>`,
				`      interp "Count: " {count}`,
				`  else-if (count < 0)`,
				`    <p>`,
				`      text "negative"`,
				`  else`,
				`    <p>`,
				`      text "zero"`,
				`  <ul>`,
				`    for item, i in items key=item.id`,
				`      <li>`,
				`        @event click="select(item)"`,
				`        interp {i} ": " {item.name}`,
				`  component Counter`,
				`    @bind start=1`,
				`    @event change="total = $event"`,
			),
		},
		{
			name: "single file component",
			src: `<script>
const x = "<div>";
</script>
<template>
  <h1>{{ msg }}</h1>
  <input v-model="msg" />
</template>
<style>
h1 { color: red; }
</style>
`,
			want: outline(
				`<h1>`,
				`  interp {msg}`,
				`<input>`,
				`  @model model=msg`,
			),
		},
		{
			name: "for with if",
			src:  `<li v-for="t in todos" v-if="!t.done">{{ t.title }}</li>`,
			want: outline(
				`for t in todos`,
				`  if (!t.done)`,
				`    <li>`,
				`      interp {t.title}`,
			),
		},
		{
			name: "template fragment",
			src:  `<template v-if="ok"><a>1</a><b>2</b></template><span v-else>no</span>`,
			want: outline(
				`if ok`,
				`  fragment`,
				`    <a>`,
				`      text "1"`,
				`    <b>`,
				`      text "2"`,
				`else`,
				`  <span>`,
				`    text "no"`,
			),
		},
		{
			name: "nested braces in interpolation",
			src:  `<h2>{{ {"a": 1, b: {}} }}</h2>`,
			want: outline(
				`<h2>`,
				`  interp {{"a": 1, "b": {}}}`,
			),
		},
		{
			name: "entities and comments",
			src:  `<p title="a &amp; b"><!-- note -->&lt;tag&gt; &copy;</p>`,
			want: outline(
				`<p>`,
				`  @static title="a & b"`,
				`  text "<tag> ©"`,
			),
		},
		{
			name: "void elements and literal less-than",
			src:  `<label>1 < 2<br>ok</label>`,
			want: outline(
				`<label>`,
				`  text "1 < 2"`,
				`  <br>`,
				`  text "ok"`,
			),
		},
		{
			name: "kebab component with static key",
			src:  `<todo-item key="a" label="x"></todo-item>`,
			want: outline(
				`component TodoItem key="a"`,
				`  @static label="x"`,
			),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustParse(t, tt.src, Condense).String()
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("outline mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWhitespacePolicies(t *testing.T) {
	src := "<p>  a  b\n c </p> <span>x</span>\n<i>y</i>"
	tests := []struct {
		ws   Whitespace
		want string
	}{
		{Condense, outline(
			`<p>`,
			`  text " a b c "`,
			`text " "`,
			`<span>`,
			`  text "x"`,
			`<i>`,
			`  text "y"`,
		)},
		{Preserve, outline(
			`<p>`,
			`  text "  a  b\n c "`,
			`text " "`,
			`<span>`,
			`  text "x"`,
			`text "\n"`,
			`<i>`,
			`  text "y"`,
		)},
		{Trim, outline(
			`<p>`,
			`  text "a  b\n c"`,
			`<span>`,
			`  text "x"`,
			`<i>`,
			`  text "y"`,
		)},
	}
	for _, tt := range tests {
		t.Run(tt.ws.String(), func(t *testing.T) {
			got := mustParse(t, src, tt.ws).String()
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("outline mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCondenseKeepsSolitarySpace(t *testing.T) {
	tests := map[string]string{
		"a b":     "a b",
		"a\tb":    "a\tb",
		"a  b":    "a b",
		"a\nb":    "a b",
		" a ":     " a ",
		"a \n  b": "a b",
	}
	for in, want := range tests {
		if got := Condense.literal(in); got != want {
			t.Errorf("literal(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTrimInterpolation(t *testing.T) {
	got := mustParse(t, "<p>\n  Hi {{ name }}!\n</p>", Trim).String()
	want := outline(
		`<p>`,
		`  interp "Hi " {name} "!"`,
	)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("outline mismatch (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind ErrorKind
		pos  string
	}{
		{"mismatched close", `<div><span></div>`, MismatchedClose, "1:12"},
		{"stray close", `</p>`, MismatchedClose, "1:1"},
		{"unterminated open tag", `<div`, UnterminatedTag, "1:1"},
		{"unterminated attribute", `<div class="x>`, UnterminatedTag, "1:12"},
		{"unterminated comment", `<!-- x`, UnterminatedTag, "1:1"},
		{"missing close", `<div>`, UnexpectedEOF, "1:6"},
		{"unknown directive", `<p v-show="x"></p>`, UnknownDirective, "1:4"},
		{"event modifier", `<a @click.prevent="go()">x</a>`, UnknownDirective, "1:4"},
		{"unterminated interpolation", `<p>{{ count </p>`, MalformedInterpolation, "1:4"},
		{"empty interpolation", `<p>{{ }}</p>`, MalformedInterpolation, "1:4"},
		{"unresolved component", `<Missing />`, UnresolvedComponent, "1:1"},
		{"orphan else", `<p v-else>x</p>`, OrphanElse, "1:1"},
		{"else after content", `<p v-if="a">x</p><span>y</span><p v-else>z</p>`, OrphanElse, "1:32"},
		{"bad bound expression", `<p :title="a +">x</p>`, InvalidExpression, "1:15"},
		{"bad interpolation on second line", "<p>\n  <b>{{ a # b }}</b>\n</p>", InvalidExpression, "2:11"},
		{"bad loop", `<p v-for="x of xs"></p>`, InvalidExpression, "1:13"},
		{"model on component", `<Counter v-model="x" />`, MisplacedDirective, "1:10"},
		{"model on div", `<div v-model="x"></div>`, MisplacedDirective, "1:6"},
		{"component children", `<Counter>child</Counter>`, MisplacedDirective, "1:10"},
		{"conflicting conditionals", `<p v-if="a" v-else>x</p>`, MisplacedDirective, "1:13"},
		{"for with else", `<p v-if="a">x</p><p v-for="i in 3" v-else>y</p>`, MisplacedDirective, "1:36"},
		{"assignment in binding", `<p :title="a = 1"></p>`, InvalidExpression, "1:14"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src, Options{Components: testComponents})
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("Parse error = %v, want *ParseError", err)
			}
			if pe.Kind != tt.kind {
				t.Errorf("kind = %v, want %v (%v)", pe.Kind, tt.kind, pe)
			}
			if got := pe.Pos.String(); got != tt.pos {
				t.Errorf("position = %s, want %s (%v)", got, tt.pos, pe)
			}
		})
	}
}

func TestParseErrorMatchesKindSentinel(t *testing.T) {
	_, err := Parse(`<Widget/>`, Options{Name: "App"})
	if !errors.Is(err, ErrUnresolvedComponent) {
		t.Fatalf("error = %v, want ErrUnresolvedComponent", err)
	}
	if !strings.HasPrefix(err.Error(), "App:1:1: unresolved component") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestParseDeterministic(t *testing.T) {
	src := `<ul><li v-for="(x, i) in xs" :key="x" @click="pick(x, i)">{{ x }}</li></ul><Counter v-if="on" />`
	a := mustParse(t, src, Condense)
	b := mustParse(t, src, Condense)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("parse is not deterministic (-first +second):\n%s", diff)
	}
}

func TestPositions(t *testing.T) {
	tmpl := mustParse(t, "\n\n  <p>x</p>", Condense)
	if len(tmpl.Roots) != 1 {
		t.Fatalf("roots = %d, want 1", len(tmpl.Roots))
	}
	want := Position{Offset: 4, Line: 3, Col: 3}
	if diff := cmp.Diff(want, tmpl.Roots[0].Position()); diff != "" {
		t.Errorf("position mismatch (-want +got):\n%s", diff)
	}
}

func TestComponents(t *testing.T) {
	tmpl := mustParse(t, `<div><Counter/><todo-item v-for="t in ts" :key="t"/><Counter/></div>`, Condense)
	if diff := cmp.Diff([]string{"Counter", "TodoItem"}, tmpl.Components()); diff != "" {
		t.Errorf("components mismatch (-want +got):\n%s", diff)
	}
}

func TestParseWhitespace(t *testing.T) {
	for in, want := range map[string]Whitespace{"": Condense, "Preserve": Preserve, " trim ": Trim} {
		got, err := ParseWhitespace(in)
		if err != nil || got != want {
			t.Errorf("ParseWhitespace(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseWhitespace("squash"); err == nil {
		t.Error("ParseWhitespace(squash) succeeded")
	}
}
