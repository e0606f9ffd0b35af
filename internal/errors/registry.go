package errors

import "sort"

// Template is the registered description of a code.
type Template struct {
	Category   Category
	Message    string
	Suggestion string
}

var registry = map[string]Template{
	// Template compilation (V001-V019)

	"V001": {
		Category:   CategoryCompile,
		Message:    "Unterminated tag",
		Suggestion: "Close the tag with > or />.",
	},
	"V002": {
		Category:   CategoryCompile,
		Message:    "Mismatched closing tag",
		Suggestion: "Closing tags must match the innermost open element.",
	},
	"V003": {
		Category:   CategoryCompile,
		Message:    "Unknown directive",
		Suggestion: "Supported directives: v-if, v-else-if, v-else, v-for, v-model, v-bind (:) and v-on (@).",
	},
	"V004": {
		Category:   CategoryCompile,
		Message:    "Malformed interpolation",
		Suggestion: "Every {{ needs a matching }} on the same text run.",
	},
	"V005": {
		Category:   CategoryCompile,
		Message:    "Unresolved component",
		Suggestion: "Add a component file with this name or fix the tag spelling.",
	},
	"V006": {
		Category: CategoryCompile,
		Message:  "Invalid expression",
	},
	"V007": {
		Category:   CategoryCompile,
		Message:    "v-else without v-if",
		Suggestion: "v-else and v-else-if must directly follow an element with v-if.",
	},
	"V008": {
		Category: CategoryCompile,
		Message:  "Misplaced directive",
	},
	"V009": {
		Category:   CategoryCompile,
		Message:    "Unexpected end of template",
		Suggestion: "Check for an element that is never closed.",
	},
	"V010": {
		Category:   CategoryCompile,
		Message:    "Invalid component name",
		Suggestion: "Component names start with a letter and contain letters, digits and dashes.",
	},
	"V011": {
		Category:   CategoryCompile,
		Message:    "Duplicate component",
		Suggestion: "Two files map to the same component name; rename one of them.",
	},

	// Rendering and updates (V020-V039)

	"V020": {
		Category: CategoryRuntime,
		Message:  "Expression evaluation failed",
	},
	"V021": {
		Category:   CategoryRuntime,
		Message:    "Dependency cycle detected",
		Suggestion: "A computed value reads itself through its dependencies.",
	},
	"V022": {
		Category: CategoryRuntime,
		Message:  "Unknown component",
	},
	"V023": {
		Category:   CategoryRuntime,
		Message:    "Component not compiled",
		Suggestion: "Fix the compile errors of this component first.",
	},
	"V024": {
		Category:   CategoryRuntime,
		Message:    "No listener for event",
		Suggestion: "The node may have been removed by a newer render.",
	},
	"V025": {
		Category: CategoryRuntime,
		Message:  "Component setup failed",
	},

	// Protocol (V040-V059)

	"V040": {
		Category: CategoryProtocol,
		Message:  "Invalid frame",
	},
	"V041": {
		Category:   CategoryProtocol,
		Message:    "Protocol version mismatch",
		Suggestion: "Reload the page to fetch the matching client.",
	},
	"V042": {
		Category: CategoryProtocol,
		Message:  "Session expired",
	},

	// Configuration (V060-V079)

	"V060": {
		Category:   CategoryConfig,
		Message:    "Invalid configuration file",
		Suggestion: "Check villain.yaml for syntax errors.",
	},
	"V061": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
	},
	"V062": {
		Category:   CategoryConfig,
		Message:    "Project root not found",
		Suggestion: "Run from a directory containing villain.yaml or pass --config.",
	},
	"V063": {
		Category:   CategoryConfig,
		Message:    "Invalid state file",
		Suggestion: "State files are YAML with state, computed and props keys.",
	},

	// Command line (V080-V099)

	"V080": {
		Category:   CategoryCLI,
		Message:    "No components found",
		Suggestion: "Check the components patterns in villain.yaml.",
	},
	"V081": {
		Category: CategoryCLI,
		Message:  "Invalid argument",
	},
}

// Codes returns every registered code in order.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Lookup returns the template registered for code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds or replaces a code. It is meant for init-time use.
func Register(code string, t Template) {
	registry[code] = t
}
