// Package errors provides coded diagnostics for the villain command.
//
// Every Error carries a registered code (V001…), a category, the failing
// source location with a few lines of context, and a hint. FromError
// classifies errors from the template parser, the compiler and the update
// engine, so the CLI can print them the same way:
//
//	ERROR V002: Mismatched closing tag
//
//	  components/Card.vue:4:5
//
//	       2 │   <div class="card">
//	       3 │     <p>{{ title }}
//	  →    4 │   </div>
//	         │   ^
//
//	  expected </p>, found </div>
//
//	  Hint: Closing tags must match the innermost open element.
//
// Colors are used when stderr is a terminal and NO_COLOR is unset.
package errors
