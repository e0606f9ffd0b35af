// Package compiler lowers parsed templates into render procedures.
//
// A Procedure is built once per component and evaluated on every render of
// every instance. Static text and attributes are fixed at lowering time;
// bound values are evaluated against the instance scope, so the reactive
// cells they read become the render's dependencies.
//
//	reg := compiler.NewRegistry()
//	def, err := compiler.Compile("Counter", src, reg, compiler.Options{
//	    Setup: compiler.StateSetup(map[string]any{"count": 0}),
//	})
//
// Evaluation failures are contained to the node that raised them and
// reported in Output.Errors. A dependency cycle abandons the render.
package compiler
