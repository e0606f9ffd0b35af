// Package project compiles a directory of component files into a
// compiler.Registry and keeps it current while the files change.
//
// Every file matching the configured patterns is one component, named
// after the file: todo-item.vue declares TodoItem. A sibling YAML file
// with the same base name declares the component's props, initial state
// and computed values. Load declares every name before compiling, so
// components can use each other regardless of file order.
package project
