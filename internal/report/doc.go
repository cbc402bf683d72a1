// Package report renders read-only views of team state: the task
// dependency tree, a Graphviz export, orphan detection across the registry
// and the pane manager, and JSON/YAML encoding for CLI output.
//
// Nothing here mutates state.
package report
