// Package validate implements the in-process syntax checkers used for
// languages that are never executed on the server (HTML, CSS) and as a
// pre-flight check for TypeScript.
//
// Every checker is pure and total: malformed input produces entries in
// Result.Errors, never a panic or an error return.
package validate

import (
	"regexp"
	"strings"
)

// Result is the outcome of a static check. An empty Errors slice means the
// input is valid; Errors is never nil.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Func is the common signature of all checkers.
type Func func(src string) Result

func result(errs []string) Result {
	if errs == nil {
		errs = []string{}
	}
	return Result{Valid: len(errs) == 0, Errors: errs}
}

// lineAt returns the 1-based line containing byte offset off.
func lineAt(src string, off int) int {
	if off > len(src) {
		off = len(src)
	}
	if off < 0 {
		off = 0
	}
	return 1 + strings.Count(src[:off], "\n")
}

// blank replaces every match of re with only the newlines it contained, so
// line numbers computed on the result still refer to the original text.
func blank(src string, re *regexp.Regexp) string {
	return re.ReplaceAllStringFunc(src, func(m string) string {
		return strings.Repeat("\n", strings.Count(m, "\n"))
	})
}
