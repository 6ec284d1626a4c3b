package validate

import (
	"fmt"
	"strings"
)

type scanOptions struct {
	quotes       string // characters that open and close a string literal
	parens       bool   // also track () and []
	skipComments bool   // skip // line and /* */ block comments
}

type scanState struct {
	errors        []string
	braces        int
	parens        int
	brackets      int
	inString      bool
	lastOpenBrace int // line of the most recent '{'
	aborted       bool
}

// scan walks src once, tracking string mode and the bracket counters. A
// counter going negative stops the scan immediately.
func scan(src string, opts scanOptions) scanState {
	var st scanState
	line := 1
	var quote byte

	for i := 0; i < len(src); i++ {
		c := src[i]
		if c == '\n' {
			line++
		}

		if quote != 0 {
			switch c {
			case '\\':
				if i+1 < len(src) {
					if src[i+1] == '\n' {
						line++
					}
					i++
				}
			case quote:
				quote = 0
			}
			continue
		}

		if opts.skipComments && c == '/' && i+1 < len(src) {
			switch src[i+1] {
			case '/':
				j := strings.IndexByte(src[i:], '\n')
				if j < 0 {
					i = len(src)
					continue
				}
				// Stop just before the newline so it is counted next iteration.
				i += j - 1
				continue
			case '*':
				j := strings.Index(src[i+2:], "*/")
				if j < 0 {
					line += strings.Count(src[i:], "\n")
					i = len(src)
					continue
				}
				line += strings.Count(src[i:i+2+j], "\n")
				i += 2 + j + 1
				continue
			}
		}

		if strings.IndexByte(opts.quotes, c) >= 0 {
			quote = c
			continue
		}

		switch c {
		case '{':
			st.braces++
			st.lastOpenBrace = line
		case '}':
			st.braces--
			if st.braces < 0 {
				st.errors = append(st.errors, fmt.Sprintf("Line %d: Unmatched closing brace '}'", line))
				st.aborted = true
				return st
			}
		}

		if !opts.parens {
			continue
		}
		switch c {
		case '(':
			st.parens++
		case ')':
			st.parens--
			if st.parens < 0 {
				st.errors = append(st.errors, fmt.Sprintf("Line %d: Unmatched closing parenthesis ')'", line))
				st.aborted = true
				return st
			}
		case '[':
			st.brackets++
		case ']':
			st.brackets--
			if st.brackets < 0 {
				st.errors = append(st.errors, fmt.Sprintf("Line %d: Unmatched closing bracket ']'", line))
				st.aborted = true
				return st
			}
		}
	}

	st.inString = quote != 0
	return st
}

// Brackets checks that braces, parentheses and brackets balance outside of
// string literals and comments. It is the TypeScript pre-flight check.
func Brackets(src string) Result {
	st := scan(src, scanOptions{quotes: "\"'`", parens: true, skipComments: true})
	if st.aborted {
		return result(st.errors)
	}

	errs := st.errors
	if st.braces > 0 {
		errs = append(errs, fmt.Sprintf("Unclosed %d brace(s)", st.braces))
	}
	if st.parens > 0 {
		errs = append(errs, fmt.Sprintf("Unclosed %d parenthesis/parentheses", st.parens))
	}
	if st.brackets > 0 {
		errs = append(errs, fmt.Sprintf("Unclosed %d bracket(s)", st.brackets))
	}
	if st.inString {
		errs = append(errs, "Unclosed string literal")
	}
	return result(errs)
}
