package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var (
	blockCommentPattern = regexp.MustCompile(`(?s)/\*.*?\*/`)
	rulePattern         = regexp.MustCompile(`([^{}]*)\{([^{}]*)\}`)
	// A property name following whitespace inside a value means the previous
	// declaration was never terminated.
	runOnPattern = regexp.MustCompile(`\s([a-zA-Z-]+)\s*:`)
)

// Stylesheet checks CSS: brace balance, non-empty selectors, and the shape of
// every declaration inside each rule block.
func Stylesheet(src string) Result {
	code := blank(src, blockCommentPattern)

	st := scan(code, scanOptions{quotes: `"'`})
	if st.aborted {
		return result(st.errors)
	}

	errs := st.errors
	if st.braces > 0 {
		errs = append(errs, fmt.Sprintf("Line %d: Unclosed brace - missing %d closing brace(s)", st.lastOpenBrace, st.braces))
	}

	for _, m := range rulePattern.FindAllStringSubmatchIndex(code, -1) {
		if strings.TrimSpace(code[m[2]:m[3]]) == "" {
			errs = append(errs, fmt.Sprintf("Line %d: Empty selector", lineAt(code, m[4]-1)))
		}
		errs = append(errs, checkDeclarations(code, m[4], m[5])...)
	}

	if st.inString {
		errs = append(errs, "Unclosed string literal")
	}
	return result(errs)
}

type declaration struct {
	text   string
	offset int // absolute offset of the first non-space byte
}

// splitDeclarations splits code[start:end] on semicolons that are not inside
// a string literal or parentheses (data URIs contain semicolons).
func splitDeclarations(code string, start, end int) []declaration {
	var out []declaration
	var quote byte
	depth := 0
	from := start

	emit := func(to int) {
		raw := code[from:to]
		text := strings.TrimSpace(raw)
		if text != "" {
			lead := len(raw) - len(strings.TrimLeftFunc(raw, unicode.IsSpace))
			out = append(out, declaration{text: text, offset: from + lead})
		}
	}

	for i := start; i < end; i++ {
		c := code[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ';':
			if depth == 0 {
				emit(i)
				from = i + 1
			}
		}
	}
	emit(end)
	return out
}

func checkDeclarations(code string, start, end int) []string {
	var errs []string
	for _, d := range splitDeclarations(code, start, end) {
		line := lineAt(code, d.offset)

		colon := strings.IndexByte(d.text, ':')
		if colon < 0 {
			errs = append(errs, fmt.Sprintf("Line %d: Invalid declaration syntax - missing colon in \"%s\"", line, d.text))
			continue
		}

		property := strings.TrimSpace(d.text[:colon])
		rest := d.text[colon+1:]
		value := strings.TrimSpace(rest)

		if property == "" {
			errs = append(errs, fmt.Sprintf("Line %d: Missing property name before colon", line))
		}
		if value == "" {
			errs = append(errs, fmt.Sprintf("Line %d: Missing property value after colon", line))
			continue
		}

		if loc := runOnPattern.FindStringIndex(maskStrings(rest)); loc != nil {
			head := strings.TrimSpace(d.text[:colon+1+loc[0]])
			errs = append(errs, fmt.Sprintf("Line %d: Missing semicolon after \"%s\"", line, head))
		}
	}
	return errs
}

// maskStrings replaces the contents of quoted strings with underscores,
// keeping the length, so patterns never match inside string values.
func maskStrings(s string) string {
	b := []byte(s)
	var quote byte
	for i := 0; i < len(b); i++ {
		c := b[i]
		if quote != 0 {
			if c == quote {
				quote = 0
				continue
			}
			if c == '\\' && i+1 < len(b) {
				b[i] = '_'
				i++
			}
			b[i] = '_'
			continue
		}
		if c == '"' || c == '\'' {
			quote = c
		}
	}
	return string(b)
}
