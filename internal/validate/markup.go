package validate

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	tagPattern         = regexp.MustCompile(`<(/?)([a-zA-Z][a-zA-Z0-9]*)\b[^>]*>`)
	htmlCommentPattern = regexp.MustCompile(`(?s)<!--.*?-->`)
)

// voidElements never take a closing tag.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

type openTag struct {
	name string
	line int
}

// Markup checks that HTML tags are balanced and that the document starts
// with a doctype declaration.
func Markup(src string) Result {
	code := blank(src, htmlCommentPattern)

	var errs []string
	var stack []openTag

	for _, m := range tagPattern.FindAllStringSubmatchIndex(code, -1) {
		whole := code[m[0]:m[1]]
		closing := m[3] > m[2]
		name := strings.ToLower(code[m[4]:m[5]])
		line := lineAt(code, m[0])

		if voidElements[name] || strings.HasSuffix(whole, "/>") {
			continue
		}

		if !closing {
			stack = append(stack, openTag{name: name, line: line})
			continue
		}

		if n := len(stack); n > 0 && stack[n-1].name == name {
			stack = stack[:n-1]
			continue
		}

		// Anything but the top is unmatched. If the name is open further
		// down, the close unwinds to it; a stray close leaves the stack alone.
		errs = append(errs, fmt.Sprintf("Line %d: Unmatched closing tag </%s>", line, name))
		for i := len(stack) - 2; i >= 0; i-- {
			if stack[i].name == name {
				stack = stack[:i]
				break
			}
		}
	}

	for _, t := range stack {
		errs = append(errs, fmt.Sprintf("Line %d: Unclosed tag <%s>", t.line, t.name))
	}

	lead := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(code, "\ufeff")))
	if !strings.HasPrefix(lead, "<!doctype") {
		errs = append(errs, "Missing DOCTYPE declaration")
	}

	return result(errs)
}
