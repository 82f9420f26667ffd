package templating

import (
	"regexp"
	"strings"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
)

var reStyleBlock = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)

// CombineWithStyles scopes cssText to a container of class scopeClass and
// attaches it to html. An existing <style> block is replaced in place,
// otherwise the new one is prepended. Blank cssText returns html unchanged.
func CombineWithStyles(html, cssText, scopeClass string) string {
	if strings.TrimSpace(cssText) == "" {
		return html
	}
	if scopeClass == "" {
		scopeClass = DefaultLocale().ScopeClass
	}

	scoped, err := ScopeCSS(cssText, "."+scopeClass)
	if err != nil {
		// unparsable rules cannot be scoped and would leak, drop them
		scoped = ""
	}
	block := "<style>" + scoped + "</style>"

	body := html
	if loc := reStyleBlock.FindStringIndex(body); loc != nil {
		body = body[:loc[0]] + block + reStyleBlock.ReplaceAllLiteralString(body[loc[1]:], "")
	} else {
		body = block + body
	}

	open := `<div class="` + scopeClass + `">`
	return open + body + "</div>"
}

// groupingRules hold plain rules in their block. They are split off before
// parsing so their contents can be scoped recursively.
var groupingRules = map[string]bool{
	"@media":     true,
	"@supports":  true,
	"@document":  true,
	"@layer":     true,
	"@container": true,
}

var reAtName = regexp.MustCompile(`^@[-\w]+`)

// ScopeCSS prefixes every selector of cssText with scope. Rules nested in
// grouping at-rules (@media, @layer, @container and the like) are scoped
// too; keyframe and font-face blocks are left alone since their selectors
// are not element selectors.
func ScopeCSS(cssText, scope string) (string, error) {
	var out, plain strings.Builder
	flush := func() error {
		text := plain.String()
		plain.Reset()
		if strings.TrimSpace(text) == "" {
			return nil
		}
		sheet, err := parser.Parse(text)
		if err != nil {
			return err
		}
		for _, rule := range sheet.Rules {
			scopeRule(rule, scope)
		}
		out.WriteString(sheet.String())
		out.WriteString("\n")
		return nil
	}

	for _, b := range splitBlocks(cssText) {
		if !b.grouping {
			plain.WriteString(b.text)
			continue
		}
		if err := flush(); err != nil {
			return "", err
		}
		inner, err := ScopeCSS(b.body, scope)
		if err != nil {
			return "", err
		}
		out.WriteString(b.prelude + " {\n" + inner + "}\n")
	}
	if err := flush(); err != nil {
		return "", err
	}
	return out.String(), nil
}

func scopeRule(rule *css.Rule, scope string) {
	if rule.Kind == css.AtRule {
		return
	}
	for i, sel := range rule.Selectors {
		rule.Selectors[i] = scopeSelector(sel, scope)
	}
}

type cssBlock struct {
	text     string
	prelude  string
	body     string
	grouping bool
}

// splitBlocks cuts s at its top-level grouping at-rules, keeping everything
// else as verbatim text in between.
func splitBlocks(s string) []cssBlock {
	var blocks []cssBlock
	start := 0
	for i := 0; i < len(s); {
		switch s[i] {
		case '@':
			open, end := atRuleExtent(s, i)
			if open >= 0 && groupingRules[strings.ToLower(reAtName.FindString(s[i:]))] {
				blocks = append(blocks,
					cssBlock{text: s[start:i]},
					cssBlock{prelude: strings.TrimSpace(s[i:open]), body: s[open+1 : max(end-1, open+1)], grouping: true})
				start = end
			}
			i = end
		case '{':
			i = skipBlock(s, i)
		default:
			i = nextToken(s, i)
		}
	}
	return append(blocks, cssBlock{text: s[start:]})
}

// atRuleExtent returns the index of the opening brace of the at-rule at i
// (-1 for statements like @import) and the index just past its end.
func atRuleExtent(s string, i int) (open, end int) {
	for j := i; j < len(s); {
		switch s[j] {
		case '{':
			return j, skipBlock(s, j)
		case ';':
			return -1, j + 1
		}
		j = nextToken(s, j)
	}
	return -1, len(s)
}

// skipBlock returns the index just past the brace matching the one at i.
func skipBlock(s string, i int) int {
	depth := 0
	for j := i; j < len(s); {
		switch s[j] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return j + 1
			}
		}
		j = nextToken(s, j)
	}
	return len(s)
}

// nextToken steps over a comment, a quoted string or a single byte.
func nextToken(s string, i int) int {
	switch {
	case strings.HasPrefix(s[i:], "/*"):
		if end := strings.Index(s[i+2:], "*/"); end >= 0 {
			return i + 2 + end + 2
		}
		return len(s)
	case s[i] == '"' || s[i] == '\'':
		quote := s[i]
		for j := i + 1; j < len(s); j++ {
			switch s[j] {
			case '\\':
				j++
			case quote:
				return j + 1
			}
		}
		return len(s)
	}
	return i + 1
}

func scopeSelector(sel, scope string) string {
	sel = strings.TrimSpace(sel)
	switch {
	case sel == "html" || sel == "body" || sel == ":root":
		return scope
	case strings.HasPrefix(sel, "body ") || strings.HasPrefix(sel, "html "):
		return scope + sel[4:]
	case strings.HasPrefix(sel, scope):
		return sel
	}
	return scope + " " + sel
}
