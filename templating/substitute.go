package templating

import (
	"regexp"
	"slices"
	"strings"
)

var reToken = regexp.MustCompile(`\{[A-Z][A-Z0-9_]*\}`)

// Substitute replaces every occurrence of every token in vars. Tokens are
// matched as literal text. Tokens without an entry are left as they are, so
// an incomplete template stays visibly incomplete.
func Substitute(tpl string, vars Variables) string {
	if len(vars) == 0 || tpl == "" {
		return tpl
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		if k != "" {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, vars[k])
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}

// Tokens lists the distinct placeholder tokens of tpl in order of first use.
func Tokens(tpl string) []string {
	var out []string
	seen := map[string]bool{}
	for _, t := range reToken.FindAllString(tpl, -1) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// Unresolved lists the tokens of tpl that vars does not cover.
func Unresolved(tpl string, vars Variables) []string {
	var out []string
	for _, t := range Tokens(tpl) {
		if _, ok := vars[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}
