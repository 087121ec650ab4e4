package css

import (
	"strings"
)

// relevant is the cheap color pre-filter applied both to a whole
// declaration block and to every property name inside it.
func relevant(s string) bool {
	return strings.Contains(s, "background") || strings.Contains(s, "color") || strings.Contains(s, "border")
}

// Extract splits stylesheet text into flat rule blocks and keeps those which
// declare color related properties. Nesting, at-rules and comments are not
// understood: the text is cut on every '}' and each piece is split on its
// first '{'.
func Extract(text string) []StyleRule {
	var rules []StyleRule
	for block := range strings.SplitSeq(text, "}") {
		if rule, ok := extractRule(block); ok {
			rules = append(rules, rule)
		}
	}
	return rules
}

func extractRule(block string) (StyleRule, bool) {
	selector, decls, found := strings.Cut(block, "{")
	if !found {
		return StyleRule{}, false
	}

	rule := StyleRule{
		Selector:     strings.TrimSpace(selector),
		Declarations: strings.ReplaceAll(strings.TrimSpace(decls), "\r\n", ""),
		Properties:   NewProperties(),
	}
	if !relevant(rule.Declarations) {
		return StyleRule{}, false
	}

	for decl := range strings.SplitSeq(rule.Declarations, ";") {
		name, value, found := strings.Cut(decl, ":")
		if !found {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" || !relevant(name) {
			continue
		}
		rule.Properties.Set(name, strings.TrimSpace(value))
	}

	if rule.Properties.Len() == 0 {
		return StyleRule{}, false
	}
	return rule, true
}
