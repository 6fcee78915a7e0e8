package fulfillment

import "regexp"

// Template substitution operates over a typed placeholder mapping:
// {{name}} expands to the mapped value (empty when absent), and
// {{#name}}...{{/name}} keeps its inner content only when the variable
// has a non-empty value, so optional fields suppress their whole block
// instead of rendering literally.

var (
	conditionalBlockRe = regexp.MustCompile(`(?s)\{\{#(\w+)\}\}(.*?)\{\{/(\w+)\}\}`)
	placeholderRe      = regexp.MustCompile(`\{\{(\w+)\}\}`)
)

// RenderTemplate substitutes placeholders and conditional blocks in text.
func RenderTemplate(text string, vars map[string]string) string {
	out := conditionalBlockRe.ReplaceAllStringFunc(text, func(match string) string {
		groups := conditionalBlockRe.FindStringSubmatch(match)
		open, inner, closing := groups[1], groups[2], groups[3]
		if open != closing {
			// Mismatched markers are left as-is for the author to notice.
			return match
		}
		if vars[open] == "" {
			return ""
		}
		return inner
	})

	return placeholderRe.ReplaceAllStringFunc(out, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		return vars[name]
	})
}
