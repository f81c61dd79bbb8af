package mind

import (
	"fmt"
	"sort"
	"strings"
)

// ResolveKnowledge renders every category the access map opens. For a
// category with maxDepth > 0 every present tier from 1 to maxDepth is included,
// tagged with its depth, under a "## <category>" header. Denied or unknown
// categories contribute nothing. Categories are rendered in sorted order.
func ResolveKnowledge(base KnowledgeBase, access map[string]int) string {
	cats := make([]string, 0, len(access))
	for cat, depth := range access {
		if depth <= 0 {
			continue
		}
		if _, ok := base[cat]; !ok {
			continue
		}
		cats = append(cats, cat)
	}
	sort.Strings(cats)

	var b strings.Builder
	for _, cat := range cats {
		tiers := base[cat]
		maxDepth := access[cat]
		var section strings.Builder
		for depth := 1; depth <= maxDepth; depth++ {
			text, ok := tiers[depth]
			if !ok || strings.TrimSpace(text) == "" {
				continue
			}
			fmt.Fprintf(&section, "[Depth %d] %s\n", depth, strings.TrimSpace(text))
		}
		if section.Len() == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("## ")
		b.WriteString(cat)
		b.WriteString("\n")
		b.WriteString(section.String())
	}
	return b.String()
}
