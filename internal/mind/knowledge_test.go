package mind

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveKnowledgeDepth(t *testing.T) {
	base := KnowledgeBase{"history": {1: "a", 2: "b", 3: "c"}}

	assert.Equal(t, "## history\n[Depth 1] a\n[Depth 2] b\n", ResolveKnowledge(base, map[string]int{"history": 2}))
	assert.Equal(t, "## history\n[Depth 1] a\n[Depth 2] b\n[Depth 3] c\n", ResolveKnowledge(base, map[string]int{"history": 9}))
}

func TestResolveKnowledgeDenied(t *testing.T) {
	base := KnowledgeBase{"history": {1: "a"}}

	assert.Empty(t, ResolveKnowledge(base, map[string]int{"history": 0}))
	assert.Empty(t, ResolveKnowledge(base, map[string]int{"magic": 3}))
	assert.Empty(t, ResolveKnowledge(base, nil))
	assert.Empty(t, ResolveKnowledge(nil, map[string]int{"history": 1}))
}

func TestResolveKnowledgeSkipsGapsAndSortsCategories(t *testing.T) {
	base := KnowledgeBase{
		"b": {2: "deep only"},
		"a": {1: "x"},
		"c": {3: "too deep"},
	}
	got := ResolveKnowledge(base, map[string]int{"a": 1, "b": 2, "c": 1})
	assert.Equal(t, "## a\n[Depth 1] x\n\n## b\n[Depth 2] deep only\n", got)
}
