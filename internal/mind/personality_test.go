package mind

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyModifiers(t *testing.T) {
	base := PersonalityBaseline{Openness: 0.5, Conscientiousness: 0.9, Extraversion: 0.1, Agreeableness: 0.5, Neuroticism: 0.5}
	got := ApplyModifiers(base, TraitModifiers{
		Openness:          0.5,  // clamped to +0.3
		Conscientiousness: 0.3,  // sum clamped to 1
		Extraversion:      -0.2, // sum clamped to 0
		"charisma":        0.3,  // ignored
	})
	assert.InDelta(t, 0.8, got.Openness, 1e-9)
	assert.InDelta(t, 1.0, got.Conscientiousness, 1e-9)
	assert.InDelta(t, 0.0, got.Extraversion, 1e-9)
	assert.InDelta(t, 0.5, got.Agreeableness, 1e-9)
	assert.Equal(t, base, ApplyModifiers(base, nil))
}

func TestAccumulateModifiers(t *testing.T) {
	cur := TraitModifiers{Openness: 0.25, Neuroticism: -0.1}
	got := AccumulateModifiers(cur, TraitModifiers{Openness: 0.1, Neuroticism: -0.05, "charisma": 0.1})

	assert.InDelta(t, 0.3, got[Openness], 1e-9)
	assert.InDelta(t, -0.15, got[Neuroticism], 1e-9)
	assert.NotContains(t, got, Trait("charisma"))
	// input untouched
	assert.Equal(t, TraitModifiers{Openness: 0.25, Neuroticism: -0.1}, cur)
}

func TestAccumulateModifiersEnvelope(t *testing.T) {
	mods := TraitModifiers{}
	for i := 0; i < 10; i++ {
		mods = AccumulateModifiers(mods, TraitModifiers{Agreeableness: -0.1})
	}
	assert.InDelta(t, -MaxModifier, mods[Agreeableness], 1e-9)
}

func TestDriftedTraits(t *testing.T) {
	mods := TraitModifiers{Openness: 0.3, Extraversion: -0.26, Neuroticism: 0.1}
	assert.Equal(t, []Trait{Openness, Extraversion}, DriftedTraits(mods, 0.25))
	assert.True(t, DriftMagnitude(mods, 0.25))
	assert.False(t, DriftMagnitude(mods, 0.31))
	assert.Empty(t, DriftedTraits(nil, 0.1))
}

func TestTraitLevel(t *testing.T) {
	assert.Equal(t, "low", TraitLevel(0.2))
	assert.Equal(t, "mid", TraitLevel(0.35))
	assert.Equal(t, "mid", TraitLevel(0.65))
	assert.Equal(t, "high", TraitLevel(0.9))
}

func TestDescribe(t *testing.T) {
	base := PersonalityBaseline{Openness: 0.5, Conscientiousness: 0.5, Extraversion: 0.5, Agreeableness: 0.5, Neuroticism: 0.5}

	plain := Describe(base, nil)
	assert.True(t, strings.HasPrefix(plain, "--- Personality ---\n"))
	assert.Equal(t, len(Traits), strings.Count(plain, "\n- "))
	assert.NotContains(t, plain, "recently shifted")
	assert.NotRegexp(t, `[0-9]`, plain)

	shifted := Describe(base, TraitModifiers{Extraversion: 0.2, Openness: 0.05})
	assert.Contains(t, shifted, "Outgoing, talkative and energised by others. (recently shifted)")
	assert.Equal(t, 1, strings.Count(shifted, "recently shifted"))
}
