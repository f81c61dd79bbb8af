package mind

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDriftRelationship(t *testing.T) {
	tests := []struct {
		name string
		in   RelationshipState
		want float64
	}{
		{"trusted and familiar warms", RelationshipState{Trust: 0.7, Familiarity: 0.6, Sentiment: 0.2}, 0.25},
		{"distrusted cools", RelationshipState{Trust: 0.2, Familiarity: 0.9, Sentiment: 0}, -0.05},
		{"trusted stranger unchanged", RelationshipState{Trust: 0.9, Familiarity: 0.5, Sentiment: 0.1}, 0.1},
		{"middling unchanged", RelationshipState{Trust: 0.5, Familiarity: 0.9, Sentiment: -0.4}, -0.4},
		{"clamped at top", RelationshipState{Trust: 1, Familiarity: 1, Sentiment: 0.98}, 1},
		{"clamped at bottom", RelationshipState{Trust: 0, Familiarity: 0, Sentiment: -0.99}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DriftRelationship(tt.in)
			assert.InDelta(t, tt.want, got.Sentiment, 1e-9)
			assert.Equal(t, tt.in.Trust, got.Trust)
			assert.Equal(t, tt.in.Familiarity, got.Familiarity)
		})
	}
}

func TestRelationshipDefault(t *testing.T) {
	inst := NewInstance(testDefinition(), "p1", testEpoch)
	assert.Equal(t, DefaultRelationship, inst.Relationship("p1"))

	inst.Relationships["p1"] = RelationshipState{Trust: 0.9}
	assert.Equal(t, 0.9, inst.Relationship("p1").Trust)
}

func TestApplyTurn(t *testing.T) {
	r := ApplyTurn(DefaultRelationship, TonePositive, 0, testEpoch)
	assert.InDelta(t, 0.02, r.Familiarity, 1e-9)
	assert.InDelta(t, 0.08, r.Sentiment, 1e-9)
	assert.InDelta(t, 0.54, r.Trust, 1e-9)
	assert.Equal(t, 1, r.Interactions)
	assert.Equal(t, testEpoch, r.UpdatedAt)

	r = ApplyTurn(r, ToneAggressive, 0.1, testEpoch)
	assert.InDelta(t, 0.04, r.Familiarity, 1e-9)
	assert.InDelta(t, -0.04, r.Sentiment, 1e-9)
	assert.InDelta(t, 0.44, r.Trust, 1e-9)
	assert.Equal(t, 2, r.Interactions)

	r = ApplyTurn(r, ToneNeutral, 0, testEpoch)
	assert.InDelta(t, -0.04, r.Sentiment, 1e-9)
	assert.InDelta(t, 0.44, r.Trust, 1e-9)
}

func TestClassifyTone(t *testing.T) {
	tests := []struct {
		in   string
		want Tone
	}{
		{"Thank you, friend.", TonePositive},
		{"YOU ARE A THIEF AND A LIAR", ToneAggressive},
		{"you are an idiot", ToneNegative},
		{"Where does the road go?", ToneNeutral},
		{"", ToneNeutral},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyTone(tt.in), tt.in)
	}
}

func TestParseTone(t *testing.T) {
	for _, tone := range []Tone{ToneNeutral, TonePositive, ToneNegative, ToneAggressive} {
		assert.Equal(t, tone, ParseTone(tone.String()))
	}
	assert.Equal(t, ToneNeutral, ParseTone("grumpy"))
}

func TestLevels(t *testing.T) {
	assert.Equal(t, "high", RelationshipLevel(0.7))
	assert.Equal(t, "medium", RelationshipLevel(0.4))
	assert.Equal(t, "low", RelationshipLevel(0.39))
	assert.Equal(t, "warm", SentimentLevel(0.3))
	assert.Equal(t, "cold", SentimentLevel(-0.3))
	assert.Equal(t, "indifferent", SentimentLevel(0))
}
