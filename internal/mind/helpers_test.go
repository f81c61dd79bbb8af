package mind

import (
	"context"
	"fmt"
	"sync"
	"time"
)

var testEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testDefinition() *NPCDefinition {
	return &NPCDefinition{
		ID:   "mira",
		Name: "Mira",
		CoreAnchor: CoreAnchor{
			Backstory:   "A ferrywoman who lost her brother to the river.",
			Principles:  []string{"Never abandon a passenger", "Pay every debt"},
			TraumaFlags: []string{"drowning"},
		},
		Personality: PersonalityBaseline{
			Openness:          0.5,
			Conscientiousness: 0.8,
			Extraversion:      0.3,
			Agreeableness:     0.6,
			Neuroticism:       0.4,
		},
		Knowledge: KnowledgeBase{
			"river":  {1: "The river floods in spring.", 2: "The old ford is cursed.", 3: "Her brother's body was never found."},
			"prices": {1: "A crossing costs two coins."},
		},
		KnowledgeAccess: map[string]int{"river": 2, "prices": 1},
		CreatedAt:       testEpoch,
	}
}

// memoriesWith builds short-term memories with the given saliences, one
// minute apart, oldest first.
func memoriesWith(saliences ...float64) []Memory {
	out := make([]Memory, len(saliences))
	for i, s := range saliences {
		out[i] = Memory{
			ID:        fmt.Sprintf("m%d", i),
			Content:   fmt.Sprintf("memory %d", i),
			Timestamp: testEpoch.Add(time.Duration(i) * time.Minute),
			Salience:  s,
			Type:      ShortTerm,
		}
	}
	return out
}

func ids(ms []Memory) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}

type fakeGenerator struct {
	mu     sync.Mutex
	reply  string
	err    error
	calls  int
	system string
	user   string
}

func (f *fakeGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.system, f.user = system, user
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}
