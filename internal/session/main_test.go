package session

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/keshon/npc-mind/internal/mind"
	"github.com/keshon/npc-mind/internal/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedGenerator answers persona shift prompts with shift and every other
// prompt with pulse.
type scriptedGenerator struct {
	mu    sync.Mutex
	pulse string
	shift string
	err   error
	calls int
}

func (g *scriptedGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	if system == mind.PersonaShiftPrompt {
		return g.shift, nil
	}
	return g.pulse, nil
}

func (g *scriptedGenerator) setErr(err error) {
	g.mu.Lock()
	g.err = err
	g.mu.Unlock()
}

func (g *scriptedGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func newGenerator() *scriptedGenerator {
	return &scriptedGenerator{
		pulse: "Rivers keep their secrets. Tomorrow is another crossing.",
		shift: `{"openness": 0.05, "neuroticism": -0.02}`,
	}
}

func testDefinition() mind.NPCDefinition {
	return mind.NPCDefinition{
		ID:   "mira",
		Name: "Mira",
		CoreAnchor: mind.CoreAnchor{
			Backstory:  "A ferrywoman who lost her brother to the river.",
			Principles: []string{"Never abandon a passenger", "Pay every debt"},
		},
		Personality: mind.PersonalityBaseline{
			Openness:          0.5,
			Conscientiousness: 0.8,
			Extraversion:      0.3,
			Agreeableness:     0.6,
			Neuroticism:       0.4,
		},
		Knowledge:       mind.KnowledgeBase{"river": {1: "The river floods in spring."}},
		KnowledgeAccess: map[string]int{"river": 1},
	}
}

type fixture struct {
	repo *storage.Repository
	reg  *Registry
	svc  *Service
	gen  *scriptedGenerator
}

func newFixture(t *testing.T, def mind.NPCDefinition, log *zap.Logger, opts Options) *fixture {
	t.Helper()
	if log == nil {
		log = zap.NewNop()
	}
	b, err := storage.NewFileBackend(filepath.Join(t.TempDir(), "npc.json"), 0, log)
	require.NoError(t, err)
	repo := storage.NewRepository(b, log)
	t.Cleanup(func() { _ = repo.Close() })

	_, _, err = repo.CreateDefinition(context.Background(), def)
	require.NoError(t, err)

	gen := newGenerator()
	reg := NewRegistry(repo, log)
	svc := NewService(reg, mind.NewOrchestrator(gen, log), log, opts)
	return &fixture{repo: repo, reg: reg, svc: svc, gen: gen}
}
