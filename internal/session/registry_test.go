package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/npc-mind/internal/mind"
)

func TestRegistryDoCreatesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testDefinition(), nil, Options{})

	var seen []*mind.NPCInstance
	for i := 0; i < 3; i++ {
		err := f.reg.Do(ctx, "mira", "p1", func(def *mind.NPCDefinition, inst *mind.NPCInstance) (*mind.NPCInstance, error) {
			seen = append(seen, inst)
			return nil, nil
		})
		require.NoError(t, err)
	}
	require.Len(t, seen, 3)
	assert.NotSame(t, seen[0], seen[1], "fn always gets a private copy")

	hist, err := f.repo.InstanceHistory(ctx, "mira", "p1")
	require.NoError(t, err)
	assert.Len(t, hist, 1)
	assert.Equal(t, []string{"mira/p1"}, f.reg.Open())
}

func TestRegistryDoDropsOnError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testDefinition(), nil, Options{})

	boom := assert.AnError
	err := f.reg.Do(ctx, "mira", "p1", func(def *mind.NPCDefinition, inst *mind.NPCInstance) (*mind.NPCInstance, error) {
		inst.Mood = mind.NegativeMood
		return inst, boom
	})
	assert.ErrorIs(t, err, boom)

	_, inst, err := f.svc.Snapshot(ctx, "mira", "p1")
	require.NoError(t, err)
	assert.Equal(t, mind.NeutralMood, inst.Mood)
}

func TestRegistryDoCancelled(t *testing.T) {
	f := newFixture(t, testDefinition(), nil, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := f.reg.Do(ctx, "mira", "p1", func(*mind.NPCDefinition, *mind.NPCInstance) (*mind.NPCInstance, error) {
		called = true
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.Zero(t, f.reg.Len())
}

func TestRegistryRestoresTamperedAnchor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testDefinition(), nil, Options{})
	orig := testDefinition().CoreAnchor

	def, err := f.repo.GetDefinition(ctx, "mira")
	require.NoError(t, err)
	def.CoreAnchor.Backstory = "A pirate queen."
	_, err = f.repo.SaveDefinition(ctx, def)
	require.NoError(t, err)

	got, _, err := f.svc.Snapshot(ctx, "mira", "p1")
	require.NoError(t, err)
	assert.Equal(t, orig.Backstory, got.CoreAnchor.Backstory, "restored in memory")

	stored, err := f.repo.GetDefinition(ctx, "mira")
	require.NoError(t, err)
	assert.Equal(t, "A pirate queen.", stored.CoreAnchor.Backstory, "not yet persisted")

	require.NoError(t, f.reg.End(ctx, "mira", "p1"))
	assert.Zero(t, f.reg.Len())

	stored, err = f.repo.GetDefinition(ctx, "mira")
	require.NoError(t, err)
	assert.True(t, mind.ValidateIntegrity(orig, stored.CoreAnchor), "persisted at session end")
}

func TestRegistrySweep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testDefinition(), nil, Options{})

	for _, p := range []string{"p1", "p2"} {
		_, err := f.svc.RecordTurn(ctx, "mira", p, Turn{Content: "hello"})
		require.NoError(t, err)
	}
	require.Equal(t, 2, f.reg.Len())

	assert.Zero(t, f.reg.Sweep(ctx, time.Now(), time.Hour))
	assert.Equal(t, 2, f.reg.Sweep(ctx, time.Now().Add(2*time.Hour), time.Hour))
	assert.Zero(t, f.reg.Len())

	_, inst, err := f.svc.Snapshot(ctx, "mira", "p1")
	require.NoError(t, err)
	assert.Len(t, inst.ShortTerm, 1, "reloaded from storage after sweep")
}

func TestRegistryEndAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testDefinition(), nil, Options{})
	orig := testDefinition().CoreAnchor

	for _, p := range []string{"p1", "p2"} {
		_, _, err := f.svc.Snapshot(ctx, "mira", p)
		require.NoError(t, err)
	}
	def, err := f.repo.GetDefinition(ctx, "mira")
	require.NoError(t, err)
	def.CoreAnchor.Principles = []string{"Sink every ferry"}
	_, err = f.repo.SaveDefinition(ctx, def)
	require.NoError(t, err)

	assert.Equal(t, 2, f.reg.EndAll(ctx))
	assert.Zero(t, f.reg.Len())
	assert.Zero(t, f.reg.EndAll(ctx))

	stored, err := f.repo.GetDefinition(ctx, "mira")
	require.NoError(t, err)
	assert.True(t, mind.ValidateIntegrity(orig, stored.CoreAnchor))
}

func TestBudget(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	b := NewBudget(2, 3, 0)
	_, ok := b.Reserve("a", now)
	assert.True(t, ok)
	_, ok = b.Reserve("b", now)
	assert.True(t, ok)
	_, ok = b.Reserve("c", now.Add(30*time.Second))
	assert.False(t, ok, "minute window full")
	_, ok = b.Reserve("c", now.Add(61*time.Second))
	assert.True(t, ok)
	_, ok = b.Reserve("d", now.Add(2*time.Minute))
	assert.False(t, ok, "hour window full")
	_, ok = b.Reserve("d", now.Add(2*time.Hour))
	assert.True(t, ok)

	cd := NewBudget(0, 0, 10*time.Minute)
	_, ok = cd.Reserve("a", now)
	require.True(t, ok)
	_, ok = cd.Reserve("a", now.Add(time.Minute))
	assert.False(t, ok)
	_, ok = cd.Reserve("b", now.Add(time.Minute))
	assert.True(t, ok)

	var nilBudget *Budget
	release, ok := nilBudget.Reserve("a", now)
	assert.True(t, ok)
	release()
}

func TestBudgetReleaseReturnsSlot(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	b := NewBudget(0, 1, 10*time.Minute)

	release, ok := b.Reserve("a", now)
	require.True(t, ok)
	_, ok = b.Reserve("b", now)
	assert.False(t, ok)

	release()
	release()
	_, ok = b.Reserve("a", now.Add(time.Second))
	assert.True(t, ok, "window slot and cooldown are both given back")
}

func TestBudgetConcurrentReservations(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	b := NewBudget(0, 3, 0)

	var (
		wg      sync.WaitGroup
		granted atomic.Int32
	)
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := b.Reserve(fmt.Sprintf("k%d", i), now); ok {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 3, granted.Load())
}
