// Package session is the caller side of the mind core: it owns the open
// instances, serializes writes per instance, persists cycle outcomes and
// drives the cycles on a schedule.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/keshon/npc-mind/internal/mind"
	"github.com/keshon/npc-mind/internal/storage"
)

// UpdateFunc runs under the instance lock with the (anchor-checked) definition
// and a private copy of the current instance. Returning a non-nil instance
// commits it: it is persisted as a new version and becomes current.
type UpdateFunc func(def *mind.NPCDefinition, inst *mind.NPCInstance) (*mind.NPCInstance, error)

type entry struct {
	key      string
	npcID    string
	playerID string

	mu   sync.Mutex // single writer per instance
	inst *mind.NPCInstance

	// guarded by Registry.mu
	refs     int
	lastUsed time.Time
}

// Registry holds the open sessions keyed by instance key.
type Registry struct {
	repo *storage.Repository
	log  *zap.Logger
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewRegistry returns an empty registry over repo.
func NewRegistry(repo *storage.Repository, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		repo:     repo,
		log:      log.Named("session"),
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// Repository returns the repository the registry persists to.
func (r *Registry) Repository() *storage.Repository { return r.repo }

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Open lists the keys of open sessions, sorted.
func (r *Registry) Open() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.sessions))
	for k := range r.sessions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *Registry) acquire(npcID, playerID string) *entry {
	key := storage.InstanceKey(npcID, playerID)
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[key]
	if !ok {
		e = &entry{key: key, npcID: npcID, playerID: playerID}
		r.sessions[key] = e
	}
	e.refs++
	e.lastUsed = r.now()
	return e
}

func (r *Registry) release(e *entry) {
	r.mu.Lock()
	e.refs--
	e.lastUsed = r.now()
	r.mu.Unlock()
}

// Do runs fn for the (npcID, playerID) instance. The instance is loaded on
// first use, or created and stored once when the pair has never met. The
// definition's core anchor is checked against the original before every call.
func (r *Registry) Do(ctx context.Context, npcID, playerID string, fn UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := r.acquire(npcID, playerID)
	defer r.release(e)

	e.mu.Lock()
	defer e.mu.Unlock()

	def, err := r.guardedDefinition(ctx, npcID)
	if err != nil {
		return err
	}
	if err := r.load(ctx, e, &def); err != nil {
		return err
	}

	next, err := fn(&def, e.inst.Clone())
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}
	v, err := r.repo.SaveInstance(ctx, next)
	if err != nil {
		return fmt.Errorf("save instance %s: %w", e.key, err)
	}
	e.inst = next
	r.log.Debug("instance committed", zap.String("key", e.key), zap.Int("version", v.Number))
	return nil
}

// Rollback makes version the current state of the instance, under the
// instance lock so no cycle races it.
func (r *Registry) Rollback(ctx context.Context, npcID, playerID string, version int) (*mind.NPCInstance, storage.Version, error) {
	e := r.acquire(npcID, playerID)
	defer r.release(e)

	e.mu.Lock()
	defer e.mu.Unlock()

	inst, v, err := r.repo.RollbackInstance(ctx, npcID, playerID, version)
	if err != nil {
		return nil, storage.Version{}, err
	}
	e.inst = inst
	return inst.Clone(), v, nil
}

func (r *Registry) load(ctx context.Context, e *entry, def *mind.NPCDefinition) error {
	if e.inst != nil {
		return nil
	}
	inst, err := r.repo.GetInstance(ctx, e.npcID, e.playerID)
	switch {
	case err == nil:
		e.inst = inst
		return nil
	case !errors.Is(err, storage.ErrNotFound):
		return err
	}

	inst = mind.NewInstance(def, e.playerID, r.now().UTC())
	if _, err := r.repo.SaveInstance(ctx, inst); err != nil {
		return fmt.Errorf("create instance %s: %w", e.key, err)
	}
	r.log.Info("instance created", zap.String("npc", e.npcID), zap.String("player", e.playerID))
	e.inst = inst
	return nil
}

// guardedDefinition loads the definition and restores its anchor in memory
// when it no longer matches the original.
func (r *Registry) guardedDefinition(ctx context.Context, npcID string) (mind.NPCDefinition, error) {
	def, err := r.repo.GetDefinition(ctx, npcID)
	if err != nil {
		return def, err
	}
	original, err := r.repo.OriginalAnchor(ctx, npcID)
	if err != nil {
		return def, err
	}
	fixed, restored := mind.EnforceImmutability(def, original)
	if restored {
		r.log.Warn("core anchor restored",
			zap.String("npc", npcID),
			zap.String("fingerprint", mind.AnchorFingerprint(original)),
			zap.String("tampered_fingerprint", mind.AnchorFingerprint(def.CoreAnchor)))
	}
	return fixed, nil
}

// End closes the session of the pair, if open, and persists a restored
// definition when the anchor had drifted. A session with a call in flight
// stays open and is left for Sweep.
func (r *Registry) End(ctx context.Context, npcID, playerID string) error {
	key := storage.InstanceKey(npcID, playerID)
	r.mu.Lock()
	if e, ok := r.sessions[key]; ok && e.refs == 0 {
		delete(r.sessions, key)
	}
	r.mu.Unlock()
	return r.endGuard(ctx, npcID)
}

func (r *Registry) endGuard(ctx context.Context, npcID string) error {
	def, err := r.repo.GetDefinition(ctx, npcID)
	if err != nil {
		return err
	}
	original, err := r.repo.OriginalAnchor(ctx, npcID)
	if err != nil {
		return err
	}
	fixed, restored := mind.EnforceImmutability(def, original)
	if !restored {
		return nil
	}
	v, err := r.repo.SaveDefinition(ctx, fixed)
	if err != nil {
		return fmt.Errorf("persist restored definition %s: %w", npcID, err)
	}
	r.log.Warn("core anchor restored and saved",
		zap.String("npc", npcID),
		zap.String("fingerprint", mind.AnchorFingerprint(original)),
		zap.Int("version", v.Number))
	return nil
}

// Sweep ends every session idle for longer than ttl and returns how many were
// ended. Sessions with a call in flight are never swept.
func (r *Registry) Sweep(ctx context.Context, now time.Time, ttl time.Duration) int {
	n := r.endWhere(ctx, func(e *entry) bool { return now.Sub(e.lastUsed) > ttl })
	if n > 0 {
		r.log.Debug("sessions swept", zap.Int("count", n))
	}
	return n
}

// EndAll ends every open session without a call in flight, as at shutdown,
// and returns how many were ended.
func (r *Registry) EndAll(ctx context.Context) int {
	return r.endWhere(ctx, func(*entry) bool { return true })
}

func (r *Registry) endWhere(ctx context.Context, match func(*entry) bool) int {
	var ended []*entry
	r.mu.Lock()
	for key, e := range r.sessions {
		if e.refs == 0 && match(e) {
			ended = append(ended, e)
			delete(r.sessions, key)
		}
	}
	r.mu.Unlock()

	seen := make(map[string]bool, len(ended))
	for _, e := range ended {
		if seen[e.npcID] {
			continue
		}
		seen[e.npcID] = true
		if err := r.endGuard(ctx, e.npcID); err != nil {
			r.log.Warn("session end failed", zap.String("key", e.key), zap.Error(err))
		}
	}
	return len(ended)
}
