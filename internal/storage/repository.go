package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/keshon/npc-mind/internal/mind"
)

// Repository gives typed access to definitions and instances on a Backend.
type Repository struct {
	backend Backend
	log     *zap.Logger
	now     func() time.Time
}

// NewRepository wraps backend.
func NewRepository(backend Backend, log *zap.Logger) *Repository {
	if log == nil {
		log = zap.NewNop()
	}
	return &Repository{backend: backend, log: log.Named("repository"), now: time.Now}
}

// Backend returns the underlying backend.
func (r *Repository) Backend() Backend { return r.backend }

// Flush forces buffered writes to disk on backends that buffer them. It is a
// no-op for the others.
func (r *Repository) Flush() error {
	if f, ok := r.backend.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Close closes the backend.
func (r *Repository) Close() error { return r.backend.Close() }

// InstanceKey is the storage id of the (npc, player) pair.
func InstanceKey(npcID, playerID string) string {
	return npcID + "/" + playerID
}

// splitInstanceKey reverses InstanceKey.
func splitInstanceKey(key string) (npcID, playerID string, ok bool) {
	return strings.Cut(key, "/")
}

func checkPlayerID(playerID string) error {
	if strings.TrimSpace(playerID) == "" || strings.Contains(playerID, "/") {
		return &mind.ValidationError{Field: "player_id", Value: playerID, Reason: "must be non-empty and must not contain '/'"}
	}
	return nil
}

// CreateDefinition validates and stores def as version 1. The stored copy is
// returned with CreatedAt set.
func (r *Repository) CreateDefinition(ctx context.Context, def mind.NPCDefinition) (mind.NPCDefinition, Version, error) {
	if err := def.Validate(); err != nil {
		return def, Version{}, err
	}
	if _, err := r.backend.Get(ctx, KindDefinition, def.ID); err == nil {
		return def, Version{}, fmt.Errorf("definition %s: %w", def.ID, ErrExists)
	} else if !errors.Is(err, ErrNotFound) {
		return def, Version{}, err
	}
	out := def.Clone()
	if out.CreatedAt.IsZero() {
		out.CreatedAt = r.now().UTC()
	}
	v, err := r.putJSON(ctx, KindDefinition, out.ID, out)
	if err != nil {
		return def, Version{}, err
	}
	r.log.Info("definition created",
		zap.String("npc", out.ID),
		zap.String("fingerprint", mind.AnchorFingerprint(out.CoreAnchor)))
	return out, v, nil
}

// GetDefinition returns the current definition.
func (r *Repository) GetDefinition(ctx context.Context, id string) (mind.NPCDefinition, error) {
	var def mind.NPCDefinition
	if err := r.getJSON(ctx, KindDefinition, id, &def); err != nil {
		return def, fmt.Errorf("definition %s: %w", id, err)
	}
	return def, nil
}

// UpdateDefinition applies a whitelisted patch. Patches touching the core
// anchor fail with mind.ErrAnchorImmutable.
func (r *Repository) UpdateDefinition(ctx context.Context, id string, patch mind.DefinitionPatch) (mind.NPCDefinition, Version, error) {
	cur, err := r.GetDefinition(ctx, id)
	if err != nil {
		return cur, Version{}, err
	}
	next, err := mind.ApplyPatch(cur, patch)
	if err != nil {
		return cur, Version{}, fmt.Errorf("definition %s: %w", id, err)
	}
	v, err := r.putJSON(ctx, KindDefinition, id, next)
	if err != nil {
		return cur, Version{}, err
	}
	return next, v, nil
}

// SaveDefinition stores def as a new version without patch rules. It is used
// to persist a definition whose anchor was restored.
func (r *Repository) SaveDefinition(ctx context.Context, def mind.NPCDefinition) (Version, error) {
	if err := def.Validate(); err != nil {
		return Version{}, err
	}
	return r.putJSON(ctx, KindDefinition, def.ID, def)
}

// OriginalAnchor returns the core anchor as it was at creation (version 1).
func (r *Repository) OriginalAnchor(ctx context.Context, id string) (mind.CoreAnchor, error) {
	rec, err := r.backend.GetVersion(ctx, KindDefinition, id, 1)
	if err != nil {
		return mind.CoreAnchor{}, fmt.Errorf("definition %s: %w", id, err)
	}
	var def mind.NPCDefinition
	if err := json.Unmarshal(rec.Data, &def); err != nil {
		return mind.CoreAnchor{}, fmt.Errorf("decode definition %s: %w", id, err)
	}
	return def.CoreAnchor, nil
}

// ListDefinitions returns every current definition ordered by id.
func (r *Repository) ListDefinitions(ctx context.Context) ([]mind.NPCDefinition, error) {
	ids, err := r.backend.List(ctx, KindDefinition, "")
	if err != nil {
		return nil, err
	}
	out := make([]mind.NPCDefinition, 0, len(ids))
	for _, id := range ids {
		def, err := r.GetDefinition(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, nil
}

// GetInstance returns the current state of the (npc, player) pair.
func (r *Repository) GetInstance(ctx context.Context, npcID, playerID string) (*mind.NPCInstance, error) {
	if err := checkPlayerID(playerID); err != nil {
		return nil, err
	}
	inst := &mind.NPCInstance{}
	if err := r.getJSON(ctx, KindInstance, InstanceKey(npcID, playerID), inst); err != nil {
		return nil, fmt.Errorf("instance %s: %w", InstanceKey(npcID, playerID), err)
	}
	return inst, nil
}

// SaveInstance appends a new version of inst.
func (r *Repository) SaveInstance(ctx context.Context, inst *mind.NPCInstance) (Version, error) {
	if inst == nil {
		return Version{}, &mind.ValidationError{Field: "instance", Reason: "must not be nil"}
	}
	if err := checkPlayerID(inst.PlayerID); err != nil {
		return Version{}, err
	}
	return r.putJSON(ctx, KindInstance, InstanceKey(inst.NPCID, inst.PlayerID), inst)
}

// ListInstances returns the current instances of npcID, or of every NPC when
// npcID is empty.
func (r *Repository) ListInstances(ctx context.Context, npcID string) ([]*mind.NPCInstance, error) {
	prefix := ""
	if npcID != "" {
		prefix = npcID + "/"
	}
	keys, err := r.backend.List(ctx, KindInstance, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]*mind.NPCInstance, 0, len(keys))
	for _, key := range keys {
		npc, player, ok := splitInstanceKey(key)
		if !ok {
			r.log.Warn("skipping malformed instance key", zap.String("key", key))
			continue
		}
		inst := &mind.NPCInstance{}
		if err := r.getJSON(ctx, KindInstance, key, inst); err != nil {
			return nil, fmt.Errorf("instance %s: %w", key, err)
		}
		if inst.NPCID != npc || inst.PlayerID != player {
			return nil, fmt.Errorf("instance %s: stored record belongs to %s", key, InstanceKey(inst.NPCID, inst.PlayerID))
		}
		out = append(out, inst)
	}
	return out, nil
}

// InstanceHistory lists the retained versions of an instance, oldest first.
func (r *Repository) InstanceHistory(ctx context.Context, npcID, playerID string) ([]Version, error) {
	if err := checkPlayerID(playerID); err != nil {
		return nil, err
	}
	return r.backend.History(ctx, KindInstance, InstanceKey(npcID, playerID))
}

// InstanceAt returns one historical version of an instance.
func (r *Repository) InstanceAt(ctx context.Context, npcID, playerID string, version int) (*mind.NPCInstance, error) {
	if err := checkPlayerID(playerID); err != nil {
		return nil, err
	}
	rec, err := r.backend.GetVersion(ctx, KindInstance, InstanceKey(npcID, playerID), version)
	if err != nil {
		return nil, fmt.Errorf("instance %s v%d: %w", InstanceKey(npcID, playerID), version, err)
	}
	inst := &mind.NPCInstance{}
	if err := json.Unmarshal(rec.Data, inst); err != nil {
		return nil, fmt.Errorf("decode instance %s v%d: %w", InstanceKey(npcID, playerID), version, err)
	}
	return inst, nil
}

// RollbackInstance makes an old version current again by saving it as the
// newest version. History is never rewritten.
func (r *Repository) RollbackInstance(ctx context.Context, npcID, playerID string, version int) (*mind.NPCInstance, Version, error) {
	inst, err := r.InstanceAt(ctx, npcID, playerID, version)
	if err != nil {
		return nil, Version{}, err
	}
	inst.UpdatedAt = r.now().UTC()
	v, err := r.SaveInstance(ctx, inst)
	if err != nil {
		return nil, Version{}, err
	}
	r.log.Info("instance rolled back",
		zap.String("npc", npcID), zap.String("player", playerID),
		zap.Int("from_version", version), zap.Int("new_version", v.Number))
	return inst, v, nil
}

func (r *Repository) putJSON(ctx context.Context, kind Kind, id string, v any) (Version, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Version{}, fmt.Errorf("encode %s %s: %w", kind, id, err)
	}
	ver, err := r.backend.Put(ctx, kind, id, b)
	if err != nil {
		return Version{}, err
	}
	r.log.Debug("saved", zap.String("kind", string(kind)), zap.String("id", id), zap.Int("version", ver.Number))
	return ver, nil
}

func (r *Repository) getJSON(ctx context.Context, kind Kind, id string, out any) error {
	rec, err := r.backend.Get(ctx, kind, id)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(rec.Data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", kind, id, err)
	}
	return nil
}
