// Package syncengine is the per-entity sync driver (C7): it composes the
// validators, timestamp kit, conflict algebra, and identity heuristics
// against the document store to serve sync and resolve-conflict exactly
// per §4.7's two state machines.
package syncengine

import (
	"context"
	"fmt"

	"fieldsync/internal/apierr"
	"fieldsync/internal/conflict"
	"fieldsync/internal/docstore"
	"fieldsync/internal/identity"
	"fieldsync/internal/lock"
	"fieldsync/internal/tstamp"
	"fieldsync/internal/validate"
)

// SyncResult is the success shape of a sync call (§6).
type SyncResult struct {
	ResolvedAs string
	ServerID   string
	Created    bool
}

// ResolveResult is the success shape of a resolve-conflict call (§6).
type ResolveResult struct {
	ResolvedData       map[string]any
	ResolutionStrategy string
	AllowedStrategies  []string
	ClientID           string
	ServerID           string
	IsNew              bool
}

// DocStore is the narrow slice of docstore.Store the engine needs. Accepting
// an interface here (rather than *docstore.Store directly) lets tests drive
// the sync/resolve-conflict state machines against an in-memory fake.
type DocStore interface {
	Get(ctx context.Context, collection, id string) (docstore.Doc, bool, error)
	Set(ctx context.Context, collection, id string, fields map[string]any) (docstore.Doc, error)
	Update(ctx context.Context, collection, id string, patch map[string]any) (docstore.Doc, error)
	WhereEquals(ctx context.Context, collection, field string, value any) ([]docstore.Doc, error)
}

// Engine drives sync/resolve-conflict for every registered entity kind.
type Engine struct {
	docs   DocStore
	verify identity.PasswordVerifier
	locks  *lock.Keyed
}

func New(docs DocStore, verify identity.PasswordVerifier) *Engine {
	return &Engine{docs: docs, verify: verify, locks: lock.New()}
}

// Sync implements §4.7's sync state machine.
func (e *Engine) Sync(ctx context.Context, entity string, client map[string]any) (SyncResult, error) {
	spec, ok := SpecFor(entity)
	if !ok {
		return SyncResult{}, fmt.Errorf("syncengine: unknown entity %q", entity)
	}

	// 1. Validate.
	if err := validate.Validate(entity, client); err != nil {
		return SyncResult{}, err
	}

	pk, _ := client[spec.PKField].(string)
	if pk == "" {
		return SyncResult{}, &apierr.ValidationError{Field: spec.PKField, Reason: "required"}
	}

	unlock := e.lockFor(spec.Collection, pk)
	defer unlock()

	// 2. Primary lookup.
	existing, exists, err := e.docs.Get(ctx, spec.Collection, pk)
	if err != nil {
		return SyncResult{}, &apierr.TransientError{Msg: "docstore get failed", Err: err}
	}

	if exists {
		cT, _ := tstamp.ToInstant(client["updated_at"])
		sT, _ := tstamp.ToInstant(existing.UpdatedAt)
		// 3. Staleness check.
		if cT.Before(sT) {
			return SyncResult{}, &apierr.ConflictError{
				ConflictField:     "updated_at",
				LatestData:        existing.AsMap(),
				AllowedStrategies: conflict.AllowedStrategies(entity, true),
				ClientID:          pk,
				ServerID:          pk,
			}
		}
	}

	// 4. Secondary-uniqueness probe.
	var serverMap map[string]any
	if exists {
		serverMap = existing.AsMap()
	}
	hit, err := e.probeUniqueness(ctx, spec, pk, client, serverMap, exists)
	if err != nil {
		return SyncResult{}, &apierr.TransientError{Msg: "uniqueness probe failed", Err: err}
	}
	if hit != nil {
		same := identity.IsSameEntity(ctx, entity, client, hit.AsMap(), e.verify)
		if same {
			if !exists {
				merged := autoMerge(hit.AsMap(), client, spec.PKField, hit.ID)
				if _, err := e.docs.Update(ctx, spec.Collection, hit.ID, merged); err != nil {
					return SyncResult{}, &apierr.TransientError{Msg: "auto-merge write failed", Err: err}
				}
				return SyncResult{ResolvedAs: fmt.Sprintf("same_%s_detected", entityWord(entity)), ServerID: hit.ID}, nil
			}
			return SyncResult{}, &apierr.ConflictError{
				ConflictType:      fmt.Sprintf("potential_duplicate_%s", entityWord(entity)),
				LatestData:        hit.AsMap(),
				AllowedStrategies: []string{conflict.ClientWins, conflict.ServerWins, conflict.Merge},
				ClientID:          pk,
				ServerID:          hit.ID,
			}
		}
		allowed := []string{conflict.ClientWins}
		if exists {
			allowed = conflict.AllowedStrategies(entity, true)
		}
		return SyncResult{}, &apierr.ConflictError{
			ConflictType:      "unique_constraint",
			LatestData:        hit.AsMap(),
			AllowedStrategies: allowed,
			ClientID:          pk,
			ServerID:          hit.ID,
		}
	}

	// 5. Safe write.
	if exists {
		if _, err := e.docs.Update(ctx, spec.Collection, pk, client); err != nil {
			return SyncResult{}, &apierr.TransientError{Msg: "docstore update failed", Err: err}
		}
		return SyncResult{Created: false, ServerID: pk}, nil
	}
	if _, err := e.docs.Set(ctx, spec.Collection, pk, client); err != nil {
		return SyncResult{}, &apierr.TransientError{Msg: "docstore set failed", Err: err}
	}
	return SyncResult{Created: true, ServerID: pk}, nil
}

// ResolveConflict implements §4.7's resolve-conflict state machine.
func (e *Engine) ResolveConflict(ctx context.Context, entity, pk, strategy string, clientData map[string]any) (ResolveResult, error) {
	spec, ok := SpecFor(entity)
	if !ok {
		return ResolveResult{}, fmt.Errorf("syncengine: unknown entity %q", entity)
	}

	unlock := e.lockFor(spec.Collection, pk)
	defer unlock()

	server, exists, err := e.docs.Get(ctx, spec.Collection, pk)
	if err != nil {
		return ResolveResult{}, &apierr.TransientError{Msg: "docstore get failed", Err: err}
	}

	if !exists {
		if strategy != conflict.ClientWins {
			return ResolveResult{}, &apierr.ValidationError{Field: "strategy", Reason: "only client_wins is allowed when no server document exists"}
		}
		hit, err := e.probeUniqueness(ctx, spec, pk, clientData, nil, true)
		if err != nil {
			return ResolveResult{}, &apierr.TransientError{Msg: "uniqueness probe failed", Err: err}
		}
		if hit != nil {
			return ResolveResult{}, &apierr.ConflictError{
				ConflictType:      "unique_constraint",
				LatestData:        hit.AsMap(),
				AllowedStrategies: []string{conflict.ClientWins},
				ClientID:          pk,
				ServerID:          hit.ID,
			}
		}
		if _, err := e.docs.Set(ctx, spec.Collection, pk, clientData); err != nil {
			return ResolveResult{}, &apierr.TransientError{Msg: "docstore set failed", Err: err}
		}
		return ResolveResult{
			ResolvedData:       clientData,
			ResolutionStrategy: strategy,
			AllowedStrategies:  []string{conflict.ClientWins},
			ClientID:           pk,
			ServerID:           pk,
			IsNew:              true,
		}, nil
	}

	allowed := conflict.AllowedStrategies(entity, true)
	if !contains(allowed, strategy) {
		return ResolveResult{}, &apierr.ValidationError{Field: "strategy", Reason: fmt.Sprintf("%q is not an allowed strategy for %s", strategy, entity)}
	}

	serverMap := server.AsMap()
	if strategy == conflict.UpdateData {
		hit, err := e.probeUniqueness(ctx, spec, pk, clientData, serverMap, true)
		if err != nil {
			return ResolveResult{}, &apierr.TransientError{Msg: "uniqueness probe failed", Err: err}
		}
		if hit != nil {
			return ResolveResult{}, &apierr.ConflictError{
				ConflictType:      "unique_constraint",
				LatestData:        hit.AsMap(),
				AllowedStrategies: allowed,
				ClientID:          pk,
				ServerID:          hit.ID,
			}
		}
	}

	resolved, err := conflict.Apply(entity, strategy, clientData, serverMap)
	if err != nil {
		return ResolveResult{}, &apierr.ValidationError{Field: "strategy", Reason: err.Error()}
	}
	if _, err := e.docs.Update(ctx, spec.Collection, pk, resolved); err != nil {
		return ResolveResult{}, &apierr.TransientError{Msg: "docstore update failed", Err: err}
	}

	return ResolveResult{
		ResolvedData:       resolved,
		ResolutionStrategy: strategy,
		AllowedStrategies:  allowed,
		ClientID:           pk,
		ServerID:           pk,
		IsNew:              false,
	}, nil
}

func (e *Engine) lockFor(collection, pk string) func() {
	return e.locks.Lock(collection + ":pk:" + pk)
}

// probeUniqueness runs §4.7 step 4: for each secondary-unique field whose
// value differs from the server's (or unconditionally on the create
// path), query for a colliding document and return the first hit found,
// excluding the document's own primary key.
func (e *Engine) probeUniqueness(ctx context.Context, spec EntitySpec, pk string, client, server map[string]any, serverExists bool) (*docstore.Doc, error) {
	for _, key := range spec.UniqueKeys {
		if key.Optional && !allPresent(client, key.Fields) {
			continue
		}
		if serverExists && server != nil && tupleEquals(client, server, key.Fields) {
			continue
		}
		candidates, err := e.docs.WhereEquals(ctx, spec.Collection, key.Fields[0], client[key.Fields[0]])
		if err != nil {
			return nil, err
		}
		for _, cand := range candidates {
			if cand.ID == pk {
				continue
			}
			candMap := cand.AsMap()
			if !tupleEquals(client, candMap, key.Fields) {
				continue
			}
			d := cand
			return &d, nil
		}
	}
	return nil, nil
}

func allPresent(m map[string]any, fields []string) bool {
	for _, f := range fields {
		v, ok := m[f]
		if !ok || v == nil || v == "" {
			return false
		}
	}
	return true
}

func tupleEquals(a, b map[string]any, fields []string) bool {
	for _, f := range fields {
		if !valuesEqual(a[f], b[f]) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// entityWord replaces the hyphen in multi-word entity names with an
// underscore for the
// resolved_as / conflict_type tokens (§4.6/§4.7 use "task_assignment"
// style snake_case there, while the route uses "task-assignment").
func entityWord(entity string) string {
	out := make([]byte, 0, len(entity))
	for i := 0; i < len(entity); i++ {
		if entity[i] == '-' {
			out = append(out, '_')
			continue
		}
		out = append(out, entity[i])
	}
	return string(out)
}

// autoMerge implements §4.6's auto-merge construction.
func autoMerge(server, client map[string]any, pkField, serverID string) map[string]any {
	merged := make(map[string]any, len(server)+len(client))
	for k, v := range server {
		merged[k] = v
	}
	for k, v := range client {
		merged[k] = v
	}
	merged[pkField] = serverID
	delete(merged, "updated_at")
	return merged
}
