package syncengine

import (
	"context"
	"time"

	"fieldsync/internal/docstore"
	"fieldsync/internal/tstamp"
)

// fakeDocs is an in-memory DocStore used to drive the sync/resolve-conflict
// state machines without a live Postgres instance.
type fakeDocs struct {
	rows map[string]map[string]docstore.Doc // collection -> id -> doc
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{rows: map[string]map[string]docstore.Doc{}}
}

func (f *fakeDocs) Get(_ context.Context, collection, id string) (docstore.Doc, bool, error) {
	d, ok := f.rows[collection][id]
	return d, ok, nil
}

func (f *fakeDocs) Set(_ context.Context, collection, id string, fields map[string]any) (docstore.Doc, error) {
	now := time.Now()
	createdAt, updatedAt := now, now
	if v, present := fields["created_at"]; present {
		if t, ok := tstamp.ToInstant(v); ok {
			createdAt = t
		}
	}
	if v, present := fields["updated_at"]; present {
		if t, ok := tstamp.ToInstant(v); ok {
			updatedAt = t
		}
	}
	data := map[string]any{}
	for k, v := range fields {
		if k == "created_at" || k == "updated_at" {
			continue
		}
		data[k] = v
	}
	d := docstore.Doc{ID: id, Data: data, CreatedAt: createdAt, UpdatedAt: updatedAt}
	if f.rows[collection] == nil {
		f.rows[collection] = map[string]docstore.Doc{}
	}
	f.rows[collection][id] = d
	return d, nil
}

func (f *fakeDocs) Update(ctx context.Context, collection, id string, patch map[string]any) (docstore.Doc, error) {
	existing, ok := f.rows[collection][id]
	if !ok {
		return docstore.Doc{}, assertErr("not found")
	}
	merged := make(map[string]any, len(existing.Data)+len(patch))
	for k, v := range existing.Data {
		merged[k] = v
	}
	updatedAt := time.Now()
	for k, v := range patch {
		if k == "created_at" {
			continue
		}
		if k == "updated_at" {
			if t, ok := tstamp.ToInstant(v); ok {
				updatedAt = t
			}
			continue
		}
		merged[k] = v
	}
	d := docstore.Doc{ID: id, Data: merged, CreatedAt: existing.CreatedAt, UpdatedAt: updatedAt}
	f.rows[collection][id] = d
	return d, nil
}

func (f *fakeDocs) Delete(_ context.Context, collection, id string) error {
	delete(f.rows[collection], id)
	return nil
}

func (f *fakeDocs) WhereEquals(_ context.Context, collection, field string, value any) ([]docstore.Doc, error) {
	var out []docstore.Doc
	for _, d := range f.rows[collection] {
		if toStr(d.Data[field]) == toStr(value) {
			out = append(out, d)
		}
	}
	return out, nil
}

func toStr(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

func assertErr(msg string) error { return simpleErr(msg) }
