// Package docstore is the typed wrapper (C1) over the document store
// backing all seven-plus sync collections. It normalizes server-assigned
// timestamps and exposes get/set/update/delete and single-field equality
// queries, same shape as the opaque DocStore named in the sync protocol.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fieldsync/internal/models"
	"fieldsync/internal/tstamp"

	"gorm.io/gorm"
)

// Doc is a normalized document: every timestamp field a caller reads back
// is a time.Time, never a raw JSON string.
type Doc struct {
	ID        string
	Data      map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AsMap returns a copy of Data with created_at/updated_at folded back in,
// the shape the conflict algebra and identity heuristics operate on.
func (d Doc) AsMap() map[string]any {
	out := make(map[string]any, len(d.Data)+2)
	for k, v := range d.Data {
		out[k] = v
	}
	out["created_at"] = d.CreatedAt
	out["updated_at"] = d.UpdatedAt
	return out
}

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store { return &Store{db: db} }

func toDoc(row models.Document) (Doc, error) {
	m, err := row.Data.Map()
	if err != nil {
		return Doc{}, err
	}
	return Doc{ID: row.ID, Data: m, CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt}, nil
}

// Get reads a document by primary key. ok is false when absent.
func (s *Store) Get(ctx context.Context, collection, id string) (Doc, bool, error) {
	var row models.Document
	err := s.db.WithContext(ctx).Where("collection = ? AND id = ?", collection, id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Doc{}, false, nil
	}
	if err != nil {
		return Doc{}, false, err
	}
	d, err := toDoc(row)
	return d, true, err
}

// Set creates or overwrites a document. created_at is stamped unless
// fields already carries one; updated_at is always refreshed to "now"
// unless fields supplies one explicitly (so callers that computed a
// resolved updated_at, e.g. merge's max(cT,sT), can pin it).
func (s *Store) Set(ctx context.Context, collection, id string, fields map[string]any) (Doc, error) {
	now := time.Now()
	data := cloneWithoutTimestamps(fields)
	createdAt := now
	if v, present := fields["created_at"]; present {
		if t, ok := tstamp.ToInstant(v); ok {
			createdAt = t
		}
	}
	updatedAt := now
	if v, present := fields["updated_at"]; present {
		if t, ok := tstamp.ToInstant(v); ok {
			updatedAt = t
		}
	}
	payload, err := models.FromMap(data)
	if err != nil {
		return Doc{}, err
	}
	row := models.Document{Collection: collection, ID: id, Data: payload, CreatedAt: createdAt, UpdatedAt: updatedAt}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return Doc{}, err
	}
	return toDoc(row)
}

// Update merges patch into the existing document. updated_at is refreshed
// to "now" unless patch supplies one explicitly.
func (s *Store) Update(ctx context.Context, collection, id string, patch map[string]any) (Doc, error) {
	existing, ok, err := s.Get(ctx, collection, id)
	if err != nil {
		return Doc{}, err
	}
	if !ok {
		return Doc{}, gorm.ErrRecordNotFound
	}
	merged := make(map[string]any, len(existing.Data)+len(patch))
	for k, v := range existing.Data {
		merged[k] = v
	}
	for k, v := range patch {
		if k == "created_at" || k == "updated_at" {
			continue
		}
		merged[k] = v
	}
	updatedAt := time.Now()
	if v, present := patch["updated_at"]; present {
		if t, ok := tstamp.ToInstant(v); ok {
			updatedAt = t
		}
	}
	payload, err := models.FromMap(merged)
	if err != nil {
		return Doc{}, err
	}
	row := models.Document{Collection: collection, ID: id, Data: payload, CreatedAt: existing.CreatedAt, UpdatedAt: updatedAt}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return Doc{}, err
	}
	return toDoc(row)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	return s.db.WithContext(ctx).Where("collection = ? AND id = ?", collection, id).Delete(&models.Document{}).Error
}

// WhereEquals queries the jsonb payload for a single-field equality match,
// the secondary-uniqueness probe's workhorse (§4.7 step 4).
func (s *Store) WhereEquals(ctx context.Context, collection, field string, value any) ([]Doc, error) {
	var rows []models.Document
	err := s.db.WithContext(ctx).
		Where("collection = ? AND data->>? = ?", collection, field, toText(value)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	docs := make([]Doc, 0, len(rows))
	for _, row := range rows {
		d, err := toDoc(row)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func cloneWithoutTimestamps(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if k == "created_at" || k == "updated_at" {
			continue
		}
		out[k] = v
	}
	return out
}

func toText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}
