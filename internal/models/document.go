package models

import "time"

// Document is the generic row backing every DocStore collection. The sync
// engine and conflict algebra work in terms of field maps, not fixed
// structs, so one table holds every entity kind, keyed by (collection, id).
type Document struct {
	Collection string    `gorm:"primaryKey;size:64" json:"collection"`
	ID         string    `gorm:"primaryKey;size:128" json:"id"`
	Data       JSONB     `gorm:"type:jsonb;not null;default:'{}'::jsonb" json:"data"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Document) TableName() string { return "documents" }
