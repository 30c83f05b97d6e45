package models

import "time"

// AuthUser is the AuthStore's own record (C2). It is deliberately a
// separate table from the "users" collection in Document — the two are
// allowed to diverge (different uid, stale password) and the auth/OTP
// reset workflow (C8) exists in part to detect and repair that divergence.
type AuthUser struct {
	UID          string    `gorm:"type:uuid;primaryKey" json:"uid"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (AuthUser) TableName() string { return "auth_users" }
