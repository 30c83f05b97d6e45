// Package authstore is the typed wrapper (C2) over the identity provider.
// It never exposes a plaintext-vs-hash comparison to callers outside this
// package except through VerifyPasswordHash, which the identity heuristic
// (C6) uses purely to decide same-entity-ness, never to grant access.
package authstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"fieldsync/internal/auth"
	"fieldsync/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound           = errors.New("authstore: not found")
	ErrEmailAlreadyExists = errors.New("authstore: email already exists")
	ErrInvalidCredentials = errors.New("authstore: invalid credentials")
)

type Record struct {
	UID         string
	Email       string
	DisplayName string
	Role        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store { return &Store{db: db} }

func toRecord(u models.AuthUser) Record {
	return Record{UID: u.UID, Email: u.Email, DisplayName: u.DisplayName, Role: u.Role, CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt}
}

// CreateUser mints a new uid and stores the hashed password.
func (s *Store) CreateUser(ctx context.Context, email, password, displayName string) (string, error) {
	email = normalizeEmail(email)
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.AuthUser{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return "", err
	}
	if count > 0 {
		return "", ErrEmailAlreadyExists
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", err
	}
	uid := uuid.NewString()
	now := time.Now()
	u := models.AuthUser{UID: uid, Email: email, DisplayName: displayName, PasswordHash: hash, CreatedAt: now, UpdatedAt: now}
	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		return "", err
	}
	return uid, nil
}

func (s *Store) GetUser(ctx context.Context, uid string) (Record, error) {
	var u models.AuthUser
	if err := s.db.WithContext(ctx).First(&u, "uid = ?", uid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return toRecord(u), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (Record, error) {
	var u models.AuthUser
	if err := s.db.WithContext(ctx).First(&u, "email = ?", normalizeEmail(email)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return toRecord(u), nil
}

// UpdateUser patches mutable fields: "password", "display_name", "email".
func (s *Store) UpdateUser(ctx context.Context, uid string, patch map[string]any) error {
	updates := map[string]any{"updated_at": time.Now()}
	if pw, ok := patch["password"].(string); ok && pw != "" {
		hash, err := auth.HashPassword(pw)
		if err != nil {
			return err
		}
		updates["password_hash"] = hash
	}
	if name, ok := patch["display_name"].(string); ok {
		updates["display_name"] = name
	}
	if email, ok := patch["email"].(string); ok && email != "" {
		updates["email"] = normalizeEmail(email)
	}
	res := s.db.WithContext(ctx).Model(&models.AuthUser{}).Where("uid = ?", uid).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetCustomClaims(ctx context.Context, uid, role string) error {
	res := s.db.WithContext(ctx).Model(&models.AuthUser{}).Where("uid = ?", uid).Update("role", role)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// VerifyPassword is the store's signInWithPassword analogue.
func (s *Store) VerifyPassword(ctx context.Context, email, password string) (string, error) {
	var u models.AuthUser
	if err := s.db.WithContext(ctx).First(&u, "email = ?", normalizeEmail(email)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		return "", ErrInvalidCredentials
	}
	return u.UID, nil
}

// VerifyPasswordHash checks a candidate plaintext against the stored hash
// for uid, without revealing the hash. This is exposed only for the User
// identity heuristic's "same password" signal (§4.6) — it must never be
// used to authenticate a request.
func (s *Store) VerifyPasswordHash(ctx context.Context, uid, plaintext string) (bool, error) {
	var u models.AuthUser
	if err := s.db.WithContext(ctx).First(&u, "uid = ?", uid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return auth.CheckPassword(u.PasswordHash, plaintext) == nil, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
