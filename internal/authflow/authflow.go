// Package authflow is the auth/OTP workflow (C8): register, login,
// forgot-password OTP issuance, verify, and reset — including the
// UID-reconciliation repair path of §4.9, the second non-trivial state
// machine in the system.
package authflow

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
	"time"

	"fieldsync/internal/apierr"
	"fieldsync/internal/authstore"
	"fieldsync/internal/docstore"
	"fieldsync/internal/tstamp"

	"gorm.io/gorm"
)

const (
	usersCollection = "users"
	otpCollection   = "otp"
	otpTTL          = 10 * time.Minute
)

// Signer mints a bearer token; implemented by internal/auth.Sign.
type Signer func(uid, email, role string) (string, error)

// AuthStore is the narrow slice of authstore.Store the workflow needs.
type AuthStore interface {
	CreateUser(ctx context.Context, email, password, displayName string) (string, error)
	GetUser(ctx context.Context, uid string) (authstore.Record, error)
	GetUserByEmail(ctx context.Context, email string) (authstore.Record, error)
	UpdateUser(ctx context.Context, uid string, patch map[string]any) error
	SetCustomClaims(ctx context.Context, uid, role string) error
	VerifyPassword(ctx context.Context, email, password string) (string, error)
}

// DocStore is the narrow slice of docstore.Store the workflow needs.
type DocStore interface {
	Get(ctx context.Context, collection, id string) (docstore.Doc, bool, error)
	Set(ctx context.Context, collection, id string, fields map[string]any) (docstore.Doc, error)
	Update(ctx context.Context, collection, id string, patch map[string]any) (docstore.Doc, error)
	Delete(ctx context.Context, collection, id string) error
	WhereEquals(ctx context.Context, collection, field string, value any) ([]docstore.Doc, error)
}

// Mailer is the narrow slice of mailer.Mailer the workflow needs.
type Mailer interface {
	SendOTP(to string, otp int) error
}

type Service struct {
	auth AuthStore
	docs DocStore
	mail Mailer
	sign Signer
}

func New(auth AuthStore, docs DocStore, mail Mailer, sign Signer) *Service {
	return &Service{auth: auth, docs: docs, mail: mail, sign: sign}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates the AuthStore record, assigns a role claim, and writes
// the DocStore profile (§4.9 "Register").
func (s *Service) Register(ctx context.Context, email, password, displayName, role string) (string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", &apierr.ValidationError{Field: "email/password", Reason: "required"}
	}
	if role == "" {
		role = "volunteer"
	}
	uid, err := s.auth.CreateUser(ctx, email, password, displayName)
	if err != nil {
		if errors.Is(err, authstore.ErrEmailAlreadyExists) {
			return "", &apierr.ConflictError{ConflictType: "email_already_exists"}
		}
		return "", &apierr.TransientError{Msg: "create user failed", Err: err}
	}
	if err := s.auth.SetCustomClaims(ctx, uid, role); err != nil {
		return "", &apierr.TransientError{Msg: "set claims failed", Err: err}
	}
	now := time.Now()
	profile := map[string]any{
		"user_id": uid, "name": displayName, "email": email, "role": role,
		"created_at": now, "updated_at": now,
	}
	if _, err := s.docs.Set(ctx, usersCollection, uid, profile); err != nil {
		return "", &apierr.TransientError{Msg: "profile write failed", Err: err}
	}
	return uid, nil
}

// Login verifies credentials and mints a bearer token (§4.9 "Login").
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	uid, err := s.auth.VerifyPassword(ctx, email, password)
	if err != nil {
		return "", &apierr.AuthError{Msg: "invalid credentials"}
	}
	rec, err := s.auth.GetUser(ctx, uid)
	if err != nil {
		return "", &apierr.TransientError{Msg: "get user failed", Err: err}
	}
	role := rec.Role
	if role == "" {
		role = "user"
	}
	token, err := s.sign(uid, email, role)
	if err != nil {
		return "", &apierr.TransientError{Msg: "token mint failed", Err: err}
	}
	return token, nil
}

// ForgotPassword issues a fresh OTP for an email with a known profile
// (§4.9 "Forgot-password").
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return &apierr.ValidationError{Field: "email", Reason: "required"}
	}
	hits, err := s.docs.WhereEquals(ctx, usersCollection, "email", email)
	if err != nil {
		return &apierr.TransientError{Msg: "profile lookup failed", Err: err}
	}
	if len(hits) == 0 {
		return &apierr.NotFoundError{Collection: usersCollection, ID: email}
	}
	otp, err := randomOTP()
	if err != nil {
		return &apierr.TransientError{Msg: "otp generation failed", Err: err}
	}
	now := time.Now()
	row := map[string]any{
		"email": email, "otp": otp, "expires_at": now.Add(otpTTL),
		"created_at": now, "updated_at": now,
	}
	if _, err := s.docs.Set(ctx, otpCollection, email, row); err != nil {
		return &apierr.TransientError{Msg: "otp write failed", Err: err}
	}
	if err := s.mail.SendOTP(email, otp); err != nil {
		return &apierr.TransientError{Msg: "otp dispatch failed", Err: err}
	}
	return nil
}

// VerifyOTP checks a candidate code against the stored OTP row (§4.9
// "Verify-OTP"). Expiry is exclusive: a request landing exactly at
// expires_at is still accepted, one second later is rejected (§8).
func (s *Service) VerifyOTP(ctx context.Context, email string, otp int) error {
	email = normalizeEmail(email)
	doc, ok, err := s.docs.Get(ctx, otpCollection, email)
	if err != nil {
		return &apierr.TransientError{Msg: "otp lookup failed", Err: err}
	}
	if !ok {
		return &apierr.ValidationError{Field: "email", Reason: "no pending reset"}
	}
	storedOTP, _ := toInt(doc.Data["otp"])
	if storedOTP != otp {
		return &apierr.ValidationError{Field: "otp", Reason: "does not match"}
	}
	expiresAt, ok := tstamp.ToInstant(doc.Data["expires_at"])
	if ok && time.Now().After(expiresAt) {
		return &apierr.ValidationError{Field: "otp", Reason: "expired"}
	}
	return nil
}

// ResetPassword validates the new password, then repairs any divergence
// between AuthStore and DocStore before applying it (§4.9 "Reset-password").
// Its invariant: after success, the profile and the auth record share the
// same uid and the same password.
func (s *Service) ResetPassword(ctx context.Context, email, password, confirm string) error {
	email = normalizeEmail(email)
	if len(password) < 6 {
		return &apierr.ValidationError{Field: "password", Reason: "must be at least 6 characters"}
	}
	if password != confirm {
		return &apierr.ValidationError{Field: "confirm_password", Reason: "does not match password"}
	}

	hits, err := s.docs.WhereEquals(ctx, usersCollection, "email", email)
	if err != nil {
		return &apierr.TransientError{Msg: "profile lookup failed", Err: err}
	}
	if len(hits) == 0 {
		return &apierr.NotFoundError{Collection: usersCollection, ID: email}
	}
	profile := hits[0]
	uid, _ := profile.Data["user_id"].(string)

	uid, err = s.reconcileUID(ctx, email, uid, profile)
	if err != nil {
		return &apierr.TransientError{Msg: "uid reconciliation failed", Err: err}
	}

	if err := s.auth.UpdateUser(ctx, uid, map[string]any{"password": password}); err != nil {
		return &apierr.TransientError{Msg: "password update failed", Err: err}
	}
	if _, err := s.docs.Update(ctx, usersCollection, uid, map[string]any{"updated_at": time.Now()}); err != nil {
		return &apierr.TransientError{Msg: "profile touch failed", Err: err}
	}
	if err := s.docs.Delete(ctx, otpCollection, email); err != nil {
		return &apierr.TransientError{Msg: "otp cleanup failed", Err: err}
	}
	return nil
}

// reconcileUID implements §4.9 steps 2-3: locate (or recreate) the
// AuthStore record for email, re-keying the DocStore profile if its uid
// disagrees with AuthStore's.
func (s *Service) reconcileUID(ctx context.Context, email, uid string, profile docstore.Doc) (string, error) {
	if uid != "" {
		if _, err := s.auth.GetUser(ctx, uid); err == nil {
			return uid, nil
		} else if !errors.Is(err, authstore.ErrNotFound) {
			return "", err
		}
	}

	rec, err := s.auth.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if rec.UID == uid {
			return uid, nil
		}
		if err := s.remigrateProfile(ctx, profile, uid, rec.UID); err != nil {
			return "", err
		}
		return rec.UID, nil
	case errors.Is(err, authstore.ErrNotFound):
		name, _ := profile.Data["name"].(string)
		role, _ := profile.Data["role"].(string)
		newUID, err := s.auth.CreateUser(ctx, email, randomPlaceholderPassword(), name)
		if err != nil {
			return "", err
		}
		if role != "" {
			if err := s.auth.SetCustomClaims(ctx, newUID, role); err != nil {
				return "", err
			}
		}
		if err := s.remigrateProfile(ctx, profile, uid, newUID); err != nil {
			return "", err
		}
		return newUID, nil
	default:
		return "", err
	}
}

// remigrateProfile re-keys the DocStore profile from oldUID to newUID.
// Executed delete-then-set: a cancellation between the two steps leaves
// the profile absent from the DocStore, and a later ResetPassword for that
// email finds no profile and returns NotFound; the profile is not recreated.
func (s *Service) remigrateProfile(ctx context.Context, profile docstore.Doc, oldUID, newUID string) error {
	fields := make(map[string]any, len(profile.Data)+1)
	for k, v := range profile.Data {
		fields[k] = v
	}
	fields["user_id"] = newUID
	fields["created_at"] = profile.CreatedAt
	fields["updated_at"] = profile.UpdatedAt
	if oldUID != "" && oldUID != newUID {
		if err := s.docs.Delete(ctx, usersCollection, oldUID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}
	_, err := s.docs.Set(ctx, usersCollection, newUID, fields)
	return err
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	}
	return 0, false
}

func randomOTP() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()) + 100000, nil
}

// randomPlaceholderPassword backs the AuthStore record created during UID
// reconciliation; it is overwritten by the caller's chosen password a few
// lines later in ResetPassword and never returned to any client.
func randomPlaceholderPassword() string {
	b := make([]byte, 18)
	_, _ = rand.Read(b)
	return "reset-" + hex.EncodeToString(b)
}
