package authflow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"fieldsync/internal/authstore"
	"fieldsync/internal/docstore"
	"fieldsync/internal/tstamp"
)

// fakeAuth is an in-memory AuthStore used to drive the register/login/
// forgot-password/reset-password workflow without a live Postgres instance.
type fakeAuth struct {
	byUID   map[string]*authUserRow
	byEmail map[string]string // email -> uid
}

type authUserRow struct {
	rec  authstore.Record
	hash string
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{byUID: map[string]*authUserRow{}, byEmail: map[string]string{}}
}

func (f *fakeAuth) CreateUser(_ context.Context, email, password, displayName string) (string, error) {
	if _, exists := f.byEmail[email]; exists {
		return "", authstore.ErrEmailAlreadyExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	uid := uuid.NewString()
	now := time.Now()
	f.byUID[uid] = &authUserRow{
		rec:  authstore.Record{UID: uid, Email: email, DisplayName: displayName, CreatedAt: now, UpdatedAt: now},
		hash: string(hash),
	}
	f.byEmail[email] = uid
	return uid, nil
}

// forceCreate inserts an AuthStore record bypassing the email-uniqueness
// check CreateUser enforces, for tests that need to simulate a prior
// divergence between two records sharing an email under different uids.
func (f *fakeAuth) forceCreate(uid, email, password, displayName string) {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	now := time.Now()
	f.byUID[uid] = &authUserRow{
		rec:  authstore.Record{UID: uid, Email: email, DisplayName: displayName, CreatedAt: now, UpdatedAt: now},
		hash: string(hash),
	}
	f.byEmail[email] = uid
}

func (f *fakeAuth) GetUser(_ context.Context, uid string) (authstore.Record, error) {
	row, ok := f.byUID[uid]
	if !ok {
		return authstore.Record{}, authstore.ErrNotFound
	}
	return row.rec, nil
}

func (f *fakeAuth) GetUserByEmail(_ context.Context, email string) (authstore.Record, error) {
	uid, ok := f.byEmail[email]
	if !ok {
		return authstore.Record{}, authstore.ErrNotFound
	}
	return f.byUID[uid].rec, nil
}

func (f *fakeAuth) UpdateUser(_ context.Context, uid string, patch map[string]any) error {
	row, ok := f.byUID[uid]
	if !ok {
		return authstore.ErrNotFound
	}
	if pw, ok := patch["password"].(string); ok && pw != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		row.hash = string(hash)
	}
	row.rec.UpdatedAt = time.Now()
	return nil
}

func (f *fakeAuth) SetCustomClaims(_ context.Context, uid, role string) error {
	row, ok := f.byUID[uid]
	if !ok {
		return authstore.ErrNotFound
	}
	row.rec.Role = role
	return nil
}

func (f *fakeAuth) VerifyPassword(_ context.Context, email, password string) (string, error) {
	uid, ok := f.byEmail[email]
	if !ok {
		return "", authstore.ErrInvalidCredentials
	}
	row := f.byUID[uid]
	if bcrypt.CompareHashAndPassword([]byte(row.hash), []byte(password)) != nil {
		return "", authstore.ErrInvalidCredentials
	}
	return uid, nil
}

// fakeDocs is an in-memory DocStore, same shape as syncengine's test fake,
// kept separate to avoid an inter-package test dependency.
type fakeDocs struct {
	rows map[string]map[string]docstore.Doc
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

func (f *fakeDocs) Update(_ context.Context, collection, id string, patch map[string]any) (docstore.Doc, error) {
	existing, ok := f.rows[collection][id]
	if !ok {
		return docstore.Doc{}, errors.New("not found")
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
	s, _ := v.(string)
	return s
}

// fakeMailer records every OTP sent instead of dialing SMTP.
type fakeMailer struct {
	sent map[string]int
}

func newFakeMailer() *fakeMailer { return &fakeMailer{sent: map[string]int{}} }

func (f *fakeMailer) SendOTP(to string, otp int) error {
	f.sent[to] = otp
	return nil
}
