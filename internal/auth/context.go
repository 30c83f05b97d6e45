package auth

import "context"

type ctxKey string

const userKey ctxKey = "userClaims"

// Claims is the bearer token payload (§6): uid, email, role.
type Claims struct {
	UID   string
	Email string
	Role  string
}

func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, userKey, c)
}

func FromContext(ctx context.Context) Claims {
	if v, ok := ctx.Value(userKey).(Claims); ok {
		return v
	}
	return Claims{}
}

func Subject(ctx context.Context) string { return FromContext(ctx).UID }
