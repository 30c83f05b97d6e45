package auth

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TTL is fixed at 2 hours per §6/§5 — tokens are self-validating and
// non-revocable within their lifetime, so there is no server-side session
// to extend or shorten it from.
const TTL = 2 * time.Hour

func Sign(uid, email, role string) (string, error) {
	key := []byte(os.Getenv("JWT_SECRET"))
	now := time.Now()
	claims := jwt.MapClaims{
		"uid":   uid,
		"email": email,
		"role":  role,
		"iat":   now.Unix(),
		"exp":   now.Add(TTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key)
}

func Verify(tokenStr string) (Claims, error) {
	key := []byte(os.Getenv("JWT_SECRET"))
	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return key, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid {
		return Claims{}, errors.New("invalid token")
	}
	mapc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errors.New("invalid claims")
	}
	uid, _ := mapc["uid"].(string)
	email, _ := mapc["email"].(string)
	role, _ := mapc["role"].(string)
	return Claims{UID: uid, Email: email, Role: role}, nil
}
