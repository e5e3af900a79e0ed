package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is what the client reads from the platform's access token.
type Claims struct {
	UserID    int64
	ExpiresAt time.Time
}

// Expired reports whether the token is past its exp claim at now.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// ParseClaims decodes the access token without verifying the signature.
// The signing key belongs to the backend; the client only needs to know who
// is logged in and when to expect a refresh.
func ParseClaims(tokenString string) (Claims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return Claims{}, errors.New("invalid token")
	}

	var out Claims
	switch v := claims["user_id"].(type) {
	case float64:
		out.UserID = int64(v)
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Claims{}, errors.New("invalid user_id")
		}
		out.UserID = id
	default:
		return Claims{}, errors.New("user_id not found")
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}
