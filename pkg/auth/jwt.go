package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrDisabled = errors.New("jwt secret not configured")

var jwtSecret []byte

// Claims identify the operator driving recording sessions.
type Claims struct {
	jwt.RegisteredClaims
}

func InitJWT(secret string) {
	jwtSecret = []byte(secret)
}

// Enabled reports whether a secret was configured.
func Enabled() bool {
	return len(jwtSecret) > 0
}

// GenerateToken signs a token for subject valid for expireSeconds.
func GenerateToken(subject string, expireSeconds int) (string, error) {
	if !Enabled() {
		return "", ErrDisabled
	}
	if expireSeconds <= 0 {
		expireSeconds = 24 * 3600
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "looprec",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(expireSeconds) * time.Second)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ParseToken validates tokenString, accepting HS256 only.
func ParseToken(tokenString string) (*Claims, error) {
	if !Enabled() {
		return nil, ErrDisabled
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}
