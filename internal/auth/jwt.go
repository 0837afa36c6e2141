package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
)

func (r Role) IsValid() bool {
	return r == RoleStaff || r == RoleAdmin
}

// CanOverride reports whether the role may force a status change past the
// completed-payment lock.
func (r Role) CanOverride() bool {
	return r == RoleAdmin
}

var ErrInvalidClaims = errors.New("invalid token claims")

type tokenClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

func GenerateToken(subject string, role Role, secret string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: string(role),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("GenerateToken: %w", err)
	}
	return signed, nil
}

func ValidateToken(tokenString string, secret string) (*Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("ValidateToken: %w", err)
	}

	tc, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("ValidateToken: %w", ErrInvalidClaims)
	}
	if tc.Subject == "" {
		return nil, fmt.Errorf("ValidateToken: missing subject: %w", ErrInvalidClaims)
	}

	role := Role(tc.Role)
	if !role.IsValid() {
		return nil, fmt.Errorf("ValidateToken: role %q: %w", tc.Role, ErrInvalidClaims)
	}

	return &Principal{
		Subject: tc.Subject,
		Role:    role,
	}, nil
}
