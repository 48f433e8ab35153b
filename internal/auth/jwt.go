package auth

import (
	"time"

	"faircore-backend/internal/apperr"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"
)

const (
	PermissionPlay   = "play"
	PermissionPayout = "payout"
	PermissionSign   = "sign"
)

type Claims struct {
	Address     string   `json:"address"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

func (c *Claims) Has(permission string) bool {
	for _, p := range c.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// Service issues and validates HS256 bearer tokens bound to a player
// address.
type Service struct {
	secret []byte
	expiry time.Duration
	clk    clock.Clock
}

func NewService(secret string, expiry time.Duration, clk clock.Clock) *Service {
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &Service{secret: []byte(secret), expiry: expiry, clk: clk}
}

func (s *Service) Issue(address string, permissions []string) (string, error) {
	now := s.clk.Now()
	claims := &Claims{
		Address:     address,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   address,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.clk.Now))
	if err != nil || !token.Valid {
		return nil, apperr.Authorization("InvalidToken", "invalid or expired token").WithCause(err)
	}
	return claims, nil
}
