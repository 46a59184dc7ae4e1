// Package token issues and verifies the stateless access/refresh JWT pair.
// Neither token is persisted; identity, type, and expiry travel in the
// signed claims.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// TypeAccess marks a short-lived token accepted by resource routes.
	TypeAccess = "access"
	// TypeRefresh marks a long-lived token accepted only by the refresh
	// operation.
	TypeRefresh = "refresh"
)

// ErrInvalid covers every verification failure: bad signature, expiry,
// wrong issuer, or wrong token type.
var ErrInvalid = errors.New("invalid token")

// Config holds the signing parameters for both tokens of the pair.
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Secret     []byte
	Issuer     string
	Leeway     time.Duration
}

// Manager signs and verifies HS256 token pairs.
type Manager struct {
	config Config
}

// Claims is the claim set carried by both token types. UID is the user's
// UUID; Type distinguishes access from refresh.
type Claims struct {
	UID  string `json:"uid"`
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return nil, errors.New("refresh TTL must exceed access TTL")
	}
	if len(cfg.Secret) < 32 {
		return nil, errors.New("hs256 secret must be at least 32 bytes")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	return &Manager{config: cfg}, nil
}

// Pair issues a fresh access+refresh pair for the given user.
func (m *Manager) Pair(userID string) (access, refresh string, err error) {
	if userID == "" {
		return "", "", errors.New("empty user id")
	}

	access, err = m.sign(userID, TypeAccess, m.config.AccessTTL)
	if err != nil {
		return "", "", err
	}
	refresh, err = m.sign(userID, TypeRefresh, m.config.RefreshTTL)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// Refresh verifies a refresh token and issues a new pair for its subject.
// Access tokens are rejected here: the typ claim must be "refresh".
func (m *Manager) Refresh(refreshToken string) (access, refresh string, err error) {
	claims, err := m.parse(refreshToken, TypeRefresh)
	if err != nil {
		return "", "", err
	}
	return m.Pair(claims.UID)
}

// ParseAccess verifies an access token and returns its claims.
func (m *Manager) ParseAccess(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, TypeAccess)
}

// ParseRefresh verifies a refresh token and returns its claims.
func (m *Manager) ParseRefresh(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, TypeRefresh)
}

func (m *Manager) sign(userID, typ string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UID:  userID,
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
}

func (m *Manager) parse(tokenStr, wantType string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.config.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalid
	}
	if claims.Type != wantType {
		return nil, fmt.Errorf("%w: unexpected token type %q", ErrInvalid, claims.Type)
	}
	if claims.UID == "" {
		return nil, fmt.Errorf("%w: missing uid claim", ErrInvalid)
	}
	return claims, nil
}
