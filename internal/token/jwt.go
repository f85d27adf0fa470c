// Package token issues and verifies the signed access and refresh tokens.
// Verification is stateless; revocation and live-user checks are layered
// on top by the auth middleware and service.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iliyamo/credit-repair-auth/internal/apperr"
	"github.com/iliyamo/credit-repair-auth/internal/model"
)

// AccessToken is a signed access JWT. It is a distinct type from
// RefreshToken so the two cannot be passed for each other.
type AccessToken string

// RefreshToken is a signed refresh JWT.
type RefreshToken string

const refreshType = "refresh"

var (
	ErrMalformedToken = apperr.New(apperr.MalformedToken, "The provided token is malformed or invalid")
	ErrExpiredToken   = apperr.New(apperr.ExpiredToken, "Your session has expired, please log in again")
)

// AccessClaims is the claim set carried by access tokens.
type AccessClaims struct {
	UserID uint64     `json:"userId"`
	Email  string     `json:"email"`
	Role   model.Role `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims is the claim set carried by refresh tokens.
type RefreshClaims struct {
	UserID uint64 `json:"userId"`
	Type   string `json:"type"`
	jwt.RegisteredClaims
}

// Pair is what login, register and refresh hand back to the client.
type Pair struct {
	Access        AccessToken
	AccessExpires time.Time
	Refresh       RefreshToken
	RefreshExpiry time.Time
}

// Config holds the signing secrets and lifetimes.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
}

// Issuer signs and verifies tokens with HS256.
type Issuer struct {
	cfg Config
	now func() time.Time
}

// NewIssuer rejects configurations that would let one secret mint both
// token classes.
func NewIssuer(cfg Config) (*Issuer, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("token: access and refresh secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("token: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token: lifetimes must be positive")
	}
	return &Issuer{cfg: cfg, now: time.Now}, nil
}

// WithClock returns a copy of the issuer that reads time from now.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	cp := *i
	cp.now = now
	return &cp
}

// IssueAccess signs an access token for the user.
func (i *Issuer) IssueAccess(userID uint64, email string, role model.Role) (AccessToken, time.Time, error) {
	if !role.Valid() {
		return "", time.Time{}, fmt.Errorf("token: unknown role %q", role)
	}
	now := i.now().UTC()
	exp := now.Add(i.cfg.AccessTTL)
	claims := AccessClaims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(userID, 10),
			Issuer:    i.cfg.Issuer,
			Audience:  jwt.ClaimStrings{i.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.cfg.AccessSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return AccessToken(signed), exp, nil
}

// IssueRefresh signs a refresh token with the refresh secret.
func (i *Issuer) IssueRefresh(userID uint64) (RefreshToken, time.Time, error) {
	now := i.now().UTC()
	exp := now.Add(i.cfg.RefreshTTL)
	claims := RefreshClaims{
		UserID: userID,
		Type:   refreshType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(userID, 10),
			Issuer:    i.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.cfg.RefreshSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return RefreshToken(signed), exp, nil
}

// IssuePair issues an access and a refresh token for the user.
func (i *Issuer) IssuePair(u model.User) (Pair, error) {
	access, accessExp, err := i.IssueAccess(u.ID, u.Email, u.Role)
	if err != nil {
		return Pair{}, err
	}
	refresh, refreshExp, err := i.IssueRefresh(u.ID)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Access: access, AccessExpires: accessExp, Refresh: refresh, RefreshExpiry: refreshExp}, nil
}

// VerifyAccess checks signature, algorithm, issuer, audience and expiry.
func (i *Issuer) VerifyAccess(t AccessToken) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := i.parse(string(t), claims, i.cfg.AccessSecret, jwt.WithAudience(i.cfg.Audience)); err != nil {
		return nil, err
	}
	if claims.UserID == 0 {
		return nil, ErrMalformedToken
	}
	return claims, nil
}

// VerifyRefresh checks a refresh token against the refresh secret.
func (i *Issuer) VerifyRefresh(t RefreshToken) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := i.parse(string(t), claims, i.cfg.RefreshSecret); err != nil {
		return nil, err
	}
	if claims.Type != refreshType || claims.UserID == 0 {
		return nil, ErrMalformedToken
	}
	return claims, nil
}

func (i *Issuer) parse(raw string, claims jwt.Claims, secret string, extra ...jwt.ParserOption) error {
	opts := append([]jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}, extra...)
	_, err := jwt.NewParser(opts...).ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpiredToken
	default:
		return ErrMalformedToken
	}
}
