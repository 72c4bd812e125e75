package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind distinguishes the two classes of bearer tokens. Each kind is
// signed with its own secret and carries its kind in the "typ" claim.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

var (
	// ErrTokenInvalid covers malformed tokens, bad signatures, wrong
	// algorithms and tokens of the other kind.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired is returned for well-signed tokens past their expiry.
	ErrTokenExpired = errors.New("token expired")
)

// AccessToken is a signed access JWT along with its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// RefreshToken is a signed refresh JWT along with its expiry. Hash is the
// SHA-256 digest persisted in the token store.
type RefreshToken struct {
	Token string
	Hash  string
	Exp   time.Time
}

// Claims is the verified payload of either token kind. Email and UserName
// are only present on access tokens; ID (jti) only on refresh tokens.
type Claims struct {
	UserID    string
	Email     string
	UserName  string
	ID        string
	Kind      TokenKind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type tokenClaims struct {
	UserID   string    `json:"userId"`
	Email    string    `json:"email,omitempty"`
	UserName string    `json:"userName,omitempty"`
	Kind     TokenKind `json:"typ"`
	jwt.RegisteredClaims
}

// TokenCodec issues and verifies HS256 access and refresh tokens. It never
// consults the token store; revocation is the store's concern.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenCodec validates the secrets and lifetimes. The two secrets must be
// non-empty and different.
func NewTokenCodec(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*TokenCodec, error) {
	if strings.TrimSpace(accessSecret) == "" || strings.TrimSpace(refreshSecret) == "" {
		return nil, errors.New("token secrets are required")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	return &TokenCodec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}, nil
}

// WithClock returns a copy of the codec that reads the current time from now.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	cp := *c
	cp.now = now
	return &cp
}

func (c *TokenCodec) AccessTTL() time.Duration  { return c.accessTTL }
func (c *TokenCodec) RefreshTTL() time.Duration { return c.refreshTTL }

// IssueAccessToken signs {userId, email, userName} with the access secret.
func (c *TokenCodec) IssueAccessToken(userID, email, userName string) (AccessToken, error) {
	iat := c.now().UTC()
	exp := iat.Add(c.accessTTL)
	signed, err := c.sign(c.accessSecret, tokenClaims{
		UserID:   userID,
		Email:    email,
		UserName: userName,
		Kind:     KindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// IssueRefreshToken signs {userId} with the refresh secret. A random jti
// keeps tokens issued in the same second distinct.
func (c *TokenCodec) IssueRefreshToken(userID string) (RefreshToken, error) {
	iat := c.now().UTC()
	exp := iat.Add(c.refreshTTL)
	signed, err := c.sign(c.refreshSecret, tokenClaims{
		UserID: userID,
		Kind:   KindRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{Token: signed, Hash: HashRefreshRaw(signed), Exp: exp}, nil
}

// Verify checks signature, algorithm, kind and expiry of raw against the
// secret for kind. Failures are ErrTokenExpired or ErrTokenInvalid.
func (c *TokenCodec) Verify(raw string, kind TokenKind) (Claims, error) {
	var secret []byte
	switch kind {
	case KindAccess:
		secret = c.accessSecret
	case KindRefresh:
		secret = c.refreshSecret
	default:
		return Claims{}, ErrTokenInvalid
	}
	if raw == "" {
		return Claims{}, ErrTokenInvalid
	}

	var tc tokenClaims
	_, err := jwt.ParseWithClaims(raw, &tc, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenInvalid
	}
	if tc.Kind != kind || tc.UserID == "" {
		return Claims{}, ErrTokenInvalid
	}

	out := Claims{
		UserID:   tc.UserID,
		Email:    tc.Email,
		UserName: tc.UserName,
		ID:       tc.ID,
		Kind:     tc.Kind,
	}
	if tc.IssuedAt != nil {
		out.IssuedAt = tc.IssuedAt.Time.UTC()
	}
	if tc.ExpiresAt != nil {
		out.ExpiresAt = tc.ExpiresAt.Time.UTC()
	}
	return out, nil
}

func (c *TokenCodec) sign(secret []byte, claims tokenClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// HashRefreshRaw returns the SHA‑256 hash of the raw refresh token as a hex
// string. Storing only the hash means a leaked tokens collection cannot be
// replayed.
func HashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
