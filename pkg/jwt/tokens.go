package jwt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// TokenTTL is the lifetime of every issued session token.
const TokenTTL = 365 * 24 * time.Hour

var (
	// ErrMissingSecret means the issuer was built without a signing secret.
	ErrMissingSecret = errors.New("jwt: signing secret is not configured")
	// ErrInvalidToken covers unparsable tokens and signature mismatches.
	ErrInvalidToken = errors.New("jwt: invalid token")
	// ErrExpired means the token signature is valid but exp has passed.
	ErrExpired = errors.New("jwt: token expired")
	// ErrMalformedPayload means the claims do not describe an Identity.
	ErrMalformedPayload = errors.New("jwt: malformed payload")
)

// Identity is the payload carried by a session token.
type Identity struct {
	UserID string
	Email  string
}

// Claims defines the JWT payload. Only id, email, iat and exp are accepted.
type Claims struct {
	UserID    string              `json:"id"`
	Email     string              `json:"email"`
	IssuedAt  *jwtlib.NumericDate `json:"iat,omitempty"`
	ExpiresAt *jwtlib.NumericDate `json:"exp,omitempty"`
}

// UnmarshalJSON rejects unknown claim keys and mistyped values.
func (c *Claims) UnmarshalJSON(data []byte) error {
	type plain Claims
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var out plain
	if err := dec.Decode(&out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	*c = Claims(out)
	return nil
}

// Validate is invoked by the parser after the signature has been verified.
func (c Claims) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return fmt.Errorf("%w: id is required", ErrMalformedPayload)
	}
	if strings.TrimSpace(c.Email) == "" {
		return fmt.Errorf("%w: email is required", ErrMalformedPayload)
	}
	return nil
}

func (c Claims) GetExpirationTime() (*jwtlib.NumericDate, error) { return c.ExpiresAt, nil }
func (c Claims) GetIssuedAt() (*jwtlib.NumericDate, error)       { return c.IssuedAt, nil }
func (c Claims) GetNotBefore() (*jwtlib.NumericDate, error)      { return nil, nil }
func (c Claims) GetIssuer() (string, error)                      { return "", nil }
func (c Claims) GetSubject() (string, error)                     { return c.UserID, nil }
func (c Claims) GetAudience() (jwtlib.ClaimStrings, error)       { return nil, nil }

// Issuer signs and verifies session tokens with a single HMAC secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option customises an Issuer.
type Option func(*Issuer)

// WithClock overrides the time source used for iat, exp and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// NewIssuer returns an Issuer for secret. An empty secret is a configuration
// error and yields ErrMissingSecret.
func NewIssuer(secret string, opts ...Option) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	i := &Issuer{secret: []byte(secret), ttl: TokenTTL, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// TTL returns the lifetime applied to issued tokens.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a token for the identity.
func (i *Issuer) Issue(id Identity) (string, error) {
	if strings.TrimSpace(id.UserID) == "" || strings.TrimSpace(id.Email) == "" {
		return "", fmt.Errorf("%w: id and email are required", ErrMalformedPayload)
	}
	now := i.now()
	claims := Claims{
		UserID:    id.UserID,
		Email:     id.Email,
		IssuedAt:  jwtlib.NewNumericDate(now),
		ExpiresAt: jwtlib.NewNumericDate(now.Add(i.ttl)),
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Verify validates the token and returns the identity it carries.
func (i *Issuer) Verify(token string) (Identity, error) {
	claims := &Claims{}
	parsed, err := jwtlib.ParseWithClaims(token, claims, func(t *jwtlib.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(i.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwtlib.ErrTokenSignatureInvalid):
			return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		case errors.Is(err, ErrMalformedPayload):
			// Claims are decoded before the signature is checked.
			if !i.signatureValid(token) {
				return Identity{}, ErrInvalidToken
			}
			return Identity{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		case errors.Is(err, jwtlib.ErrTokenExpired):
			return Identity{}, fmt.Errorf("%w: %v", ErrExpired, err)
		default:
			return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	}
	if !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: claims.UserID, Email: claims.Email}, nil
}

func (i *Issuer) signatureValid(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	sig, err := jwtlib.NewParser().DecodeSegment(parts[2])
	if err != nil {
		return false
	}
	return jwtlib.SigningMethodHS256.Verify(parts[0]+"."+parts[1], sig, i.secret) == nil
}
