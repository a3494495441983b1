// Package token mints and checks the signed, expiring tokens used for
// sessions, email verification and password resets. Each purpose is signed
// with its own secret and carries its purpose as the audience, so a token
// minted for one workflow is rejected by every other.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/FACorreiaa/go-identity-service/internal/types"
)

// Issuer mints tokens.
type Issuer interface {
	Issue(purpose types.TokenPurpose, subject types.TokenSubject, ttl time.Duration) (string, error)
}

// Verifier checks tokens.
type Verifier interface {
	Verify(purpose types.TokenPurpose, token string) (*types.Claims, error)
}

// Manager is the full token service.
type Manager interface {
	Issuer
	Verifier
}

var _ Manager = (*Service)(nil)

type Service struct {
	secrets map[types.TokenPurpose][]byte
	issuer  string
	now     func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService builds a token service. Purposes missing from secrets (or mapped
// to an empty secret) cannot be issued or verified. Unknown purposes are ignored.
func NewService(issuer string, secrets map[types.TokenPurpose]string, opts ...Option) *Service {
	s := &Service{
		secrets: make(map[types.TokenPurpose][]byte, len(secrets)),
		issuer:  issuer,
		now:     time.Now,
	}
	for purpose, secret := range secrets {
		if secret == "" || !purpose.IsValid() {
			continue
		}
		s.secrets[purpose] = []byte(secret)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) secret(purpose types.TokenPurpose) ([]byte, error) {
	if !purpose.IsValid() {
		return nil, fmt.Errorf("%w: unknown token purpose %q", types.ErrTokenConfig, purpose)
	}
	key, ok := s.secrets[purpose]
	if !ok || len(key) == 0 {
		return nil, fmt.Errorf("%w: no secret for purpose %q", types.ErrTokenConfig, purpose)
	}
	return key, nil
}

// Issue signs a token for subject that expires after ttl.
// The role is only embedded in session tokens.
func (s *Service) Issue(purpose types.TokenPurpose, subject types.TokenSubject, ttl time.Duration) (string, error) {
	key, err := s.secret(purpose)
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		return "", fmt.Errorf("%w: ttl must be positive", types.ErrTokenConfig)
	}

	now := s.now()
	claims := types.Claims{
		UserID:  subject.UserID.String(),
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   subject.UserID.String(),
			Audience:  jwt.ClaimStrings{string(purpose)},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if purpose == types.PurposeSession {
		claims.Role = subject.Role
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", purpose, err)
	}
	return signed, nil
}

// Verify checks the signature, expiry, issuer and purpose of a token and
// returns its claims. Expired tokens yield types.ErrTokenExpired; everything
// else that fails yields types.ErrTokenInvalid.
func (s *Service) Verify(purpose types.TokenPurpose, tokenString string) (*types.Claims, error) {
	key, err := s.secret(purpose)
	if err != nil {
		return nil, err
	}
	if tokenString == "" {
		return nil, fmt.Errorf("%w: empty token", types.ErrTokenInvalid)
	}

	claims := &types.Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(string(purpose)),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", types.ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", types.ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return nil, types.ErrTokenInvalid
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("%w: token purpose %q does not match %q", types.ErrTokenInvalid, claims.Purpose, purpose)
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, fmt.Errorf("%w: malformed subject", types.ErrTokenInvalid)
	}
	return claims, nil
}

// SubjectID parses the user id carried by verified claims.
func SubjectID(claims *types.Claims) (uuid.UUID, error) {
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed subject", types.ErrTokenInvalid)
	}
	return id, nil
}
