package token

import (
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind selects which half of a pair a token must be.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims is the verified content of a token.
type Claims struct {
	PrincipalKind domain.PrincipalKind
	PrincipalID   string
	RememberMe    bool
	ExpiresAt     time.Time
}

// Service issues and verifies HS256-signed access/refresh pairs. It is
// stateless: invalidating an outstanding refresh token is the session
// layer's job, done by overwriting the single token pair on the session row.
type Service struct {
	secret      []byte
	accessTTL   time.Duration
	refreshTTL  time.Duration
	rememberTTL time.Duration
}

// New creates a Service. rememberTTL applies to refresh tokens issued with
// rememberMe set.
func New(secret []byte, accessTTL, refreshTTL, rememberTTL time.Duration) *Service {
	return &Service{
		secret:      secret,
		accessTTL:   accessTTL,
		refreshTTL:  refreshTTL,
		rememberTTL: rememberTTL,
	}
}

// Issue creates a fresh token pair bound to the principal.
func (s *Service) Issue(kind domain.PrincipalKind, principalID string, rememberMe bool) (domain.TokenPair, error) {
	now := time.Now()
	accessExp := now.Add(s.accessTTL)
	refreshTTL := s.refreshTTL
	if rememberMe {
		refreshTTL = s.rememberTTL
	}
	refreshExp := now.Add(refreshTTL)

	access, err := s.sign(kind, principalID, KindAccess, rememberMe, now, accessExp)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, err := s.sign(kind, principalID, KindRefresh, rememberMe, now, refreshExp)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{
		AccessToken:   access,
		RefreshToken:  refresh,
		AccessExpiry:  accessExp,
		RefreshExpiry: refreshExp,
	}, nil
}

// Verify validates the token and checks it is of the wanted kind. A
// well-formed token past its expiry fails with domain.ErrExpiredToken so
// callers can attempt a refresh; anything else fails with
// domain.ErrInvalidToken.
func (s *Service) Verify(tokenString string, want Kind) (Claims, error) {
	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, domain.ErrExpiredToken
		}
		return Claims{}, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return Claims{}, domain.ErrInvalidToken
	}

	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, domain.ErrInvalidToken
	}
	sub, _ := mc["sub"].(string)
	kind, _ := mc["kind"].(string)
	pk, _ := mc["pk"].(string)
	if sub == "" || Kind(kind) != want {
		return Claims{}, domain.ErrInvalidToken
	}
	switch domain.PrincipalKind(pk) {
	case domain.PrincipalCustomer, domain.PrincipalUser:
	default:
		return Claims{}, domain.ErrInvalidToken
	}

	out := Claims{
		PrincipalKind: domain.PrincipalKind(pk),
		PrincipalID:   sub,
	}
	if rm, ok := mc["rm"].(bool); ok {
		out.RememberMe = rm
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

// Rotate exchanges a valid refresh token for a new pair. The old refresh
// token stays verifiable here; the session row overwrite is what retires it.
func (s *Service) Rotate(refreshToken string) (domain.TokenPair, error) {
	claims, err := s.Verify(refreshToken, KindRefresh)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return s.Issue(claims.PrincipalKind, claims.PrincipalID, claims.RememberMe)
}

// AccessTTL exposes the access token lifetime for cookie max-age wiring.
func (s *Service) AccessTTL() time.Duration {
	return s.accessTTL
}

// RefreshTTL returns the refresh lifetime applicable to rememberMe.
func (s *Service) RefreshTTL(rememberMe bool) time.Duration {
	if rememberMe {
		return s.rememberTTL
	}
	return s.refreshTTL
}

func (s *Service) sign(pk domain.PrincipalKind, principalID string, kind Kind, rememberMe bool, issuedAt, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":  principalID,
		"pk":   string(pk),
		"kind": string(kind),
		"jti":  uuid.NewString(),
		"iat":  issuedAt.Unix(),
		"exp":  expiresAt.Unix(),
	}
	if kind == KindRefresh {
		claims["rm"] = rememberMe
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(s.secret)
}
