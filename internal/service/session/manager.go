package session

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"storefront/internal/domain"
	sessionrepo "storefront/internal/repository/session"
	tokensvc "storefront/internal/service/token"
	"github.com/google/uuid"
)

// Credentials is whatever the transport extracted from the request: any
// combination of a session id (cookie or x-session-id header) and a bearer
// access token.
type Credentials struct {
	SessionID   string
	AccessToken string
}

type sessionRepo interface {
	Create(ctx context.Context, s domain.Session) (*domain.Session, error)
	Get(ctx context.Context, id string) (*domain.Session, error)
	GetByAccessToken(ctx context.Context, token string) (*domain.Session, error)
	Authenticate(ctx context.Context, id string, in sessionrepo.AuthenticateInput) (*domain.Session, error)
	RotateTokens(ctx context.Context, refreshToken, newAccess, newRefresh string) (*domain.Session, error)
	Terminate(ctx context.Context, id string, reason domain.TerminationReason) error
	Touch(ctx context.Context, id string) error
	List(ctx context.Context, f sessionrepo.Filter) ([]domain.Session, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type tokenService interface {
	Verify(token string, want tokensvc.Kind) (tokensvc.Claims, error)
	Rotate(refreshToken string) (domain.TokenPair, error)
	RefreshTTL(rememberMe bool) time.Duration
}

// Manager drives the session state machine: guest, authenticated,
// terminated. All state lives in the store; the manager holds no session
// in memory across requests.
type Manager struct {
	repo        sessionRepo
	tokens      tokenService
	logger      *log.Logger
	guestTTL    time.Duration
	sessionTTL  time.Duration
	rememberTTL time.Duration
	now         func() time.Time
}

// Config tunes session lifetimes.
type Config struct {
	GuestTTL    time.Duration
	SessionTTL  time.Duration
	RememberTTL time.Duration
}

// NewManager creates a Manager with the teacher defaults for any zero TTL:
// 24h guest, 7d session, 30d rememberMe.
func NewManager(repo sessionrepo.Repository, tokens *tokensvc.Service, logger *log.Logger, cfg Config) *Manager {
	return newManager(repo, tokens, logger, cfg)
}

func newManager(repo sessionRepo, tokens tokenService, logger *log.Logger, cfg Config) *Manager {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.GuestTTL <= 0 {
		cfg.GuestTTL = 24 * time.Hour
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 7 * 24 * time.Hour
	}
	if cfg.RememberTTL <= 0 {
		cfg.RememberTTL = 30 * 24 * time.Hour
	}
	return &Manager{
		repo:        repo,
		tokens:      tokens,
		logger:      logger,
		guestTTL:    cfg.GuestTTL,
		sessionTTL:  cfg.SessionTTL,
		rememberTTL: cfg.RememberTTL,
		now:         time.Now,
	}
}

// CreateGuest allocates a fresh anonymous session.
func (m *Manager) CreateGuest(ctx context.Context, info domain.ClientInfo) (*domain.Session, error) {
	s := domain.Session{
		ID:        uuid.NewString(),
		Type:      domain.SessionGuest,
		ClientIP:  info.IP,
		UserAgent: info.UserAgent,
		ExpiresAt: m.now().Add(m.guestTTL),
	}
	return m.repo.Create(ctx, s)
}

// CreateAuthenticated creates a session already bound to a principal, used
// on login when the request carried no live guest session.
func (m *Manager) CreateAuthenticated(ctx context.Context, kind domain.PrincipalKind, principalID string, pair domain.TokenPair, rememberMe bool, info domain.ClientInfo) (*domain.Session, error) {
	now := m.now()
	loginAt := now
	s := domain.Session{
		ID:            uuid.NewString(),
		Type:          domain.SessionAuthenticated,
		PrincipalKind: kind,
		PrincipalID:   &principalID,
		AccessToken:   &pair.AccessToken,
		RefreshToken:  &pair.RefreshToken,
		ClientIP:      info.IP,
		UserAgent:     info.UserAgent,
		LoginAt:       &loginAt,
		ExpiresAt:     now.Add(m.authTTL(rememberMe)),
	}
	return m.repo.Create(ctx, s)
}

// Resolve turns request credentials into a usable session. Resolution
// order: session id first, then access token. A valid token with no
// matching row gets a new row created for it, so stateless tokens survive
// session-store restarts. Expiry is checked lazily here on every read.
func (m *Manager) Resolve(ctx context.Context, creds Credentials) (*domain.Session, error) {
	if creds.SessionID != "" {
		s, err := m.repo.Get(ctx, creds.SessionID)
		switch {
		case err == nil && s.Usable(m.now()):
			if s.Type == domain.SessionAuthenticated {
				m.Touch(ctx, s.ID)
			}
			return s, nil
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
	}

	if creds.AccessToken != "" {
		claims, err := m.tokens.Verify(creds.AccessToken, tokensvc.KindAccess)
		if err != nil {
			if errors.Is(err, domain.ErrExpiredToken) {
				return nil, domain.ErrExpiredToken
			}
			return nil, domain.ErrUnauthenticated
		}
		s, err := m.repo.GetByAccessToken(ctx, creds.AccessToken)
		switch {
		case err == nil && s.Usable(m.now()):
			m.Touch(ctx, s.ID)
			return s, nil
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
		return m.adoptToken(ctx, creds.AccessToken, claims)
	}

	return nil, domain.ErrUnauthenticated
}

// adoptToken materializes a session row for a verified stateless token.
func (m *Manager) adoptToken(ctx context.Context, accessToken string, claims tokensvc.Claims) (*domain.Session, error) {
	now := m.now()
	loginAt := now
	s := domain.Session{
		ID:            uuid.NewString(),
		Type:          domain.SessionAuthenticated,
		PrincipalKind: claims.PrincipalKind,
		PrincipalID:   &claims.PrincipalID,
		AccessToken:   &accessToken,
		LoginAt:       &loginAt,
		ExpiresAt:     now.Add(m.sessionTTL),
	}
	created, err := m.repo.Create(ctx, s)
	if errors.Is(err, domain.ErrAlreadyExists) {
		// Lost the race against a concurrent request with the same token.
		return m.repo.GetByAccessToken(ctx, accessToken)
	}
	return created, err
}

// Authenticate upgrades a guest session in place, preserving its id. The
// store update is a compare-and-swap on the guest state, so of two
// concurrent logins exactly one wins; the loser sees
// domain.ErrAlreadyAuthenticated together with the winning row.
func (m *Manager) Authenticate(ctx context.Context, sessionID string, kind domain.PrincipalKind, principalID string, pair domain.TokenPair, rememberMe bool) (*domain.Session, error) {
	s, err := m.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !s.Usable(m.now()) {
		return nil, domain.ErrNotFound
	}
	return m.repo.Authenticate(ctx, sessionID, sessionrepo.AuthenticateInput{
		PrincipalKind: kind,
		PrincipalID:   principalID,
		AccessToken:   pair.AccessToken,
		RefreshToken:  pair.RefreshToken,
		ExpiresAt:     m.now().Add(m.authTTL(rememberMe)),
	})
}

// Terminate deactivates the session. Terminating twice is a no-op.
func (m *Manager) Terminate(ctx context.Context, sessionID string, reason domain.TerminationReason) error {
	return m.repo.Terminate(ctx, sessionID, reason)
}

// Touch updates last_activity best-effort; failures are logged and never
// propagate to the surrounding request.
func (m *Manager) Touch(ctx context.Context, sessionID string) {
	if err := m.repo.Touch(ctx, sessionID); err != nil {
		m.logger.Printf("touch session %s: %v", sessionID, err)
	}
}

// Refresh rotates the token pair. The store swap is keyed by the current
// refresh token, which atomically retires it; a replayed old token fails
// with domain.ErrInvalidToken.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*domain.Session, domain.TokenPair, error) {
	pair, err := m.tokens.Rotate(refreshToken)
	if err != nil {
		return nil, domain.TokenPair{}, err
	}
	s, err := m.repo.RotateTokens(ctx, refreshToken, pair.AccessToken, pair.RefreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.TokenPair{}, domain.ErrInvalidToken
		}
		return nil, domain.TokenPair{}, err
	}
	if !s.Usable(m.now()) {
		return nil, domain.TokenPair{}, domain.ErrInvalidToken
	}
	return s, pair, nil
}

// GetSession fetches one session without the lazy-expiry filter, for the
// admin surface.
func (m *Manager) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	return m.repo.Get(ctx, id)
}

// ListSessions lists sessions for the admin surface.
func (m *Manager) ListSessions(ctx context.Context, f sessionrepo.Filter) ([]domain.Session, error) {
	return m.repo.List(ctx, f)
}

// CleanupExpired physically removes rows past expiry. It is an
// optimization only; resolution never returns expired sessions either way.
func (m *Manager) CleanupExpired(ctx context.Context) (int64, error) {
	return m.repo.DeleteExpired(ctx, m.now())
}

func (m *Manager) authTTL(rememberMe bool) time.Duration {
	if rememberMe {
		return m.rememberTTL
	}
	return m.sessionTTL
}
