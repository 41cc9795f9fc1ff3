package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"storefront/internal/domain"
	customerrepo "storefront/internal/repository/customer"
	userrepo "storefront/internal/repository/user"
	tokensvc "storefront/internal/service/token"
	"golang.org/x/crypto/bcrypt"
)

type customerRepo interface {
	Create(ctx context.Context, c domain.Customer) (*domain.Customer, error)
	GetByEmail(ctx context.Context, email string) (*domain.Customer, error)
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
	UpgradeGuest(ctx context.Context, id string, in customerrepo.UpgradeInput) (*domain.Customer, error)
}

type userRepo interface {
	GetByEmail(ctx context.Context, email string) (*domain.SystemUser, error)
	GetByID(ctx context.Context, id string) (*domain.SystemUser, error)
}

type sessionManager interface {
	CreateAuthenticated(ctx context.Context, kind domain.PrincipalKind, principalID string, pair domain.TokenPair, rememberMe bool, info domain.ClientInfo) (*domain.Session, error)
	Authenticate(ctx context.Context, sessionID string, kind domain.PrincipalKind, principalID string, pair domain.TokenPair, rememberMe bool) (*domain.Session, error)
	Terminate(ctx context.Context, sessionID string, reason domain.TerminationReason) error
}

type tokenIssuer interface {
	Issue(kind domain.PrincipalKind, principalID string, rememberMe bool) (domain.TokenPair, error)
}

// Gateway orchestrates login, logout, and registration over the session
// manager and the identity repositories. It never merges carts itself;
// the merge strategy is the caller's decision, made explicitly afterwards.
type Gateway struct {
	customers   customerRepo
	users       userRepo
	sessions    sessionManager
	tokens      tokenIssuer
	logger      *log.Logger
	passwordMin int
}

// New creates a Gateway.
func New(customers customerrepo.Repository, users userrepo.Repository, sessions sessionManager, tokens *tokensvc.Service, logger *log.Logger) *Gateway {
	return newGateway(customers, users, sessions, tokens, logger)
}

func newGateway(customers customerRepo, users userRepo, sessions sessionManager, tokens tokenIssuer, logger *log.Logger) *Gateway {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Gateway{
		customers:   customers,
		users:       users,
		sessions:    sessions,
		tokens:      tokens,
		logger:      logger,
		passwordMin: 8,
	}
}

// LoginInput carries credentials plus whatever session the request already
// holds, so a live guest session can be upgraded in place.
type LoginInput struct {
	Email      string
	Password   string
	RememberMe bool
	SessionID  string
	Client     domain.ClientInfo
}

// LoginResult is the authenticated principal, its session, and the issued
// token pair.
type LoginResult struct {
	Principal domain.Principal
	Session   *domain.Session
	Tokens    domain.TokenPair
}

// Login verifies credentials and binds the principal to a session. A live
// guest session keeps its id and is upgraded; otherwise a fresh
// authenticated session is created. A concurrent duplicate login is
// benign: the second caller proceeds with the session the first one won.
func (g *Gateway) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	principal, err := g.verify(ctx, in.Email, in.Password)
	if err != nil {
		return nil, err
	}

	pair, err := g.tokens.Issue(principal.Kind, principal.ID(), in.RememberMe)
	if err != nil {
		return nil, err
	}

	if in.SessionID != "" {
		s, err := g.sessions.Authenticate(ctx, in.SessionID, principal.Kind, principal.ID(), pair, in.RememberMe)
		switch {
		case err == nil:
			return &LoginResult{Principal: principal, Session: s, Tokens: pair}, nil
		case errors.Is(err, domain.ErrAlreadyAuthenticated) && s != nil:
			// Double-click login: the earlier request already upgraded the
			// session. Require it to be the same identity, then reuse it.
			if s.PrincipalID == nil || *s.PrincipalID != principal.ID() {
				return nil, domain.ErrAlreadyAuthenticated
			}
			return &LoginResult{Principal: principal, Session: s, Tokens: sessionTokens(s, pair)}, nil
		case errors.Is(err, domain.ErrNotFound):
			// Stale or expired session id; fall through to a fresh session.
		default:
			return nil, err
		}
	}

	s, err := g.sessions.CreateAuthenticated(ctx, principal.Kind, principal.ID(), pair, in.RememberMe, in.Client)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Principal: principal, Session: s, Tokens: pair}, nil
}

// Logout terminates the session server-side but always reports success:
// the client's intent to drop its credentials must never be blocked by a
// store inconsistency.
func (g *Gateway) Logout(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	if err := g.sessions.Terminate(ctx, sessionID, domain.TerminatedLogout); err != nil {
		g.logger.Printf("logout session %s: %v", sessionID, err)
	}
}

// RegisterInput carries the registration form fields.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Register creates a customer account. A passwordless, unverified record
// with no verification-token history (created during guest checkout) is
// upgraded in place; any other existing record fails with
// domain.ErrAccountExists.
func (g *Gateway) Register(ctx context.Context, in RegisterInput) (*domain.Customer, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" {
		return nil, errors.New("email required")
	}
	password := strings.TrimSpace(in.Password)
	if err := validatePassword(password, g.passwordMin); err != nil {
		return nil, err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	existing, err := g.customers.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if !existing.Guest() {
			return nil, domain.ErrAccountExists
		}
		return g.customers.UpgradeGuest(ctx, existing.ID, customerrepo.UpgradeInput{
			PasswordHash: string(hashed),
			FirstName:    in.FirstName,
			LastName:     in.LastName,
		})
	case errors.Is(err, domain.ErrNotFound):
	default:
		return nil, err
	}

	created, err := g.customers.Create(ctx, domain.Customer{
		Email:        email,
		PasswordHash: string(hashed),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		return nil, domain.ErrAccountExists
	}
	return created, err
}

// ResolvePrincipal loads the record behind a session's principal
// reference. With an unknown kind it tries the customer lookup first,
// then the system user lookup.
func (g *Gateway) ResolvePrincipal(ctx context.Context, kind domain.PrincipalKind, id string) (domain.Principal, error) {
	switch kind {
	case domain.PrincipalCustomer:
		c, err := g.customers.GetByID(ctx, id)
		if err != nil {
			return domain.Principal{}, err
		}
		return domain.Principal{Kind: domain.PrincipalCustomer, Customer: c}, nil
	case domain.PrincipalUser:
		u, err := g.users.GetByID(ctx, id)
		if err != nil {
			return domain.Principal{}, err
		}
		return domain.Principal{Kind: domain.PrincipalUser, User: u}, nil
	}

	if c, err := g.customers.GetByID(ctx, id); err == nil {
		return domain.Principal{Kind: domain.PrincipalCustomer, Customer: c}, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Principal{}, err
	}
	u, err := g.users.GetByID(ctx, id)
	if err != nil {
		return domain.Principal{}, err
	}
	return domain.Principal{Kind: domain.PrincipalUser, User: u}, nil
}

// verify checks the password against whichever record kind matches the
// email: customers first, then back-office users.
func (g *Gateway) verify(ctx context.Context, email, password string) (domain.Principal, error) {
	email = strings.TrimSpace(email)
	password = strings.TrimSpace(password)

	if c, err := g.customers.GetByEmail(ctx, email); err == nil {
		if c.PasswordHash == "" {
			// Guest checkout record, no password set yet.
			return domain.Principal{}, domain.ErrInvalidCredentials
		}
		if bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) != nil {
			return domain.Principal{}, domain.ErrInvalidCredentials
		}
		return domain.Principal{Kind: domain.PrincipalCustomer, Customer: c}, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Principal{}, err
	}

	u, err := g.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Principal{}, domain.ErrInvalidCredentials
		}
		return domain.Principal{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return domain.Principal{}, domain.ErrInvalidCredentials
	}
	return domain.Principal{Kind: domain.PrincipalUser, User: u}, nil
}

func sessionTokens(s *domain.Session, fallback domain.TokenPair) domain.TokenPair {
	if s.AccessToken == nil || s.RefreshToken == nil {
		return fallback
	}
	return domain.TokenPair{
		AccessToken:  *s.AccessToken,
		RefreshToken: *s.RefreshToken,
	}
}

func validatePassword(p string, min int) error {
	if len(p) < min {
		return fmt.Errorf("password must be at least %d characters", min)
	}
	hasUpper := false
	hasLower := false
	hasDigit := false
	for _, r := range p {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return errors.New("password must contain at least 1 uppercase letter, 1 lowercase letter, and 1 number")
	}
	return nil
}
