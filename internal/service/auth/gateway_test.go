package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"storefront/internal/domain"
	customerrepo "storefront/internal/repository/customer"
	"golang.org/x/crypto/bcrypt"
)

type stubCustomerRepo struct {
	byID    map[string]*domain.Customer
	byEmail map[string]*domain.Customer
	next    int
}

func newStubCustomerRepo() *stubCustomerRepo {
	return &stubCustomerRepo{
		byID:    map[string]*domain.Customer{},
		byEmail: map[string]*domain.Customer{},
	}
}

func (r *stubCustomerRepo) Create(_ context.Context, c domain.Customer) (*domain.Customer, error) {
	if _, ok := r.byEmail[strings.ToLower(c.Email)]; ok {
		return nil, domain.ErrAlreadyExists
	}
	r.next++
	c.ID = fmt.Sprintf("cust-%d", r.next)
	c.CreatedAt = time.Now()
	cp := c
	r.byID[c.ID] = &cp
	r.byEmail[strings.ToLower(c.Email)] = &cp
	out := cp
	return &out, nil
}

func (r *stubCustomerRepo) GetByEmail(_ context.Context, email string) (*domain.Customer, error) {
	c, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *stubCustomerRepo) GetByID(_ context.Context, id string) (*domain.Customer, error) {
	c, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *stubCustomerRepo) UpgradeGuest(_ context.Context, id string, in customerrepo.UpgradeInput) (*domain.Customer, error) {
	c, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !c.Guest() {
		return nil, domain.ErrAccountExists
	}
	c.PasswordHash = in.PasswordHash
	c.FirstName = in.FirstName
	c.LastName = in.LastName
	cp := *c
	return &cp, nil
}

type stubUserRepo struct {
	users map[string]*domain.SystemUser
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: map[string]*domain.SystemUser{}}
}

func (r *stubUserRepo) GetByEmail(_ context.Context, email string) (*domain.SystemUser, error) {
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *stubUserRepo) GetByID(_ context.Context, id string) (*domain.SystemUser, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

type stubSessions struct {
	authErr     error
	authSession *domain.Session
	authCalls   int

	created       *domain.Session
	createCalls   int
	terminated    []string
	terminateErr  error
	lastTermCause domain.TerminationReason
}

func (s *stubSessions) CreateAuthenticated(_ context.Context, kind domain.PrincipalKind, principalID string, pair domain.TokenPair, rememberMe bool, info domain.ClientInfo) (*domain.Session, error) {
	s.createCalls++
	loginAt := time.Now()
	sess := &domain.Session{
		ID:            "sess-created",
		Type:          domain.SessionAuthenticated,
		PrincipalKind: kind,
		PrincipalID:   &principalID,
		AccessToken:   &pair.AccessToken,
		RefreshToken:  &pair.RefreshToken,
		IsActive:      true,
		LoginAt:       &loginAt,
	}
	s.created = sess
	return sess, nil
}

func (s *stubSessions) Authenticate(_ context.Context, sessionID string, kind domain.PrincipalKind, principalID string, pair domain.TokenPair, rememberMe bool) (*domain.Session, error) {
	s.authCalls++
	if s.authErr != nil {
		return s.authSession, s.authErr
	}
	loginAt := time.Now()
	return &domain.Session{
		ID:            sessionID,
		Type:          domain.SessionAuthenticated,
		PrincipalKind: kind,
		PrincipalID:   &principalID,
		AccessToken:   &pair.AccessToken,
		RefreshToken:  &pair.RefreshToken,
		IsActive:      true,
		LoginAt:       &loginAt,
	}, nil
}

func (s *stubSessions) Terminate(_ context.Context, sessionID string, reason domain.TerminationReason) error {
	s.terminated = append(s.terminated, sessionID)
	s.lastTermCause = reason
	return s.terminateErr
}

type stubIssuer struct{ n int }

func (i *stubIssuer) Issue(kind domain.PrincipalKind, principalID string, rememberMe bool) (domain.TokenPair, error) {
	i.n++
	return domain.TokenPair{
		AccessToken:  fmt.Sprintf("at-%d", i.n),
		RefreshToken: fmt.Sprintf("rt-%d", i.n),
	}, nil
}

func hash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(h)
}

func newTestGateway(t *testing.T) (*Gateway, *stubCustomerRepo, *stubUserRepo, *stubSessions) {
	t.Helper()
	customers := newStubCustomerRepo()
	users := newStubUserRepo()
	sessions := &stubSessions{}
	g := newGateway(customers, users, sessions, &stubIssuer{}, nil)
	return g, customers, users, sessions
}

func seedCustomer(t *testing.T, repo *stubCustomerRepo, email, password string) *domain.Customer {
	t.Helper()
	c, err := repo.Create(context.Background(), domain.Customer{
		Email:        email,
		PasswordHash: hash(t, password),
		IsVerified:   true,
	})
	if err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return c
}

func TestLoginUpgradesGuestSession(t *testing.T) {
	g, customers, _, sessions := newTestGateway(t)
	c := seedCustomer(t, customers, "shopper@example.com", "Passw0rd1")

	res, err := g.Login(context.Background(), LoginInput{
		Email:     "shopper@example.com",
		Password:  "Passw0rd1",
		SessionID: "guest-sess",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Session.ID != "guest-sess" {
		t.Fatalf("login must keep the guest session id, got %s", res.Session.ID)
	}
	if res.Principal.Kind != domain.PrincipalCustomer || res.Principal.ID() != c.ID {
		t.Fatalf("wrong principal: %+v", res.Principal)
	}
	if res.Tokens.AccessToken == "" {
		t.Fatalf("login must return tokens")
	}
	if sessions.createCalls != 0 {
		t.Fatalf("no fresh session expected when a guest session upgrades")
	}
}

func TestLoginWithoutSessionCreatesOne(t *testing.T) {
	g, customers, _, sessions := newTestGateway(t)
	seedCustomer(t, customers, "shopper@example.com", "Passw0rd1")

	res, err := g.Login(context.Background(), LoginInput{
		Email:    "shopper@example.com",
		Password: "Passw0rd1",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if sessions.createCalls != 1 || res.Session.ID != "sess-created" {
		t.Fatalf("expected a fresh authenticated session, got %+v", res.Session)
	}
}

func TestLoginStaleSessionFallsBack(t *testing.T) {
	g, customers, _, sessions := newTestGateway(t)
	seedCustomer(t, customers, "shopper@example.com", "Passw0rd1")
	sessions.authErr = domain.ErrNotFound

	res, err := g.Login(context.Background(), LoginInput{
		Email:     "shopper@example.com",
		Password:  "Passw0rd1",
		SessionID: "expired-sess",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if sessions.createCalls != 1 || res.Session.ID != "sess-created" {
		t.Fatalf("stale session id must fall back to a fresh session, got %+v", res.Session)
	}
}

func TestLoginDuplicateSameIdentityBenign(t *testing.T) {
	g, customers, _, sessions := newTestGateway(t)
	c := seedCustomer(t, customers, "shopper@example.com", "Passw0rd1")

	at, rt := "winner-at", "winner-rt"
	sessions.authErr = domain.ErrAlreadyAuthenticated
	sessions.authSession = &domain.Session{
		ID:            "guest-sess",
		Type:          domain.SessionAuthenticated,
		PrincipalKind: domain.PrincipalCustomer,
		PrincipalID:   &c.ID,
		AccessToken:   &at,
		RefreshToken:  &rt,
		IsActive:      true,
	}

	res, err := g.Login(context.Background(), LoginInput{
		Email:     "shopper@example.com",
		Password:  "Passw0rd1",
		SessionID: "guest-sess",
	})
	if err != nil {
		t.Fatalf("duplicate login must be benign: %v", err)
	}
	if res.Session.ID != "guest-sess" {
		t.Fatalf("must reuse the winning session, got %s", res.Session.ID)
	}
	if res.Tokens.AccessToken != "winner-at" {
		t.Fatalf("must return the winning session's tokens, got %+v", res.Tokens)
	}
}

func TestLoginDuplicateOtherIdentityConflicts(t *testing.T) {
	g, customers, _, sessions := newTestGateway(t)
	seedCustomer(t, customers, "shopper@example.com", "Passw0rd1")

	otherID := "cust-other"
	sessions.authErr = domain.ErrAlreadyAuthenticated
	sessions.authSession = &domain.Session{
		ID:            "guest-sess",
		Type:          domain.SessionAuthenticated,
		PrincipalKind: domain.PrincipalCustomer,
		PrincipalID:   &otherID,
		IsActive:      true,
	}

	_, err := g.Login(context.Background(), LoginInput{
		Email:     "shopper@example.com",
		Password:  "Passw0rd1",
		SessionID: "guest-sess",
	})
	if !errors.Is(err, domain.ErrAlreadyAuthenticated) {
		t.Fatalf("expected conflict for a different identity, got %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	g, customers, _, _ := newTestGateway(t)
	seedCustomer(t, customers, "shopper@example.com", "Passw0rd1")

	_, err := g.Login(context.Background(), LoginInput{Email: "shopper@example.com", Password: "wrong"})
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	g, _, _, _ := newTestGateway(t)
	_, err := g.Login(context.Background(), LoginInput{Email: "nobody@example.com", Password: "Passw0rd1"})
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestLoginPasswordlessGuestRecordRejected(t *testing.T) {
	g, customers, _, _ := newTestGateway(t)
	if _, err := customers.Create(context.Background(), domain.Customer{Email: "guest@example.com"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err := g.Login(context.Background(), LoginInput{Email: "guest@example.com", Password: "anything"})
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for passwordless record, got %v", err)
	}
}

func TestLoginSystemUser(t *testing.T) {
	g, _, users, _ := newTestGateway(t)
	users.users["user-1"] = &domain.SystemUser{
		ID:           "user-1",
		Email:        "admin@example.com",
		PasswordHash: hash(t, "Adm1nPass"),
		Role:         "admin",
	}

	res, err := g.Login(context.Background(), LoginInput{Email: "admin@example.com", Password: "Adm1nPass"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Principal.Kind != domain.PrincipalUser || res.Principal.User == nil {
		t.Fatalf("expected a system user principal, got %+v", res.Principal)
	}
}

func TestLogoutSwallowsStoreErrors(t *testing.T) {
	g, _, _, sessions := newTestGateway(t)
	sessions.terminateErr = errors.New("store down")

	g.Logout(context.Background(), "sess-1")
	if len(sessions.terminated) != 1 || sessions.terminated[0] != "sess-1" {
		t.Fatalf("terminate not attempted: %+v", sessions.terminated)
	}
	if sessions.lastTermCause != domain.TerminatedLogout {
		t.Fatalf("wrong termination reason: %s", sessions.lastTermCause)
	}
}

func TestRegisterNewCustomer(t *testing.T) {
	g, customers, _, _ := newTestGateway(t)

	c, err := g.Register(context.Background(), RegisterInput{
		Email:     "New.Shopper@Example.com",
		Password:  "Passw0rd1",
		FirstName: "New",
		LastName:  "Shopper",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if c.Email != "new.shopper@example.com" {
		t.Fatalf("email must be normalized, got %q", c.Email)
	}
	if c.PasswordHash == "" || c.PasswordHash == "Passw0rd1" {
		t.Fatalf("password must be stored hashed")
	}
	if _, ok := customers.byEmail["new.shopper@example.com"]; !ok {
		t.Fatalf("record not persisted")
	}
}

func TestRegisterUpgradesGuestRecord(t *testing.T) {
	g, customers, _, _ := newTestGateway(t)
	guest, err := customers.Create(context.Background(), domain.Customer{Email: "guest@example.com"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	c, err := g.Register(context.Background(), RegisterInput{
		Email:    "guest@example.com",
		Password: "Passw0rd1",
	})
	if err != nil {
		t.Fatalf("register over guest record: %v", err)
	}
	if c.ID != guest.ID {
		t.Fatalf("upgrade must keep the record id: %s vs %s", c.ID, guest.ID)
	}
	if c.PasswordHash == "" {
		t.Fatalf("upgrade must set the password hash")
	}
}

func TestRegisterExistingAccountConflicts(t *testing.T) {
	g, customers, _, _ := newTestGateway(t)
	seedCustomer(t, customers, "taken@example.com", "Passw0rd1")

	_, err := g.Register(context.Background(), RegisterInput{Email: "taken@example.com", Password: "An0therPass"})
	if !errors.Is(err, domain.ErrAccountExists) {
		t.Fatalf("expected account exists, got %v", err)
	}
}

func TestRegisterPasswordPolicy(t *testing.T) {
	g, _, _, _ := newTestGateway(t)

	for _, password := range []string{"short1A", "alllowercase1", "ALLUPPERCASE1", "NoDigitsHere"} {
		if _, err := g.Register(context.Background(), RegisterInput{Email: "p@example.com", Password: password}); err == nil {
			t.Fatalf("password %q must be rejected", password)
		}
	}
}

func TestResolvePrincipalUnknownKindTriesBoth(t *testing.T) {
	g, customers, users, _ := newTestGateway(t)
	c := seedCustomer(t, customers, "shopper@example.com", "Passw0rd1")
	users.users["user-1"] = &domain.SystemUser{ID: "user-1", Email: "admin@example.com"}

	p, err := g.ResolvePrincipal(context.Background(), "", c.ID)
	if err != nil {
		t.Fatalf("resolve customer: %v", err)
	}
	if p.Kind != domain.PrincipalCustomer {
		t.Fatalf("expected customer kind, got %s", p.Kind)
	}

	p, err = g.ResolvePrincipal(context.Background(), "", "user-1")
	if err != nil {
		t.Fatalf("resolve user: %v", err)
	}
	if p.Kind != domain.PrincipalUser {
		t.Fatalf("expected user kind, got %s", p.Kind)
	}

	if _, err := g.ResolvePrincipal(context.Background(), "", "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
