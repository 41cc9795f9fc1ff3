package httpserver

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain"
	sessionsvc "storefront/internal/service/session"
	"github.com/gin-gonic/gin"
)

const (
	cookieSessionID    = "sessionId"
	cookieAccessToken  = "accessToken"
	cookieRefreshToken = "refreshToken"

	headerSessionID = "x-session-id"

	ctxSession   = "session"
	ctxPrincipal = "principal"
)

type handlers struct {
	logger      *log.Logger
	deps        Deps
	sessionTTL  time.Duration
	rememberTTL time.Duration
	accessTTL   time.Duration
}

func newHandlers(logger *log.Logger, deps Deps) *handlers {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	h := &handlers{
		logger:      logger,
		deps:        deps,
		sessionTTL:  deps.SessionCookieTTL,
		rememberTTL: deps.RememberCookieTTL,
		accessTTL:   deps.AccessCookieTTL,
	}
	if h.sessionTTL <= 0 {
		h.sessionTTL = 7 * 24 * time.Hour
	}
	if h.rememberTTL <= 0 {
		h.rememberTTL = 30 * 24 * time.Hour
	}
	if h.accessTTL <= 0 {
		h.accessTTL = time.Hour
	}
	return h
}

// extractCredentials pulls the session id and access token out of the
// request: sessionId cookie or x-session-id header, Authorization bearer
// or accessToken cookie.
func extractCredentials(c *gin.Context) sessionsvc.Credentials {
	var creds sessionsvc.Credentials
	if v, err := c.Cookie(cookieSessionID); err == nil && v != "" {
		creds.SessionID = v
	}
	if creds.SessionID == "" {
		creds.SessionID = strings.TrimSpace(c.GetHeader(headerSessionID))
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		creds.AccessToken = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if creds.AccessToken == "" {
		if v, err := c.Cookie(cookieAccessToken); err == nil {
			creds.AccessToken = v
		}
	}
	return creds
}

// withSession resolves the request's session. On required routes a missing
// credential is a 401; on optional routes the visitor gets a fresh guest
// session instead.
func (h *handlers) withSession(required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		creds := extractCredentials(c)
		s, err := h.deps.Sessions.Resolve(c.Request.Context(), creds)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrUnauthenticated), errors.Is(err, domain.ErrExpiredToken):
				if required {
					respondError(c, h.logger, domain.ErrUnauthenticated)
					return
				}
				s, err = h.deps.Sessions.CreateGuest(c.Request.Context(), clientInfo(c))
				if err != nil {
					respondError(c, h.logger, err)
					return
				}
				h.setSessionCookie(c, s.ID, h.sessionTTL)
			default:
				respondError(c, h.logger, err)
				return
			}
		}

		if s.Type == domain.SessionAuthenticated && s.PrincipalID != nil {
			principal, err := h.deps.Auth.ResolvePrincipal(c.Request.Context(), s.PrincipalKind, *s.PrincipalID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					respondError(c, h.logger, domain.ErrUnauthenticated)
					return
				}
				respondError(c, h.logger, err)
				return
			}
			c.Set(ctxPrincipal, principal)
		} else if required {
			respondError(c, h.logger, domain.ErrUnauthenticated)
			return
		}

		c.Set(ctxSession, s)
		c.Next()
	}
}

// requireAdmin only admits back-office users.
func (h *handlers) requireAdmin(c *gin.Context) {
	p, ok := principalFrom(c)
	if !ok || p.Kind != domain.PrincipalUser {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.Next()
}

func sessionFrom(c *gin.Context) (*domain.Session, bool) {
	v, ok := c.Get(ctxSession)
	if !ok {
		return nil, false
	}
	s, ok := v.(*domain.Session)
	return s, ok
}

func principalFrom(c *gin.Context) (domain.Principal, bool) {
	v, ok := c.Get(ctxPrincipal)
	if !ok {
		return domain.Principal{}, false
	}
	p, ok := v.(domain.Principal)
	return p, ok
}

// cartOwner maps the resolved session to the key its cart hangs off:
// the principal for authenticated sessions, the session id for guests.
func cartOwner(c *gin.Context) (domain.CartOwner, bool) {
	if p, ok := principalFrom(c); ok {
		return p.CartOwner(), true
	}
	s, ok := sessionFrom(c)
	if !ok {
		return domain.CartOwner{}, false
	}
	return domain.CartOwner{Type: domain.OwnerGuest, ID: s.ID}, true
}

func clientInfo(c *gin.Context) domain.ClientInfo {
	return domain.ClientInfo{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

func (h *handlers) setSessionCookie(c *gin.Context, sessionID string, ttl time.Duration) {
	c.SetCookie(cookieSessionID, sessionID, int(ttl.Seconds()), "/", "", false, true)
}

// setAuthCookies writes the full credential set after login or refresh.
func (h *handlers) setAuthCookies(c *gin.Context, sessionID string, pair domain.TokenPair, rememberMe bool) {
	ttl := h.sessionTTL
	if rememberMe {
		ttl = h.rememberTTL
	}
	h.setSessionCookie(c, sessionID, ttl)
	c.SetCookie(cookieAccessToken, pair.AccessToken, int(h.accessTTL.Seconds()), "/", "", false, true)
	c.SetCookie(cookieRefreshToken, pair.RefreshToken, int(ttl.Seconds()), "/", "", false, true)
}

// clearAuthCookies invalidates credentials at the transport boundary;
// logout relies on this even when server-side cleanup fails.
func (h *handlers) clearAuthCookies(c *gin.Context) {
	c.SetCookie(cookieSessionID, "", -1, "/", "", false, true)
	c.SetCookie(cookieAccessToken, "", -1, "/", "", false, true)
	c.SetCookie(cookieRefreshToken, "", -1, "/", "", false, true)
}

// respondError maps the error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, logger *log.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated),
		errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrInvalidToken),
		errors.Is(err, domain.ErrExpiredToken):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domain.ErrAccountExists),
		errors.Is(err, domain.ErrAlreadyAuthenticated),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrCartImmutable),
		errors.Is(err, domain.ErrMergeConflict):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.Printf("internal error: %v", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
