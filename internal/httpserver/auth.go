package httpserver

import (
	"net/http"

	"storefront/internal/domain"
	authsvc "storefront/internal/service/auth"
	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email      string `json:"email" binding:"required"`
	Password   string `json:"password" binding:"required"`
	RememberMe bool   `json:"rememberMe"`
}

type registerRequest struct {
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password required")
		return
	}

	// Carry the visitor's current session id so a live guest session is
	// upgraded in place rather than abandoned.
	creds := extractCredentials(c)
	res, err := h.deps.Auth.Login(c.Request.Context(), authsvc.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		RememberMe: req.RememberMe,
		SessionID:  creds.SessionID,
		Client:     clientInfo(c),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.setAuthCookies(c, res.Session.ID, res.Tokens, req.RememberMe)
	c.JSON(http.StatusOK, gin.H{
		"principal": res.Principal,
		"session":   res.Session,
		"tokens":    res.Tokens,
	})
}

func (h *handlers) logout(c *gin.Context) {
	creds := extractCredentials(c)
	h.deps.Auth.Logout(c.Request.Context(), creds.SessionID)
	// Credential invalidation at the transport boundary is unconditional.
	h.clearAuthCookies(c)
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

func (h *handlers) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password required")
		return
	}

	customer, err := h.deps.Auth.Register(c.Request.Context(), authsvc.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"customer": customer})
}

func (h *handlers) refresh(c *gin.Context) {
	var req refreshRequest
	_ = c.ShouldBindJSON(&req)
	refresh := req.RefreshToken
	if refresh == "" {
		if v, err := c.Cookie(cookieRefreshToken); err == nil {
			refresh = v
		}
	}
	if refresh == "" {
		badRequest(c, "refreshToken required")
		return
	}

	s, pair, err := h.deps.Sessions.Refresh(c.Request.Context(), refresh)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.setAuthCookies(c, s.ID, pair, false)
	c.JSON(http.StatusOK, gin.H{"session": s, "tokens": pair})
}

func (h *handlers) me(c *gin.Context) {
	p, ok := principalFrom(c)
	if !ok {
		respondError(c, h.logger, domain.ErrUnauthenticated)
		return
	}
	s, _ := sessionFrom(c)
	c.JSON(http.StatusOK, gin.H{"principal": p, "session": s})
}
