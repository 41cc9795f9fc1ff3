package httpserver

import (
	"net/http"
	"strconv"

	"storefront/internal/domain"
	sessionrepo "storefront/internal/repository/session"
	"github.com/gin-gonic/gin"
)

type revokeRequest struct {
	Reason string `json:"reason"`
}

func (h *handlers) listSessions(c *gin.Context) {
	var f sessionrepo.Filter
	if v := c.Query("type"); v != "" {
		t := domain.SessionType(v)
		if t != domain.SessionGuest && t != domain.SessionAuthenticated {
			badRequest(c, "type must be guest or authenticated")
			return
		}
		f.Type = &t
	}
	if v := c.Query("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(c, "active must be a boolean")
			return
		}
		f.Active = &active
	}
	if v := c.Query("principalId"); v != "" {
		f.PrincipalID = &v
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Offset = n
		}
	}

	sessions, err := h.deps.Sessions.ListSessions(c.Request.Context(), f)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "count": len(sessions)})
}

func (h *handlers) getSession(c *gin.Context) {
	s, err := h.deps.Sessions.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": s})
}

func (h *handlers) revokeSession(c *gin.Context) {
	var req revokeRequest
	_ = c.ShouldBindJSON(&req)
	reason := domain.TerminatedAdminRevoked
	if req.Reason != "" {
		switch r := domain.TerminationReason(req.Reason); r {
		case domain.TerminatedLogout, domain.TerminatedTimeout, domain.TerminatedExpired,
			domain.TerminatedSecurity, domain.TerminatedAdminRevoked:
			reason = r
		default:
			badRequest(c, "unknown revocation reason")
			return
		}
	}

	if err := h.deps.Sessions.Terminate(c.Request.Context(), c.Param("id"), reason); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "revoked"})
}

func (h *handlers) cleanupSessions(c *gin.Context) {
	deleted, err := h.deps.Sessions.CleanupExpired(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}
