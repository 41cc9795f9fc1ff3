package httpserver

import (
	"context"
	"log"
	"time"

	"storefront/internal/domain"
	sessionrepo "storefront/internal/repository/session"
	authsvc "storefront/internal/service/auth"
	cartsvc "storefront/internal/service/cart"
	"storefront/internal/service/cartmerge"
	sessionsvc "storefront/internal/service/session"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionService is the slice of the session manager the handlers use.
type SessionService interface {
	CreateGuest(ctx context.Context, info domain.ClientInfo) (*domain.Session, error)
	Resolve(ctx context.Context, creds sessionsvc.Credentials) (*domain.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.Session, domain.TokenPair, error)
	Terminate(ctx context.Context, sessionID string, reason domain.TerminationReason) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	ListSessions(ctx context.Context, f sessionrepo.Filter) ([]domain.Session, error)
	CleanupExpired(ctx context.Context) (int64, error)
}

// AuthService is the slice of the authentication gateway the handlers use.
type AuthService interface {
	Login(ctx context.Context, in authsvc.LoginInput) (*authsvc.LoginResult, error)
	Logout(ctx context.Context, sessionID string)
	Register(ctx context.Context, in authsvc.RegisterInput) (*domain.Customer, error)
	ResolvePrincipal(ctx context.Context, kind domain.PrincipalKind, id string) (domain.Principal, error)
}

// CartService is the slice of the cart service the handlers use.
type CartService interface {
	Active(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error)
	AddItem(ctx context.Context, owner domain.CartOwner, in cartsvc.AddItemInput) (*domain.Cart, error)
	ChangeQuantity(ctx context.Context, owner domain.CartOwner, itemID string, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, owner domain.CartOwner, itemID string) (*domain.Cart, error)
}

// MergeService reconciles a guest cart into a principal's cart.
type MergeService interface {
	MergeGuestCart(ctx context.Context, principal domain.Principal, guestSessionID string, strategy domain.MergeStrategy) (*cartmerge.Result, error)
}

// Deps carries the services the routes are built over.
type Deps struct {
	Sessions SessionService
	Auth     AuthService
	Carts    CartService
	Merge    MergeService

	// Cookie lifetimes; zero values pick the spec defaults.
	SessionCookieTTL  time.Duration
	RememberCookieTTL time.Duration
	AccessCookieTTL   time.Duration

	CORSOrigins []string
}

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, db *pgxpool.Pool, deps Deps) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if len(deps.CORSOrigins) == 0 || (len(deps.CORSOrigins) == 1 && deps.CORSOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = deps.CORSOrigins
		corsCfg.AllowCredentials = true
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization", "x-session-id")
	router.Use(cors.New(corsCfg))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	h := newHandlers(logger, deps)

	auth := router.Group("/auth")
	{
		auth.POST("/login", h.login)
		auth.POST("/logout", h.logout)
		auth.POST("/register", h.register)
		auth.POST("/refresh", h.refresh)
	}

	router.GET("/me", h.withSession(true), h.me)

	cart := router.Group("/cart", h.withSession(false))
	{
		cart.GET("", h.getCart)
		cart.POST("/items", h.addItem)
		cart.PATCH("/items/:itemId", h.changeQuantity)
		cart.DELETE("/items/:itemId", h.removeItem)
	}
	router.POST("/cart/merge", h.withSession(true), h.mergeCart)

	admin := router.Group("/admin/sessions", h.withSession(true), h.requireAdmin)
	{
		admin.GET("", h.listSessions)
		admin.GET("/:id", h.getSession)
		admin.DELETE("/:id", h.revokeSession)
		admin.POST("/cleanup", h.cleanupSessions)
	}

	return router, nil
}
