package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/httpserver"
	cartrepo "storefront/internal/repository/cart"
	customerrepo "storefront/internal/repository/customer"
	productrepo "storefront/internal/repository/product"
	sessionrepo "storefront/internal/repository/session"
	userrepo "storefront/internal/repository/user"
	authsvc "storefront/internal/service/auth"
	cartsvc "storefront/internal/service/cart"
	"storefront/internal/service/cartmerge"
	sessionsvc "storefront/internal/service/session"
	tokensvc "storefront/internal/service/token"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatalf("connect to db: %v", err)
	}
	defer dbpool.Close()

	sessionRepo := sessionrepo.NewPostgres(dbpool)
	cartRepo := cartrepo.NewPostgres(dbpool)
	customerRepo := customerrepo.NewPostgres(dbpool)
	userRepo := userrepo.NewPostgres(dbpool)
	productRepo := productrepo.NewPostgres(dbpool)

	tokenService := tokensvc.New([]byte(cfg.JWTSecret), cfg.AccessTokenTTL, cfg.SessionTTL, cfg.RememberTTL)
	sessionManager := sessionsvc.NewManager(sessionRepo, tokenService, logger, sessionsvc.Config{
		GuestTTL:    cfg.GuestSessionTTL,
		SessionTTL:  cfg.SessionTTL,
		RememberTTL: cfg.RememberTTL,
	})
	gateway := authsvc.New(customerRepo, userRepo, sessionManager, tokenService, logger)
	cartService := cartsvc.New(cartRepo, productRepo, cfg.Currency, cfg.GuestSessionTTL)
	mergeEngine := cartmerge.New(cartRepo, logger, cfg.Currency)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		Sessions:          sessionManager,
		Auth:              gateway,
		Carts:             cartService,
		Merge:             mergeEngine,
		SessionCookieTTL:  cfg.SessionTTL,
		RememberCookieTTL: cfg.RememberTTL,
		AccessCookieTTL:   cfg.AccessTokenTTL,
		CORSOrigins:       cfg.CORSOrigins,
	})
	if err != nil {
		logger.Fatalf("init server: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("starting http server on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		logger.Printf("server error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	} else {
		logger.Printf("server stopped")
	}
}
