package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"cyberwhale/internal/assistant"
	"cyberwhale/internal/challenges"
	"cyberwhale/internal/config"
	transporthttp "cyberwhale/internal/http"
	"cyberwhale/internal/importer"
	"cyberwhale/internal/knowledge"
	"cyberwhale/internal/platform/database"
	"cyberwhale/internal/platform/logging"
	"cyberwhale/internal/platform/metrics"
	"cyberwhale/internal/platform/migrate"
	"cyberwhale/internal/products"
	"cyberwhale/internal/profile"
	"cyberwhale/internal/provider"
	"cyberwhale/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel, cfg.Environment)
	collector := metrics.NewCollector()

	profiles, challengeRepo, knowledgeRepo, cleanup, err := buildStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	challengeSvc := challenges.NewService(challengeRepo, profiles, challenges.WithFlagMetrics(collector))
	knowledgeSvc := knowledge.NewService(knowledgeRepo)
	productSvc := products.NewService(products.NewInMemoryRepository(seedProducts()))
	assistantSvc := assistant.NewService(cfg.AssistantURL, cfg.AssistantAPIKey)

	// One manager (and one provider client holding that browser's tokens)
	// per browser session cookie.
	factory := func(nav session.Navigator) *session.Manager {
		client := provider.NewHTTPClient(cfg.AuthBaseURL, cfg.AuthAPIKey)
		return session.NewManager(client, profiles, nav, logger,
			session.WithLoadTimeout(cfg.AuthLoadTimeout),
			session.WithMetrics(collector),
			session.WithResetRedirectURL(cfg.FrontendURL+"/reset-password"),
		)
	}
	registry := session.NewRegistry(factory, cfg.BrowserTTL)
	defer registry.Close()

	authHandler := transporthttp.NewAuthHandler(registry, cfg.Environment, cfg.BrowserTTL, logger)

	var oauthHandler *transporthttp.OAuthHandler
	if cfg.GoogleLoginEnabled() {
		google, err := provider.NewGoogleAuthenticator(ctx, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
		if err != nil {
			logger.Error("failed to initialize Google authenticator", "error", err)
			os.Exit(1)
		}
		oauthHandler = transporthttp.NewOAuthHandler(google, authHandler, cfg.FrontendURL, cfg.Environment, logger)
	}

	router := transporthttp.NewRouter(cfg, transporthttp.Handlers{
		Auth:       authHandler,
		OAuth:      oauthHandler,
		Challenges: transporthttp.NewChallengeHandler(challengeSvc, importer.NewCSVImporter(challengeSvc), logger),
		Knowledge:  transporthttp.NewKnowledgeHandler(knowledgeSvc, logger),
		Products:   transporthttp.NewProductHandler(productSvc, logger),
		Assistant:  transporthttp.NewAssistantHandler(assistantSvc, logger),
		Metrics:    collector.Handler(),
	}, collector, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
	}

	go func() {
		logger.Info("CyberWhale API listening", "addr", srv.Addr, "store", cfg.DataStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func buildStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (profile.Store, challenges.Repository, knowledge.Repository, func(), error) {
	if cfg.UseInMemoryStore() {
		logger.Info("using in-memory stores")
		return profile.NewMemoryStore(),
			challenges.NewInMemoryRepository(seedChallenges()),
			knowledge.NewInMemoryRepository(seedArticles()),
			nil, nil
	}

	db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	cleanup := func() {
		_ = db.Close()
	}

	if err := migrate.Apply(ctx, db, logger); err != nil {
		cleanup()
		return nil, nil, nil, nil, err
	}

	logger.Info("connected to postgres")
	return profile.NewPostgresStore(db),
		challenges.NewPostgresRepository(db),
		knowledge.NewPostgresRepository(db),
		cleanup, nil
}
