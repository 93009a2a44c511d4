package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "storefront/docs"
	"storefront/internal/config"
	"storefront/internal/handlers"
	"storefront/internal/logger"
	"storefront/internal/payment"
	"storefront/internal/repository"
	"storefront/internal/repository/db"
	"storefront/internal/server"
	"storefront/internal/service"

	"github.com/prometheus/client_golang/prometheus"
)

// @title        Storefront API
// @version      1.0
// @description  Catalog, hosted checkout and order status for the storefront.
// @BasePath     /
func main() {
	configDir := flag.String("config", "configs", "directory holding config.yml")
	secretsPath := flag.String("secrets", ".env", "key=value secrets file")
	flag.Parse()

	// load configs/config.yml and secrets
	cfg, err := config.Load(*configDir, *secretsPath)
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	// init logger
	log := logger.Get(cfg.Log.Level)
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// open DB
	conn, err := openDB(ctx, cfg.DB.Path, log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	sessions, closeSessions := openSessionStore(ctx, cfg.Redis, log)
	defer closeSessions()

	// wire dependencies
	repos := repository.NewRepository(conn, sessions)
	provider := payment.NewStripeProvider(payment.StripeConfig{
		SecretKey:     cfg.Payment.SecretKey,
		WebhookSecret: cfg.Payment.WebhookSecret,
		APIURL:        cfg.Payment.APIURL,
		Timeout:       cfg.Payment.Timeout,
		MaxRetries:    cfg.Payment.MaxRetries,
		Logger:        log.Named("stripe"),
	})
	if cfg.Payment.WebhookSecret == "" {
		log.Warnw("payment webhook secret not set; provider events will be rejected")
	}

	metrics := handlers.NewMetrics(prometheus.NewRegistry())
	services := service.NewService(repos, service.Options{
		SessionSecret: cfg.Session.Secret,
		SessionTTL:    cfg.Session.TTL,
		Provider:      provider,
		BaseURL:       cfg.BaseURL,
		Currency:      cfg.Checkout.Currency,
		CheckoutTTL:   cfg.Checkout.TTL,
		Recorder:      metrics,
		Log:           log.Named("checkout"),
	})

	if err := seedCatalog(ctx, services, cfg.Catalog.Seed, log); err != nil {
		log.Fatalw("failed to seed catalog", "err", err)
	}

	apiHandler := handlers.NewHandler(services, log.Named("http"),
		handlers.WithMetrics(metrics),
		handlers.WithSecureCookies(cfg.Session.SecureCookie),
		handlers.WithCurrency(cfg.Checkout.Currency),
	)

	// start HTTP server
	srv := server.New(server.Timeouts{
		ReadHeader: cfg.HTTP.ReadHeaderTimeout,
		Write:      cfg.HTTP.WriteTimeout,
		Idle:       cfg.HTTP.IdleTimeout,
	})
	runHTTPServer(srv, cfg.Port, apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, cfg.HTTP.ShutdownTimeout, log)
}

// openDB opens the SQLite database and applies pending migrations.
func openDB(ctx context.Context, path string, log *logger.Logger) (*sql.DB, error) {
	if path == "" {
		log.Infow("db.path not set in config; using default file", "default", "storefront.db")
		path = "storefront.db"
	}
	return db.InitDB(ctx, path)
}

// openSessionStore picks Redis when configured and falls back to process memory.
func openSessionStore(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (repository.SessionStore, func()) {
	if cfg.Addr == "" {
		return repository.NewMemorySessionStore(), func() {}
	}
	client, err := repository.NewRedisClient(ctx, cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		log.Fatalw("failed to connect redis", "addr", cfg.Addr, "err", err)
	}
	store := repository.NewRedisSessionStore(client)
	log.Infow("session revocations stored in redis", "addr", cfg.Addr)
	return store, func() {
		if err := store.Close(); err != nil {
			log.Errorw("failed to close redis", "err", err)
		}
	}
}

// seedCatalog creates the configured products when the catalog is empty.
func seedCatalog(ctx context.Context, services *service.Service, seed config.SeedConfig, log *logger.Logger) error {
	in := service.CatalogSeed{
		SellerName:  seed.SellerName,
		SellerEmail: seed.SellerEmail,
	}
	for _, p := range seed.Products {
		in.Products = append(in.Products, service.ProductInput{
			Name:     p.Name,
			Price:    p.Price,
			PhotoURL: p.PhotoURL,
		})
	}
	n, err := services.SeedProducts(ctx, in)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Infow("catalog seeded", "products", n)
	}
	return nil
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		log.Infow("http server listening", "port", port)
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, timeout time.Duration, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	cancel()

	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
