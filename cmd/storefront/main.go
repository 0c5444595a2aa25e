package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/checkout"
	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/gateway"
	h "github.com/fjod/storefront/internal/http"
	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/poller"
	"github.com/fjod/storefront/internal/publisher"
	"github.com/fjod/storefront/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func main() {
	app := &cli.App{
		Name:  "storefront",
		Usage: "cart and checkout server",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "env-file",
				Usage:   "dotenv files to load before reading the environment",
				EnvVars: []string{"STOREFRONT_ENV_FILE"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP server",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply catalog migrations and exit",
				Action: migrateCatalog,
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("storefront failed")
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	return config.Load(c.StringSlice("env-file")...)
}

func migrateCatalog(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	repo, err := catalog.NewRepository(cfg.CatalogDriver, cfg.CatalogDSN)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.WithField("driver", cfg.CatalogDriver).Info("catalog migrations completed")
	return nil
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.WithError(err).Warn("tracer provider shutdown failed")
		}
	}()

	// Catalog
	repo, err := catalog.NewRepository(cfg.CatalogDriver, cfg.CatalogDSN)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer repo.Close()
	if err := repo.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("catalog migrations completed")

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(c.Context).Err(); err != nil {
		// carts degrade to "unavailable" responses until redis is back
		log.WithError(err).Warn("redis ping failed")
	} else {
		log.WithField("addr", cfg.RedisAddr).Info("redis ping succeeded")
	}

	pricing, err := flatPricing(cfg)
	if err != nil {
		return err
	}
	cartStore := cache.NewRedisCartStore(redisClient, cfg.CartTTL)
	cartService := service.NewCartService(
		cartStore,
		catalog.NewCachedFinder(repo),
		pricing,
		cfg.Currency,
		log,
	)

	gw := gateway.NewClient(gateway.Options{
		Credentials: gatewayCredentials(cfg),
		Timeout:     cfg.GatewayTimeout,
		Locale:      cfg.Locale,
		Currency:    cfg.Currency,
		MaxFailures: cfg.BreakerMaxFailures,
		OpenTimeout: cfg.BreakerOpenTimeout,
		Logger:      log,
	})

	events := publisher.New(cfg.KafkaTopic, cfg.KafkaBrokers...)
	defer events.Close()

	pollCtx, stopPoller := context.WithCancel(context.Background())
	defer stopPoller()
	if len(cfg.KafkaBrokers) > 0 {
		cartPoller := poller.NewPoller(cartStore, cfg.KafkaTopic, cfg.KafkaGroupID, log, cfg.KafkaBrokers...)
		defer cartPoller.Close()
		go cartPoller.Run(pollCtx)
	}

	reconciler := checkout.NewReconciler(
		gw,
		cartService,
		cache.NewRedisSessionStore(redisClient, cfg.PendingTTL),
		events,
		checkout.Config{
			PublicBaseURL: cfg.PublicBaseURL,
			SuccessPath:   cfg.SuccessPath,
			FailPath:      cfg.FailPath,
			ChallengePath: cfg.ChallengePath,
			Locale:        cfg.Locale,
		},
		log,
	)

	router := h.NewRouter(
		h.RouterConfig{
			RequestTimeout:     cfg.RequestTimeout,
			MaxRequestBodySize: cfg.MaxRequestBodySize,
			Session: h.SessionCookie{
				Name:   cfg.SessionCookieName,
				Secure: cfg.SessionCookieSecure,
				MaxAge: cfg.CartTTL,
			},
			SuccessPath:   cfg.SuccessPath,
			FailPath:      cfg.FailPath,
			ChallengePath: cfg.ChallengePath,
		},
		h.NewCartHandler(cartService, cfg.RequestTimeout),
		h.NewCheckoutHandler(reconciler, gw, cfg.RequestTimeout, cfg.FailPath, log),
		log,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("storefront listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("shutting down server...")
	stopPoller()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server exited")
	return nil
}

func flatPricing(cfg *config.Config) (service.FlatPricing, error) {
	taxRate, err := decimal.NewFromString(cfg.TaxRate)
	if err != nil {
		return service.FlatPricing{}, fmt.Errorf("invalid tax rate %q: %w", cfg.TaxRate, err)
	}
	shipping, err := decimal.NewFromString(cfg.ShippingFee)
	if err != nil {
		return service.FlatPricing{}, fmt.Errorf("invalid shipping fee %q: %w", cfg.ShippingFee, err)
	}
	return service.FlatPricing{TaxRate: taxRate, ShippingFee: shipping}, nil
}

func gatewayCredentials(cfg *config.Config) map[domain.CredentialSet]gateway.Credentials {
	creds := map[domain.CredentialSet]gateway.Credentials{
		domain.CredentialsDefault: {
			APIKey:    cfg.Gateway.APIKey,
			SecretKey: cfg.Gateway.SecretKey,
			BaseURL:   cfg.Gateway.BaseURL,
		},
	}
	if cfg.HasQuickWallet() {
		creds[domain.CredentialsQuickWallet] = gateway.Credentials{
			APIKey:    cfg.GatewayQuick.APIKey,
			SecretKey: cfg.GatewayQuick.SecretKey,
			BaseURL:   cfg.GatewayQuick.BaseURL,
		}
	}
	return creds
}
