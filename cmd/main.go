package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"storefront/internal/config"
	httpapi "storefront/internal/http"
	"storefront/internal/logging"
	"storefront/internal/notify"
	"storefront/internal/repository"
	"storefront/internal/repository/gormstore"
	"storefront/internal/repository/migrations"
	"storefront/internal/service"

	_ "storefront/docs"
)

type repositories struct {
	products repository.ProductRepository
	basket   repository.BasketRepository
	orders   repository.OrderRepository
	tx       repository.TxManager
}

func openStorage(cfg config.StorageConfig, log *logrus.Logger) (repositories, error) {
	switch cfg.Driver {
	case "sqlite", "postgres":
	default:
		store := repository.NewMemoryStore()
		return repositories{
			products: store,
			basket:   repository.NewMemoryBasket(store),
			orders:   repository.NewMemoryOrders(store),
			tx:       repository.NewMemoryTx(store),
		}, nil
	}

	dsn := cfg.SQLitePath
	if cfg.Driver == "postgres" {
		dsn = cfg.PostgresDSN
		if cfg.Migrate {
			if err := migrations.Migrate(dsn, log); err != nil {
				return repositories{}, err
			}
		}
	}
	db, err := gormstore.Open(cfg.Driver, dsn, log)
	if err != nil {
		return repositories{}, err
	}
	if cfg.Driver == "sqlite" && cfg.Migrate {
		if err := gormstore.AutoMigrate(db); err != nil {
			return repositories{}, err
		}
	}
	return repositories{
		products: gormstore.NewStore(db),
		basket:   gormstore.NewBasket(db),
		orders:   gormstore.NewOrders(db),
		tx:       gormstore.NewTx(db),
	}, nil
}

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		logrus.WithError(err).Fatal("failed to set up logging")
	}

	repos, err := openStorage(cfg.Storage, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open storage")
	}

	var notifier service.OrderNotifier = notify.Noop{}
	if cfg.RabbitMQ.URL != "" {
		n, err := notify.Dial(notify.Config{URL: cfg.RabbitMQ.URL, Exchange: cfg.RabbitMQ.Exchange})
		if err != nil {
			log.WithError(err).Fatal("failed to connect to rabbitmq")
		}
		defer n.Close()
		notifier = n
	}

	catalog := service.NewCatalogService(repos.products, cfg.Catalog.PageSize)
	baskets := service.NewBasketService(repos.products, repos.basket, repos.tx, log)
	checkout := service.NewCheckoutService(repos.basket, repos.orders, repos.tx, notifier, log)

	srv := httpapi.NewServer(catalog, baskets, checkout, log, cfg.HTTP.CookieSecure)

	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: srv.Engine(),
	}

	go func() {
		log.WithFields(logrus.Fields{"addr": httpServer.Addr, "storage": cfg.Storage.Driver}).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.WithError(err).Error("shutdown error")
	}
}
