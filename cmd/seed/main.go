package main

import (
	"context"
	"flag"
	"os"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"storefront/internal/config"
	"storefront/internal/seed"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config")
	file := flag.String("file", "products.csv", "CSV with title,description,category,residue,price")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	var driver, dsn string
	switch cfg.Storage.Driver {
	case "postgres":
		driver, dsn = "postgres", cfg.Storage.PostgresDSN
	case "sqlite":
		driver, dsn = "sqlite3", cfg.Storage.SQLitePath
	default:
		logrus.Fatalf("seed needs a persistent storage driver, got %q", cfg.Storage.Driver)
	}

	f, err := os.Open(*file)
	if err != nil {
		logrus.WithError(err).Fatal("failed to open csv")
	}
	defer f.Close()

	products, err := seed.Parse(f)
	if err != nil {
		logrus.WithError(err).Fatal("failed to parse csv")
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		logrus.WithError(err).Fatal("failed to open database")
	}
	defer db.Close()

	n, err := seed.Load(context.Background(), db, products)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load products")
	}
	logrus.WithFields(logrus.Fields{"driver": driver, "products": n}).Info("catalog seeded")
}
