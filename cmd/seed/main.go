package main

import (
	"context"
	"flag"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/stay-reservation/internal/config"
	"github.com/iliyamo/stay-reservation/internal/database"
	"github.com/iliyamo/stay-reservation/internal/logging"
	"github.com/iliyamo/stay-reservation/internal/repository"
	"github.com/iliyamo/stay-reservation/internal/seed"
)

func main() {
	path := flag.String("f", "fixtures/seed.yaml", "fixture file")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	fixture, err := seed.Load(*path)
	if err != nil {
		logger.WithError(err).Fatal("load fixture")
	}

	db, err := database.Open(database.Options{
		User:     cfg.DBUser,
		Password: cfg.DBPass,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		Name:     cfg.DBName,
	})
	if err != nil {
		logger.WithError(err).Fatal("connect database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := database.Migrate(ctx, db); err != nil {
		logger.WithError(err).Fatal("run migrations")
	}

	res, err := seed.Apply(ctx, fixture, repository.NewUserRepo(db), repository.NewStore(db), cfg.BcryptCost, logger)
	if err != nil {
		logger.WithError(err).Fatal("seed")
	}
	logger.WithFields(logrus.Fields{
		"users":    res.Users,
		"listings": res.Listings,
		"coupons":  res.Coupons,
	}).Info("seed complete")
}
