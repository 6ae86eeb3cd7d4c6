package main

import (
	"context"
	"fmt"

	"movemarket/internal/db"
	"movemarket/internal/seed"
	"movemarket/internal/store"

	"github.com/k0kubun/pp/v3"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var seedCommand = &cli.Command{
	Name:  "seed",
	Usage: "Seed the database with initial data",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		ctx := context.Background()

		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		logrus.Info("Connected to database")

		requestRepo := store.NewRequestRepository(pool)

		logrus.Info("Seeding requests...")
		codes, err := seed.SeedRequests(ctx, requestRepo)
		if err != nil {
			return fmt.Errorf("failed to seed requests: %w", err)
		}

		pp.Println(codes)
		logrus.Info("Requests seeded successfully")

		return nil
	},
}
