package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"eventmarket/internal/client"
	"eventmarket/internal/config"
	"eventmarket/internal/database"
	"eventmarket/internal/events"
	"eventmarket/internal/query"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type CatalogConfig struct {
	CategoryTypes []string `yaml:"category_types"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		catalogPath = flag.String("catalog", "configs/catalog.yaml", "path to catalog.yaml")
		dbPath      = flag.String("db", "./data/eventmarket.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*catalogPath)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	var cfg CatalogConfig
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}
	if len(cfg.CategoryTypes) == 0 {
		return fmt.Errorf("no category types in yaml")
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	c := client.New(db, config.ClientConfig{}, events.NewEventBus(), &logger)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	before, err := c.CategoryType.Count(ctx, query.CountArgs{})
	if err != nil {
		return fmt.Errorf("count category types: %w", err)
	}

	err = c.Transaction(ctx, func(ctx context.Context, tx *client.Client) error {
		for _, name := range cfg.CategoryTypes {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			where := query.Unique{"name": name}
			if _, err := tx.CategoryType.Upsert(ctx, where, query.Data{"name": name}, query.Update{}); err != nil {
				return fmt.Errorf("upsert %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	after, err := c.CategoryType.Count(ctx, query.CountArgs{})
	if err != nil {
		return fmt.Errorf("count category types: %w", err)
	}

	fmt.Printf("done: created=%d total=%d\n", after.All-before.All, after.All)
	return nil
}
