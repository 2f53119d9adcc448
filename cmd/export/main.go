package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"eventmarket/internal/client"
	"eventmarket/internal/config"
	"eventmarket/internal/database"
	"eventmarket/internal/events"
	"eventmarket/internal/export"
	"eventmarket/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "configs/config.yaml", "path to config.yaml")
		kind       = flag.String("kind", "bookings", "what to export: bookings or users")
		from       = flag.String("from", "", "first booking start date, YYYY-MM-DD (default: 30 days ago)")
		to         = flag.String("to", "", "last booking start date, YYYY-MM-DD (default: today)")
		out        = flag.String("out", "", "export directory (default: exports.path)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *out != "" {
		cfg.Exports.Path = *out
	}

	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	c := client.New(db, cfg.Client, events.NewEventBus(), logger)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	exporter := export.NewExporter(c, cfg.Exports, logger)

	var path string
	switch *kind {
	case "bookings":
		start, end, err := period(*from, *to, time.Now())
		if err != nil {
			return err
		}
		path, err = exporter.Bookings(ctx, start, end)
		if err != nil {
			return err
		}
	case "users":
		path, err = exporter.Users(ctx)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown export kind %q", *kind)
	}

	fmt.Println(path)
	return nil
}

// period resolves the flag dates. The end date covers its whole day.
func period(from, to string, now time.Time) (time.Time, time.Time, error) {
	const layout = "2006-01-02"
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	start := today.AddDate(0, 0, -30)
	if from != "" {
		t, err := time.Parse(layout, from)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid -from: %w", err)
		}
		start = t
	}
	end := today
	if to != "" {
		t, err := time.Parse(layout, to)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid -to: %w", err)
		}
		end = t
	}
	end = end.Add(24*time.Hour - time.Nanosecond)
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("-to is before -from")
	}
	return start, end, nil
}
