package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"eventmarket/internal/config"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

const memoryPath = ":memory:"

// Executor is the statement surface shared by *sql.DB, *sql.Conn and *sql.Tx.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

// NewDB opens path with default pool settings.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	return Open(config.DatabaseConfig{Path: path, MaxOpenConns: 1, BusyTimeout: 5 * time.Second}, logger)
}

// Open opens the SQLite database described by cfg and creates missing tables.
// An in-memory database is pinned to a single connection so every statement
// sees the same data.
func Open(cfg config.DatabaseConfig, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	path := strings.TrimPrefix(cfg.Path, "file:")
	if path != memoryPath && !strings.HasPrefix(path, ":memory:") {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 || isMemory(path) {
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", cfg.Path).Int("max_open_conns", maxOpen).Msg("Database initialized")
	return &DB{DB: db, path: path, logger: logger}, nil
}

func isMemory(path string) bool {
	return strings.HasPrefix(path, ":memory:") || strings.Contains(path, "mode=memory")
}

func dsn(cfg config.DatabaseConfig) string {
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	base := cfg.Path
	if !strings.HasPrefix(base, "file:") {
		base = "file:" + base
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_foreign_keys=on&_busy_timeout=%d", base, sep, busy.Milliseconds())
}

// Path is the file backing the database, or ":memory:".
func (db *DB) Path() string { return db.path }

// InMemory reports whether the database lives only in this process.
func (db *DB) InMemory() bool { return isMemory(db.path) }

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            profile TEXT,
            email TEXT NOT NULL UNIQUE,
            phone TEXT NOT NULL UNIQUE,
            password TEXT NOT NULL,
            role TEXT NOT NULL DEFAULT 'USER' CHECK (role IN ('USER', 'VENDOR', 'ADMIN')),
            verified BOOLEAN NOT NULL DEFAULT 0,
            address TEXT,
            city TEXT,
            state TEXT,
            country TEXT,
            token TEXT,
            token_expires DATETIME,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS vendors (
            id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL UNIQUE REFERENCES users(id) ON DELETE RESTRICT,
            company_name TEXT,
            company_email TEXT,
            company_phone TEXT,
            company_address TEXT,
            description TEXT,
            verified BOOLEAN NOT NULL DEFAULT 0,
            rating REAL,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS category_types (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL UNIQUE,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS items (
            id TEXT PRIMARY KEY,
            vendor_id TEXT NOT NULL REFERENCES vendors(id) ON DELETE RESTRICT,
            category_id TEXT REFERENCES category_types(id) ON DELETE SET NULL,
            title TEXT NOT NULL,
            description TEXT NOT NULL,
            price REAL,
            min_price REAL,
            quantity INTEGER,
            category TEXT NOT NULL CHECK (category IN ('RENTALS', 'SERVICES', 'PACKAGES')),
            pricing_unit TEXT CHECK (pricing_unit IN ('MINUTE', 'HOUR', 'DAY', 'WEEK', 'MONTH')),
            is_available BOOLEAN NOT NULL DEFAULT 1,
            status TEXT,
            next_available_date DATETIME,
            images TEXT NOT NULL DEFAULT '[]',
            locations TEXT NOT NULL DEFAULT '[]',
            terms TEXT NOT NULL DEFAULT '[]',
            offers TEXT NOT NULL DEFAULT '[]',
            prices TEXT NOT NULL DEFAULT '[]',
            booking_type TEXT NOT NULL DEFAULT 'INSTANT' CHECK (booking_type IN ('INSTANT', 'REQUEST')),
            avg_rating REAL NOT NULL DEFAULT 0,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS reviews (
            id TEXT PRIMARY KEY,
            comment TEXT NOT NULL,
            rating REAL NOT NULL,
            reviewer TEXT NOT NULL,
            user_id TEXT NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
            item_id TEXT REFERENCES items(id) ON DELETE SET NULL,
            vendor_id TEXT REFERENCES vendors(id) ON DELETE SET NULL,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            CHECK (item_id IS NULL OR vendor_id IS NULL)
        )`,
		`CREATE TABLE IF NOT EXISTS saved_items (
            id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            item_id TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            UNIQUE (user_id, item_id)
        )`,
		`CREATE TABLE IF NOT EXISTS bookings (
            id TEXT PRIMARY KEY,
            start_date DATETIME NOT NULL,
            end_date DATETIME NOT NULL,
            address TEXT,
            status TEXT CHECK (status IN ('PENDING', 'APPROVED', 'COMPLETED')),
            request TEXT CHECK (request IN ('APPROVED', 'PENDING')),
            total_price REAL NOT NULL,
            payment_status TEXT CHECK (payment_status IN ('PENDING', 'COMPLETED', 'FAILED', 'PROCESSED', 'CANCELLED')),
            user_id TEXT NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
            vendor_id TEXT NOT NULL REFERENCES vendors(id) ON DELETE RESTRICT,
            item_id TEXT REFERENCES items(id) ON DELETE SET NULL,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS payments (
            id TEXT PRIMARY KEY,
            paid_amount REAL NOT NULL,
            debit REAL NOT NULL,
            credit REAL NOT NULL,
            reason TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'PENDING' CHECK (status IN ('PENDING', 'COMPLETED', 'FAILED', 'PROCESSED', 'CANCELLED')),
            method TEXT CHECK (method IN ('CARD', 'TRANSFER', 'WALLET')),
            user_id TEXT NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
            booking_id TEXT UNIQUE REFERENCES bookings(id) ON DELETE SET NULL,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,

		`CREATE INDEX IF NOT EXISTS idx_items_vendor_id ON items(vendor_id)`,
		`CREATE INDEX IF NOT EXISTS idx_items_category_id ON items(category_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_user_id ON reviews(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_item_id ON reviews(item_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_vendor_id ON reviews(vendor_id)`,
		`CREATE INDEX IF NOT EXISTS idx_saved_items_item_id ON saved_items(item_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_user_id ON bookings(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_vendor_id ON bookings(vendor_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_item_id ON bookings(item_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_start_date ON bookings(start_date)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_user_id ON payments(user_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}
