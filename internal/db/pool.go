package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoDatabase is returned by every query when no pool is configured
var ErrNoDatabase = errors.New("database not available")

// Pool is the global database connection pool
var Pool *pgxpool.Pool

// Init initializes the database connection pool and makes sure the reports
// table exists
func Init() error {
	databaseURL, err := databaseURLFromEnv()
	if err != nil {
		// No database configured - reports are returned but not kept
		log.Println("No database configuration found - reports will not be persisted")
		return err
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pool settings optimized for PgBouncer
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 1 * time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	Pool = pool
	if err := EnsureSchema(ctx); err != nil {
		return err
	}

	log.Println("Database connection pool initialized successfully")
	return nil
}

// databaseURLFromEnv reads DATABASE_URL or builds one from DB_* variables
func databaseURLFromEnv() (string, error) {
	if u := os.Getenv("DATABASE_URL"); u != "" {
		return u, nil
	}

	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	user := os.Getenv("DB_USER")
	password := os.Getenv("DB_PASSWORD")
	dbname := os.Getenv("DB_NAME")

	if host == "" || user == "" || dbname == "" {
		return "", fmt.Errorf("no database configuration")
	}
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=disable",
		user, password, host, port, dbname), nil
}

// Close closes the database connection pool
func Close() {
	if Pool != nil {
		Pool.Close()
		Pool = nil
		log.Println("Database connection pool closed")
	}
}

// Available reports whether a pool is configured
func Available() bool {
	return Pool != nil
}
