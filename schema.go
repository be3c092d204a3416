package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
        user_id SERIAL PRIMARY KEY,
        username VARCHAR(30) NOT NULL UNIQUE,
        password CHAR(64) NOT NULL,
        full_name VARCHAR(200) NOT NULL,
        food INT DEFAULT 0,
        shopping INT DEFAULT 0,
        travel INT DEFAULT 0,
        bills INT DEFAULT 0,
        other INT DEFAULT 0
    );`,
	`CREATE INDEX IF NOT EXISTS idx_users_username ON users (username);`,
	`CREATE TABLE IF NOT EXISTS expenses (
        expense_id SERIAL PRIMARY KEY,
        user_id INT NOT NULL REFERENCES users (user_id) ON DELETE CASCADE,
        title VARCHAR(50) NOT NULL,
        amount INT NOT NULL,
        category VARCHAR(25) NOT NULL,
        notes VARCHAR(200),
        date_created TIMESTAMPTZ NOT NULL DEFAULT now()
    );`,
	`CREATE INDEX IF NOT EXISTS idx_expenses_user_id ON expenses (user_id);`,
	`CREATE INDEX IF NOT EXISTS idx_expenses_date_created ON expenses (date_created);`,
}

// ensureDatabase creates the target database named in connStr if it does
// not exist yet, going through the maintenance database. Safe to re-run.
func ensureDatabase(ctx context.Context, connStr string) error {
	cfg, err := pgx.ParseConfig(connStr)
	if err != nil {
		return fmt.Errorf("invalid database URL: %w", err)
	}

	dbName := cfg.Database
	cfg.Database = "postgres"

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("unable to reach database server: %w", err)
	}
	defer conn.Close(ctx)

	var exists bool
	err = conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, dbName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check for database %q: %w", dbName, err)
	}
	if exists {
		return nil
	}

	// CREATE DATABASE cannot be parameterized.
	_, err = conn.Exec(ctx, fmt.Sprintf(`CREATE DATABASE %s`, pgx.Identifier{dbName}.Sanitize()))
	if err != nil {
		return fmt.Errorf("failed to create database %q: %w", dbName, err)
	}

	return nil
}

// Init creates the tables and indexes if they do not exist yet. Re-running
// it on an existing schema is a no-op.
func (p *PostgresStore) Init(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}
