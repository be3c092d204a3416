package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrDuplicateUsername is returned when the unique constraint on
	// users.username rejects an insert.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrNotFound is returned when a lookup or a write matched no rows.
	ErrNotFound = errors.New("not found")
)

type Store interface {
	CreateUser(ctx context.Context, username, passwordDigest, fullName string) (int, error)
	GetUserByCredentials(ctx context.Context, username, passwordDigest string) (*User, error)

	CreateExpense(ctx context.Context, e Expense) (int, error)
	ListExpenses(ctx context.Context, userID int) ([]Expense, error)
	DeleteExpense(ctx context.Context, expenseID int) error

	SetLimits(ctx context.Context, userID int, l Limits) error
	GetLimits(ctx context.Context, userID int) (Limits, error)

	GetStats(ctx context.Context, userID int) (Stats, error)
	GetCategoryTotals(ctx context.Context, userID int) ([]CategoryTotal, error)
	CategorySpent(ctx context.Context, userID int, category string) (int, error)
}

// PostgresStore issues every operation as a single statement on a pgx pool,
// so each request checks a connection out for the duration of one query and
// the pool reclaims it on every exit path.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Close() {
	p.pool.Close()
}

func (p *PostgresStore) CreateUser(ctx context.Context, username, passwordDigest, fullName string) (int, error) {
	query := `
        INSERT INTO users (username, password, full_name)
        VALUES ($1, $2, $3)
        RETURNING user_id;
    `

	var userID int
	err := p.pool.QueryRow(ctx, query, username, passwordDigest, fullName).Scan(&userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateUsername
		}
		return 0, fmt.Errorf("failed to create user: %w", err)
	}

	return userID, nil
}

// GetUserByCredentials matches username and digest in one query, so a wrong
// username and a wrong password are indistinguishable to the caller.
func (p *PostgresStore) GetUserByCredentials(ctx context.Context, username, passwordDigest string) (*User, error) {
	query := `
        SELECT user_id, username, full_name
        FROM users
        WHERE username = $1 AND password = $2;
    `

	var user User
	err := p.pool.QueryRow(ctx, query, username, passwordDigest).Scan(&user.ID, &user.Username, &user.FullName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	return &user, nil
}

func (p *PostgresStore) CreateExpense(ctx context.Context, e Expense) (int, error) {
	query := `
        INSERT INTO expenses (user_id, title, amount, category, notes)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING expense_id;
    `

	var expenseID int
	err := p.pool.QueryRow(ctx, query, e.UserID, e.Title, e.Amount, e.Category, e.Notes).Scan(&expenseID)
	if err != nil {
		return 0, fmt.Errorf("failed to create expense: %w", err)
	}

	return expenseID, nil
}

func (p *PostgresStore) ListExpenses(ctx context.Context, userID int) ([]Expense, error) {
	query := `
        SELECT expense_id, user_id, title, amount, category, notes, date_created
        FROM expenses
        WHERE user_id = $1
        ORDER BY date_created DESC;
    `

	rows, err := p.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses for user %d: %w", userID, err)
	}
	defer rows.Close()

	expenses := []Expense{}
	for rows.Next() {
		var e Expense
		err := rows.Scan(&e.ID, &e.UserID, &e.Title, &e.Amount, &e.Category, &e.Notes, &e.DateCreated)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return expenses, nil
}

func (p *PostgresStore) DeleteExpense(ctx context.Context, expenseID int) error {
	query := `
        DELETE FROM expenses
        WHERE expense_id = $1;
    `

	result, err := p.pool.Exec(ctx, query, expenseID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (p *PostgresStore) SetLimits(ctx context.Context, userID int, l Limits) error {
	query := `
        UPDATE users
        SET food = $1, travel = $2, shopping = $3, bills = $4, other = $5
        WHERE user_id = $6;
    `

	cmdTag, err := p.pool.Exec(ctx, query, l.Food, l.Travel, l.Shopping, l.Bills, l.Other, userID)
	if err != nil {
		return fmt.Errorf("failed to set spending limits: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (p *PostgresStore) GetLimits(ctx context.Context, userID int) (Limits, error) {
	query := `
        SELECT COALESCE(food, 0), COALESCE(travel, 0), COALESCE(shopping, 0),
               COALESCE(bills, 0), COALESCE(other, 0)
        FROM users
        WHERE user_id = $1;
    `

	var l Limits
	err := p.pool.QueryRow(ctx, query, userID).Scan(&l.Food, &l.Travel, &l.Shopping, &l.Bills, &l.Other)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Limits{}, ErrNotFound
		}
		return Limits{}, fmt.Errorf("failed to retrieve limits: %w", err)
	}

	return l, nil
}

// GetStats aggregates a user's expenses in one query. Every aggregate is
// coalesced to 0 so a user with no expenses reads back as all zeros.
func (p *PostgresStore) GetStats(ctx context.Context, userID int) (Stats, error) {
	query := `
        SELECT COUNT(*),
               COALESCE(SUM(amount), 0)::float8,
               COALESCE(MIN(amount), 0)::float8,
               COALESCE(MAX(amount), 0)::float8,
               COALESCE(AVG(amount), 0)::float8
        FROM expenses
        WHERE user_id = $1;
    `

	var s Stats
	err := p.pool.QueryRow(ctx, query, userID).Scan(&s.Count, &s.Total, &s.Minimum, &s.Maximum, &s.Average)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to compute statistics: %w", err)
	}

	return s, nil
}

func (p *PostgresStore) GetCategoryTotals(ctx context.Context, userID int) ([]CategoryTotal, error) {
	query := `
        SELECT category, SUM(amount)
        FROM expenses
        WHERE user_id = $1
        GROUP BY category;
    `

	rows, err := p.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute category totals: %w", err)
	}
	defer rows.Close()

	totals := []CategoryTotal{}
	for rows.Next() {
		var ct CategoryTotal
		if err := rows.Scan(&ct.Category, &ct.Total); err != nil {
			return nil, fmt.Errorf("failed to scan category total: %w", err)
		}
		totals = append(totals, ct)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return totals, nil
}

func (p *PostgresStore) CategorySpent(ctx context.Context, userID int, category string) (int, error) {
	query := `
        SELECT COALESCE(SUM(amount), 0)
        FROM expenses
        WHERE user_id = $1 AND LOWER(category) = LOWER($2);
    `

	var spent int
	err := p.pool.QueryRow(ctx, query, userID, category).Scan(&spent)
	if err != nil {
		return 0, fmt.Errorf("failed to sum category spend: %w", err)
	}

	return spent, nil
}
