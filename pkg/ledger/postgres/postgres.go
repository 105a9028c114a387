// Package postgres provides a PostgreSQL transaction store as an
// alternative to the spreadsheet backend.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/jwojci/budget-agent/pkg/api"
)

//go:embed 001_create_transactions.sql
var migrationSQL string

// Store implements ledger.TransactionStore on PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New connects to the database, runs migrations and returns the store.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	poolConfig.MaxConns = 5
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &Store{pool: pool, logger: logger}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("connected to PostgreSQL")
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, migrationSQL); err != nil {
		return fmt.Errorf("executing migration: %w", err)
	}
	return nil
}

// Transactions returns all stored transactions in insertion order.
func (s *Store) Transactions(ctx context.Context) ([]api.Transaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT occurred_at, description, expense, income, balance, statement_date, category, txn_type
		FROM transactions
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var txs []api.Transaction
	for rows.Next() {
		var tx api.Transaction
		var expense, income, balance string
		if err := rows.Scan(&tx.Time, &tx.Description, &expense, &income, &balance,
			&tx.Date, &tx.Category, &tx.Type); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		if tx.Expense, err = decimal.NewFromString(expense); err != nil {
			return nil, fmt.Errorf("parsing expense: %w", err)
		}
		if tx.Income, err = decimal.NewFromString(income); err != nil {
			return nil, fmt.Errorf("parsing income: %w", err)
		}
		if tx.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("parsing balance: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// Identities returns the identity tuples of all stored transactions.
func (s *Store) Identities(ctx context.Context) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT occurred_at, description, expense, income FROM transactions
	`)
	if err != nil {
		return nil, fmt.Errorf("querying identities: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var tx api.Transaction
		var expense, income string
		if err := rows.Scan(&tx.Time, &tx.Description, &expense, &income); err != nil {
			return nil, fmt.Errorf("scanning identity: %w", err)
		}
		if tx.Expense, err = decimal.NewFromString(expense); err != nil {
			return nil, fmt.Errorf("parsing expense: %w", err)
		}
		if tx.Income, err = decimal.NewFromString(income); err != nil {
			return nil, fmt.Errorf("parsing income: %w", err)
		}
		ids[tx.Identity()] = true
	}
	return ids, rows.Err()
}

// Append inserts the batch in one database transaction. The unique index on
// the identity columns makes replays of the same statement harmless.
func (s *Store) Append(ctx context.Context, txs []api.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	dbTx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer dbTx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, tx := range txs {
		batch.Queue(`
			INSERT INTO transactions (
				occurred_at, description, expense, income, balance, statement_date, category, txn_type
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (occurred_at, description, expense, income) DO NOTHING
		`,
			tx.Time,
			tx.Description,
			tx.Expense.String(),
			tx.Income.String(),
			tx.Balance.String(),
			tx.Date,
			tx.Category,
			tx.Type,
		)
	}

	results := dbTx.SendBatch(ctx, batch)
	for range txs {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("inserting transaction: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("closing batch: %w", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Info("appended transactions", "count", len(txs))
	return nil
}

// likeEscaper neutralizes LIKE metacharacters so keywords match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Recategorize fills category and type on uncategorized transactions whose
// description contains the keyword, case-insensitively.
func (s *Store) Recategorize(ctx context.Context, keyword, category, txType string) (int, error) {
	pattern := "%" + likeEscaper.Replace(keyword) + "%"
	tag, err := s.pool.Exec(ctx, `
		UPDATE transactions
		SET category = $2, txn_type = $3
		WHERE category = '' AND description ILIKE $1
	`, pattern, category, txType)
	if err != nil {
		return 0, fmt.Errorf("recategorizing %q: %w", keyword, err)
	}
	return int(tag.RowsAffected()), nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
