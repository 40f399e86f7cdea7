package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

const accountsSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	username   VARCHAR(64) PRIMARY KEY,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// Postgres 单表 key-value：username -> JSONB 快照
type Postgres struct {
	db *sql.DB
}

// OpenPostgres 连接并建表
func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, accountsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init accounts schema: %w", err)
	}
	return &Postgres{db: db}, nil
}

var _ Store = (*Postgres)(nil)

func (p *Postgres) Create(ctx context.Context, acc *Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx,
		`INSERT INTO accounts (username, data) VALUES ($1, $2) ON CONFLICT (username) DO NOTHING`,
		acc.Username, data)
	if err != nil {
		return fmt.Errorf("create account %s: %w", acc.Username, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAccountExists
	}
	return nil
}

func (p *Postgres) Load(ctx context.Context, username string) (*Account, error) {
	var data []byte
	err := p.db.QueryRowContext(ctx, `SELECT data FROM accounts WHERE username = $1`, username).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load account %s: %w", username, err)
	}
	var acc Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, fmt.Errorf("decode account %s: %w", username, err)
	}
	return &acc, nil
}

func (p *Postgres) Save(ctx context.Context, acc *Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO accounts (username, data) VALUES ($1, $2)
		ON CONFLICT (username) DO UPDATE SET data = EXCLUDED.data, updated_at = CURRENT_TIMESTAMP`,
		acc.Username, data)
	if err != nil {
		return fmt.Errorf("save account %s: %w", acc.Username, err)
	}
	return nil
}

func (p *Postgres) List(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT username FROM accounts ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (p *Postgres) Close() error { return p.db.Close() }
