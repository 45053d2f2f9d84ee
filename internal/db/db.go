package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("product not found")

// DB is the single long-lived handle shared by the poll loop and the
// dispatcher. SQLite serializes writers, so the pool is capped at one
// connection and callers never open their own.
type DB struct {
	sql *sql.DB
}

type Product struct {
	ID          int64
	URL         string
	TargetPrice float64
	UserID      int64
	CreatedAt   time.Time
}

func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", dbPath)
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxOpenConns(1)
	sqldb.SetConnMaxLifetime(0)

	db := &DB{sql: sqldb}
	if err := db.migrate(context.Background()); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) Ping(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id INTEGER PRIMARY KEY,
			url TEXT NOT NULL,
			target_price REAL,
			user_id INTEGER NOT NULL,
			created_at INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_products_user ON products(user_id, id);`,
	}
	for _, s := range stmts {
		if _, err := d.sql.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (d *DB) AddProduct(ctx context.Context, url string, targetPrice float64, userID int64) (Product, error) {
	now := time.Now()
	res, err := d.sql.ExecContext(ctx,
		`INSERT INTO products(url,target_price,user_id,created_at) VALUES(?,?,?,?)`,
		url, targetPrice, userID, now.Unix())
	if err != nil {
		return Product{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Product{}, err
	}
	return Product{
		ID:          id,
		URL:         url,
		TargetPrice: targetPrice,
		UserID:      userID,
		CreatedAt:   time.Unix(now.Unix(), 0),
	}, nil
}

// ListProducts returns every tracked product in insertion order.
func (d *DB) ListProducts(ctx context.Context) ([]Product, error) {
	return d.queryProducts(ctx, `SELECT id,url,COALESCE(target_price,0),user_id,created_at FROM products ORDER BY id ASC`)
}

func (d *DB) ListProductsByUser(ctx context.Context, userID int64) ([]Product, error) {
	return d.queryProducts(ctx, `SELECT id,url,COALESCE(target_price,0),user_id,created_at FROM products WHERE user_id=? ORDER BY id ASC`, userID)
}

func (d *DB) queryProducts(ctx context.Context, q string, args ...any) ([]Product, error) {
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		var p Product
		var created int64
		if err := rows.Scan(&p.ID, &p.URL, &p.TargetPrice, &p.UserID, &created); err != nil {
			return nil, err
		}
		p.CreatedAt = time.Unix(created, 0)
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteProduct removes a product owned by userID. Deleting someone else's
// product, or one that is already gone, yields ErrNotFound.
func (d *DB) DeleteProduct(ctx context.Context, id, userID int64) error {
	res, err := d.sql.ExecContext(ctx, `DELETE FROM products WHERE id=? AND user_id=?`, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *DB) CountProducts(ctx context.Context) (int, error) {
	var c int
	if err := d.sql.QueryRowContext(ctx, `SELECT COUNT(1) FROM products`).Scan(&c); err != nil {
		return 0, err
	}
	return c, nil
}

func (d *DB) CountUsers(ctx context.Context) (int, error) {
	var c int
	if err := d.sql.QueryRowContext(ctx, `SELECT COUNT(DISTINCT user_id) FROM products`).Scan(&c); err != nil {
		return 0, err
	}
	return c, nil
}
