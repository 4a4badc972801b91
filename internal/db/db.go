// Package db owns the process-wide database handle. The handle is opened
// on first use, reused across requests and dropped after a connection-level
// failure so the next request reopens it.
package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Querier is satisfied by *sql.DB, *sql.Tx and *Client.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Store is what handlers need: single statements plus transactions.
type Store interface {
	Querier
	InTx(ctx context.Context, fn func(q Querier) error) error
}

// OpenFunc opens and verifies a new handle.
type OpenFunc func(ctx context.Context) (*sql.DB, error)

type Client struct {
	open OpenFunc
	log  *slog.Logger

	// OnAuthFailure runs when the server rejects our credentials, typically
	// to drop cached secrets after a rotation.
	OnAuthFailure func()

	mu sync.Mutex
	db *sql.DB
}

func NewClient(open OpenFunc, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{open: open, log: log}
}

// DB returns the shared handle, opening it if needed.
func (c *Client) DB(ctx context.Context) (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return c.db, nil
	}
	db, err := c.open(ctx)
	if err != nil {
		c.observe(nil, err)
		return nil, fmt.Errorf("open database: %w", err)
	}
	c.log.Info("database connection established")
	c.db = db
	return db, nil
}

// Invalidate closes and forgets the shared handle.
func (c *Client) Invalidate() {
	c.mu.Lock()
	db := c.db
	c.db = nil
	c.mu.Unlock()
	c.closeHandle(db)
}

// drop forgets failing only while it is still the shared handle. A late
// error from a handle that was already replaced leaves the new one alone.
func (c *Client) drop(failing *sql.DB) bool {
	c.mu.Lock()
	if c.db == nil || c.db != failing {
		c.mu.Unlock()
		return false
	}
	c.db = nil
	c.mu.Unlock()
	c.closeHandle(failing)
	return true
}

func (c *Client) closeHandle(db *sql.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		c.log.Warn("closing invalidated database handle", "err", err)
	}
}

// Close releases the handle. The client may be reused afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

func (c *Client) Ping(ctx context.Context) error {
	db, err := c.DB(ctx)
	if err != nil {
		return err
	}
	return c.observe(db, db.PingContext(ctx))
}

func (c *Client) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	db, err := c.DB(ctx)
	if err != nil {
		return nil, err
	}
	res, err := db.ExecContext(ctx, query, args...)
	return res, c.observe(db, err)
}

func (c *Client) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	db, err := c.DB(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	return rows, c.observe(db, err)
}

// InTx runs fn in a transaction, committing on success and rolling back
// on error or panic.
func (c *Client) InTx(ctx context.Context, fn func(q Querier) error) (err error) {
	db, err := c.DB(ctx)
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return c.observe(db, fmt.Errorf("begin transaction: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			c.log.Error("transaction rollback failed", "err", rbErr)
		}
		return c.observe(db, err)
	}
	if err := tx.Commit(); err != nil {
		return c.observe(db, fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// observe drops db after connection-level failures and passes err through
// unchanged. db is the handle the failing call ran on, nil when opening
// failed.
func (c *Client) observe(db *sql.DB, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case IsAuthError(err):
		c.log.Warn("database rejected credentials", "err", err)
		c.drop(db)
		if c.OnAuthFailure != nil {
			c.OnAuthFailure()
		}
	case IsConnError(err):
		if c.drop(db) {
			c.log.Warn("database connection error, resetting handle", "err", err)
		}
	}
	return err
}

// IsConnError reports failures of the connection itself rather than of a
// statement.
func IsConnError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsAuthError reports invalid_password / invalid_authorization_specification.
func IsAuthError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "28P01" || pgErr.Code == "28000"
	}
	return false
}

// QueryOne scans the first row of query into dest, returning sql.ErrNoRows
// when there is none.
func QueryOne(ctx context.Context, q Querier, query string, args []any, dest ...any) error {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return sql.ErrNoRows
	}
	if err := rows.Scan(dest...); err != nil {
		return err
	}
	return rows.Close()
}
