package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"cost-control-api/internal/secrets"
)

// Source describes where connection settings come from. A literal DSN wins
// over a secret reference.
type Source struct {
	DSN          string
	SecretRef    string
	HostOverride string // RDS proxy endpoint
	SSLMode      string
	Secrets      *secrets.Cache

	MaxOpenConns int
	MaxIdleConns int
	PingTimeout  time.Duration
}

func (s Source) Resolve(ctx context.Context) (string, error) {
	if s.DSN != "" {
		return s.DSN, nil
	}
	if s.SecretRef == "" {
		return "", errors.New("no database DSN or secret reference configured")
	}
	if s.Secrets == nil {
		return "", errors.New("secret reference configured without a secrets cache")
	}
	creds, err := s.Secrets.DBCredentials(ctx, s.SecretRef)
	if err != nil {
		return "", err
	}
	return BuildDSN(creds, s.HostOverride, s.SSLMode), nil
}

// BuildDSN renders credentials as a postgres URL.
func BuildDSN(creds secrets.DBCredentials, hostOverride, sslMode string) string {
	host := creds.Host
	if hostOverride != "" {
		host = hostOverride
	}
	port := creds.Port.String()
	if port == "" {
		port = "5432"
	}
	if sslMode == "" {
		sslMode = "require"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(creds.Username, creds.Password),
		Host:     net.JoinHostPort(host, port),
		Path:     "/" + creds.Name(),
		RawQuery: url.Values{"sslmode": []string{sslMode}}.Encode(),
	}
	return u.String()
}

// Opener returns an OpenFunc that resolves the source, opens a pgx-backed
// handle and pings it.
func Opener(src Source) OpenFunc {
	return func(ctx context.Context) (*sql.DB, error) {
		dsn, err := src.Resolve(ctx)
		if err != nil {
			return nil, err
		}
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, err
		}
		if src.MaxOpenConns > 0 {
			db.SetMaxOpenConns(src.MaxOpenConns)
		}
		if src.MaxIdleConns > 0 {
			db.SetMaxIdleConns(src.MaxIdleConns)
		}
		db.SetConnMaxIdleTime(5 * time.Minute)

		timeout := src.PingTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping: %w", err)
		}
		return db, nil
	}
}
