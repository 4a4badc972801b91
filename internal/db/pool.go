package db

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool lazily creates a pgx pool from the same Source as the Client. Bulk
// jobs such as spreadsheet imports use it for savepoint-heavy transactions.
type Pool struct {
	src Source

	mu   sync.Mutex
	pool *pgxpool.Pool
}

func NewPool(src Source) *Pool {
	return &Pool{src: src}
}

func (p *Pool) Get(ctx context.Context) (*pgxpool.Pool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pool != nil {
		return p.pool, nil
	}
	dsn, err := p.src.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	if p.src.MaxOpenConns > 0 {
		cfg.MaxConns = int32(p.src.MaxOpenConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	p.pool = pool
	return pool, nil
}

func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool != nil {
		p.pool.Close()
		p.pool = nil
	}
}
