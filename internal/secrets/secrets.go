// Package secrets resolves database credentials from a secret store and
// caches them for the life of the process.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var ErrNotFound = errors.New("secret not found")

// Provider fetches the raw secret document for a reference.
type Provider interface {
	GetSecret(ctx context.Context, ref string) ([]byte, error)
}

// DBCredentials is the secret document shape used for database access.
// Both "dbname" and "database" are accepted for the database name.
type DBCredentials struct {
	Host     string      `json:"host"`
	Port     json.Number `json:"port"`
	DBName   string      `json:"dbname"`
	Database string      `json:"database"`
	Username string      `json:"username"`
	Password string      `json:"password"`
}

func (c DBCredentials) Name() string {
	if c.DBName != "" {
		return c.DBName
	}
	return c.Database
}

func ParseDBCredentials(raw []byte) (DBCredentials, error) {
	var c DBCredentials
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("decode database secret: %w", err)
	}
	if c.Host == "" || c.Username == "" || c.Name() == "" {
		return c, errors.New("database secret must contain host, username and dbname")
	}
	return c, nil
}

// Cache memoizes provider results per reference until Clear is called.
type Cache struct {
	provider Provider

	mu     sync.Mutex
	values map[string][]byte
}

func NewCache(p Provider) *Cache {
	return &Cache{provider: p, values: map[string][]byte{}}
}

func (c *Cache) Get(ctx context.Context, ref string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.values[ref]; ok {
		return v, nil
	}
	v, err := c.provider.GetSecret(ctx, ref)
	if err != nil {
		return nil, err
	}
	c.values[ref] = v
	return v, nil
}

// DBCredentials fetches and decodes a database secret.
func (c *Cache) DBCredentials(ctx context.Context, ref string) (DBCredentials, error) {
	raw, err := c.Get(ctx, ref)
	if err != nil {
		return DBCredentials{}, err
	}
	return ParseDBCredentials(raw)
}

// Clear drops every cached value so the next Get refetches.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.values = map[string][]byte{}
	c.mu.Unlock()
}

// Router sends vault:// references to the Vault provider and everything
// else to the AWS provider.
type Router struct {
	AWS   Provider
	Vault Provider
}

func (r Router) GetSecret(ctx context.Context, ref string) ([]byte, error) {
	if strings.HasPrefix(ref, vaultScheme) {
		if r.Vault == nil {
			return nil, fmt.Errorf("no vault provider configured for %s", ref)
		}
		return r.Vault.GetSecret(ctx, ref)
	}
	if r.AWS == nil {
		return nil, fmt.Errorf("no AWS provider configured for %s", ref)
	}
	return r.AWS.GetSecret(ctx, ref)
}
