package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
)

const vaultScheme = "vault://"

// VaultProvider reads KV v2 secrets. A reference looks like
// vault://<mount>/<path>; the secret's data map is returned as JSON.
type VaultProvider struct {
	client *api.Client
}

func NewVaultProvider(address, token string) (*VaultProvider, error) {
	config := api.DefaultConfig()
	if address != "" {
		config.Address = address
	}
	config.HttpClient = &http.Client{Timeout: 30 * time.Second}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if token != "" {
		client.SetToken(token)
	}
	return &VaultProvider{client: client}, nil
}

// kvPath maps vault://mount/some/path to mount/data/some/path.
func kvPath(ref string) (string, error) {
	rest := strings.Trim(strings.TrimPrefix(ref, vaultScheme), "/")
	mount, path, ok := strings.Cut(rest, "/")
	if !ok || mount == "" || path == "" {
		return "", fmt.Errorf("invalid vault reference %q: want vault://<mount>/<path>", ref)
	}
	return mount + "/data/" + path, nil
}

func (p *VaultProvider) GetSecret(ctx context.Context, ref string) ([]byte, error) {
	path, err := kvPath(ref)
	if err != nil {
		return nil, err
	}

	secret, err := p.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid data format in Vault response for %s", path)
	}
	return json.Marshal(data)
}
