package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"resumable-chat/backend/pkg/config"
	"resumable-chat/backend/pkg/logger"

	vault "github.com/hashicorp/vault/api"
)

var ErrSecretNotFound = errors.New("secret not found")

// Keys resolved at startup.
const (
	KeyJWTSecret = "jwt_secret"
	KeyLLMAPIKey = "llm_api_key"
	KeyDBPass    = "db_password"
)

// Manager provides access to secrets.
type Manager interface {
	GetSecret(ctx context.Context, key string) (string, error)
}

// VaultManager reads a KV v2 secret from Vault and falls back to the
// environment (jwt_secret -> JWT_SECRET) for keys Vault does not hold.
type VaultManager struct {
	kv   *vault.KVv2
	path string
	log  *logger.Logger

	mu    sync.RWMutex
	cache map[string]string
}

// NewVaultManager returns an env-only manager when Vault is disabled.
func NewVaultManager(cfg *config.Config, log *logger.Logger) (*VaultManager, error) {
	m := &VaultManager{path: cfg.Vault.SecretPath, log: log, cache: make(map[string]string)}
	if !cfg.Vault.Enabled {
		return m, nil
	}
	if cfg.Vault.Token == "" {
		return nil, errors.New("vault enabled but VAULT_TOKEN is empty")
	}

	vc := vault.DefaultConfig()
	vc.Address = cfg.Vault.Address
	vc.Timeout = 10 * time.Second
	vc.MaxRetries = 3

	client, err := vault.NewClient(vc)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Vault.Token)
	m.kv = client.KVv2(cfg.Vault.Mount)
	return m, nil
}

func (m *VaultManager) GetSecret(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	v, ok := m.cache[key]
	m.mu.RUnlock()
	if ok {
		return v, nil
	}

	if m.kv != nil {
		v, err := m.fromVault(ctx, key)
		switch {
		case err == nil:
			m.store(key, v)
			return v, nil
		case !errors.Is(err, ErrSecretNotFound):
			return "", err
		}
		m.log.Debug("secret not in vault, falling back to environment", "key", key)
	}

	v = os.Getenv(envKey(key))
	if v == "" {
		return "", ErrSecretNotFound
	}
	m.store(key, v)
	return v, nil
}

func (m *VaultManager) fromVault(ctx context.Context, key string) (string, error) {
	secret, err := m.kv.Get(ctx, m.path)
	if err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			return "", ErrSecretNotFound
		}
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", ErrSecretNotFound
	}
	v, ok := secret.Data[key].(string)
	if !ok || v == "" {
		return "", ErrSecretNotFound
	}
	return v, nil
}

func (m *VaultManager) store(key, value string) {
	m.mu.Lock()
	m.cache[key] = value
	m.mu.Unlock()
}

func envKey(key string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))
}

// Apply overwrites the secret-bearing config fields with values from m.
// Missing secrets keep whatever the config already holds.
func Apply(ctx context.Context, m Manager, cfg *config.Config, log *logger.Logger) error {
	targets := map[string]*string{
		KeyJWTSecret: &cfg.JWT.Secret,
		KeyLLMAPIKey: &cfg.LLM.APIKey,
		KeyDBPass:    &cfg.Database.Password,
	}
	for key, dst := range targets {
		v, err := m.GetSecret(ctx, key)
		if errors.Is(err, ErrSecretNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("resolving %s: %w", key, err)
		}
		*dst = v
		log.Debug("secret resolved", "key", key)
	}
	return nil
}
