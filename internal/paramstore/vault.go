package paramstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/pkg/models"
	vault "github.com/hashicorp/vault/api"
)

// VaultConfig configures the Vault KVv2 backend.
type VaultConfig struct {
	Address   string
	Token     string
	Namespace string
	Mount     string
}

// VaultBackend stores parameters as KVv2 secrets. Each secret holds the
// value plus its type/tier/description so records round-trip unchanged.
// Vault encrypts everything at rest, so decrypt has no effect.
type VaultBackend struct {
	client *vault.Client
	mount  string
}

// NewVaultBackend connects to Vault with token auth.
func NewVaultBackend(cfg VaultConfig) (*VaultBackend, error) {
	address := strings.TrimSpace(cfg.Address)
	if address == "" {
		return nil, fmt.Errorf("vault address is required")
	}
	apiCfg := vault.DefaultConfig()
	apiCfg.Address = address
	client, err := vault.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("create vault client: %w", err)
	}
	if ns := strings.TrimSpace(cfg.Namespace); ns != "" {
		client.SetNamespace(ns)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}
	mount := strings.Trim(strings.TrimSpace(cfg.Mount), "/")
	if mount == "" {
		mount = "secret"
	}
	return &VaultBackend{client: client, mount: mount}, nil
}

func (b *VaultBackend) Kind() string { return "vault" }

func vaultPath(path string) string {
	return strings.Trim(path, "/")
}

func (b *VaultBackend) Put(ctx context.Context, rec models.ParameterRecord) error {
	data := map[string]interface{}{
		"value":       rec.Value,
		"type":        string(rec.Type),
		"tier":        string(rec.Tier),
		"description": rec.Description,
	}
	_, err := b.client.KVv2(b.mount).Put(ctx, vaultPath(rec.Path), data)
	return classifyVaultError("put", rec.Path, err)
}

func (b *VaultBackend) Get(ctx context.Context, path string, _ bool) (*models.ParameterRecord, error) {
	secret, err := b.client.KVv2(b.mount).Get(ctx, vaultPath(path))
	if err != nil {
		return nil, classifyVaultError("get", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, &NotFoundError{Path: path}
	}
	rec := &models.ParameterRecord{
		Path:  path,
		Type:  models.ParameterSecureString,
		Tier:  models.TierStandard,
		Value: stringField(secret.Data, "value"),
	}
	if t := stringField(secret.Data, "type"); t != "" {
		rec.Type = models.ParameterType(t)
	}
	if t := stringField(secret.Data, "tier"); t != "" {
		rec.Tier = models.ParameterTier(t)
	}
	rec.Description = stringField(secret.Data, "description")
	if secret.VersionMetadata != nil {
		rec.LastModified = secret.VersionMetadata.CreatedTime
	}
	return rec, nil
}

// Delete destroys every version of the secret. Vault answers 204 for
// missing metadata, so existence is checked first.
func (b *VaultBackend) Delete(ctx context.Context, path string) error {
	if _, err := b.Get(ctx, path, false); err != nil {
		return err
	}
	err := b.client.KVv2(b.mount).DeleteMetadata(ctx, vaultPath(path))
	return classifyVaultError("delete", path, err)
}

// ListPage walks the metadata tree below the prefix's directory. Vault lists
// are not paginated, so everything comes back in a single page.
func (b *VaultBackend) ListPage(ctx context.Context, prefix, _ string) (*Page, error) {
	dir := ""
	if i := strings.LastIndex(prefix, "/"); i > 0 {
		dir = vaultPath(prefix[:i])
	}
	var paths []string
	if err := b.walk(ctx, dir, prefix, &paths); err != nil {
		return nil, err
	}
	sort.Strings(paths)
	page := &Page{}
	for _, p := range paths {
		page.Items = append(page.Items, models.ParameterMetadata{Path: p, Type: models.ParameterSecureString})
	}
	return page, nil
}

func (b *VaultBackend) walk(ctx context.Context, dir, prefix string, out *[]string) error {
	listPath := b.mount + "/metadata"
	if dir != "" {
		listPath += "/" + dir
	}
	secret, err := b.client.Logical().ListWithContext(ctx, listPath)
	if err != nil {
		return classifyVaultError("list", "/"+dir, err)
	}
	if secret == nil || secret.Data == nil {
		return nil
	}
	rawKeys, _ := secret.Data["keys"].([]interface{})
	for _, raw := range rawKeys {
		name, ok := raw.(string)
		if !ok {
			continue
		}
		full := "/" + name
		if dir != "" {
			full = "/" + dir + "/" + name
		}
		if strings.HasSuffix(name, "/") {
			// Descend only into directories that can hold matching paths.
			if strings.HasPrefix(full, prefix) || strings.HasPrefix(prefix, full) {
				if err := b.walk(ctx, strings.TrimSuffix(vaultPath(full), "/"), prefix, out); err != nil {
					return err
				}
			}
			continue
		}
		if strings.HasPrefix(full, prefix) {
			*out = append(*out, full)
		}
	}
	return nil
}

func stringField(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func classifyVaultError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, vault.ErrSecretNotFound) {
		return &NotFoundError{Path: path}
	}
	var respErr *vault.ResponseError
	if errors.As(err, &respErr) {
		if respErr.StatusCode == 404 {
			return &NotFoundError{Path: path}
		}
		if respErr.StatusCode == 429 || respErr.StatusCode >= 500 {
			return &TransientError{Op: op, Path: path, Err: err}
		}
	}
	return err
}
