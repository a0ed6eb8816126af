// Package templates supplies the stack template blob and the trusted
// container image reference an agent stack is built from.
//
// Template generation itself lives outside the control plane; this package
// only fetches what that layer published: the blob from a directory or an
// S3 bucket, and the image URI from the parameter store at
// /{project_name}/agent/image-uri.
package templates

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/paramstore"
	"github.com/rs/zerolog/log"
)

// BlobLoader fetches a template blob by key.
type BlobLoader interface {
	Load(ctx context.Context, key string) ([]byte, error)
}

// ImageURIPath returns the parameter path holding the trusted image URI.
func ImageURIPath(projectName string) string {
	return paramstore.JoinPath(projectName, "agent", "image-uri")
}

// Source implements contracts.TemplateSource on top of a BlobLoader and the
// parameter store.
type Source struct {
	loader      BlobLoader
	params      *paramstore.Store
	projectName string
}

// NewSource creates a template source.
func NewSource(loader BlobLoader, params *paramstore.Store, projectName string) *Source {
	return &Source{loader: loader, params: params, projectName: projectName}
}

// Template returns the template blob stored under key.
func (s *Source) Template(ctx context.Context, key string) ([]byte, error) {
	body, err := s.loader.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load template %q: %w", key, err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("template %q is empty", key)
	}
	return body, nil
}

// TrustedImageURI returns the published image URI, or an empty string when
// none has been published yet. Callers decide whether that is fatal.
func (s *Source) TrustedImageURI(ctx context.Context) (string, error) {
	path := ImageURIPath(s.projectName)
	uri, found, err := s.params.Get(ctx, path)
	if err != nil {
		return "", fmt.Errorf("read trusted image uri: %w", err)
	}
	if !found {
		log.Warn().Str("path", path).Msg("Trusted image URI not published")
		return "", nil
	}
	return strings.TrimSpace(uri), nil
}

// ── File loader ─────────────────────────────────────────────

// FileLoader reads templates from a local directory.
type FileLoader struct {
	Dir string
}

// Load reads Dir/key. Keys may not escape Dir.
func (l FileLoader) Load(_ context.Context, key string) ([]byte, error) {
	clean := filepath.Clean("/" + key)
	path := filepath.Join(l.Dir, clean)
	return os.ReadFile(path)
}
