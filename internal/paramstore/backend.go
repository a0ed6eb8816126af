// Package paramstore is the generic encrypted key/value layer the control
// plane keeps agent configuration in.
//
// A Backend speaks to one concrete store (AWS SSM Parameter Store, Vault
// KVv2, or the in-memory map used for local runs and tests). Store wraps a
// Backend with the typed operations the rest of the control plane uses:
// secure-by-default writes, not-found-as-value reads, JSON helpers, fully
// paginated prefix listings and idempotent deletes.
package paramstore

import (
	"context"
	"fmt"

	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/pkg/models"
)

// Backend is implemented by each concrete parameter store.
type Backend interface {
	// Kind returns the backend identifier ("memory", "ssm", "vault").
	Kind() string

	// Put writes a record, overwriting any previous value.
	Put(ctx context.Context, rec models.ParameterRecord) error

	// Get returns the record at path, or *NotFoundError.
	Get(ctx context.Context, path string, decrypt bool) (*models.ParameterRecord, error)

	// Delete removes the record at path, or returns *NotFoundError.
	Delete(ctx context.Context, path string) error

	// ListPage returns one page of metadata for paths starting with prefix.
	// An empty token requests the first page.
	ListPage(ctx context.Context, prefix, token string) (*Page, error)
}

// Page is one page of a prefix listing.
type Page struct {
	Items     []models.ParameterMetadata
	NextToken string
}

// ── Errors ──────────────────────────────────────────────────

// NotFoundError is returned when a parameter does not exist.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return "parameter not found: " + e.Path
}

// TransientError wraps a store transport failure that is safe to retry
// (throttling, timeouts, 5xx).
type TransientError struct {
	Op   string
	Path string
	Err  error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("parameter store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// FormatError means a stored value was expected to be JSON and was not.
// It points at store corruption and is never papered over with a default.
type FormatError struct {
	Path string
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("parameter %s holds invalid JSON: %v", e.Path, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }
