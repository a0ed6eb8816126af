package paramstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/pkg/models"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("agent-orchestrator/paramstore")

// AdvancedTierThreshold is the largest value (in bytes) the standard tier
// accepts. Larger values are written to the advanced tier.
const AdvancedTierThreshold = 4096

// Store is the typed parameter store adapter. It holds no cache: every read
// goes to the backend, so writes are visible to the next read.
type Store struct {
	backend    Backend
	maxRetries uint64
	retryBase  time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithRetry sets how many times a TransientError is retried and the base
// delay of the exponential backoff. maxRetries == 0 disables retries.
func WithRetry(maxRetries uint64, base time.Duration) Option {
	return func(s *Store) {
		s.maxRetries = maxRetries
		s.retryBase = base
	}
}

// New wraps a backend.
func New(b Backend, opts ...Option) *Store {
	s := &Store{
		backend:    b,
		maxRetries: 3,
		retryBase:  200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend returns the wrapped backend.
func (s *Store) Backend() Backend { return s.backend }

// do runs fn in a span, retrying it while it fails with a *TransientError.
// A missing parameter is not recorded as a span error.
func (s *Store) do(ctx context.Context, op, path string, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "paramstore."+op, trace.WithAttributes(
		attribute.String("param.path", path),
		attribute.String("param.backend", s.backend.Kind()),
	))
	defer span.End()

	err := s.retry(ctx, op, path, fn)
	var nf *NotFoundError
	if err != nil && !errors.As(err, &nf) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *Store) retry(ctx context.Context, op, path string, fn func(ctx context.Context) error) error {
	if s.maxRetries == 0 {
		return fn(ctx)
	}
	backoff := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.retryBase))
	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		var te *TransientError
		if errors.As(err, &te) {
			log.Warn().Err(err).Str("op", op).Str("path", path).Int("attempt", attempt).Msg("Transient parameter store error")
			return retry.RetryableError(err)
		}
		return err
	})
}

// ── Put ─────────────────────────────────────────────────────

type putOptions struct {
	plaintext   bool
	description string
}

// PutOption configures a Put.
type PutOption func(*putOptions)

// WithPlaintext stores the value as a plain String. Values are encrypted
// unless this option is given.
func WithPlaintext() PutOption {
	return func(o *putOptions) { o.plaintext = true }
}

// WithDescription attaches a human-readable description to the parameter.
func WithDescription(desc string) PutOption {
	return func(o *putOptions) { o.description = desc }
}

// Put writes value at path, overwriting any previous value.
func (s *Store) Put(ctx context.Context, path, value string, opts ...PutOption) error {
	o := putOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	rec := models.ParameterRecord{
		Path:         path,
		Value:        value,
		Type:         models.ParameterSecureString,
		Tier:         models.TierStandard,
		Description:  o.description,
		LastModified: time.Now().UTC(),
	}
	if o.plaintext {
		rec.Type = models.ParameterString
	}
	if len(value) > AdvancedTierThreshold {
		rec.Tier = models.TierAdvanced
	}
	err := s.do(ctx, "put", path, func(ctx context.Context) error {
		return s.backend.Put(ctx, rec)
	})
	if err != nil {
		return fmt.Errorf("put parameter %s: %w", path, err)
	}
	log.Debug().Str("path", path).Str("type", string(rec.Type)).Str("tier", string(rec.Tier)).Msg("Parameter stored")
	return nil
}

// PutJSON marshals v and stores it encrypted at path.
func (s *Store) PutJSON(ctx context.Context, path string, v any, opts ...PutOption) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal parameter %s: %w", path, err)
	}
	return s.Put(ctx, path, string(data), opts...)
}

// ── Get ─────────────────────────────────────────────────────

type getOptions struct {
	raw bool
}

// GetOption configures a Get.
type GetOption func(*getOptions)

// WithoutDecryption returns SecureString values as stored ciphertext.
func WithoutDecryption() GetOption {
	return func(o *getOptions) { o.raw = true }
}

// Get returns the value at path. A missing parameter is reported as
// found == false with a nil error; only transport failures return an error.
func (s *Store) Get(ctx context.Context, path string, opts ...GetOption) (string, bool, error) {
	o := getOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	var rec *models.ParameterRecord
	err := s.do(ctx, "get", path, func(ctx context.Context) error {
		var err error
		rec, err = s.backend.Get(ctx, path, !o.raw)
		return err
	})
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get parameter %s: %w", path, err)
	}
	return rec.Value, true, nil
}

// GetJSON reads the value at path into v. It returns found == false when the
// parameter is absent and *FormatError when the stored value is not JSON.
func (s *Store) GetJSON(ctx context.Context, path string, v any) (bool, error) {
	raw, found, err := s.Get(ctx, path)
	if err != nil || !found {
		return found, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return true, &FormatError{Path: path, Err: err}
	}
	return true, nil
}

// Exists reports whether a parameter is present at path.
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	_, found, err := s.Get(ctx, path, WithoutDecryption())
	return found, err
}

// ── List / Delete ───────────────────────────────────────────

// ListByPrefix returns metadata for every parameter whose path starts with
// prefix, following the backend's pagination to the last page.
func (s *Store) ListByPrefix(ctx context.Context, prefix string) ([]models.ParameterMetadata, error) {
	var (
		out   []models.ParameterMetadata
		token string
		pages int
	)
	for {
		var page *Page
		err := s.do(ctx, "list", prefix, func(ctx context.Context) error {
			var err error
			page, err = s.backend.ListPage(ctx, prefix, token)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("list parameters under %s: %w", prefix, err)
		}
		pages++
		out = append(out, page.Items...)
		if page.NextToken == "" || page.NextToken == token {
			break
		}
		token = page.NextToken
	}
	log.Debug().Str("prefix", prefix).Int("count", len(out)).Int("pages", pages).Msg("Parameters listed")
	return out, nil
}

// Delete removes the parameter at path. It returns false (and no error) when
// the parameter did not exist.
func (s *Store) Delete(ctx context.Context, path string) (bool, error) {
	err := s.do(ctx, "delete", path, func(ctx context.Context) error {
		return s.backend.Delete(ctx, path)
	})
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, fmt.Errorf("delete parameter %s: %w", path, err)
	}
	return true, nil
}
