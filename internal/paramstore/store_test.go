package paramstore_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/paramstore"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/pkg/models"
)

func newTestStore(t *testing.T, opts ...paramstore.MemoryOption) (*paramstore.Store, *paramstore.MemoryBackend) {
	t.Helper()
	b := paramstore.NewMemoryBackend(opts...)
	t.Cleanup(func() { b.Close() })
	return paramstore.New(b, paramstore.WithRetry(2, time.Millisecond)), b
}

// flakyBackend fails the first n calls of every operation with a TransientError.
type flakyBackend struct {
	*paramstore.MemoryBackend
	failures int
	calls    int
	err      error
}

func (f *flakyBackend) Get(ctx context.Context, path string, decrypt bool) (*models.ParameterRecord, error) {
	f.calls++
	if f.calls <= f.failures {
		if f.err != nil {
			return nil, f.err
		}
		return nil, &paramstore.TransientError{Op: "get", Path: path, Err: errors.New("throttled")}
	}
	return f.MemoryBackend.Get(ctx, path, decrypt)
}

func TestPutGet_EncryptedByDefault(t *testing.T) {
	s, b := newTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "/agent/a/config", "hello"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	rec, err := b.Get(ctx, "/agent/a/config", true)
	if err != nil {
		t.Fatalf("backend Get() error = %v", err)
	}
	if rec.Type != models.ParameterSecureString {
		t.Errorf("Type = %q, want %q", rec.Type, models.ParameterSecureString)
	}

	got, found, err := s.Get(ctx, "/agent/a/config")
	if err != nil || !found {
		t.Fatalf("Get() = %q, %v, %v", got, found, err)
	}
	if got != "hello" {
		t.Errorf("Get() = %q, want %q", got, "hello")
	}

	raw, _, _ := s.Get(ctx, "/agent/a/config", paramstore.WithoutDecryption())
	if raw == "hello" {
		t.Error("Get(WithoutDecryption) returned plaintext for a SecureString")
	}
}

func TestPut_PlaintextAndTier(t *testing.T) {
	s, b := newTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "/p/plain", "x", paramstore.WithPlaintext(), paramstore.WithDescription("d")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	rec, _ := b.Get(ctx, "/p/plain", true)
	if rec.Type != models.ParameterString {
		t.Errorf("Type = %q, want String", rec.Type)
	}
	if rec.Description != "d" {
		t.Errorf("Description = %q, want %q", rec.Description, "d")
	}

	big := strings.Repeat("x", paramstore.AdvancedTierThreshold+1)
	if err := s.Put(ctx, "/p/big", big); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	rec, _ = b.Get(ctx, "/p/big", true)
	if rec.Tier != models.TierAdvanced {
		t.Errorf("Tier = %q, want Advanced", rec.Tier)
	}
}

func TestGet_MissingIsNotAnError(t *testing.T) {
	s, _ := newTestStore(t)
	got, found, err := s.Get(context.Background(), "/nope")
	if err != nil {
		t.Fatalf("Get() error = %v, want nil", err)
	}
	if found || got != "" {
		t.Errorf("Get() = %q, %v; want empty, false", got, found)
	}
}

func TestGetJSON(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.PutJSON(ctx, "/j/ok", map[string]string{"a": "b"}); err != nil {
		t.Fatalf("PutJSON() error = %v", err)
	}
	var m map[string]string
	found, err := s.GetJSON(ctx, "/j/ok", &m)
	if err != nil || !found {
		t.Fatalf("GetJSON() = %v, %v", found, err)
	}
	if m["a"] != "b" {
		t.Errorf("GetJSON() = %v", m)
	}

	found, err = s.GetJSON(ctx, "/j/missing", &m)
	if err != nil || found {
		t.Errorf("GetJSON(missing) = %v, %v; want false, nil", found, err)
	}

	_ = s.Put(ctx, "/j/bad", "{not json")
	_, err = s.GetJSON(ctx, "/j/bad", &m)
	var fe *paramstore.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("GetJSON(corrupt) error = %v, want *FormatError", err)
	}
	if fe.Path != "/j/bad" {
		t.Errorf("FormatError.Path = %q", fe.Path)
	}
}

func TestDelete_Idempotent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	_ = s.Put(ctx, "/d/x", "1")

	deleted, err := s.Delete(ctx, "/d/x")
	if err != nil || !deleted {
		t.Fatalf("Delete() = %v, %v; want true, nil", deleted, err)
	}
	deleted, err = s.Delete(ctx, "/d/x")
	if err != nil || deleted {
		t.Errorf("second Delete() = %v, %v; want false, nil", deleted, err)
	}
}

func TestListByPrefix_FollowsEveryPage(t *testing.T) {
	s, _ := newTestStore(t, paramstore.WithPageSize(2))
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		_ = s.Put(ctx, fmt.Sprintf("/agent/a/p%d", i), "v")
	}
	_ = s.Put(ctx, "/agent/b/config", "v")

	got, err := s.ListByPrefix(ctx, "/agent/a/")
	if err != nil {
		t.Fatalf("ListByPrefix() error = %v", err)
	}
	if len(got) != 7 {
		t.Errorf("ListByPrefix() returned %d items, want 7", len(got))
	}
	for _, md := range got {
		if !strings.HasPrefix(md.Path, "/agent/a/") {
			t.Errorf("unexpected path %q", md.Path)
		}
	}
}

func TestTransientErrorsAreRetried(t *testing.T) {
	mem := paramstore.NewMemoryBackend()
	t.Cleanup(func() { mem.Close() })
	flaky := &flakyBackend{MemoryBackend: mem, failures: 2}
	s := paramstore.New(flaky, paramstore.WithRetry(3, time.Millisecond))
	ctx := context.Background()
	_ = s.Put(ctx, "/r/x", "v")

	got, found, err := s.Get(ctx, "/r/x")
	if err != nil || !found || got != "v" {
		t.Fatalf("Get() = %q, %v, %v; want v, true, nil", got, found, err)
	}
	if flaky.calls != 3 {
		t.Errorf("backend calls = %d, want 3", flaky.calls)
	}
}

func TestTransientErrorsSurfaceAfterRetries(t *testing.T) {
	mem := paramstore.NewMemoryBackend()
	t.Cleanup(func() { mem.Close() })
	flaky := &flakyBackend{MemoryBackend: mem, failures: 10}
	s := paramstore.New(flaky, paramstore.WithRetry(2, time.Millisecond))

	_, _, err := s.Get(context.Background(), "/r/x")
	var te *paramstore.TransientError
	if !errors.As(err, &te) {
		t.Fatalf("Get() error = %v, want *TransientError", err)
	}
	if flaky.calls != 3 {
		t.Errorf("backend calls = %d, want 3", flaky.calls)
	}
}

func TestPermanentErrorsAreNotRetried(t *testing.T) {
	mem := paramstore.NewMemoryBackend()
	t.Cleanup(func() { mem.Close() })
	flaky := &flakyBackend{MemoryBackend: mem, failures: 10, err: errors.New("access denied")}
	s := paramstore.New(flaky, paramstore.WithRetry(3, time.Millisecond))

	if _, _, err := s.Get(context.Background(), "/r/x"); err == nil {
		t.Fatal("Get() error = nil, want access denied")
	}
	if flaky.calls != 1 {
		t.Errorf("backend calls = %d, want 1", flaky.calls)
	}
}

func TestMemorySnapshotSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	b := paramstore.NewMemoryBackend(paramstore.WithSnapshot(dir))
	s := paramstore.New(b)
	_ = s.Put(ctx, "/agent/a/config", `{"agent_name":"a"}`)
	b.Close()

	b2 := paramstore.NewMemoryBackend(paramstore.WithSnapshot(dir))
	defer b2.Close()
	got, found, err := paramstore.New(b2).Get(ctx, "/agent/a/config")
	if err != nil || !found {
		t.Fatalf("Get() after restart = %v, %v", found, err)
	}
	if got != `{"agent_name":"a"}` {
		t.Errorf("Get() after restart = %q", got)
	}
}
