package paramstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/pkg/models"
	"github.com/rs/zerolog/log"
)

// DefaultMemoryPageSize matches the page size of the SSM DescribeParameters
// API so pagination bugs show up locally too.
const DefaultMemoryPageSize = 50

// MemoryBackend implements Backend with an in-memory map.
// Used for local runs and tests. Supports an optional JSON snapshot file so
// parameters survive restarts.
type MemoryBackend struct {
	mu       sync.RWMutex
	params   map[string]*models.ParameterRecord // key: path
	pageSize int

	// Persistence
	snapshotPath string        // empty = no persistence
	saveMu       sync.Mutex    // guards file writes
	saveCh       chan struct{} // debounce channel
	doneCh       chan struct{} // signals the save loop to stop
}

// MemoryOption configures a MemoryBackend.
type MemoryOption func(*MemoryBackend)

// WithPageSize overrides the listing page size.
func WithPageSize(n int) MemoryOption {
	return func(m *MemoryBackend) {
		if n > 0 {
			m.pageSize = n
		}
	}
}

// WithSnapshot persists parameters to a JSON file in dir.
func WithSnapshot(dir string) MemoryOption {
	return func(m *MemoryBackend) {
		if dir == "" {
			return
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("Cannot create data dir, persistence disabled")
			return
		}
		m.snapshotPath = filepath.Join(dir, "parameters.json")
	}
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend(opts ...MemoryOption) *MemoryBackend {
	m := &MemoryBackend{
		params:   make(map[string]*models.ParameterRecord),
		pageSize: DefaultMemoryPageSize,
		saveCh:   make(chan struct{}, 1),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.snapshotPath != "" {
		m.loadSnapshot()
		go m.saveLoop()
	}
	log.Info().Str("snapshot", m.snapshotPath).Int("page_size", m.pageSize).Msg("Memory parameter backend configured")
	return m
}

func (m *MemoryBackend) Kind() string { return "memory" }

func (m *MemoryBackend) Put(_ context.Context, rec models.ParameterRecord) error {
	if rec.LastModified.IsZero() {
		rec.LastModified = time.Now().UTC()
	}
	m.mu.Lock()
	m.params[rec.Path] = &rec
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryBackend) Get(_ context.Context, path string, decrypt bool) (*models.ParameterRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.params[path]
	if !ok {
		return nil, &NotFoundError{Path: path}
	}
	out := *rec
	if !decrypt && out.Type == models.ParameterSecureString {
		// Opaque stand-in for ciphertext.
		out.Value = base64.StdEncoding.EncodeToString([]byte(out.Value))
	}
	return &out, nil
}

func (m *MemoryBackend) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	if _, ok := m.params[path]; !ok {
		m.mu.Unlock()
		return &NotFoundError{Path: path}
	}
	delete(m.params, path)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

// ListPage pages through matching paths in lexical order. The token is the
// last path of the previous page.
func (m *MemoryBackend) ListPage(_ context.Context, prefix, token string) (*Page, error) {
	m.mu.RLock()
	paths := make([]string, 0, len(m.params))
	for p := range m.params {
		if strings.HasPrefix(p, prefix) && p > token {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	page := &Page{}
	for i, p := range paths {
		if i == m.pageSize {
			page.NextToken = page.Items[len(page.Items)-1].Path
			break
		}
		rec := m.params[p]
		page.Items = append(page.Items, models.ParameterMetadata{
			Path:         rec.Path,
			Type:         rec.Type,
			LastModified: rec.LastModified,
		})
	}
	m.mu.RUnlock()
	return page, nil
}

// Len returns the number of stored parameters.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.params)
}

// Close stops the save loop and forces a final snapshot write.
// Safe to call multiple times.
func (m *MemoryBackend) Close() error {
	select {
	case <-m.doneCh:
		return nil
	default:
		close(m.doneCh)
	}
	if m.snapshotPath != "" {
		m.saveSnapshot()
	}
	return nil
}

// ── Persistence ─────────────────────────────────────────────

// requestSave signals the save loop. Non-blocking: rapid writes coalesce into
// one disk flush.
func (m *MemoryBackend) requestSave() {
	if m.snapshotPath == "" {
		return
	}
	select {
	case m.saveCh <- struct{}{}:
	default:
	}
}

func (m *MemoryBackend) saveLoop() {
	for {
		select {
		case <-m.doneCh:
			return
		case <-m.saveCh:
			time.Sleep(500 * time.Millisecond) // debounce
			m.saveSnapshot()
		}
	}
}

func (m *MemoryBackend) saveSnapshot() {
	m.mu.RLock()
	data, err := json.MarshalIndent(m.params, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal parameter snapshot")
		return
	}

	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	tmp := m.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		log.Error().Err(err).Str("path", tmp).Msg("Failed to write snapshot tmp")
		return
	}
	if err := os.Rename(tmp, m.snapshotPath); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to rename snapshot")
		return
	}
	log.Debug().Str("path", m.snapshotPath).Msg("Parameter snapshot saved")
}

func (m *MemoryBackend) loadSnapshot() {
	data, err := os.ReadFile(m.snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", m.snapshotPath).Msg("No snapshot file found, starting fresh")
			return
		}
		log.Warn().Err(err).Str("path", m.snapshotPath).Msg("Failed to read snapshot")
		return
	}
	params := make(map[string]*models.ParameterRecord)
	if err := json.Unmarshal(data, &params); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to parse snapshot, starting fresh")
		return
	}
	m.mu.Lock()
	m.params = params
	m.mu.Unlock()
	log.Info().Int("parameters", len(params)).Str("path", m.snapshotPath).Msg("Parameter snapshot loaded")
}
