// Package configrepo persists agent configurations in the parameter store.
//
// Layout per agent:
//
//	/agent/{name}/config                    JSON configuration record
//	/agent/{name}/system-prompts/{prompt}   prompt text
//	/agent/{name}/system-prompts/index      JSON prompt_name → path
//
// Prompts missing from the agent's own index fall back to the global library
// (/prompts/index, /prompts/{prompt}) and then to the system templates
// (/system/prompt-templates/{prompt}, /system/agent-templates/default).
//
// Save is a read-merge-write without locking: two concurrent saves of the
// same agent can lose one update. The store is last-writer-wins.
package configrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/paramstore"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned when an agent has no stored configuration.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}

// Repository reads and writes agent configurations.
type Repository struct {
	params   *paramstore.Store
	validate *validator.Validate
	now      func() time.Time
}

// New creates a repository on top of a parameter store.
func New(params *paramstore.Store) *Repository {
	return &Repository{
		params:   params,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ── Save ────────────────────────────────────────────────────

// Save validates cfg, stores its prompt text (if any) and merges it into the
// stored record. Writes are idempotent overwrites, so a save that failed
// halfway can be repeated.
func (r *Repository) Save(ctx context.Context, agentName string, cfg *models.AgentConfiguration) (*models.SaveResult, error) {
	if err := r.check(agentName, cfg); err != nil {
		return nil, err
	}
	incoming := cfg.Clone()
	incoming.AgentName = agentName
	result := &models.SaveResult{AgentName: agentName, ConfigPath: ConfigPath(agentName)}

	if incoming.SystemPrompt != "" {
		promptName := paramstore.SanitizeName(incoming.SystemPromptName)
		path, err := r.savePrompt(ctx, agentName, promptName, incoming.SystemPrompt)
		if err != nil {
			return nil, err
		}
		incoming.SystemPromptName = promptName
		result.PromptPath = path
	}
	incoming.SystemPrompt = ""

	existing, err := r.loadRecord(ctx, agentName)
	var nf *ErrNotFound
	switch {
	case errors.As(err, &nf):
		result.Created = true
	case err != nil:
		return nil, err
	}

	incoming.Normalize()
	if existing != nil {
		existing.Normalize()
	}
	merged := merge(existing, incoming)
	merged.Backfill()
	merged.UpdatedAt = r.now()

	if err := r.params.PutJSON(ctx, result.ConfigPath, merged,
		paramstore.WithDescription("Agent configuration for "+agentName)); err != nil {
		return nil, fmt.Errorf("save configuration for %s: %w", agentName, err)
	}
	log.Info().
		Str("agent", agentName).
		Bool("created", result.Created).
		Str("prompt", merged.SystemPromptName).
		Msg("Agent configuration saved")
	return result, nil
}

func (r *Repository) check(agentName string, cfg *models.AgentConfiguration) error {
	if err := models.ValidateAgentName(agentName); err != nil {
		return err
	}
	if cfg == nil {
		return &models.ValidationError{Reason: "configuration is required"}
	}
	if cfg.AgentName != "" && cfg.AgentName != agentName {
		return &models.ValidationError{
			Field:  "agent_name",
			Reason: fmt.Sprintf("%q does not match %q", cfg.AgentName, agentName),
		}
	}
	probe := *cfg
	probe.AgentName = agentName
	if err := r.validate.Struct(&probe); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &models.ValidationError{Field: fe.Namespace(), Reason: "failed " + fe.Tag() + " check"}
		}
		return &models.ValidationError{Reason: err.Error()}
	}
	return nil
}

// savePrompt writes the prompt text and records it in the agent's index.
func (r *Repository) savePrompt(ctx context.Context, agentName, promptName, text string) (string, error) {
	path := PromptPath(agentName, promptName)
	if err := r.params.Put(ctx, path, text,
		paramstore.WithDescription("System prompt "+promptName+" for "+agentName)); err != nil {
		return "", fmt.Errorf("save prompt %s: %w", promptName, err)
	}

	index := models.SystemPromptIndex{}
	if _, err := r.params.GetJSON(ctx, PromptIndexPath(agentName), &index); err != nil {
		return "", fmt.Errorf("read prompt index for %s: %w", agentName, err)
	}
	if index == nil {
		index = models.SystemPromptIndex{}
	}
	index[promptName] = path
	if err := r.params.PutJSON(ctx, PromptIndexPath(agentName), index); err != nil {
		return "", fmt.Errorf("update prompt index for %s: %w", agentName, err)
	}
	return path, nil
}

// ── Load ────────────────────────────────────────────────────

// Load returns the stored configuration of agentName with every structural
// field present and SystemPrompt resolved to the prompt text.
func (r *Repository) Load(ctx context.Context, agentName string) (*models.AgentConfiguration, error) {
	if err := models.ValidateAgentName(agentName); err != nil {
		return nil, err
	}
	cfg, err := r.loadRecord(ctx, agentName)
	if err != nil {
		return nil, err
	}
	if cfg.AgentName == "" {
		cfg.AgentName = agentName
	}
	cfg.Backfill()

	promptName := cfg.SystemPromptName
	if promptName == "" {
		promptName = DefaultPromptName
	}
	text, err := r.resolvePrompt(ctx, agentName, promptName)
	if err != nil {
		return nil, err
	}
	cfg.SystemPrompt = text
	return cfg, nil
}

// loadRecord reads and decodes the stored record without backfilling.
func (r *Repository) loadRecord(ctx context.Context, agentName string) (*models.AgentConfiguration, error) {
	path := ConfigPath(agentName)
	raw, found, err := r.params.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &ErrNotFound{Entity: "agent configuration", Key: agentName}
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, &paramstore.FormatError{Path: path, Err: err}
	}
	if obj == nil {
		return nil, &paramstore.FormatError{Path: path, Err: errors.New("record is null")}
	}
	return decodeRecord(obj), nil
}

// resolvePrompt walks the fallback chain for promptName. It returns "" when
// no tier has the prompt.
func (r *Repository) resolvePrompt(ctx context.Context, agentName, promptName string) (string, error) {
	tiers := []struct {
		name string
		fn   func() (string, bool, error)
	}{
		{"agent index", func() (string, bool, error) {
			return r.fromIndex(ctx, PromptIndexPath(agentName), promptName)
		}},
		{"global library", func() (string, bool, error) {
			if text, ok, err := r.fromIndex(ctx, globalPromptIndex, promptName); ok || err != nil {
				return text, ok, err
			}
			return r.params.Get(ctx, globalPromptPath(promptName))
		}},
		{"system templates", func() (string, bool, error) {
			if text, ok, err := r.params.Get(ctx, promptTemplatePath(promptName)); ok || err != nil {
				return text, ok, err
			}
			return r.defaultTemplatePrompt(ctx)
		}},
	}
	for _, tier := range tiers {
		text, ok, err := tier.fn()
		if err != nil {
			return "", fmt.Errorf("resolve prompt %s for %s: %w", promptName, agentName, err)
		}
		if ok && text != "" {
			log.Debug().Str("agent", agentName).Str("prompt", promptName).Str("tier", tier.name).Msg("Prompt resolved")
			return text, nil
		}
	}
	log.Warn().Str("agent", agentName).Str("prompt", promptName).Msg("No system prompt found")
	return "", nil
}

// fromIndex looks promptName up in a prompt index. A corrupt index is
// skipped rather than failing the load.
func (r *Repository) fromIndex(ctx context.Context, indexPath, promptName string) (string, bool, error) {
	index := models.SystemPromptIndex{}
	found, err := r.params.GetJSON(ctx, indexPath, &index)
	var fe *paramstore.FormatError
	if errors.As(err, &fe) {
		log.Warn().Err(err).Str("index", indexPath).Msg("Ignoring unreadable prompt index")
		return "", false, nil
	}
	if err != nil || !found {
		return "", false, err
	}
	entry, ok := index[promptName]
	if !ok || entry == "" {
		return "", false, nil
	}
	if !isIndexPath(entry) {
		return entry, true, nil // inline text from before prompts had their own paths
	}
	return r.params.Get(ctx, entry)
}

// defaultTemplatePrompt reads the prompt of the default agent template, which
// is either a JSON object with a system_prompt field or plain text.
func (r *Repository) defaultTemplatePrompt(ctx context.Context) (string, bool, error) {
	raw, found, err := r.params.Get(ctx, defaultAgentPrompt)
	if err != nil || !found {
		return "", found, err
	}
	var tmpl struct {
		SystemPrompt string `json:"system_prompt"`
	}
	if strings.HasPrefix(strings.TrimSpace(raw), "{") && json.Unmarshal([]byte(raw), &tmpl) == nil {
		return tmpl.SystemPrompt, tmpl.SystemPrompt != "", nil
	}
	return raw, true, nil
}

// ── Listing ─────────────────────────────────────────────────

// ListAgents returns the names of agents that have a configuration record.
func (r *Repository) ListAgents(ctx context.Context) ([]string, error) {
	items, err := r.params.ListByPrefix(ctx, agentRoot)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, it := range items {
		if name := ownerOf(it.Path); name != "" && it.Path == ConfigPath(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// ListPrompts returns the agent's prompt index.
func (r *Repository) ListPrompts(ctx context.Context, agentName string) (models.SystemPromptIndex, error) {
	if err := models.ValidateAgentName(agentName); err != nil {
		return nil, err
	}
	index := models.SystemPromptIndex{}
	if _, err := r.params.GetJSON(ctx, PromptIndexPath(agentName), &index); err != nil {
		return nil, err
	}
	if index == nil {
		index = models.SystemPromptIndex{}
	}
	return index, nil
}
