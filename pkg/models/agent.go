package models

import (
	"strings"
	"time"
)

// ── Toggles ──────────────────────────────────────────────────

// Canonical values for provider-group enabled flags and provider names.
const (
	ToggleOn  = "on"
	ToggleOff = "off"

	// ProviderNone is the canonical "no provider selected" value.
	ProviderNone = "none"
)

var offSpellings = map[string]bool{
	"":         true,
	"default":  true,
	"false":    true,
	"off":      true,
	"none":     true,
	"disabled": true,
	"no":       true,
	"0":        true,
	"null":     true,
}

var onSpellings = map[string]bool{
	"true":    true,
	"on":      true,
	"enabled": true,
	"yes":     true,
	"1":       true,
}

// IsOff reports whether v is one of the accepted "off" spellings.
func IsOff(v string) bool {
	return offSpellings[strings.ToLower(strings.TrimSpace(v))]
}

// NormalizeToggle maps an enabled-flag spelling to ToggleOn / ToggleOff.
// Unknown spellings are returned trimmed so nothing is silently lost.
func NormalizeToggle(v string) string {
	lower := strings.ToLower(strings.TrimSpace(v))
	switch {
	case offSpellings[lower]:
		return ToggleOff
	case onSpellings[lower]:
		return ToggleOn
	}
	return strings.TrimSpace(v)
}

// NormalizeProvider maps off-equivalent provider names ("default", "", ...)
// to ProviderNone.
func NormalizeProvider(v string) string {
	if IsOff(v) {
		return ProviderNone
	}
	return strings.TrimSpace(v)
}

// ── Agent configuration ──────────────────────────────────────

// ProviderConfig is one entry of a provider details list.
type ProviderConfig struct {
	Name   string         `json:"name" validate:"required"`
	Config map[string]any `json:"config"`
}

// HasConfig reports whether the entry carries a non-empty nested config.
func (p ProviderConfig) HasConfig() bool {
	return len(p.Config) > 0
}

// ToolConfig describes one tool attached to an agent.
type ToolConfig struct {
	Name    string         `json:"name" validate:"required"`
	Enabled bool           `json:"enabled"`
	Config  map[string]any `json:"config,omitempty"`
}

// MCPServer is a remote MCP server the agent may call.
type MCPServer struct {
	Name      string            `json:"name"`
	URL       string            `json:"url"`
	Transport string            `json:"transport,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// ThinkingConfig controls extended reasoning for models that support it.
type ThinkingConfig struct {
	Enabled      bool `json:"enabled"`
	BudgetTokens int  `json:"budget_tokens"`
}

// AgentConfiguration is the persisted per-agent record.
//
// SystemPrompt is request/response only: Save stores the text under the
// agent's prompt path and the record keeps just SystemPromptName.
type AgentConfiguration struct {
	AgentName        string `json:"agent_name" validate:"required"`
	AgentDescription string `json:"agent_description,omitempty"`

	SystemPromptName string `json:"system_prompt_name,omitempty"`
	SystemPrompt     string `json:"system_prompt,omitempty"`

	ModelID          string  `json:"model_id,omitempty"`
	JudgeModelID     string  `json:"judge_model_id,omitempty"`
	EmbeddingModelID string  `json:"embedding_model_id,omitempty"`
	RegionName       string  `json:"region_name,omitempty"`
	Temperature      float64 `json:"temperature"`
	TopP             float64 `json:"top_p"`
	Streaming        bool    `json:"streaming"`
	CachePrompt      bool    `json:"cache_prompt"`
	CacheTools       bool    `json:"cache_tools"`

	Memory                string           `json:"memory"`
	MemoryProvider        string           `json:"memory_provider"`
	MemoryProviderDetails []ProviderConfig `json:"memory_provider_details" validate:"dive"`

	KnowledgeBase         string           `json:"knowledge_base"`
	KnowledgeBaseProvider string           `json:"knowledge_base_provider"`
	KnowledgeBaseDetails  []ProviderConfig `json:"knowledge_base_details" validate:"dive"`

	Observability                string           `json:"observability"`
	ObservabilityProvider        string           `json:"observability_provider"`
	ObservabilityProviderDetails []ProviderConfig `json:"observability_provider_details" validate:"dive"`

	Guardrail                string           `json:"guardrail"`
	GuardrailProvider        string           `json:"guardrail_provider"`
	GuardrailProviderDetails []ProviderConfig `json:"guardrail_provider_details" validate:"dive"`

	Tools      []ToolConfig   `json:"tools" validate:"dive"`
	MCPEnabled bool           `json:"mcp_enabled"`
	MCPServers []MCPServer    `json:"mcp_servers"`
	Thinking   ThinkingConfig `json:"thinking"`

	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// ProviderGroup is a view over one of the four provider blocks of an
// AgentConfiguration. The pointers alias the owning struct's fields.
type ProviderGroup struct {
	Kind     string
	Enabled  *string
	Provider *string
	Details  *[]ProviderConfig
}

// Provider group kinds.
const (
	GroupMemory        = "memory"
	GroupKnowledgeBase = "knowledge_base"
	GroupObservability = "observability"
	GroupGuardrail     = "guardrail"
)

// ProviderGroups returns the four provider blocks in a fixed order.
func (c *AgentConfiguration) ProviderGroups() []ProviderGroup {
	return []ProviderGroup{
		{GroupMemory, &c.Memory, &c.MemoryProvider, &c.MemoryProviderDetails},
		{GroupKnowledgeBase, &c.KnowledgeBase, &c.KnowledgeBaseProvider, &c.KnowledgeBaseDetails},
		{GroupObservability, &c.Observability, &c.ObservabilityProvider, &c.ObservabilityProviderDetails},
		{GroupGuardrail, &c.Guardrail, &c.GuardrailProvider, &c.GuardrailProviderDetails},
	}
}

// Preservable reports whether the group holds real integration data: a
// non-empty details list with at least one entry carrying a nested config.
func (g ProviderGroup) Preservable() bool {
	if g.Details == nil || len(*g.Details) == 0 {
		return false
	}
	for _, d := range *g.Details {
		if d.HasConfig() {
			return true
		}
	}
	return false
}

// Normalize rewrites off-equivalent flag and provider spellings to their
// canonical forms.
func (c *AgentConfiguration) Normalize() {
	for _, g := range c.ProviderGroups() {
		*g.Enabled = NormalizeToggle(*g.Enabled)
		*g.Provider = NormalizeProvider(*g.Provider)
	}
}

// Backfill replaces nil slices with empty ones so the record always carries
// every structural field.
func (c *AgentConfiguration) Backfill() {
	for _, g := range c.ProviderGroups() {
		if *g.Details == nil {
			*g.Details = []ProviderConfig{}
		}
		if *g.Enabled == "" {
			*g.Enabled = ToggleOff
		}
		if *g.Provider == "" {
			*g.Provider = ProviderNone
		}
	}
	if c.Tools == nil {
		c.Tools = []ToolConfig{}
	}
	if c.MCPServers == nil {
		c.MCPServers = []MCPServer{}
	}
}

// Clone returns a deep-enough copy for merge purposes: slices are copied so
// callers can mutate the result without touching the receiver.
func (c *AgentConfiguration) Clone() *AgentConfiguration {
	if c == nil {
		return nil
	}
	out := *c
	for i, g := range out.ProviderGroups() {
		src := *c.ProviderGroups()[i].Details
		if src != nil {
			*g.Details = append([]ProviderConfig(nil), src...)
		}
	}
	if c.Tools != nil {
		out.Tools = append([]ToolConfig(nil), c.Tools...)
	}
	if c.MCPServers != nil {
		out.MCPServers = append([]MCPServer(nil), c.MCPServers...)
	}
	return &out
}

// SystemPromptIndex maps prompt_name to a storage path, or to the prompt text
// itself for records written before prompts were stored separately.
type SystemPromptIndex map[string]string

// ── Results ──────────────────────────────────────────────────

// SaveResult reports what a configuration save wrote.
type SaveResult struct {
	AgentName  string `json:"agent_name"`
	ConfigPath string `json:"config_path"`
	PromptPath string `json:"prompt_path,omitempty"`
	Created    bool   `json:"created"`
}

// PathFailure is a parameter that could not be deleted.
type PathFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// DeletionReport lists per-path deletion results.
type DeletionReport struct {
	AgentName string        `json:"agent_name"`
	Deleted   []string      `json:"deleted"`
	Failed    []PathFailure `json:"failed"`
}
