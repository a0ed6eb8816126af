package configrepo

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/pkg/models"
)

// decodeRecord builds an AgentConfiguration from a stored JSON object.
//
// Records written by older releases and by hand are not always well formed:
// lists stored as null, as JSON strings or as name-keyed objects, booleans
// stored as strings. Each field is read on its own; a value with the wrong
// shape is converted when it carries data and defaulted when it does not.
func decodeRecord(raw map[string]any) *models.AgentConfiguration {
	c := &models.AgentConfiguration{
		AgentName:        asString(raw["agent_name"]),
		AgentDescription: asString(raw["agent_description"]),
		SystemPromptName: asString(raw["system_prompt_name"]),
		ModelID:          asString(raw["model_id"]),
		JudgeModelID:     asString(raw["judge_model_id"]),
		EmbeddingModelID: asString(raw["embedding_model_id"]),
		RegionName:       asString(raw["region_name"]),
		Temperature:      asFloat(raw["temperature"]),
		TopP:             asFloat(raw["top_p"]),
		Streaming:        asBool(raw["streaming"]),
		CachePrompt:      asBool(raw["cache_prompt"]),
		CacheTools:       asBool(raw["cache_tools"]),

		Memory:                asToggle(raw["memory"]),
		MemoryProvider:        asString(raw["memory_provider"]),
		MemoryProviderDetails: asProviderList(raw["memory_provider_details"]),

		KnowledgeBase:         asToggle(raw["knowledge_base"]),
		KnowledgeBaseProvider: asString(raw["knowledge_base_provider"]),
		KnowledgeBaseDetails:  asProviderList(raw["knowledge_base_details"]),

		Observability:                asToggle(raw["observability"]),
		ObservabilityProvider:        asString(raw["observability_provider"]),
		ObservabilityProviderDetails: asProviderList(raw["observability_provider_details"]),

		Guardrail:                asToggle(raw["guardrail"]),
		GuardrailProvider:        asString(raw["guardrail_provider"]),
		GuardrailProviderDetails: asProviderList(raw["guardrail_provider_details"]),

		Tools:      asTools(raw["tools"]),
		MCPEnabled: asBool(raw["mcp_enabled"]),
		MCPServers: asMCPServers(raw["mcp_servers"]),
		Thinking:   asThinking(raw["thinking"]),
	}
	if ts := asString(raw["updated_at"]); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			c.UpdatedAt = t
		}
	}
	return c
}

// DecodeSubmission parses a configuration submitted by a client with the
// same tolerance as stored records. Unlike stored records, a submission may
// carry the system prompt text.
func DecodeSubmission(data []byte) (*models.AgentConfiguration, error) {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, &models.ValidationError{Field: "body", Reason: "invalid JSON: " + err.Error()}
	}
	if obj == nil {
		return nil, &models.ValidationError{Field: "body", Reason: "configuration object is required"}
	}
	cfg := decodeRecord(obj)
	cfg.SystemPrompt = asString(obj["system_prompt"])
	cfg.UpdatedAt = time.Time{}
	return cfg, nil
}

// ── Scalars ─────────────────────────────────────────────────

func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}

func asFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f
	}
	return 0
}

func asInt(v any) int {
	return int(asFloat(v))
}

func asBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return models.NormalizeToggle(x) == models.ToggleOn
	}
	return false
}

// asToggle reads an enabled flag. JSON booleans become on/off.
func asToggle(v any) string {
	if b, ok := v.(bool); ok {
		if b {
			return models.ToggleOn
		}
		return models.ToggleOff
	}
	return asString(v)
}

// unwrapJSONString decodes a list or object that was stored as a JSON string.
func unwrapJSONString(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") && !strings.HasPrefix(s, "{") {
		return v
	}
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return v
	}
	return out
}

func asMap(v any) map[string]any {
	if m, ok := unwrapJSONString(v).(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// sortedKeys keeps conversions of name-keyed objects deterministic.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ── Lists ───────────────────────────────────────────────────

// asProviderList accepts a list of {name, config} objects, a single such
// object, a name-keyed object ({"bedrock_kb": {...}}) or a list of bare
// names.
func asProviderList(v any) []models.ProviderConfig {
	out := []models.ProviderConfig{}
	switch x := unwrapJSONString(v).(type) {
	case []any:
		for _, item := range x {
			if p, ok := asProvider(item); ok {
				out = append(out, p)
			}
		}
	case map[string]any:
		if _, single := x["name"]; single {
			if p, ok := asProvider(x); ok {
				out = append(out, p)
			}
			break
		}
		for _, name := range sortedKeys(x) {
			out = append(out, models.ProviderConfig{Name: name, Config: asMap(x[name])})
		}
	}
	return out
}

func asProvider(v any) (models.ProviderConfig, bool) {
	switch x := v.(type) {
	case string:
		if x == "" {
			return models.ProviderConfig{}, false
		}
		return models.ProviderConfig{Name: x, Config: map[string]any{}}, true
	case map[string]any:
		name := asString(x["name"])
		if name == "" {
			return models.ProviderConfig{}, false
		}
		return models.ProviderConfig{Name: name, Config: asMap(x["config"])}, true
	}
	return models.ProviderConfig{}, false
}

func asTools(v any) []models.ToolConfig {
	out := []models.ToolConfig{}
	switch x := unwrapJSONString(v).(type) {
	case []any:
		for _, item := range x {
			switch t := item.(type) {
			case string:
				if t != "" {
					out = append(out, models.ToolConfig{Name: t, Enabled: true})
				}
			case map[string]any:
				if name := asString(t["name"]); name != "" {
					tool := models.ToolConfig{Name: name, Enabled: true}
					if e, ok := t["enabled"]; ok {
						tool.Enabled = asBool(e)
					}
					if cfg := asMap(t["config"]); len(cfg) > 0 {
						tool.Config = cfg
					}
					out = append(out, tool)
				}
			}
		}
	case map[string]any:
		// {"calculator": true, "web_search": {"enabled": false}}
		for _, name := range sortedKeys(x) {
			tool := models.ToolConfig{Name: name, Enabled: true}
			switch val := x[name].(type) {
			case bool:
				tool.Enabled = val
			case map[string]any:
				if e, ok := val["enabled"]; ok {
					tool.Enabled = asBool(e)
				}
				if cfg := asMap(val["config"]); len(cfg) > 0 {
					tool.Config = cfg
				}
			}
			out = append(out, tool)
		}
	}
	return out
}

func asMCPServers(v any) []models.MCPServer {
	out := []models.MCPServer{}
	switch x := unwrapJSONString(v).(type) {
	case []any:
		for _, item := range x {
			switch s := item.(type) {
			case string:
				if s != "" {
					out = append(out, models.MCPServer{Name: s, URL: s})
				}
			case map[string]any:
				if srv, ok := asMCPServer(asString(s["name"]), s); ok {
					out = append(out, srv)
				}
			}
		}
	case map[string]any:
		for _, name := range sortedKeys(x) {
			switch s := x[name].(type) {
			case string:
				out = append(out, models.MCPServer{Name: name, URL: s})
			case map[string]any:
				if srv, ok := asMCPServer(name, s); ok {
					out = append(out, srv)
				}
			}
		}
	}
	return out
}

func asMCPServer(name string, m map[string]any) (models.MCPServer, bool) {
	url := asString(m["url"])
	if name == "" {
		name = url
	}
	if name == "" {
		return models.MCPServer{}, false
	}
	srv := models.MCPServer{Name: name, URL: url, Transport: asString(m["transport"])}
	if h := asMap(m["headers"]); len(h) > 0 {
		srv.Headers = make(map[string]string, len(h))
		for k, v := range h {
			srv.Headers[k] = fmt.Sprint(v)
		}
	}
	return srv, true
}

func asThinking(v any) models.ThinkingConfig {
	switch x := unwrapJSONString(v).(type) {
	case bool:
		return models.ThinkingConfig{Enabled: x}
	case map[string]any:
		return models.ThinkingConfig{
			Enabled:      asBool(x["enabled"]),
			BudgetTokens: asInt(x["budget_tokens"]),
		}
	case string:
		return models.ThinkingConfig{Enabled: asBool(x)}
	}
	return models.ThinkingConfig{}
}
