package configrepo

import (
	"strings"

	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/paramstore"
)

// Parameter layout. These paths are shared with the agent runtime and must
// not change.
const (
	agentRoot           = "/agent/"
	globalPromptIndex   = "/prompts/index"
	defaultAgentPrompt  = "/system/agent-templates/default"
	promptTemplatesRoot = "/system/prompt-templates"
	globalPromptsRoot   = "/prompts"
)

// DefaultPromptName is used when a configuration names no prompt.
const DefaultPromptName = "default"

// ConfigPath is the path of an agent's configuration record.
func ConfigPath(agentName string) string {
	return agentRoot + agentName + "/config"
}

// PromptPath is the path of one of an agent's system prompts.
func PromptPath(agentName, promptName string) string {
	return agentRoot + agentName + "/system-prompts/" + promptName
}

// PromptIndexPath is the path of an agent's prompt index.
func PromptIndexPath(agentName string) string {
	return agentRoot + agentName + "/system-prompts/index"
}

func agentPrefix(agentName string) string {
	return agentRoot + agentName + "/"
}

func globalPromptPath(promptName string) string {
	return paramstore.JoinPath(globalPromptsRoot, promptName)
}

func promptTemplatePath(promptName string) string {
	return paramstore.JoinPath(promptTemplatesRoot, promptName)
}

// legacyPromptPaths are locations earlier releases wrote agent prompts and
// configs to. The /agents/ and /prompts/ entries sit outside /agent/{name}/
// and are only found by probing; the subtree listing also finds the others.
func legacyPromptPaths(agentName string) []string {
	return []string{
		agentRoot + agentName + "/system-prompt",
		agentRoot + agentName + "/system_prompt",
		agentRoot + agentName + "/system-prompts/default",
		"/agents/" + agentName + "/config",
		"/agents/" + agentName + "/system-prompt",
		"/prompts/" + agentName + "-system-prompt",
		"/prompts/" + agentName + "_system_prompt",
	}
}

// ownerOf returns the agent subtree a path belongs to, if any:
// "/agent/x/config" → "x"; "/agent/x-legacy" → "".
func ownerOf(path string) string {
	rest, ok := strings.CutPrefix(path, agentRoot)
	if !ok {
		return ""
	}
	name, _, nested := strings.Cut(rest, "/")
	if !nested {
		return ""
	}
	return name
}

// isIndexPath reports whether an index value points at a stored prompt
// rather than holding the prompt text inline.
func isIndexPath(v string) bool {
	return strings.HasPrefix(v, "/") && !strings.ContainsAny(v, " \t\n")
}
