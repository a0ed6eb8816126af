package stack

import (
	"regexp"
	"strings"
)

// StackName is the deterministic stack name of an agent within a project.
func StackName(projectName, agentName string) string {
	return projectName + "-agent-" + strings.ReplaceAll(agentName, "_", "-")
}

// namePattern matches the stack names this system creates for projectName.
func namePattern(projectName string) *regexp.Regexp {
	return regexp.MustCompile("^" + regexp.QuoteMeta(projectName) + `-agent-[A-Za-z0-9][A-Za-z0-9-]*$`)
}
