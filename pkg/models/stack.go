package models

import (
	"strings"
	"time"
)

// ── Parameters ───────────────────────────────────────────────

// ParameterType is the storage type of a parameter.
type ParameterType string

const (
	ParameterString       ParameterType = "String"
	ParameterSecureString ParameterType = "SecureString"
)

// ParameterTier is the storage tier of a parameter.
type ParameterTier string

const (
	TierStandard ParameterTier = "Standard"
	TierAdvanced ParameterTier = "Advanced"
)

// ParameterRecord is the atomic unit held by the parameter store.
type ParameterRecord struct {
	Path         string        `json:"path"`
	Value        string        `json:"value"`
	Type         ParameterType `json:"type"`
	Tier         ParameterTier `json:"tier"`
	Description  string        `json:"description,omitempty"`
	LastModified time.Time     `json:"last_modified"`
}

// ParameterMetadata is what a prefix listing returns: no values.
type ParameterMetadata struct {
	Path         string        `json:"path"`
	Type         ParameterType `json:"type"`
	LastModified time.Time     `json:"last_modified"`
}

// ── Stacks ───────────────────────────────────────────────────

// StackStatus mirrors the provisioner's stack lifecycle states.
type StackStatus string

const (
	StackCreateInProgress                        StackStatus = "CREATE_IN_PROGRESS"
	StackCreateFailed                            StackStatus = "CREATE_FAILED"
	StackCreateComplete                          StackStatus = "CREATE_COMPLETE"
	StackRollbackInProgress                      StackStatus = "ROLLBACK_IN_PROGRESS"
	StackRollbackFailed                          StackStatus = "ROLLBACK_FAILED"
	StackRollbackComplete                        StackStatus = "ROLLBACK_COMPLETE"
	StackDeleteInProgress                        StackStatus = "DELETE_IN_PROGRESS"
	StackDeleteFailed                            StackStatus = "DELETE_FAILED"
	StackDeleteComplete                          StackStatus = "DELETE_COMPLETE"
	StackUpdateInProgress                        StackStatus = "UPDATE_IN_PROGRESS"
	StackUpdateCompleteCleanupInProgress         StackStatus = "UPDATE_COMPLETE_CLEANUP_IN_PROGRESS"
	StackUpdateComplete                          StackStatus = "UPDATE_COMPLETE"
	StackUpdateFailed                            StackStatus = "UPDATE_FAILED"
	StackUpdateRollbackInProgress                StackStatus = "UPDATE_ROLLBACK_IN_PROGRESS"
	StackUpdateRollbackFailed                    StackStatus = "UPDATE_ROLLBACK_FAILED"
	StackUpdateRollbackCompleteCleanupInProgress StackStatus = "UPDATE_ROLLBACK_COMPLETE_CLEANUP_IN_PROGRESS"
	StackUpdateRollbackComplete                  StackStatus = "UPDATE_ROLLBACK_COMPLETE"
	StackReviewInProgress                        StackStatus = "REVIEW_IN_PROGRESS"
)

// InProgress reports whether the provisioner is still working on the stack.
func (s StackStatus) InProgress() bool {
	return strings.HasSuffix(string(s), "_IN_PROGRESS")
}

// Failed reports whether s is a failure state. Rolled-back stacks count as
// failures even though no further transition happens.
func (s StackStatus) Failed() bool {
	switch s {
	case StackRollbackComplete, StackRollbackFailed, StackUpdateRollbackComplete:
		return true
	}
	return strings.HasSuffix(string(s), "_FAILED")
}

// Stack parameter and tag keys this system relies on.
const (
	ParamAgentName = "AgentName"
	ParamImageTag  = "ImageTag"

	TagManagedBy = "ManagedBy"
	TagAgentName = "AgentName"
	TagCreatedAt = "CreatedAt"
)

// StackInstance is the described state of one agent stack.
type StackInstance struct {
	Name         string            `json:"name"`
	ID           string            `json:"id"`
	Status       StackStatus       `json:"status"`
	StatusReason string            `json:"status_reason,omitempty"`
	Parameters   map[string]string `json:"parameters"`
	Tags         map[string]string `json:"tags"`
	Outputs      map[string]string `json:"outputs"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at,omitempty"`
}

// StackSummary is one row of a stack listing.
type StackSummary struct {
	Name   string      `json:"name"`
	ID     string      `json:"id"`
	Status StackStatus `json:"status"`
}

// StackEvent is one provisioner event for a stack.
type StackEvent struct {
	LogicalResourceID string      `json:"logical_resource_id"`
	ResourceType      string      `json:"resource_type"`
	Status            StackStatus `json:"status"`
	Reason            string      `json:"reason,omitempty"`
	Timestamp         time.Time   `json:"timestamp"`
}

// StackDescriptor is returned by the orchestrator's mutating operations.
type StackDescriptor struct {
	AgentName string            `json:"agent_name"`
	StackName string            `json:"stack_name"`
	StackID   string            `json:"stack_id"`
	Status    StackStatus       `json:"status"`
	Outputs   map[string]string `json:"outputs,omitempty"`
	ImageURI  string            `json:"image_uri,omitempty"`
	NoChanges bool              `json:"no_changes,omitempty"`
}

// DeployedAgent is one row of the orchestrator's stack listing.
type DeployedAgent struct {
	AgentName string      `json:"agent_name"`
	StackName string      `json:"stack_name"`
	Status    StackStatus `json:"status"`
}
