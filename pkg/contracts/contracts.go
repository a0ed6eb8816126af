// Package contracts defines the service interfaces of the agent
// orchestration control plane.
//
// The HTTP handlers and the agentctl CLI depend only on these interfaces.
// internal/ ships the concrete implementations; wiring lives in pkg/server.
package contracts

import (
	"context"

	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/configrepo"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/deploy"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/paramstore"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/provisioner"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/stack"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/templates"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/pkg/models"
)

// ParameterBackend is implemented by each parameter store backend.
type ParameterBackend = paramstore.Backend

// Provisioner drives the infrastructure service that owns stacks.
type Provisioner = provisioner.Provisioner

// TemplateSource supplies the stack template and trusted image URI.
type TemplateSource = stack.TemplateSource

// Error types callers branch on.
type (
	ConfigNotFound = configrepo.ErrNotFound
	StackNotFound  = stack.NotFoundError
	StackOwnership = stack.OwnershipError
	StackFailure   = stack.FailureError
	StackTimeout   = stack.TimeoutError
	ImagePin       = stack.ImagePinError
)

// ── Parameter Store ─────────────────────────────────────────

// ParameterStore is the hierarchical key/value store every other component
// persists through. Get reports a missing parameter as found == false.
type ParameterStore interface {
	Put(ctx context.Context, path, value string, opts ...paramstore.PutOption) error
	Get(ctx context.Context, path string, opts ...paramstore.GetOption) (string, bool, error)
	Exists(ctx context.Context, path string) (bool, error)
	ListByPrefix(ctx context.Context, prefix string) ([]models.ParameterMetadata, error)
	Delete(ctx context.Context, path string) (bool, error)
}

// ── Configuration Repository ────────────────────────────────

// ConfigRepository persists agent configurations and their system prompts.
type ConfigRepository interface {
	// Save merges cfg into the stored record. Integration groups submitted
	// without details keep their stored details.
	Save(ctx context.Context, agentName string, cfg *models.AgentConfiguration) (*models.SaveResult, error)

	// Load returns the record with its system prompt resolved.
	Load(ctx context.Context, agentName string) (*models.AgentConfiguration, error)

	// Delete removes every parameter belonging to the agent.
	Delete(ctx context.Context, agentName string) (*models.DeletionReport, error)

	ListAgents(ctx context.Context) ([]string, error)
	ListPrompts(ctx context.Context, agentName string) (models.SystemPromptIndex, error)
}

// ── Stack Orchestrator ──────────────────────────────────────

// StackOrchestrator manages the per-agent infrastructure stack.
type StackOrchestrator interface {
	StackName(agentName string) string
	Describe(ctx context.Context, agentName string) (*models.StackInstance, error)
	Create(ctx context.Context, agentName string, params map[string]string) (*models.StackDescriptor, error)
	Update(ctx context.Context, agentName string, params map[string]string) (*models.StackDescriptor, error)
	Deploy(ctx context.Context, agentName string, params map[string]string) (*models.StackDescriptor, error)
	Delete(ctx context.Context, agentName string) (*models.StackDescriptor, error)
	List(ctx context.Context) ([]models.DeployedAgent, error)
}

// ── Deployment ──────────────────────────────────────────────

// DeploymentService runs whole-agent operations across configuration and
// infrastructure.
type DeploymentService interface {
	DeployAgent(ctx context.Context, agentName string, cfg *models.AgentConfiguration, params map[string]string) (*deploy.Outcome, error)
	DeleteAgentCompletely(ctx context.Context, agentName string, opts deploy.DeleteOptions) (*deploy.Outcome, error)
	AgentStatus(ctx context.Context, agentName string) (*deploy.AgentStatus, error)
	ListAgents(ctx context.Context) ([]deploy.AgentSummary, error)
}

var (
	_ ParameterStore    = (*paramstore.Store)(nil)
	_ ConfigRepository  = (*configrepo.Repository)(nil)
	_ StackOrchestrator = (*stack.Orchestrator)(nil)
	_ DeploymentService = (*deploy.Facade)(nil)
	_ TemplateSource    = (*templates.Source)(nil)
	_ Provisioner       = (*provisioner.CloudFormation)(nil)
	_ Provisioner       = (*provisioner.Simulator)(nil)
	_ ParameterBackend  = (*paramstore.MemoryBackend)(nil)
	_ ParameterBackend  = (*paramstore.SSMBackend)(nil)
	_ ParameterBackend  = (*paramstore.VaultBackend)(nil)
)
