// Package deploy composes the configuration repository and the stack
// orchestrator into whole-agent operations. Compound operations report each
// step separately instead of collapsing partial failure into one error.
package deploy

import (
	"context"
	"errors"
	"sort"

	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/configrepo"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/stack"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/pkg/models"
	"github.com/rs/zerolog/log"
)

// ConfigRepository is the part of configrepo.Repository the facade uses.
type ConfigRepository interface {
	Save(ctx context.Context, agentName string, cfg *models.AgentConfiguration) (*models.SaveResult, error)
	Load(ctx context.Context, agentName string) (*models.AgentConfiguration, error)
	Delete(ctx context.Context, agentName string) (*models.DeletionReport, error)
	ListAgents(ctx context.Context) ([]string, error)
}

// StackOrchestrator is the part of stack.Orchestrator the facade uses.
type StackOrchestrator interface {
	Describe(ctx context.Context, agentName string) (*models.StackInstance, error)
	Deploy(ctx context.Context, agentName string, params map[string]string) (*models.StackDescriptor, error)
	Delete(ctx context.Context, agentName string) (*models.StackDescriptor, error)
	List(ctx context.Context) ([]models.DeployedAgent, error)
}

// Outcome statuses.
const (
	StatusSuccess        = "success"
	StatusPartialSuccess = "partial_success"
	StatusFailed         = "failed"
)

// Step names.
const (
	StepInfrastructure = "infrastructure"
	StepConfiguration  = "configuration"
)

// Step is the result of one part of a compound operation.
type Step struct {
	Name     string `json:"name"`
	Status   string `json:"status"` // success, failed, skipped, not_found
	Error    string `json:"error,omitempty"`
	NotFound bool   `json:"not_found,omitempty"`

	Stack    *models.StackDescriptor `json:"stack,omitempty"`
	Deletion *models.DeletionReport  `json:"deletion,omitempty"`
	Save     *models.SaveResult      `json:"save,omitempty"`

	err error
}

// Err returns the underlying error of a failed step.
func (s *Step) Err() error { return s.err }

// Step statuses.
const (
	StepSuccess  = "success"
	StepFailed   = "failed"
	StepSkipped  = "skipped"
	StepNotFound = "not_found"
)

// Outcome is the structured result of a compound operation.
type Outcome struct {
	AgentName string  `json:"agent_name"`
	Status    string  `json:"status"`
	Steps     []*Step `json:"steps"`
}

// Step returns the named step, or nil.
func (o *Outcome) Step(name string) *Step {
	for _, s := range o.Steps {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Facade is the entry point for whole-agent operations.
type Facade struct {
	configs ConfigRepository
	stacks  StackOrchestrator
}

// New creates a facade.
func New(configs ConfigRepository, stacks StackOrchestrator) *Facade {
	return &Facade{configs: configs, stacks: stacks}
}

func failedStep(name string, err error) *Step {
	return &Step{Name: name, Status: StepFailed, Error: err.Error(), err: err}
}

func isConfigNotFound(err error) bool {
	var nf *configrepo.ErrNotFound
	return errors.As(err, &nf)
}

func isStackNotFound(err error) bool {
	var nf *stack.NotFoundError
	return errors.As(err, &nf)
}

// ── Delete ──────────────────────────────────────────────────

// DeleteOptions controls DeleteAgentCompletely.
type DeleteOptions struct {
	DeleteInfrastructure bool
}

// DeleteAgentCompletely removes the agent's stack (when requested) and then
// every configuration parameter of the agent.
//
// Classification:
//   - both steps succeed: success
//   - the stack was deleted and the configuration was already gone:
//     partial_success
//   - one step fails for real and the other succeeds: partial_success
//   - nothing succeeds: failed
//
// Only a ValidationError is returned as an error; everything else is
// reported in the Outcome.
func (f *Facade) DeleteAgentCompletely(ctx context.Context, agentName string, opts DeleteOptions) (*Outcome, error) {
	if err := models.ValidateAgentName(agentName); err != nil {
		return nil, err
	}
	out := &Outcome{AgentName: agentName}

	infra := &Step{Name: StepInfrastructure, Status: StepSkipped}
	stackExisted := false
	if opts.DeleteInfrastructure {
		desc, err := f.stacks.Delete(ctx, agentName)
		switch {
		case err == nil:
			stackExisted = true
			infra = &Step{Name: StepInfrastructure, Status: StepSuccess, Stack: desc}
		case isStackNotFound(err):
			infra = &Step{Name: StepInfrastructure, Status: StepNotFound, NotFound: true, Error: err.Error(), err: err}
		default:
			infra = failedStep(StepInfrastructure, err)
		}
	}
	out.Steps = append(out.Steps, infra)

	report, err := f.configs.Delete(ctx, agentName)
	var cfg *Step
	switch {
	case err == nil && len(report.Failed) == 0:
		cfg = &Step{Name: StepConfiguration, Status: StepSuccess, Deletion: report}
	case err == nil:
		cfg = &Step{
			Name:     StepConfiguration,
			Status:   StepFailed,
			Error:    report.Failed[0].Path + ": " + report.Failed[0].Error,
			Deletion: report,
		}
	case isConfigNotFound(err):
		cfg = &Step{Name: StepConfiguration, Status: StepNotFound, NotFound: true, Error: err.Error(), err: err}
	default:
		cfg = failedStep(StepConfiguration, err)
	}
	out.Steps = append(out.Steps, cfg)

	out.Status = classifyDeletion(opts.DeleteInfrastructure, stackExisted, infra, cfg)
	ev := log.Info()
	if out.Status != StatusSuccess {
		ev = log.Warn()
	}
	ev.Str("agent", agentName).
		Str("status", out.Status).
		Str("infrastructure", infra.Status).
		Str("configuration", cfg.Status).
		Msg("Agent deletion finished")
	return out, nil
}

// classifyDeletion reports partial success whenever something was removed
// but not everything, including a configuration delete where only some
// paths failed.
func classifyDeletion(infraRequested, stackExisted bool, infra, cfg *Step) string {
	if cfg.NotFound && infraRequested && stackExisted {
		return StatusPartialSuccess
	}
	cfgPartly := cfg.Deletion != nil && len(cfg.Deletion.Deleted) > 0
	switch {
	case cfg.Status == StepSuccess && infra.Status != StepFailed:
		return StatusSuccess
	case cfg.Status == StepSuccess || infra.Status == StepSuccess || cfgPartly:
		return StatusPartialSuccess
	}
	return StatusFailed
}

// ── Deploy ──────────────────────────────────────────────────

// DeployAgent saves cfg (when given) and then creates or updates the agent's
// stack. The stack step is skipped when the save fails.
func (f *Facade) DeployAgent(ctx context.Context, agentName string, cfg *models.AgentConfiguration, params map[string]string) (*Outcome, error) {
	if err := models.ValidateAgentName(agentName); err != nil {
		return nil, err
	}
	out := &Outcome{AgentName: agentName}

	if cfg != nil {
		res, err := f.configs.Save(ctx, agentName, cfg)
		var ve *models.ValidationError
		if errors.As(err, &ve) {
			return nil, err
		}
		if err != nil {
			out.Steps = append(out.Steps, failedStep(StepConfiguration, err),
				&Step{Name: StepInfrastructure, Status: StepSkipped})
			out.Status = StatusFailed
			return out, nil
		}
		out.Steps = append(out.Steps, &Step{Name: StepConfiguration, Status: StepSuccess, Save: res})
	} else if _, err := f.configs.Load(ctx, agentName); err != nil {
		log.Warn().Err(err).Str("agent", agentName).Msg("Deploying agent without a readable configuration")
	}

	desc, err := f.stacks.Deploy(ctx, agentName, params)
	if err != nil {
		out.Steps = append(out.Steps, failedStep(StepInfrastructure, err))
		if cfg != nil {
			out.Status = StatusPartialSuccess
		} else {
			out.Status = StatusFailed
		}
		return out, nil
	}
	out.Steps = append(out.Steps, &Step{Name: StepInfrastructure, Status: StepSuccess, Stack: desc})
	out.Status = StatusSuccess
	log.Info().Str("agent", agentName).Str("stack", desc.StackName).Bool("no_changes", desc.NoChanges).Msg("Agent deployed")
	return out, nil
}

// ── Status / list ───────────────────────────────────────────

// AgentStatus describes what exists for one agent.
type AgentStatus struct {
	AgentName     string                     `json:"agent_name"`
	Configured    bool                       `json:"configured"`
	Configuration *models.AgentConfiguration `json:"configuration,omitempty"`
	ConfigError   string                     `json:"config_error,omitempty"`
	Stack         *models.StackInstance      `json:"stack,omitempty"`
	StackError    string                     `json:"stack_error,omitempty"`
}

// AgentStatus loads the agent's configuration and describes its stack.
// Missing pieces are reported, not returned as errors.
func (f *Facade) AgentStatus(ctx context.Context, agentName string) (*AgentStatus, error) {
	if err := models.ValidateAgentName(agentName); err != nil {
		return nil, err
	}
	st := &AgentStatus{AgentName: agentName}

	cfg, err := f.configs.Load(ctx, agentName)
	switch {
	case err == nil:
		st.Configured = true
		st.Configuration = cfg
	case !isConfigNotFound(err):
		st.ConfigError = err.Error()
	}

	inst, err := f.stacks.Describe(ctx, agentName)
	switch {
	case err == nil:
		st.Stack = inst
	case !isStackNotFound(err):
		st.StackError = err.Error()
	}
	return st, nil
}

// AgentSummary is one row of ListAgents.
type AgentSummary struct {
	AgentName   string             `json:"agent_name"`
	Configured  bool               `json:"configured"`
	StackName   string             `json:"stack_name,omitempty"`
	StackStatus models.StackStatus `json:"stack_status,omitempty"`
}

// ListAgents returns every agent that has a configuration, a stack, or both.
func (f *Facade) ListAgents(ctx context.Context) ([]AgentSummary, error) {
	names, err := f.configs.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	deployed, err := f.stacks.List(ctx)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*AgentSummary, len(names)+len(deployed))
	for _, n := range names {
		byName[n] = &AgentSummary{AgentName: n, Configured: true}
	}
	for _, d := range deployed {
		s, ok := byName[d.AgentName]
		if !ok {
			s = &AgentSummary{AgentName: d.AgentName}
			byName[d.AgentName] = s
		}
		s.StackName = d.StackName
		s.StackStatus = d.Status
	}

	out := make([]AgentSummary, 0, len(byName))
	for _, s := range byName {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentName < out[j].AgentName })
	return out, nil
}
