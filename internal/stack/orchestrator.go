// Package stack runs the lifecycle of the infrastructure stack behind each
// agent: create, update, delete and list, each polled to a terminal state.
//
// Every stack is named {project}-agent-{agent} and carries the agent name as
// its AgentName parameter. A stack found under an agent's name is only
// treated as that agent's stack when the parameter matches. The ImageTag
// parameter is always the full, pinned image URI published by the template
// source; an unpinned or missing image aborts before anything is submitted.
package stack

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"sort"
	"sync"
	"time"

	"dario.cat/mergo"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/provisioner"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/templates"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("agent-orchestrator/stack")

// TemplateSource supplies the stack template and the trusted image URI.
type TemplateSource interface {
	Template(ctx context.Context, key string) ([]byte, error)
	TrustedImageURI(ctx context.Context) (string, error)
}

// Config holds the orchestrator settings.
type Config struct {
	ProjectName   string
	ManagedBy     string
	TemplateKey   string
	PollInterval  time.Duration
	CreateTimeout time.Duration
	UpdateTimeout time.Duration
	DeleteTimeout time.Duration
	// ListConcurrency bounds parallel describes during List.
	ListConcurrency int
}

func (c Config) withDefaults() Config {
	if c.ManagedBy == "" {
		c.ManagedBy = c.ProjectName
	}
	if c.TemplateKey == "" {
		c.TemplateKey = "agent-stack.yaml"
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Second
	}
	if c.CreateTimeout <= 0 {
		c.CreateTimeout = 30 * time.Minute
	}
	if c.UpdateTimeout <= 0 {
		c.UpdateTimeout = 30 * time.Minute
	}
	if c.DeleteTimeout <= 0 {
		c.DeleteTimeout = 20 * time.Minute
	}
	if c.ListConcurrency <= 0 {
		c.ListConcurrency = 8
	}
	return c
}

// Orchestrator drives agent stacks through a Provisioner.
type Orchestrator struct {
	cfg       Config
	templates TemplateSource
	prov      provisioner.Provisioner
	pattern   *regexp.Regexp
	now       func() time.Time
}

// New creates an orchestrator.
func New(cfg Config, src TemplateSource, prov provisioner.Provisioner) *Orchestrator {
	cfg = cfg.withDefaults()
	return &Orchestrator{
		cfg:       cfg,
		templates: src,
		prov:      prov,
		pattern:   namePattern(cfg.ProjectName),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// StackName returns the stack name for agentName in this project.
func (o *Orchestrator) StackName(agentName string) string {
	return StackName(o.cfg.ProjectName, agentName)
}

func startSpan(ctx context.Context, op, agentName string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "stack."+op, trace.WithAttributes(
		attribute.String("agent.name", agentName),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// ── Locate ──────────────────────────────────────────────────

// locate describes the agent's stack and checks that it belongs to the agent.
func (o *Orchestrator) locate(ctx context.Context, agentName string) (*models.StackInstance, error) {
	name := o.StackName(agentName)
	inst, err := o.prov.DescribeStack(ctx, name)
	if provisioner.IsNotFound(err) {
		return nil, &NotFoundError{AgentName: agentName, StackName: name}
	}
	if err != nil {
		return nil, fmt.Errorf("describe stack %s: %w", name, err)
	}
	if inst.Status == models.StackDeleteComplete {
		return nil, &NotFoundError{AgentName: agentName, StackName: name}
	}
	if got := inst.Parameters[models.ParamAgentName]; got != agentName {
		return nil, &OwnershipError{
			StackName: name,
			Reason:    fmt.Sprintf("AgentName parameter is %q, not %q", got, agentName),
		}
	}
	return inst, nil
}

// Describe returns the current state of the agent's stack.
func (o *Orchestrator) Describe(ctx context.Context, agentName string) (inst *models.StackInstance, err error) {
	ctx, span := startSpan(ctx, "Describe", agentName)
	defer func() { endSpan(span, err) }()

	if err := models.ValidateAgentName(agentName); err != nil {
		return nil, err
	}
	return o.locate(ctx, agentName)
}

// ── Create / Update ─────────────────────────────────────────

// prepare fetches and checks the template and the pinned image URI.
func (o *Orchestrator) prepare(ctx context.Context) ([]byte, string, error) {
	uri, err := o.templates.TrustedImageURI(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("resolve trusted image: %w", err)
	}
	if err := templates.ValidateImageURI(uri); err != nil {
		return nil, "", &ImagePinError{URI: uri, Err: err}
	}
	body, err := o.templates.Template(ctx, o.cfg.TemplateKey)
	if err != nil {
		return nil, "", fmt.Errorf("load stack template: %w", err)
	}
	if err := templates.CheckRequiredParameters(body, models.ParamAgentName, models.ParamImageTag); err != nil {
		return nil, "", err
	}
	return body, uri, nil
}

// Create provisions a new stack for agentName and waits for it to settle.
func (o *Orchestrator) Create(ctx context.Context, agentName string, params map[string]string) (desc *models.StackDescriptor, err error) {
	ctx, span := startSpan(ctx, "Create", agentName)
	defer func() { endSpan(span, err) }()

	if err := models.ValidateAgentName(agentName); err != nil {
		return nil, err
	}
	body, uri, err := o.prepare(ctx)
	if err != nil {
		return nil, err
	}

	name := o.StackName(agentName)
	merged := make(map[string]string, len(params)+2)
	maps.Copy(merged, params)
	merged[models.ParamAgentName] = agentName
	merged[models.ParamImageTag] = uri

	id, err := o.prov.CreateStack(ctx, &provisioner.StackInput{
		StackName:    name,
		TemplateBody: body,
		Parameters:   merged,
		Tags: map[string]string{
			models.TagManagedBy: o.cfg.ManagedBy,
			models.TagAgentName: agentName,
			models.TagCreatedAt: o.now().Format(time.RFC3339),
		},
		Capabilities:       provisioner.DefaultCapabilities,
		ClientRequestToken: uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("create stack %s: %w", name, err)
	}
	span.SetAttributes(attribute.String("stack.id", id))
	log.Info().Str("agent", agentName).Str("stack", name).Str("image", uri).Msg("Stack create submitted")

	inst, err := o.wait(ctx, "create", name, o.cfg.CreateTimeout)
	if err != nil {
		return nil, err
	}
	if inst.Status != models.StackCreateComplete {
		return nil, o.failure(ctx, inst)
	}
	log.Info().Str("agent", agentName).Str("stack", name).Msg("Stack created")
	return descriptor(agentName, inst, uri), nil
}

// Update re-applies the current template and image to the agent's stack.
// Supplied parameters override the stack's existing ones; AgentName and
// ImageTag are always reset. An update with nothing to change succeeds with
// NoChanges set.
func (o *Orchestrator) Update(ctx context.Context, agentName string, params map[string]string) (desc *models.StackDescriptor, err error) {
	ctx, span := startSpan(ctx, "Update", agentName)
	defer func() { endSpan(span, err) }()

	if err := models.ValidateAgentName(agentName); err != nil {
		return nil, err
	}
	existing, err := o.locate(ctx, agentName)
	if err != nil {
		return nil, err
	}
	body, uri, err := o.prepare(ctx)
	if err != nil {
		return nil, err
	}

	// Supplied values win, including empty ones, which clear a parameter.
	merged := maps.Clone(existing.Parameters)
	if merged == nil {
		merged = make(map[string]string, len(params))
	}
	if err := mergo.Merge(&merged, params, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merge parameters: %w", err)
	}
	merged[models.ParamAgentName] = agentName
	merged[models.ParamImageTag] = uri

	tags := maps.Clone(existing.Tags)
	if tags == nil {
		tags = map[string]string{}
	}
	tags[models.TagManagedBy] = o.cfg.ManagedBy
	tags[models.TagAgentName] = agentName
	if tags[models.TagCreatedAt] == "" {
		tags[models.TagCreatedAt] = existing.CreatedAt.UTC().Format(time.RFC3339)
	}

	_, err = o.prov.UpdateStack(ctx, &provisioner.StackInput{
		StackName:          existing.Name,
		TemplateBody:       body,
		Parameters:         merged,
		Tags:               tags,
		Capabilities:       provisioner.DefaultCapabilities,
		ClientRequestToken: uuid.NewString(),
	})
	if errors.Is(err, provisioner.ErrNoUpdates) {
		log.Info().Str("agent", agentName).Str("stack", existing.Name).Msg("Stack already up to date")
		d := descriptor(agentName, existing, uri)
		d.NoChanges = true
		return d, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update stack %s: %w", existing.Name, err)
	}
	log.Info().Str("agent", agentName).Str("stack", existing.Name).Str("image", uri).Msg("Stack update submitted")

	inst, err := o.wait(ctx, "update", existing.Name, o.cfg.UpdateTimeout)
	if err != nil {
		return nil, err
	}
	if inst.Status != models.StackUpdateComplete {
		return nil, o.failure(ctx, inst)
	}
	log.Info().Str("agent", agentName).Str("stack", existing.Name).Msg("Stack updated")
	return descriptor(agentName, inst, uri), nil
}

// Deploy creates the agent's stack, or updates it when it already exists.
func (o *Orchestrator) Deploy(ctx context.Context, agentName string, params map[string]string) (*models.StackDescriptor, error) {
	_, err := o.Describe(ctx, agentName)
	var nf *NotFoundError
	switch {
	case errors.As(err, &nf):
		return o.Create(ctx, agentName, params)
	case err != nil:
		return nil, err
	}
	return o.Update(ctx, agentName, params)
}

// ── Delete ──────────────────────────────────────────────────

// Delete removes the agent's stack. Only stacks tagged as managed by this
// system are deleted.
func (o *Orchestrator) Delete(ctx context.Context, agentName string) (desc *models.StackDescriptor, err error) {
	ctx, span := startSpan(ctx, "Delete", agentName)
	defer func() { endSpan(span, err) }()

	if err := models.ValidateAgentName(agentName); err != nil {
		return nil, err
	}
	existing, err := o.locate(ctx, agentName)
	if err != nil {
		return nil, err
	}
	managedBy, ok := existing.Tags[models.TagManagedBy]
	if !ok {
		return nil, &OwnershipError{StackName: existing.Name, Reason: "missing " + models.TagManagedBy + " tag"}
	}
	if managedBy != o.cfg.ManagedBy {
		return nil, &OwnershipError{
			StackName: existing.Name,
			Reason:    fmt.Sprintf("managed by %q, not %q", managedBy, o.cfg.ManagedBy),
		}
	}

	if err := o.prov.DeleteStack(ctx, existing.Name, uuid.NewString()); err != nil {
		return nil, fmt.Errorf("delete stack %s: %w", existing.Name, err)
	}
	log.Info().Str("agent", agentName).Str("stack", existing.Name).Msg("Stack delete submitted")

	inst, err := o.wait(ctx, "delete", existing.Name, o.cfg.DeleteTimeout)
	if provisioner.IsNotFound(err) {
		err = nil
		inst = &models.StackInstance{Name: existing.Name, ID: existing.ID, Status: models.StackDeleteComplete}
	}
	if err != nil {
		return nil, err
	}
	if inst.Status != models.StackDeleteComplete {
		return nil, o.failure(ctx, inst)
	}
	log.Info().Str("agent", agentName).Str("stack", existing.Name).Msg("Stack deleted")
	return &models.StackDescriptor{
		AgentName: agentName,
		StackName: existing.Name,
		StackID:   existing.ID,
		Status:    models.StackDeleteComplete,
	}, nil
}

// ── List ────────────────────────────────────────────────────

// List returns the agent stacks of this project. A stack is reported only
// when its name matches the project's naming pattern and it carries an
// AgentName parameter.
func (o *Orchestrator) List(ctx context.Context) (out []models.DeployedAgent, err error) {
	ctx, span := tracer.Start(ctx, "stack.List")
	defer func() { endSpan(span, err) }()

	summaries, err := o.prov.ListStacks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stacks: %w", err)
	}

	var (
		mu  sync.Mutex
		g   errgroup.Group
		res []models.DeployedAgent
	)
	g.SetLimit(o.cfg.ListConcurrency)
	for _, s := range summaries {
		if !o.pattern.MatchString(s.Name) || s.Status == models.StackDeleteComplete {
			continue
		}
		s := s
		g.Go(func() error {
			inst, err := o.prov.DescribeStack(ctx, s.Name)
			if provisioner.IsNotFound(err) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("describe stack %s: %w", s.Name, err)
			}
			agent := inst.Parameters[models.ParamAgentName]
			if agent == "" {
				log.Debug().Str("stack", s.Name).Msg("Skipping stack without AgentName parameter")
				return nil
			}
			mu.Lock()
			res = append(res, models.DeployedAgent{AgentName: agent, StackName: inst.Name, Status: inst.Status})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(res, func(i, j int) bool { return res[i].StackName < res[j].StackName })
	span.SetAttributes(attribute.Int("stack.count", len(res)))
	return res, nil
}

// ── Helpers ─────────────────────────────────────────────────

// failure builds a FailureError for a stack that settled anywhere but the
// expected success status.
func (o *Orchestrator) failure(ctx context.Context, inst *models.StackInstance) error {
	reason := inst.StatusReason
	events, err := o.prov.StackEvents(ctx, inst.Name, 50)
	if err != nil {
		log.Warn().Err(err).Str("stack", inst.Name).Msg("Failed to read stack events")
	} else if r := provisioner.LatestFailureReason(events); r != "" {
		reason = r
	}
	log.Error().Str("stack", inst.Name).Str("status", string(inst.Status)).Str("reason", reason).Msg("Stack operation failed")
	return &FailureError{StackName: inst.Name, Status: inst.Status, Reason: reason}
}

func descriptor(agentName string, inst *models.StackInstance, uri string) *models.StackDescriptor {
	return &models.StackDescriptor{
		AgentName: agentName,
		StackName: inst.Name,
		StackID:   inst.ID,
		Status:    inst.Status,
		Outputs:   maps.Clone(inst.Outputs),
		ImageURI:  uri,
	}
}
