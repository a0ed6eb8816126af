package provisioner

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/pkg/models"
	"github.com/rs/zerolog/log"
)

// Outcome scripts how the next mutation of a stack ends.
type Outcome struct {
	// Status is the terminal status to reach. Zero means the natural success
	// status of the operation.
	Status models.StackStatus
	// Reason is attached to a failed resource event.
	Reason string
	// Hang keeps the stack in progress forever.
	Hang bool
}

type transition struct {
	remaining int
	final     models.StackStatus
	reason    string
	hang      bool
	gone      bool
	restore   map[string]string // parameters to restore on update rollback
}

type simStack struct {
	inst     models.StackInstance
	template []byte
	pending  *transition
	events   []models.StackEvent // newest first
}

// Simulator is an in-memory Provisioner. Each mutation moves the stack into
// an *_IN_PROGRESS state that settles after a fixed number of describes, so
// callers exercise their real polling loops. Used for local runs and tests.
type Simulator struct {
	mu      sync.Mutex
	stacks  map[string]*simStack
	scripts map[string][]Outcome
	steps   int
	nextID  int
	now     func() time.Time
}

// NewSimulator creates a simulator whose operations settle after steps
// describe calls (minimum 1).
func NewSimulator(steps int) *Simulator {
	if steps < 1 {
		steps = 1
	}
	return &Simulator{
		stacks:  make(map[string]*simStack),
		scripts: make(map[string][]Outcome),
		steps:   steps,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Simulator) Kind() string { return "simulator" }

// Script queues an outcome for the next mutation of stackName.
func (s *Simulator) Script(stackName string, o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[stackName] = append(s.scripts[stackName], o)
}

// Seed installs a stack in a settled state, bypassing create.
func (s *Simulator) Seed(inst models.StackInstance, template []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inst.ID == "" {
		s.nextID++
		inst.ID = fmt.Sprintf("sim:stack/%s/%d", inst.Name, s.nextID)
	}
	if inst.Status == "" {
		inst.Status = models.StackCreateComplete
	}
	for _, m := range []*map[string]string{&inst.Parameters, &inst.Tags, &inst.Outputs} {
		if *m == nil {
			*m = map[string]string{}
		}
	}
	s.stacks[inst.Name] = &simStack{inst: inst, template: template}
}

func (s *Simulator) nextOutcome(name string) Outcome {
	q := s.scripts[name]
	if len(q) == 0 {
		return Outcome{}
	}
	s.scripts[name] = q[1:]
	return q[0]
}

func (s *Simulator) CreateStack(_ context.Context, in *StackInput) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stacks[in.StackName]; ok {
		return "", fmt.Errorf("stack [%s] already exists", in.StackName)
	}
	s.nextID++
	now := s.now()
	st := &simStack{
		inst: models.StackInstance{
			Name:       in.StackName,
			ID:         fmt.Sprintf("sim:stack/%s/%d", in.StackName, s.nextID),
			Status:     models.StackCreateInProgress,
			Parameters: maps.Clone(in.Parameters),
			Tags:       maps.Clone(in.Tags),
			Outputs:    map[string]string{},
			CreatedAt:  now,
		},
		template: in.TemplateBody,
	}
	o := s.nextOutcome(in.StackName)
	final := o.Status
	if final == "" {
		final = models.StackCreateComplete
	}
	st.pending = &transition{remaining: s.steps, final: final, reason: o.Reason, hang: o.Hang}
	st.pushEvent(in.StackName, "AWS::CloudFormation::Stack", models.StackCreateInProgress, "User Initiated", now)
	s.stacks[in.StackName] = st

	log.Debug().Str("stack", in.StackName).Str("final", string(final)).Msg("Simulated create submitted")
	return st.inst.ID, nil
}

func (s *Simulator) UpdateStack(_ context.Context, in *StackInput) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stacks[in.StackName]
	if !ok {
		return "", &StackNotFoundError{StackName: in.StackName}
	}
	if st.inst.Status.InProgress() {
		return "", fmt.Errorf("stack %s is in %s state and can not be updated", in.StackName, st.inst.Status)
	}
	if bytes.Equal(st.template, in.TemplateBody) &&
		maps.Equal(st.inst.Parameters, in.Parameters) &&
		maps.Equal(st.inst.Tags, in.Tags) {
		return "", ErrNoUpdates
	}

	o := s.nextOutcome(in.StackName)
	final := o.Status
	if final == "" {
		final = models.StackUpdateComplete
	}
	now := s.now()
	st.pending = &transition{
		remaining: s.steps,
		final:     final,
		reason:    o.Reason,
		hang:      o.Hang,
		restore:   maps.Clone(st.inst.Parameters),
	}
	st.inst.Status = models.StackUpdateInProgress
	st.inst.Parameters = maps.Clone(in.Parameters)
	st.inst.Tags = maps.Clone(in.Tags)
	st.inst.UpdatedAt = now
	st.template = in.TemplateBody
	st.pushEvent(in.StackName, "AWS::CloudFormation::Stack", models.StackUpdateInProgress, "User Initiated", now)
	return st.inst.ID, nil
}

func (s *Simulator) DeleteStack(_ context.Context, stackName, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stacks[stackName]
	if !ok {
		return nil // deleting a missing stack is a no-op, as in CloudFormation
	}
	if st.inst.Status == models.StackDeleteInProgress {
		return nil
	}
	o := s.nextOutcome(stackName)
	final := o.Status
	if final == "" {
		final = models.StackDeleteComplete
	}
	st.inst.Status = models.StackDeleteInProgress
	st.pending = &transition{
		remaining: s.steps,
		final:     final,
		reason:    o.Reason,
		hang:      o.Hang,
		gone:      final == models.StackDeleteComplete,
	}
	st.pushEvent(stackName, "AWS::CloudFormation::Stack", models.StackDeleteInProgress, "User Initiated", s.now())
	return nil
}

func (s *Simulator) DescribeStack(_ context.Context, stackName string) (*models.StackInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stacks[stackName]
	if !ok {
		return nil, &StackNotFoundError{StackName: stackName}
	}
	if st.advance(s.now()) {
		delete(s.stacks, stackName)
		return nil, &StackNotFoundError{StackName: stackName}
	}
	out := st.inst
	out.Parameters = maps.Clone(st.inst.Parameters)
	out.Tags = maps.Clone(st.inst.Tags)
	out.Outputs = maps.Clone(st.inst.Outputs)
	return &out, nil
}

func (s *Simulator) ListStacks(_ context.Context) ([]models.StackSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.StackSummary, 0, len(s.stacks))
	for _, st := range s.stacks {
		out = append(out, models.StackSummary{Name: st.inst.Name, ID: st.inst.ID, Status: st.inst.Status})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Simulator) StackEvents(_ context.Context, stackName string, limit int) ([]models.StackEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stacks[stackName]
	if !ok {
		return nil, &StackNotFoundError{StackName: stackName}
	}
	events := st.events
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return append([]models.StackEvent(nil), events...), nil
}

// advance moves a pending transition one step. It reports true when the
// stack has been deleted.
func (st *simStack) advance(now time.Time) bool {
	tr := st.pending
	if tr == nil || tr.hang {
		return false
	}
	tr.remaining--
	if tr.remaining > 0 {
		return false
	}
	st.pending = nil
	if tr.gone {
		return true
	}
	if tr.final.Failed() {
		reason := tr.reason
		if reason == "" {
			reason = "Resource creation cancelled"
		}
		st.pushEvent("AgentService", "AWS::ECS::Service", failedResourceStatus(st.inst.Status), reason, now)
		st.inst.StatusReason = reason
		if tr.restore != nil {
			st.inst.Parameters = tr.restore
		}
	} else {
		st.inst.StatusReason = ""
		if agent := st.inst.Parameters[models.ParamAgentName]; agent != "" {
			st.inst.Outputs["AgentName"] = agent
			st.inst.Outputs["ServiceName"] = agent + "-svc"
		}
	}
	st.inst.Status = tr.final
	st.pushEvent(st.inst.Name, "AWS::CloudFormation::Stack", tr.final, "", now)
	return false
}

func failedResourceStatus(inProgress models.StackStatus) models.StackStatus {
	switch inProgress {
	case models.StackUpdateInProgress:
		return models.StackUpdateFailed
	case models.StackDeleteInProgress:
		return models.StackDeleteFailed
	}
	return models.StackCreateFailed
}

func (st *simStack) pushEvent(logicalID, resourceType string, status models.StackStatus, reason string, ts time.Time) {
	ev := models.StackEvent{
		LogicalResourceID: logicalID,
		ResourceType:      resourceType,
		Status:            status,
		Reason:            reason,
		Timestamp:         ts,
	}
	st.events = append([]models.StackEvent{ev}, st.events...)
}
