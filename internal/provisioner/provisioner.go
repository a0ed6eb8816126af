// Package provisioner talks to the infrastructure provisioner that runs agent
// stacks.
//
// The control plane only needs a narrow, stack-name keyed view of the
// provisioner: submit create/update/delete, describe, list and read events.
// Everything else (polling, naming, ownership checks) lives in
// internal/stack.
//
// Implementations:
//
//	Provisioner
//	    ├─► CloudFormation (AWS, production)
//	    └─► Simulator      (in-memory state machine for local runs and tests)
package provisioner

import (
	"context"
	"errors"

	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/pkg/models"
)

// Capabilities acknowledged on every create/update.
var DefaultCapabilities = []string{
	"CAPABILITY_IAM",
	"CAPABILITY_NAMED_IAM",
	"CAPABILITY_AUTO_EXPAND",
}

// StackInput is the payload of a create or update request.
type StackInput struct {
	StackName          string
	TemplateBody       []byte
	Parameters         map[string]string
	Tags               map[string]string
	Capabilities       []string
	ClientRequestToken string
}

// Provisioner is implemented by each infrastructure backend.
type Provisioner interface {
	// Kind returns the backend identifier ("cloudformation", "simulator").
	Kind() string

	// CreateStack submits a create and returns the stack ID.
	CreateStack(ctx context.Context, in *StackInput) (string, error)

	// UpdateStack submits an update and returns the stack ID. It returns
	// ErrNoUpdates when the provisioner reports nothing to change.
	UpdateStack(ctx context.Context, in *StackInput) (string, error)

	// DeleteStack submits a delete.
	DeleteStack(ctx context.Context, stackName, clientRequestToken string) error

	// DescribeStack returns the current stack state, or *StackNotFoundError.
	DescribeStack(ctx context.Context, stackName string) (*models.StackInstance, error)

	// ListStacks returns every stack that has not been deleted.
	ListStacks(ctx context.Context) ([]models.StackSummary, error)

	// StackEvents returns up to limit events, newest first.
	StackEvents(ctx context.Context, stackName string, limit int) ([]models.StackEvent, error)
}

// ErrNoUpdates is returned by UpdateStack when the submitted template and
// parameters match the deployed stack.
var ErrNoUpdates = errors.New("no updates are to be performed")

// StackNotFoundError is returned when a stack does not exist.
type StackNotFoundError struct {
	StackName string
}

func (e *StackNotFoundError) Error() string {
	return "stack " + e.StackName + " does not exist"
}

// IsNotFound reports whether err is a *StackNotFoundError.
func IsNotFound(err error) bool {
	var nf *StackNotFoundError
	return errors.As(err, &nf)
}

// LatestFailureReason returns the reason of the newest failed event, or "".
func LatestFailureReason(events []models.StackEvent) string {
	for _, ev := range events {
		if ev.Status.Failed() && ev.Reason != "" {
			return ev.Reason
		}
	}
	return ""
}
