package stack

import (
	"fmt"
	"time"

	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/pkg/models"
)

// NotFoundError is returned when an agent has no stack.
type NotFoundError struct {
	AgentName string
	StackName string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no stack %s for agent %s", e.StackName, e.AgentName)
}

// OwnershipError is returned when a stack exists under the agent's name but
// does not belong to it, or was not created by this system.
type OwnershipError struct {
	StackName string
	Reason    string
}

func (e *OwnershipError) Error() string {
	return fmt.Sprintf("stack %s: %s", e.StackName, e.Reason)
}

// FailureError is returned when a stack settles in a failed or rolled back
// state. Reason carries the provisioner's own diagnostic text.
type FailureError struct {
	StackName string
	Status    models.StackStatus
	Reason    string
}

func (e *FailureError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("stack %s ended in %s", e.StackName, e.Status)
	}
	return fmt.Sprintf("stack %s ended in %s: %s", e.StackName, e.Status, e.Reason)
}

// TimeoutError is returned when polling exceeds its ceiling. The provisioner
// operation keeps running; a later Describe reflects its outcome.
type TimeoutError struct {
	StackName  string
	Operation  string
	Waited     time.Duration
	LastStatus models.StackStatus
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s of stack %s still %s after %s", e.Operation, e.StackName, e.LastStatus, e.Waited)
}

// ImagePinError is returned when the trusted image reference is missing or
// not pinned to an explicit tag.
type ImagePinError struct {
	URI string
	Err error
}

func (e *ImagePinError) Error() string {
	if e.URI == "" {
		return fmt.Sprintf("refusing to deploy: %v", e.Err)
	}
	return fmt.Sprintf("refusing to deploy image %q: %v", e.URI, e.Err)
}

func (e *ImagePinError) Unwrap() error { return e.Err }
