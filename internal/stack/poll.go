package stack

import (
	"context"
	"fmt"
	"time"

	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/pkg/models"
	"github.com/rs/zerolog/log"
)

// wait polls stackName every PollInterval until it leaves the in-progress
// states, and returns the settled instance. Describe errors, including
// *provisioner.StackNotFoundError, are returned as is.
//
// The ceiling and ctx only bound how long the caller waits. The provisioner
// operation is never cancelled from here.
func (o *Orchestrator) wait(ctx context.Context, op, stackName string, ceiling time.Duration) (*models.StackInstance, error) {
	start := time.Now()
	deadline := time.NewTimer(ceiling)
	defer deadline.Stop()
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	var last models.StackStatus
	for {
		inst, err := o.prov.DescribeStack(ctx, stackName)
		if err != nil {
			return nil, err
		}
		if inst.Status != last {
			log.Debug().Str("stack", stackName).Str("op", op).Str("status", string(inst.Status)).Msg("Stack status")
			last = inst.Status
		}
		if !inst.Status.InProgress() {
			return inst, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("stopped waiting for %s of stack %s in %s: %w", op, stackName, last, ctx.Err())
		case <-deadline.C:
			return nil, &TimeoutError{
				StackName:  stackName,
				Operation:  op,
				Waited:     time.Since(start).Round(time.Millisecond),
				LastStatus: last,
			}
		case <-ticker.C:
		}
	}
}
