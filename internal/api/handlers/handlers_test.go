package handlers_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/api/handlers"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/configrepo"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/stack"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/templates"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/pkg/models"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &models.ValidationError{Field: "agent_name", Reason: "must not be empty"}, http.StatusBadRequest},
		{"config missing", &configrepo.ErrNotFound{Entity: "agent configuration", Key: "qa"}, http.StatusNotFound},
		{"stack missing wrapped", fmt.Errorf("describe: %w", &stack.NotFoundError{AgentName: "qa"}), http.StatusNotFound},
		{"ownership", &stack.OwnershipError{StackName: "s", Reason: "not managed"}, http.StatusConflict},
		{"image pin", &stack.ImagePinError{Err: templates.ErrFloatingTag}, http.StatusPreconditionFailed},
		{"failure", &stack.FailureError{StackName: "s", Status: models.StackRollbackComplete}, http.StatusBadGateway},
		{"timeout", &stack.TimeoutError{StackName: "s", Operation: "create"}, http.StatusGatewayTimeout},
		{"other", errors.New("throttled"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := handlers.StatusFor(tt.err); got != tt.want {
				t.Errorf("StatusFor() = %d, want %d", got, tt.want)
			}
		})
	}
}
