package provisioner_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/provisioner"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/pkg/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"
)

// ─── CloudFormation ──────────────────────────────────────────

type fakeCFN struct {
	updateErr   error
	describeErr error
	stacks      []types.Stack
	listPages   [][]types.StackSummary
	listCalls   int
	events      []types.StackEvent
	lastCreate  *cloudformation.CreateStackInput
}

func (f *fakeCFN) CreateStack(_ context.Context, in *cloudformation.CreateStackInput, _ ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error) {
	f.lastCreate = in
	return &cloudformation.CreateStackOutput{StackId: aws.String("arn:stack/" + aws.ToString(in.StackName))}, nil
}

func (f *fakeCFN) UpdateStack(_ context.Context, in *cloudformation.UpdateStackInput, _ ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &cloudformation.UpdateStackOutput{StackId: aws.String("arn:stack/" + aws.ToString(in.StackName))}, nil
}

func (f *fakeCFN) DeleteStack(context.Context, *cloudformation.DeleteStackInput, ...func(*cloudformation.Options)) (*cloudformation.DeleteStackOutput, error) {
	return &cloudformation.DeleteStackOutput{}, nil
}

func (f *fakeCFN) DescribeStacks(context.Context, *cloudformation.DescribeStacksInput, ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error) {
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	return &cloudformation.DescribeStacksOutput{Stacks: f.stacks}, nil
}

func (f *fakeCFN) DescribeStackEvents(context.Context, *cloudformation.DescribeStackEventsInput, ...func(*cloudformation.Options)) (*cloudformation.DescribeStackEventsOutput, error) {
	return &cloudformation.DescribeStackEventsOutput{StackEvents: f.events}, nil
}

func (f *fakeCFN) ListStacks(_ context.Context, _ *cloudformation.ListStacksInput, _ ...func(*cloudformation.Options)) (*cloudformation.ListStacksOutput, error) {
	idx := f.listCalls
	f.listCalls++
	out := &cloudformation.ListStacksOutput{StackSummaries: f.listPages[idx]}
	if idx+1 < len(f.listPages) {
		out.NextToken = aws.String("next")
	}
	return out, nil
}

func validationError(msg string) error {
	return &smithy.GenericAPIError{Code: "ValidationError", Message: msg, Fault: smithy.FaultClient}
}

func TestCloudFormation_CreateSendsSortedParameters(t *testing.T) {
	fake := &fakeCFN{}
	cfn := provisioner.NewCloudFormationWithClient(fake)

	id, err := cfn.CreateStack(context.Background(), &provisioner.StackInput{
		StackName:    "acme-agent-qa",
		TemplateBody: []byte("{}"),
		Parameters:   map[string]string{"ImageTag": "r/a:v1", "AgentName": "qa"},
		Tags:         map[string]string{"ManagedBy": "acme"},
		Capabilities: provisioner.DefaultCapabilities,
	})
	if err != nil {
		t.Fatalf("CreateStack() error = %v", err)
	}
	if id != "arn:stack/acme-agent-qa" {
		t.Errorf("CreateStack() id = %q", id)
	}
	params := fake.lastCreate.Parameters
	if len(params) != 2 || aws.ToString(params[0].ParameterKey) != "AgentName" {
		t.Errorf("Parameters = %+v, want AgentName first", params)
	}
	if len(fake.lastCreate.Capabilities) != 3 {
		t.Errorf("Capabilities = %v", fake.lastCreate.Capabilities)
	}
	if fake.lastCreate.ClientRequestToken != nil {
		t.Error("empty token should not be sent")
	}
}

func TestCloudFormation_ErrorClassification(t *testing.T) {
	fake := &fakeCFN{updateErr: validationError("No updates are to be performed.")}
	cfn := provisioner.NewCloudFormationWithClient(fake)
	ctx := context.Background()

	if _, err := cfn.UpdateStack(ctx, &provisioner.StackInput{StackName: "s"}); !errors.Is(err, provisioner.ErrNoUpdates) {
		t.Errorf("UpdateStack() error = %v, want ErrNoUpdates", err)
	}

	fake.describeErr = validationError("Stack with id s does not exist")
	if _, err := cfn.DescribeStack(ctx, "s"); !provisioner.IsNotFound(err) {
		t.Errorf("DescribeStack() error = %v, want StackNotFoundError", err)
	}

	fake.describeErr = validationError("Template format error")
	_, err := cfn.DescribeStack(ctx, "s")
	if err == nil || provisioner.IsNotFound(err) {
		t.Errorf("DescribeStack() error = %v, want passthrough", err)
	}
}

func TestCloudFormation_DescribeMapsFields(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	fake := &fakeCFN{stacks: []types.Stack{{
		StackName:    aws.String("acme-agent-qa"),
		StackId:      aws.String("arn:1"),
		StackStatus:  types.StackStatusRollbackComplete,
		CreationTime: &created,
		Parameters:   []types.Parameter{{ParameterKey: aws.String("AgentName"), ParameterValue: aws.String("qa")}},
		Tags:         []types.Tag{{Key: aws.String("ManagedBy"), Value: aws.String("acme")}},
		Outputs:      []types.Output{{OutputKey: aws.String("Url"), OutputValue: aws.String("http://x")}},
	}}}
	cfn := provisioner.NewCloudFormationWithClient(fake)

	inst, err := cfn.DescribeStack(context.Background(), "acme-agent-qa")
	if err != nil {
		t.Fatalf("DescribeStack() error = %v", err)
	}
	if inst.Status != models.StackRollbackComplete || !inst.Status.Failed() {
		t.Errorf("Status = %q, want failed ROLLBACK_COMPLETE", inst.Status)
	}
	if inst.Parameters["AgentName"] != "qa" || inst.Tags["ManagedBy"] != "acme" || inst.Outputs["Url"] != "http://x" {
		t.Errorf("DescribeStack() = %+v", inst)
	}
	if !inst.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v", inst.CreatedAt)
	}
}

func TestCloudFormation_ListStacksPaginatesAndSkipsDeleted(t *testing.T) {
	fake := &fakeCFN{listPages: [][]types.StackSummary{
		{{StackName: aws.String("a"), StackStatus: types.StackStatusCreateComplete}},
		{
			{StackName: aws.String("b"), StackStatus: types.StackStatusDeleteComplete},
			{StackName: aws.String("c"), StackStatus: types.StackStatusUpdateComplete},
		},
	}}
	cfn := provisioner.NewCloudFormationWithClient(fake)

	got, err := cfn.ListStacks(context.Background())
	if err != nil {
		t.Fatalf("ListStacks() error = %v", err)
	}
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "c" {
		t.Errorf("ListStacks() = %+v", got)
	}
	if fake.listCalls != 2 {
		t.Errorf("ListStacks calls = %d, want 2", fake.listCalls)
	}
}

func TestLatestFailureReason(t *testing.T) {
	events := []models.StackEvent{
		{Status: models.StackRollbackComplete},
		{Status: models.StackCreateFailed, Reason: "Resource handler returned message: access denied"},
		{Status: models.StackCreateFailed, Reason: "older"},
	}
	if got := provisioner.LatestFailureReason(events); got != "Resource handler returned message: access denied" {
		t.Errorf("LatestFailureReason() = %q", got)
	}
	if got := provisioner.LatestFailureReason(nil); got != "" {
		t.Errorf("LatestFailureReason(nil) = %q", got)
	}
}

// ─── Simulator ───────────────────────────────────────────────

func describeUntilSettled(t *testing.T, sim *provisioner.Simulator, name string) (*models.StackInstance, error) {
	t.Helper()
	for i := 0; i < 10; i++ {
		inst, err := sim.DescribeStack(context.Background(), name)
		if err != nil || !inst.Status.InProgress() {
			return inst, err
		}
	}
	t.Fatalf("stack %s never settled", name)
	return nil, nil
}

func TestSimulator_Lifecycle(t *testing.T) {
	sim := provisioner.NewSimulator(2)
	ctx := context.Background()
	in := &provisioner.StackInput{
		StackName:    "acme-agent-qa",
		TemplateBody: []byte("tpl"),
		Parameters:   map[string]string{"AgentName": "qa", "ImageTag": "r/a:v1"},
		Tags:         map[string]string{"ManagedBy": "acme"},
	}

	if _, err := sim.CreateStack(ctx, in); err != nil {
		t.Fatalf("CreateStack() error = %v", err)
	}
	inst, err := describeUntilSettled(t, sim, in.StackName)
	if err != nil || inst.Status != models.StackCreateComplete {
		t.Fatalf("after create = %+v, %v", inst, err)
	}

	if _, err := sim.UpdateStack(ctx, in); !errors.Is(err, provisioner.ErrNoUpdates) {
		t.Errorf("identical UpdateStack() error = %v, want ErrNoUpdates", err)
	}

	in.Parameters["ImageTag"] = "r/a:v2"
	if _, err := sim.UpdateStack(ctx, in); err != nil {
		t.Fatalf("UpdateStack() error = %v", err)
	}
	if _, err := sim.UpdateStack(ctx, in); err == nil {
		t.Error("UpdateStack() while in progress should be rejected")
	}
	inst, _ = describeUntilSettled(t, sim, in.StackName)
	if inst.Status != models.StackUpdateComplete || inst.Parameters["ImageTag"] != "r/a:v2" {
		t.Errorf("after update = %+v", inst)
	}

	if err := sim.DeleteStack(ctx, in.StackName, ""); err != nil {
		t.Fatalf("DeleteStack() error = %v", err)
	}
	if _, err := describeUntilSettled(t, sim, in.StackName); !provisioner.IsNotFound(err) {
		t.Errorf("after delete error = %v, want not found", err)
	}
}

func TestSimulator_ScriptedRollback(t *testing.T) {
	sim := provisioner.NewSimulator(1)
	ctx := context.Background()
	sim.Script("s", provisioner.Outcome{Status: models.StackRollbackComplete, Reason: "quota exceeded"})

	_, _ = sim.CreateStack(ctx, &provisioner.StackInput{StackName: "s"})
	inst, err := describeUntilSettled(t, sim, "s")
	if err != nil {
		t.Fatalf("DescribeStack() error = %v", err)
	}
	if inst.Status != models.StackRollbackComplete {
		t.Errorf("Status = %q", inst.Status)
	}
	events, _ := sim.StackEvents(ctx, "s", 10)
	if got := provisioner.LatestFailureReason(events); got != "quota exceeded" {
		t.Errorf("LatestFailureReason() = %q", got)
	}
}
