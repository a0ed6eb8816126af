package provisioner

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/pkg/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"
)

// CloudFormationAPI is the subset of the CloudFormation client used here.
type CloudFormationAPI interface {
	CreateStack(ctx context.Context, in *cloudformation.CreateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error)
	UpdateStack(ctx context.Context, in *cloudformation.UpdateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error)
	DeleteStack(ctx context.Context, in *cloudformation.DeleteStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DeleteStackOutput, error)
	DescribeStacks(ctx context.Context, in *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
	DescribeStackEvents(ctx context.Context, in *cloudformation.DescribeStackEventsInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStackEventsOutput, error)
	ListStacks(ctx context.Context, in *cloudformation.ListStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.ListStacksOutput, error)
}

// CloudFormation provisions agent stacks with AWS CloudFormation.
type CloudFormation struct {
	client CloudFormationAPI
}

// NewCloudFormation creates a provisioner from an AWS config.
func NewCloudFormation(cfg aws.Config) *CloudFormation {
	return NewCloudFormationWithClient(cloudformation.NewFromConfig(cfg))
}

// NewCloudFormationWithClient wraps an existing client.
func NewCloudFormationWithClient(client CloudFormationAPI) *CloudFormation {
	return &CloudFormation{client: client}
}

func (c *CloudFormation) Kind() string { return "cloudformation" }

func (c *CloudFormation) CreateStack(ctx context.Context, in *StackInput) (string, error) {
	out, err := c.client.CreateStack(ctx, &cloudformation.CreateStackInput{
		StackName:          aws.String(in.StackName),
		TemplateBody:       aws.String(string(in.TemplateBody)),
		Parameters:         toCFNParameters(in.Parameters),
		Tags:               toCFNTags(in.Tags),
		Capabilities:       toCFNCapabilities(in.Capabilities),
		ClientRequestToken: optionalString(in.ClientRequestToken),
		OnFailure:          types.OnFailureRollback,
	})
	if err != nil {
		return "", classifyCFNError(in.StackName, err)
	}
	return aws.ToString(out.StackId), nil
}

func (c *CloudFormation) UpdateStack(ctx context.Context, in *StackInput) (string, error) {
	out, err := c.client.UpdateStack(ctx, &cloudformation.UpdateStackInput{
		StackName:          aws.String(in.StackName),
		TemplateBody:       aws.String(string(in.TemplateBody)),
		Parameters:         toCFNParameters(in.Parameters),
		Tags:               toCFNTags(in.Tags),
		Capabilities:       toCFNCapabilities(in.Capabilities),
		ClientRequestToken: optionalString(in.ClientRequestToken),
	})
	if err != nil {
		return "", classifyCFNError(in.StackName, err)
	}
	return aws.ToString(out.StackId), nil
}

func (c *CloudFormation) DeleteStack(ctx context.Context, stackName, token string) error {
	_, err := c.client.DeleteStack(ctx, &cloudformation.DeleteStackInput{
		StackName:          aws.String(stackName),
		ClientRequestToken: optionalString(token),
	})
	return classifyCFNError(stackName, err)
}

func (c *CloudFormation) DescribeStack(ctx context.Context, stackName string) (*models.StackInstance, error) {
	out, err := c.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{StackName: aws.String(stackName)})
	if err != nil {
		return nil, classifyCFNError(stackName, err)
	}
	if len(out.Stacks) == 0 {
		return nil, &StackNotFoundError{StackName: stackName}
	}
	s := out.Stacks[0]
	inst := &models.StackInstance{
		Name:         aws.ToString(s.StackName),
		ID:           aws.ToString(s.StackId),
		Status:       models.StackStatus(s.StackStatus),
		StatusReason: aws.ToString(s.StackStatusReason),
		Parameters:   make(map[string]string, len(s.Parameters)),
		Tags:         make(map[string]string, len(s.Tags)),
		Outputs:      make(map[string]string, len(s.Outputs)),
	}
	for _, p := range s.Parameters {
		inst.Parameters[aws.ToString(p.ParameterKey)] = aws.ToString(p.ParameterValue)
	}
	for _, t := range s.Tags {
		inst.Tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	for _, o := range s.Outputs {
		inst.Outputs[aws.ToString(o.OutputKey)] = aws.ToString(o.OutputValue)
	}
	if s.CreationTime != nil {
		inst.CreatedAt = *s.CreationTime
	}
	if s.LastUpdatedTime != nil {
		inst.UpdatedAt = *s.LastUpdatedTime
	}
	return inst, nil
}

func (c *CloudFormation) ListStacks(ctx context.Context) ([]models.StackSummary, error) {
	var out []models.StackSummary
	p := cloudformation.NewListStacksPaginator(c.client, &cloudformation.ListStacksInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, classifyCFNError("", err)
		}
		for _, s := range page.StackSummaries {
			if s.StackStatus == types.StackStatusDeleteComplete {
				continue
			}
			out = append(out, models.StackSummary{
				Name:   aws.ToString(s.StackName),
				ID:     aws.ToString(s.StackId),
				Status: models.StackStatus(s.StackStatus),
			})
		}
	}
	return out, nil
}

// StackEvents returns the newest events first, which is the order
// DescribeStackEvents already uses; only the first page is read.
func (c *CloudFormation) StackEvents(ctx context.Context, stackName string, limit int) ([]models.StackEvent, error) {
	out, err := c.client.DescribeStackEvents(ctx, &cloudformation.DescribeStackEventsInput{StackName: aws.String(stackName)})
	if err != nil {
		return nil, classifyCFNError(stackName, err)
	}
	events := make([]models.StackEvent, 0, len(out.StackEvents))
	for _, e := range out.StackEvents {
		ev := models.StackEvent{
			LogicalResourceID: aws.ToString(e.LogicalResourceId),
			ResourceType:      aws.ToString(e.ResourceType),
			Status:            models.StackStatus(e.ResourceStatus),
			Reason:            aws.ToString(e.ResourceStatusReason),
		}
		if e.Timestamp != nil {
			ev.Timestamp = *e.Timestamp
		}
		events = append(events, ev)
		if limit > 0 && len(events) == limit {
			break
		}
	}
	return events, nil
}

// classifyCFNError maps CloudFormation's overloaded ValidationError onto
// StackNotFoundError and ErrNoUpdates.
func classifyCFNError(stackName string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ValidationError" {
		msg := apiErr.ErrorMessage()
		switch {
		case strings.Contains(msg, "does not exist"):
			return &StackNotFoundError{StackName: stackName}
		case strings.Contains(msg, "No updates are to be performed"):
			return ErrNoUpdates
		}
	}
	return err
}

func toCFNParameters(params map[string]string) []types.Parameter {
	keys := sortedKeys(params)
	out := make([]types.Parameter, 0, len(keys))
	for _, k := range keys {
		out = append(out, types.Parameter{
			ParameterKey:   aws.String(k),
			ParameterValue: aws.String(params[k]),
		})
	}
	return out
}

func toCFNTags(tags map[string]string) []types.Tag {
	keys := sortedKeys(tags)
	out := make([]types.Tag, 0, len(keys))
	for _, k := range keys {
		out = append(out, types.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}
	return out
}

func toCFNCapabilities(caps []string) []types.Capability {
	out := make([]types.Capability, 0, len(caps))
	for _, c := range caps {
		out = append(out, types.Capability(c))
	}
	return out
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
