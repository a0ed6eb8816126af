package paramstore

import (
	"context"
	"errors"
	"strings"

	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/pkg/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/smithy-go"
)

// SSMAPI is the subset of the SSM client the backend uses.
type SSMAPI interface {
	PutParameter(ctx context.Context, in *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	DeleteParameter(ctx context.Context, in *ssm.DeleteParameterInput, optFns ...func(*ssm.Options)) (*ssm.DeleteParameterOutput, error)
	DescribeParameters(ctx context.Context, in *ssm.DescribeParametersInput, optFns ...func(*ssm.Options)) (*ssm.DescribeParametersOutput, error)
}

// SSMBackend stores parameters in AWS Systems Manager Parameter Store.
type SSMBackend struct {
	client   SSMAPI
	kmsKeyID string
}

// NewSSMBackend creates an SSM backend from an AWS config. kmsKeyID may be
// empty to use the account's default key.
func NewSSMBackend(cfg aws.Config, kmsKeyID string) *SSMBackend {
	return NewSSMBackendWithClient(ssm.NewFromConfig(cfg), kmsKeyID)
}

// NewSSMBackendWithClient wraps an existing client.
func NewSSMBackendWithClient(client SSMAPI, kmsKeyID string) *SSMBackend {
	return &SSMBackend{client: client, kmsKeyID: kmsKeyID}
}

func (b *SSMBackend) Kind() string { return "ssm" }

func (b *SSMBackend) Put(ctx context.Context, rec models.ParameterRecord) error {
	in := &ssm.PutParameterInput{
		Name:      aws.String(rec.Path),
		Value:     aws.String(rec.Value),
		Type:      types.ParameterType(rec.Type),
		Tier:      types.ParameterTier(rec.Tier),
		Overwrite: aws.Bool(true),
	}
	if rec.Description != "" {
		in.Description = aws.String(rec.Description)
	}
	if rec.Type == models.ParameterSecureString && b.kmsKeyID != "" {
		in.KeyId = aws.String(b.kmsKeyID)
	}
	_, err := b.client.PutParameter(ctx, in)
	return classifySSMError("put", rec.Path, err)
}

func (b *SSMBackend) Get(ctx context.Context, path string, decrypt bool) (*models.ParameterRecord, error) {
	out, err := b.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(path),
		WithDecryption: aws.Bool(decrypt),
	})
	if err != nil {
		return nil, classifySSMError("get", path, err)
	}
	if out.Parameter == nil {
		return nil, &NotFoundError{Path: path}
	}
	p := out.Parameter
	rec := &models.ParameterRecord{
		Path:  aws.ToString(p.Name),
		Value: aws.ToString(p.Value),
		Type:  models.ParameterType(p.Type),
	}
	if p.LastModifiedDate != nil {
		rec.LastModified = *p.LastModifiedDate
	}
	return rec, nil
}

func (b *SSMBackend) Delete(ctx context.Context, path string) error {
	_, err := b.client.DeleteParameter(ctx, &ssm.DeleteParameterInput{Name: aws.String(path)})
	return classifySSMError("delete", path, err)
}

func (b *SSMBackend) ListPage(ctx context.Context, prefix, token string) (*Page, error) {
	in := &ssm.DescribeParametersInput{
		ParameterFilters: []types.ParameterStringFilter{{
			Key:    aws.String("Name"),
			Option: aws.String("BeginsWith"),
			Values: []string{prefix},
		}},
		MaxResults: aws.Int32(DefaultMemoryPageSize),
	}
	if token != "" {
		in.NextToken = aws.String(token)
	}
	out, err := b.client.DescribeParameters(ctx, in)
	if err != nil {
		return nil, classifySSMError("list", prefix, err)
	}
	page := &Page{NextToken: aws.ToString(out.NextToken)}
	for _, p := range out.Parameters {
		md := models.ParameterMetadata{
			Path: aws.ToString(p.Name),
			Type: models.ParameterType(p.Type),
		}
		if p.LastModifiedDate != nil {
			md.LastModified = *p.LastModifiedDate
		}
		page.Items = append(page.Items, md)
	}
	return page, nil
}

// transientSSMCodes are API error codes that are safe to retry.
var transientSSMCodes = map[string]bool{
	"ThrottlingException":  true,
	"TooManyUpdates":       true,
	"InternalServerError":  true,
	"ServiceUnavailable":   true,
	"RequestLimitExceeded": true,
}

// classifySSMError maps SDK errors onto NotFoundError / TransientError.
func classifySSMError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var nf *types.ParameterNotFound
	if errors.As(err, &nf) {
		return &NotFoundError{Path: path}
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if apiErr.ErrorCode() == "ParameterNotFound" {
			return &NotFoundError{Path: path}
		}
		if transientSSMCodes[apiErr.ErrorCode()] || apiErr.ErrorFault() == smithy.FaultServer {
			return &TransientError{Op: op, Path: path, Err: err}
		}
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "connection reset") {
		return &TransientError{Op: op, Path: path, Err: err}
	}
	return err
}
