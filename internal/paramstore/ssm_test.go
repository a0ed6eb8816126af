package paramstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/paramstore"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/pkg/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/smithy-go"
)

// fakeSSM is a minimal SSM client holding parameters in a map.
type fakeSSM struct {
	params   map[string]types.Parameter
	lastPut  *ssm.PutParameterInput
	pages    [][]string
	getErr   error
	describe int
}

func (f *fakeSSM) PutParameter(_ context.Context, in *ssm.PutParameterInput, _ ...func(*ssm.Options)) (*ssm.PutParameterOutput, error) {
	f.lastPut = in
	f.params[aws.ToString(in.Name)] = types.Parameter{
		Name:  in.Name,
		Value: in.Value,
		Type:  in.Type,
	}
	return &ssm.PutParameterOutput{}, nil
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.params[aws.ToString(in.Name)]
	if !ok {
		return nil, &types.ParameterNotFound{Message: aws.String("not found")}
	}
	return &ssm.GetParameterOutput{Parameter: &p}, nil
}

func (f *fakeSSM) DeleteParameter(_ context.Context, in *ssm.DeleteParameterInput, _ ...func(*ssm.Options)) (*ssm.DeleteParameterOutput, error) {
	if _, ok := f.params[aws.ToString(in.Name)]; !ok {
		return nil, &types.ParameterNotFound{Message: aws.String("not found")}
	}
	delete(f.params, aws.ToString(in.Name))
	return &ssm.DeleteParameterOutput{}, nil
}

func (f *fakeSSM) DescribeParameters(_ context.Context, in *ssm.DescribeParametersInput, _ ...func(*ssm.Options)) (*ssm.DescribeParametersOutput, error) {
	idx := f.describe
	f.describe++
	out := &ssm.DescribeParametersOutput{}
	now := time.Now()
	for _, name := range f.pages[idx] {
		out.Parameters = append(out.Parameters, types.ParameterMetadata{
			Name:             aws.String(name),
			Type:             types.ParameterTypeSecureString,
			LastModifiedDate: &now,
		})
	}
	if idx+1 < len(f.pages) {
		out.NextToken = aws.String("page-" + string(rune('1'+idx)))
	}
	return out, nil
}

func TestSSMBackend_PutAndGet(t *testing.T) {
	fake := &fakeSSM{params: map[string]types.Parameter{}}
	s := paramstore.New(paramstore.NewSSMBackendWithClient(fake, "alias/agents"))
	ctx := context.Background()

	if err := s.Put(ctx, "/agent/a/config", "{}"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if fake.lastPut.Type != types.ParameterTypeSecureString {
		t.Errorf("PutParameter Type = %q, want SecureString", fake.lastPut.Type)
	}
	if !aws.ToBool(fake.lastPut.Overwrite) {
		t.Error("PutParameter Overwrite = false, want true")
	}
	if aws.ToString(fake.lastPut.KeyId) != "alias/agents" {
		t.Errorf("PutParameter KeyId = %q", aws.ToString(fake.lastPut.KeyId))
	}

	got, found, err := s.Get(ctx, "/agent/a/config")
	if err != nil || !found || got != "{}" {
		t.Errorf("Get() = %q, %v, %v", got, found, err)
	}

	_, found, err = s.Get(ctx, "/agent/missing")
	if err != nil || found {
		t.Errorf("Get(missing) = %v, %v; want false, nil", found, err)
	}

	deleted, err := s.Delete(ctx, "/agent/missing")
	if err != nil || deleted {
		t.Errorf("Delete(missing) = %v, %v; want false, nil", deleted, err)
	}
}

func TestSSMBackend_ListFollowsNextToken(t *testing.T) {
	fake := &fakeSSM{
		params: map[string]types.Parameter{},
		pages: [][]string{
			{"/agent/a/config", "/agent/a/system-prompts/index"},
			{"/agent/a/system-prompts/p1"},
			{"/agent/a/system-prompts/p2"},
		},
	}
	s := paramstore.New(paramstore.NewSSMBackendWithClient(fake, ""))

	got, err := s.ListByPrefix(context.Background(), "/agent/a/")
	if err != nil {
		t.Fatalf("ListByPrefix() error = %v", err)
	}
	if len(got) != 4 {
		t.Errorf("ListByPrefix() returned %d items, want 4", len(got))
	}
	if fake.describe != 3 {
		t.Errorf("DescribeParameters calls = %d, want 3", fake.describe)
	}
	if got[0].Type != models.ParameterSecureString {
		t.Errorf("Type = %q", got[0].Type)
	}
}

func TestSSMBackend_ThrottlingIsTransient(t *testing.T) {
	fake := &fakeSSM{
		params: map[string]types.Parameter{},
		getErr: &smithy.GenericAPIError{Code: "ThrottlingException", Message: "Rate exceeded"},
	}
	s := paramstore.New(paramstore.NewSSMBackendWithClient(fake, ""), paramstore.WithRetry(1, time.Millisecond))

	_, _, err := s.Get(context.Background(), "/agent/a/config")
	var te *paramstore.TransientError
	if !errors.As(err, &te) {
		t.Fatalf("Get() error = %v, want *TransientError", err)
	}
}

func TestSSMBackend_AccessDeniedIsPermanent(t *testing.T) {
	fake := &fakeSSM{
		params: map[string]types.Parameter{},
		getErr: &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "nope", Fault: smithy.FaultClient},
	}
	s := paramstore.New(paramstore.NewSSMBackendWithClient(fake, ""))

	_, _, err := s.Get(context.Background(), "/agent/a/config")
	var te *paramstore.TransientError
	if err == nil || errors.As(err, &te) {
		t.Fatalf("Get() error = %v, want a permanent error", err)
	}
}
