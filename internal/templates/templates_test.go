package templates_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/paramstore"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/templates"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const agentTemplate = `
AWSTemplateFormatVersion: "2010-09-09"
Parameters:
  AgentName:
    Type: String
  ImageTag:
    Type: String
  DesiredCount:
    Type: Number
    Default: 1
Resources:
  Service:
    Type: AWS::ECS::Service
    Properties:
      ServiceName: !Sub "${AgentName}-svc"
      DesiredCount: !Ref DesiredCount
`

func TestValidateImageURI(t *testing.T) {
	tests := []struct {
		uri     string
		wantErr bool
	}{
		{"123456789012.dkr.ecr.us-east-1.amazonaws.com/agents/runtime:v1.4.2", false},
		{"localhost:5000/agent:abc123", false},
		{"", true},
		{"latest", true},
		{"123456789012.dkr.ecr.us-east-1.amazonaws.com/agents/runtime:latest", true},
		{"123456789012.dkr.ecr.us-east-1.amazonaws.com/agents/runtime", true},
		{"runtime:v1", true},
		{"NOT A REFERENCE", true},
	}
	for _, tt := range tests {
		err := templates.ValidateImageURI(tt.uri)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateImageURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
		}
	}
	if err := templates.ValidateImageURI("registry.example.com/a:latest"); !errors.Is(err, templates.ErrFloatingTag) {
		t.Errorf("latest tag error = %v, want ErrFloatingTag", err)
	}
	if err := templates.ValidateImageURI(""); !errors.Is(err, templates.ErrImageUnavailable) {
		t.Errorf("empty uri error = %v, want ErrImageUnavailable", err)
	}
}

func TestCheckRequiredParameters(t *testing.T) {
	if err := templates.CheckRequiredParameters([]byte(agentTemplate), "AgentName", "ImageTag"); err != nil {
		t.Fatalf("CheckRequiredParameters() error = %v", err)
	}

	err := templates.CheckRequiredParameters([]byte(agentTemplate), "AgentName", "DesiredCount", "Missing")
	if err == nil {
		t.Fatal("CheckRequiredParameters() error = nil, want problems")
	}
	for _, want := range []string{"DesiredCount must not have a Default", "Missing is not declared"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}

	jsonTemplate := `{"Parameters": {"AgentName": {"Type": "String"}, "ImageTag": {"Type": "String"}}}`
	if err := templates.CheckRequiredParameters([]byte(jsonTemplate), "AgentName", "ImageTag"); err != nil {
		t.Errorf("JSON template error = %v", err)
	}

	if err := templates.CheckRequiredParameters([]byte("Resources: {}"), "AgentName"); err == nil {
		t.Error("template without Parameters accepted")
	}
}

func TestSource_FileLoaderAndImageURI(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "agent.yaml"), []byte(agentTemplate), 0o644); err != nil {
		t.Fatal(err)
	}
	backend := paramstore.NewMemoryBackend()
	t.Cleanup(func() { backend.Close() })
	params := paramstore.New(backend)
	src := templates.NewSource(templates.FileLoader{Dir: dir}, params, "acme")
	ctx := context.Background()

	body, err := src.Template(ctx, "agent.yaml")
	if err != nil {
		t.Fatalf("Template() error = %v", err)
	}
	if !bytes.Contains(body, []byte("AgentName")) {
		t.Error("Template() returned unexpected body")
	}
	if _, err := src.Template(ctx, "../../etc/passwd"); err == nil {
		t.Error("Template() escaped the template directory")
	}

	uri, err := src.TrustedImageURI(ctx)
	if err != nil || uri != "" {
		t.Fatalf("TrustedImageURI() before publish = %q, %v", uri, err)
	}
	_ = params.Put(ctx, "/acme/agent/image-uri", "registry.example.com/agent:v7\n")
	uri, err = src.TrustedImageURI(ctx)
	if err != nil || uri != "registry.example.com/agent:v7" {
		t.Errorf("TrustedImageURI() = %q, %v", uri, err)
	}
}

type fakeS3 struct {
	objects map[string]string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3Loader(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{"tpl-bucket/stacks/agent.yaml": agentTemplate}}
	loader := templates.NewS3LoaderWithClient(fake, "tpl-bucket", "/stacks/")

	body, err := loader.Load(context.Background(), "agent.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(body) != agentTemplate {
		t.Error("Load() returned unexpected body")
	}
	if _, err := loader.Load(context.Background(), "missing.yaml"); err == nil {
		t.Error("Load(missing) error = nil")
	}
}
