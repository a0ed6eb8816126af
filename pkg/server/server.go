// Package server provides the public entry point for initializing the
// agent orchestration control plane.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
//
// The agentctl CLI uses Open to build the same components without HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/api"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/api/handlers"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/config"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/configrepo"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/deploy"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/paramstore"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/provisioner"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/stack"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/telemetry"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/templates"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/pkg/contracts"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/rs/zerolog/log"
)

// simulatorSteps is how many polls a simulated stack stays in progress.
const simulatorSteps = 3

// Components are the wired services of the control plane.
type Components struct {
	Params  contracts.ParameterStore
	Configs contracts.ConfigRepository
	Stacks  contracts.StackOrchestrator
	Agents  contracts.DeploymentService

	backend paramstore.Backend
}

// Close releases the parameter backend.
func (c *Components) Close() error {
	if closer, ok := c.backend.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Open builds every component from cfg.
func Open(ctx context.Context, cfg *config.Config) (*Components, error) {
	var awsCfg aws.Config
	if cfg.NeedsAWS() {
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		loaded, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		awsCfg = loaded
	}

	backend, err := newBackend(cfg, awsCfg)
	if err != nil {
		return nil, err
	}
	params := paramstore.New(backend)
	log.Info().Str("backend", backend.Kind()).Msg("Parameter store initialized")

	var loader templates.BlobLoader = templates.FileLoader{Dir: cfg.Templates.Dir}
	if cfg.Templates.S3Bucket != "" {
		loader = templates.NewS3Loader(awsCfg, cfg.Templates.S3Bucket, cfg.Templates.S3Prefix)
	}
	source := templates.NewSource(loader, params, cfg.ProjectName)

	var prov provisioner.Provisioner
	switch cfg.Stacks.Provisioner {
	case "simulator":
		prov = provisioner.NewSimulator(simulatorSteps)
	default:
		prov = provisioner.NewCloudFormation(awsCfg)
	}
	log.Info().Str("provisioner", prov.Kind()).Msg("Stack provisioner initialized")

	repo := configrepo.New(params)
	orch := stack.New(stack.Config{
		ProjectName:   cfg.ProjectName,
		ManagedBy:     cfg.Stacks.ManagedBy,
		TemplateKey:   cfg.Templates.Key,
		PollInterval:  cfg.Stacks.PollInterval,
		CreateTimeout: cfg.Stacks.CreateTimeout,
		UpdateTimeout: cfg.Stacks.UpdateTimeout,
		DeleteTimeout: cfg.Stacks.DeleteTimeout,
	}, source, prov)

	return &Components{
		Params:  params,
		Configs: repo,
		Stacks:  orch,
		Agents:  deploy.New(repo, orch),
		backend: backend,
	}, nil
}

func newBackend(cfg *config.Config, awsCfg aws.Config) (paramstore.Backend, error) {
	switch cfg.Params.Backend {
	case "ssm":
		return paramstore.NewSSMBackend(awsCfg, cfg.Params.KMSKeyID), nil
	case "vault":
		b, err := paramstore.NewVaultBackend(paramstore.VaultConfig{
			Address:   cfg.Params.Vault.Address,
			Token:     cfg.Params.Vault.Token,
			Namespace: cfg.Params.Vault.Namespace,
			Mount:     cfg.Params.Vault.Mount,
		})
		if err != nil {
			return nil, fmt.Errorf("init vault backend: %w", err)
		}
		return b, nil
	default:
		return paramstore.NewMemoryBackend(paramstore.WithSnapshot(cfg.Params.DataDir)), nil
	}
}

// Server holds the initialized control plane.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	*Components

	Config *config.Config

	// Port is the port the server should listen on.
	Port int

	shutdownTelemetry telemetry.Shutdown
}

// New loads configuration and initializes the server.
func New(ctx context.Context) (*Server, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(ctx, cfg)
}

// NewWithConfig initializes the control plane with an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(ctx, cfg.Telemetry, cfg.Version, cfg.ProjectName)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	comps, err := Open(ctx, cfg)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	h := handlers.New(comps.Configs, comps.Stacks, comps.Agents)
	return &Server{
		Handler:           api.NewRouter(cfg, h),
		Components:        comps,
		Config:            cfg,
		Port:              cfg.Port,
		shutdownTelemetry: shutdown,
	}, nil
}

// Shutdown flushes telemetry and closes the parameter backend.
func (s *Server) Shutdown(ctx context.Context) error {
	return errors.Join(s.shutdownTelemetry(ctx), s.Components.Close())
}
