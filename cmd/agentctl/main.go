// agentctl drives agent configuration and stack operations in-process,
// using the same components and configuration as the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/config"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/pkg/contracts"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/pkg/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err := newRootCommand(os.Stdout).ExecuteContext(ctx)
	handleError(err)
	if err != nil {
		os.Exit(1)
	}
}

// app carries state shared by every subcommand.
type app struct {
	v          *viper.Viper
	out        io.Writer
	configPath string
	output     string
}

// flagKeys maps persistent flags onto config keys.
var flagKeys = map[string]string{
	"project":          "project_name",
	"region":           "aws.region",
	"params-backend":   "params.backend",
	"data-dir":         "params.data_dir",
	"templates-dir":    "templates.dir",
	"templates-bucket": "templates.s3_bucket",
	"provisioner":      "stacks.provisioner",
	"poll-interval":    "stacks.poll_interval",
	"log-level":        "log_level",
}

func newRootCommand(out io.Writer) *cobra.Command {
	a := &app{v: config.NewViper(), out: out}
	cmd := &cobra.Command{
		Use:           "agentctl",
		Short:         "Manage agent configurations and their infrastructure stacks",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}
	cmd.SetOut(out)

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Config file (default $AGENT_CONFIG or ./config.yaml)")
	pf.StringVarP(&a.output, "output", "o", "json", "Output format: json or yaml")
	pf.String("project", "", "Project name used in stack and parameter names")
	pf.String("region", "", "AWS region")
	pf.String("params-backend", "", "Parameter backend: memory, ssm or vault")
	pf.String("data-dir", "", "Snapshot directory for the memory backend")
	pf.String("templates-dir", "", "Directory holding stack templates")
	pf.String("templates-bucket", "", "S3 bucket holding stack templates")
	pf.String("provisioner", "", "Stack provisioner: cloudformation or simulator")
	pf.Duration("poll-interval", 0, "Stack status poll interval")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newConfigCommand(a),
		newStackCommand(a),
		newAgentCommand(a),
		newImageCommand(a),
	)
	cmd.Example = `  # Save a configuration and deploy its stack
  agentctl agent deploy support -f support.yaml --param Memory=1024

  # Remove an agent and its stack
  agentctl agent delete support --infrastructure

  # Dry run against the in-process simulator
  agentctl --provisioner simulator --params-backend memory --data-dir .agentctl agent list`
	return cmd
}

func (a *app) init(cmd *cobra.Command) error {
	root := cmd.Root().PersistentFlags()
	var bindErr error
	root.VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok && f.Changed {
			bindErr = errors.Join(bindErr, a.v.BindPFlag(key, f))
		}
	})
	if bindErr != nil {
		return bindErr
	}
	if err := config.ReadConfigFile(a.v, a.configPath); err != nil {
		return err
	}
	switch a.output {
	case "json", "yaml":
	default:
		return fmt.Errorf("unsupported output %q: want json or yaml", a.output)
	}

	// Commands print results on stdout; logs stay quiet unless asked for.
	level := zerolog.WarnLevel
	if root.Changed("log-level") || os.Getenv("AGENT_LOG_LEVEL") != "" {
		lv := a.v.GetString("log_level")
		parsed, err := zerolog.ParseLevel(lv)
		if err != nil {
			return fmt.Errorf("invalid log level %q", lv)
		}
		level = parsed
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	return nil
}

// run builds the components, calls fn and releases them. The memory
// backend writes its snapshot on release.
func (a *app) run(cmd *cobra.Command, fn func(ctx context.Context, c *server.Components) error) error {
	cfg, err := config.FromViper(a.v)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	comps, err := server.Open(ctx, cfg)
	if err != nil {
		return err
	}
	return errors.Join(fn(ctx, comps), comps.Close())
}

func handleError(err error) {
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return
	}
	message := err.Error()
	var (
		imagePin  *contracts.ImagePin
		timeout   *contracts.StackTimeout
		ownership *contracts.StackOwnership
	)
	switch {
	case errors.As(err, &imagePin):
		message = fmt.Sprintf("%s\nHint: publish a pinned image with 'agentctl image publish <registry>/<repo>:<tag>'.", err)
	case errors.As(err, &timeout):
		message = fmt.Sprintf("%s\nHint: the provisioner is still working; check 'agentctl stack describe %s' later.", err, timeout.StackName)
	case errors.As(err, &ownership):
		message = fmt.Sprintf("%s\nHint: this stack was not created for this agent by this project; delete it with the provisioner's own tooling.", err)
	case errors.Is(err, context.Canceled):
		message = fmt.Sprintf("%s\nHint: only the wait was interrupted; the stack operation keeps running.", err)
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
}
