package main

import (
	"context"
	"fmt"

	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/configrepo"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/deploy"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/pkg/models"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/pkg/server"
	"github.com/spf13/cobra"
)

func newAgentCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Whole-agent operations across configuration and infrastructure",
	}

	var (
		file   string
		params map[string]string
	)
	deployCmd := &cobra.Command{
		Use:   "deploy AGENT",
		Short: "Save a configuration (optional) and create or update the agent's stack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg *models.AgentConfiguration
			if file != "" {
				data, err := readDocument(file)
				if err != nil {
					return err
				}
				if cfg, err = configrepo.DecodeSubmission(data); err != nil {
					return err
				}
			}
			return a.run(cmd, func(ctx context.Context, c *server.Components) error {
				out, err := c.Agents.DeployAgent(ctx, args[0], cfg, params)
				if err != nil {
					return err
				}
				return a.printOutcome(out)
			})
		},
	}
	deployCmd.Flags().StringVarP(&file, "file", "f", "", "Configuration file to save first, or - for stdin")
	deployCmd.Flags().StringToStringVarP(&params, "param", "p", nil, "Stack parameter KEY=VALUE (repeatable)")

	var infrastructure bool
	deleteCmd := &cobra.Command{
		Use:   "delete AGENT",
		Short: "Delete the agent's configuration and, with --infrastructure, its stack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *server.Components) error {
				out, err := c.Agents.DeleteAgentCompletely(ctx, args[0], deploy.DeleteOptions{DeleteInfrastructure: infrastructure})
				if err != nil {
					return err
				}
				return a.printOutcome(out)
			})
		},
	}
	deleteCmd.Flags().BoolVar(&infrastructure, "infrastructure", false, "Also delete the agent's stack")

	status := &cobra.Command{
		Use:   "status AGENT",
		Short: "Show the agent's configuration and stack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *server.Components) error {
				st, err := c.Agents.AgentStatus(ctx, args[0])
				if err != nil {
					return err
				}
				return a.print(st)
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List agents with a configuration, a stack, or both",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *server.Components) error {
				agents, err := c.Agents.ListAgents(ctx)
				if err != nil {
					return err
				}
				if agents == nil {
					agents = []deploy.AgentSummary{}
				}
				return a.print(agents)
			})
		},
	}

	cmd.AddCommand(deployCmd, deleteCmd, status, list)
	return cmd
}

// printOutcome prints the outcome and fails the command unless every step
// succeeded.
func (a *app) printOutcome(out *deploy.Outcome) error {
	if err := a.print(out); err != nil {
		return err
	}
	if out.Status != deploy.StatusSuccess {
		return fmt.Errorf("agent %s: %s", out.AgentName, out.Status)
	}
	return nil
}
