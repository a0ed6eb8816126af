package main

import (
	"context"
	"fmt"

	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/configrepo"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/pkg/server"
	"github.com/spf13/cobra"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and write agent configurations",
	}

	get := &cobra.Command{
		Use:   "get AGENT",
		Short: "Print an agent's configuration with its system prompt resolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *server.Components) error {
				cfg, err := c.Configs.Load(ctx, args[0])
				if err != nil {
					return err
				}
				return a.print(cfg)
			})
		},
	}

	var file string
	save := &cobra.Command{
		Use:   "save AGENT -f FILE",
		Short: "Merge a configuration document into the stored record",
		Long: `Merge a JSON or YAML configuration into the stored record.

Integration groups (memory, knowledge base, observability, guardrail) sent
without details keep the details already stored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readDocument(file)
			if err != nil {
				return err
			}
			cfg, err := configrepo.DecodeSubmission(data)
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, c *server.Components) error {
				res, err := c.Configs.Save(ctx, args[0], cfg)
				if err != nil {
					return err
				}
				return a.print(res)
			})
		},
	}
	save.Flags().StringVarP(&file, "file", "f", "", "Configuration file, or - for stdin")
	_ = save.MarkFlagRequired("file")

	del := &cobra.Command{
		Use:   "delete AGENT",
		Short: "Delete every parameter belonging to an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *server.Components) error {
				report, err := c.Configs.Delete(ctx, args[0])
				if err != nil {
					return err
				}
				if err := a.print(report); err != nil {
					return err
				}
				if len(report.Failed) > 0 {
					return fmt.Errorf("%d of %d parameters could not be deleted",
						len(report.Failed), len(report.Failed)+len(report.Deleted))
				}
				return nil
			})
		},
	}

	prompts := &cobra.Command{
		Use:   "prompts AGENT",
		Short: "List an agent's named system prompts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *server.Components) error {
				idx, err := c.Configs.ListPrompts(ctx, args[0])
				if err != nil {
					return err
				}
				return a.print(idx)
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List agents that have a stored configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *server.Components) error {
				names, err := c.Configs.ListAgents(ctx)
				if err != nil {
					return err
				}
				if names == nil {
					names = []string{}
				}
				return a.print(names)
			})
		},
	}

	cmd.AddCommand(get, save, del, prompts, list)
	return cmd
}
