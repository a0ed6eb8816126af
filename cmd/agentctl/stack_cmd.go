package main

import (
	"context"

	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/pkg/models"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/pkg/server"
	"github.com/spf13/cobra"
)

type stackOp func(ctx context.Context, c *server.Components, agent string, params map[string]string) (*models.StackDescriptor, error)

func newStackCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stack",
		Short: "Manage per-agent infrastructure stacks",
	}

	mutating := func(use, short string, op stackOp) *cobra.Command {
		var params map[string]string
		c := &cobra.Command{
			Use:   use + " AGENT",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, func(ctx context.Context, c *server.Components) error {
					desc, err := op(ctx, c, args[0], params)
					if err != nil {
						return err
					}
					return a.print(desc)
				})
			},
		}
		c.Flags().StringToStringVarP(&params, "param", "p", nil, "Stack parameter KEY=VALUE (repeatable)")
		return c
	}

	create := mutating("create", "Create the agent's stack and wait for it to settle",
		func(ctx context.Context, c *server.Components, agent string, params map[string]string) (*models.StackDescriptor, error) {
			return c.Stacks.Create(ctx, agent, params)
		})
	update := mutating("update", "Re-apply the current template and image to the agent's stack",
		func(ctx context.Context, c *server.Components, agent string, params map[string]string) (*models.StackDescriptor, error) {
			return c.Stacks.Update(ctx, agent, params)
		})
	deploy := mutating("deploy", "Create the stack, or update it when it exists",
		func(ctx context.Context, c *server.Components, agent string, params map[string]string) (*models.StackDescriptor, error) {
			return c.Stacks.Deploy(ctx, agent, params)
		})

	del := &cobra.Command{
		Use:   "delete AGENT",
		Short: "Delete the agent's stack and wait for it to disappear",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *server.Components) error {
				desc, err := c.Stacks.Delete(ctx, args[0])
				if err != nil {
					return err
				}
				return a.print(desc)
			})
		},
	}

	describe := &cobra.Command{
		Use:   "describe AGENT",
		Short: "Show the agent's stack status, parameters and outputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *server.Components) error {
				inst, err := c.Stacks.Describe(ctx, args[0])
				if err != nil {
					return err
				}
				return a.print(inst)
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List deployed agent stacks of this project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *server.Components) error {
				agents, err := c.Stacks.List(ctx)
				if err != nil {
					return err
				}
				if agents == nil {
					agents = []models.DeployedAgent{}
				}
				return a.print(agents)
			})
		},
	}

	cmd.AddCommand(create, update, deploy, del, describe, list)
	return cmd
}
