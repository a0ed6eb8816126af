package main

import (
	"context"

	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/templates"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/pkg/server"
	"github.com/spf13/cobra"
)

func newImageCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Manage the trusted agent runtime image",
	}

	publish := &cobra.Command{
		Use:   "publish URI",
		Short: "Record a pinned image URI as the trusted runtime image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := templates.ValidateImageURI(args[0]); err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, c *server.Components) error {
				path := templates.ImageURIPath(a.v.GetString("project_name"))
				if err := c.Params.Put(ctx, path, args[0]); err != nil {
					return err
				}
				return a.print(map[string]string{"path": path, "image_uri": args[0]})
			})
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the trusted runtime image URI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *server.Components) error {
				path := templates.ImageURIPath(a.v.GetString("project_name"))
				uri, found, err := c.Params.Get(ctx, path)
				if err != nil {
					return err
				}
				return a.print(map[string]any{"path": path, "image_uri": uri, "published": found})
			})
		},
	}

	cmd.AddCommand(publish, show)
	return cmd
}
