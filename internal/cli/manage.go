package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rickgorman/sandboxrt/internal/runtime"
	"github.com/rickgorman/sandboxrt/internal/ui"
)

func newPauseCommand(g *globalOptions) *cobra.Command {
	var session string

	cmd := &cobra.Command{
		Use:   "pause",
		Short: "Stop a sandbox container without removing it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := attachSession(cmd.Context(), g, session)
			if err != nil {
				return err
			}
			if err := rt.Pause(cmd.Context()); err != nil {
				return err
			}
			ui.Success("Paused %s", rt.Name())
			return nil
		},
	}

	cmd.Flags().StringVarP(&session, "session", "s", "", "session id")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func newResumeCommand(g *globalOptions) *cobra.Command {
	var session string

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Start a paused sandbox and wait until it answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := attachSession(cmd.Context(), g, session)
			if err != nil {
				return err
			}
			if err := rt.Resume(cmd.Context()); err != nil {
				return err
			}
			ui.Success("Resumed %s at %s", rt.Name(), ui.Cyan(rt.URL()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&session, "session", "s", "", "session id")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func attachSession(ctx context.Context, g *globalOptions, session string) (*runtime.Runtime, error) {
	engine, err := openEngine()
	if err != nil {
		return nil, err
	}

	rt, err := runtime.New(g.cfg, engine, runtime.Options{
		SessionID:        session,
		AttachToExisting: true,
		Logger:           g.log,
	})
	if err != nil {
		return nil, err
	}

	if err := rt.Attach(ctx); err != nil {
		return nil, err
	}
	return rt, nil
}

func newDeleteCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete SESSION",
		Short: "Force-remove the sandbox of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}
			runtime.Delete(cmd.Context(), engine, g.cfg.Sandbox.ContainerPrefix, args[0])
			ui.Success("Deleted %s", g.cfg.ContainerName(args[0]))
			return nil
		},
	}
}

func newPsCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ps",
		Short: "List sandbox containers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			prefix := g.cfg.Sandbox.ContainerPrefix
			summaries, err := engine.List(ctx, prefix)
			if err != nil {
				return fmt.Errorf("listing containers: %w", err)
			}
			if len(summaries) == 0 {
				ui.Info("No sandboxes")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tCONTAINER\tSTATE\tUPTIME")
			for _, s := range summaries {
				uptime := "-"
				if s.State == "running" {
					if u, err := engine.Uptime(ctx, s.Name); err == nil {
						uptime = u
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", strings.TrimPrefix(s.Name, prefix), s.Name, s.State, uptime)
			}
			return w.Flush()
		},
	}
}

func newPruneCommand(g *globalOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove every sandbox container",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			prefix := g.cfg.Sandbox.ContainerPrefix
			summaries, err := engine.List(ctx, prefix)
			if err != nil {
				return fmt.Errorf("listing containers: %w", err)
			}
			if len(summaries) == 0 {
				ui.Info("No sandboxes to remove")
				return nil
			}

			if !yes && !ui.AskYesNo(fmt.Sprintf("Remove %d sandbox container(s)?", len(summaries)), false) {
				ui.Warn("Aborted")
				return nil
			}

			if err := engine.RemoveAll(ctx, prefix); err != nil {
				return fmt.Errorf("removing containers: %w", err)
			}
			ui.Success("Removed %d sandbox container(s)", len(summaries))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}
