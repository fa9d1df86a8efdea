package cli

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgorman/sandboxrt/internal/runtime"
	"github.com/rickgorman/sandboxrt/internal/shutdown"
	"github.com/rickgorman/sandboxrt/internal/ui"
)

const closeTimeout = 30 * time.Second

type upOptions struct {
	session    string
	fresh      bool
	attachOnly bool
	env        []string
	envFiles   []string
}

func newUpCommand(g *globalOptions) *cobra.Command {
	o := &upOptions{}

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Start or reattach to a sandbox and keep it until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUp(cmd.Context(), g, o)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.session, "session", "s", "", "session id (default: hash of the working directory)")
	f.BoolVar(&o.fresh, "new", false, "use a fresh random session id")
	f.BoolVar(&o.attachOnly, "attach-only", false, "reattach to an existing sandbox; never create one")
	f.StringArrayVarP(&o.env, "env", "e", nil, "extra container environment KEY=VALUE (repeatable)")
	f.StringArrayVar(&o.envFiles, "env-file", nil, "read container environment from a file (repeatable)")
	cmd.MarkFlagsMutuallyExclusive("session", "new")

	return cmd
}

func runUp(ctx context.Context, g *globalOptions, o *upOptions) error {
	sessionID, err := resolveSessionID(o.session, o.fresh, os.Getwd)
	if err != nil {
		return err
	}
	env, err := collectEnv(o.envFiles, o.env)
	if err != nil {
		return err
	}

	engine, err := openEngine()
	if err != nil {
		return err
	}

	shutdown.Install()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := runtime.New(g.cfg, engine, runtime.Options{
		SessionID:        sessionID,
		AttachToExisting: o.attachOnly,
		Env:              env,
		StatusCallback:   printStatus,
		Logger:           g.log,
	})
	if err != nil {
		return err
	}

	ui.Header()
	ui.Info("Session %s", ui.Bold(sessionID))

	if err := rt.Connect(ctx); err != nil {
		ui.Fail("Could not connect to %s", rt.Name())
		ui.Footer()
		if cerr := closeRuntime(rt); cerr != nil {
			g.log.WithError(cerr).Warn("Cleanup after failed connect")
		}
		return err
	}

	printEndpoints(ctx, rt)
	ui.Footer()
	ui.DimMsg("Press Ctrl-C to stop")

	<-ctx.Done()
	ui.BlankLine()
	ui.Info("Shutting down %s", rt.Name())
	return closeRuntime(rt)
}

func printEndpoints(ctx context.Context, rt *runtime.Runtime) {
	ui.Success("Control endpoint %s", ui.Cyan(rt.URL()))

	if editor := rt.EditorURL(ctx); editor != "" {
		ui.Info("Editor %s", ui.Cyan(editor))
	}

	hosts := rt.WebHosts()
	urls := make([]string, 0, len(hosts))
	for u := range hosts {
		urls = append(urls, u)
	}
	sort.Slice(urls, func(i, j int) bool { return hosts[urls[i]] < hosts[urls[j]] })
	for _, u := range urls {
		ui.Info("App %s", u)
	}
}

// closeRuntime runs Close on its own deadline since the caller's context is
// usually already cancelled.
func closeRuntime(rt *runtime.Runtime) error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return rt.Close(ctx)
}
