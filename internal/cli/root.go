package cli

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rickgorman/sandboxrt/internal/config"
	"github.com/rickgorman/sandboxrt/internal/container"
	"github.com/rickgorman/sandboxrt/internal/runtime"
)

// Engine is what the commands need from the container engine.
type Engine interface {
	runtime.Engine
	List(ctx context.Context, prefix string) ([]container.Summary, error)
	Uptime(ctx context.Context, name string) (string, error)
}

var openEngine = func() (Engine, error) {
	return container.Shared()
}

type globalOptions struct {
	configPath string
	debug      bool

	cfg *config.Config
	log *logrus.Entry
}

// NewRootCommand returns the sandboxrt command with every subcommand attached.
func NewRootCommand(version string) *cobra.Command {
	g := &globalOptions{}

	root := &cobra.Command{
		Use:           "sandboxrt",
		Short:         "Run disposable Docker sandboxes for agent sessions",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.load()
		},
	}

	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().BoolVar(&g.debug, "debug", false, "enable debug logging")

	root.AddCommand(newUpCommand(g))
	root.AddCommand(newPauseCommand(g))
	root.AddCommand(newResumeCommand(g))
	root.AddCommand(newDeleteCommand(g))
	root.AddCommand(newPsCommand(g))
	root.AddCommand(newPruneCommand(g))

	return root
}

func (g *globalOptions) load() error {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return err
	}
	if g.debug {
		cfg.Debug = true
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	g.cfg = cfg
	g.log = logrus.NewEntry(logger)
	return nil
}
