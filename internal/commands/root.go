package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/finboard-dev/finboard/internal/buildinfo"
	"github.com/finboard-dev/finboard/internal/config"
	"github.com/finboard-dev/finboard/internal/ingest"
	"github.com/finboard-dev/finboard/internal/logging"
)

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	workspace string
	logLevel  string
}

// env is what a subcommand works with once the workspace is opened.
type env struct {
	root   string
	cfg    *config.Config
	logger *log.Logger
	svc    *ingest.Service
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:     "finboard",
		Short:   "Personal finance ledger built from bank CSV exports",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	workspace := os.Getenv(config.EnvPrefix + "_WORKSPACE")
	if workspace == "" {
		workspace = "."
	}
	rootCmd.PersistentFlags().StringVarP(&g.workspace, "workspace", "w", workspace, "workspace directory")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newInitCommand(),
		newUploadCommand(g),
		newMapCommand(g),
		newSaveCommand(g),
		newCancelCommand(g),
		newStatusCommand(g),
		newImportCommand(g),
		newReportCommand(g),
		newHistoryCommand(g),
		newValidateCommand(g),
	)

	return rootCmd
}

// open resolves the workspace, reads its config and builds the services.
func (g *globals) open(cmd *cobra.Command) (*env, error) {
	root, err := filepath.Abs(g.workspace)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace: %w", err)
	}

	cfg, err := config.LoadOrDefault(filepath.Join(root, config.FileName))
	if err != nil {
		return nil, err
	}

	level := g.logLevel
	if level == "" {
		level = cfg.Log.Level
	}
	logger, err := logging.New(cmd.ErrOrStderr(), level)
	if err != nil {
		return nil, err
	}

	return &env{
		root:   root,
		cfg:    cfg,
		logger: logger,
		svc:    ingest.NewService(root, cfg, logger),
	}, nil
}
