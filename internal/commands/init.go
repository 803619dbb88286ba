package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/finboard-dev/finboard/internal/config"
	"github.com/finboard-dev/finboard/internal/gitops"
	"github.com/finboard-dev/finboard/internal/ingest"
)

func newInitCommand() *cobra.Command {
	var withGit bool
	var currency string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new finboard workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			msg, err := runInit(absDir, currency, withGit)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}

	cmd.Flags().BoolVar(&withGit, "git", false, "initialize a git repository and commit the ledger after every save")
	cmd.Flags().StringVar(&currency, "currency", "CHF", "currency code shown in reports")

	return cmd
}

func runInit(dir, currency string, withGit bool) (string, error) {
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return "", fmt.Errorf("%s already exists", cfgPath)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("checking config: %w", err)
	}

	cfg := config.Default()
	cfg.Report.Currency = currency
	cfg.Git.AutoCommit = withGit

	for _, d := range []string{cfg.Import.InboxDir, "logs"} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return "", fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		return "", err
	}

	// The pending batch is scratch state.
	gitignore := filepath.Dir(ingest.SessionDir) + "/\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return "", fmt.Errorf("writing .gitignore: %w", err)
	}

	if !withGit {
		return fmt.Sprintf("Initialized finboard workspace at %s", dir), nil
	}

	if !gitops.IsRepo(dir) {
		if err := gitops.Init(dir); err != nil {
			return "", err
		}
	}
	hash, err := gitops.CommitPaths(dir, "init: finboard workspace", cfg.Git.AuthorName, cfg.Git.AuthorEmail,
		config.FileName, ".gitignore")
	if err != nil {
		return "", fmt.Errorf("initial commit: %w", err)
	}
	return fmt.Sprintf("Initialized finboard workspace at %s (%s)", dir, hash), nil
}
