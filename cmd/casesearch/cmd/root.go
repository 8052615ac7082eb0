// Package cmd provides the CLI commands for casesearch.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	cserrors "github.com/Aman-CERP/casesearch/internal/errors"
	"github.com/Aman-CERP/casesearch/internal/logging"
	"github.com/Aman-CERP/casesearch/pkg/version"
)

// Persistent flags shared by every subcommand.
var (
	debugMode      bool
	configDir      string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the casesearch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "casesearch",
		Short: "Search index for cases, tasks and documents",
		Long: `casesearch keeps a full-text search index of cases (ZAAK), tasks (TAAK)
and documents (DOCUMENT) in sync with their registries and answers faceted
searches over it.

Registry changes either update the index immediately or are marked in the
pending-reindex ledger and applied by a background drain.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("casesearch version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to stderr and ~/.casesearch/logs/")
	cmd.PersistentFlags().StringVarP(&configDir, "dir", "C", ".", "Directory holding the project .casesearch.yaml")

	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newRemoveCmd())
	cmd.AddCommand(newReindexCmd())
	cmd.AddCommand(newDrainCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupLogging installs the default logger. Serve mode never writes to
// stderr because some MCP clients merge it with the protocol stream.
func setupLogging(cfg logging.Config, serveMode bool) error {
	if debugMode {
		cfg.Level = "debug"
		cfg.WriteToStderr = !serveMode
		if cfg.FilePath == "" {
			cfg.FilePath = logging.DefaultLogPath()
		}
	}

	var (
		cleanup func()
		err     error
	)
	if serveMode {
		cleanup, err = logging.SetupServeMode(cfg)
	} else {
		cleanup, err = logging.SetupDefault(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.Debug("logging_initialized", slog.String("version", version.Version))
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command and prints a failure the way the error
// package formats it for terminals.
func Execute() error {
	defer func() { _ = stopLogging(nil, nil) }()

	err := NewRootCmd().Execute()
	if err != nil {
		_, _ = fmt.Fprint(os.Stderr, cserrors.FormatForCLI(err))
	}
	return err
}
