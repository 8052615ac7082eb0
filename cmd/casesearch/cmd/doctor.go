package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/casesearch/internal/output"
	"github.com/Aman-CERP/casesearch/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that casesearch can run here",
		Long: `Check write permissions and disk space for the index and ledger, the open
file limit, the ledger contents, the index presence and the registry.

The index is not opened, so doctor can run next to a serving process.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}

			opts := []preflight.Option{preflight.WithVerbose(verbose)}
			a := &app{cfg: cfg}
			defer a.Close()
			if err := a.openRegistry(); err != nil {
				output.New(cmd.OutOrStdout()).Errorf("registry: %v", err)
			} else {
				opts = append(opts, preflight.WithRegistry(a.registry))
			}

			checker := preflight.New(opts...)
			results := checker.RunAll(cmd.Context(), cfg)
			checker.Print(output.New(cmd.OutOrStdout()), results)
			if checker.HasCriticalFailures(results) {
				return errors.New("system check failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show details for passing checks")

	return cmd
}
