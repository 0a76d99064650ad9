package main

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formflow/internal/config"
	"github.com/goliatone/go-formflow/pkg/client"
)

// app carries the settings shared by every subcommand. Values come from the
// environment (and .env) first; flags override them.
type app struct {
	cfg    *config.Config
	logger *log.Logger
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("formflow: ")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := newRootCmd(cfg).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	a := &app{cfg: cfg}

	cmd := &cobra.Command{
		Use:          "formflow",
		Short:        "Run, serve and lint backend driven onboarding forms",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Walk the bundled personal loan flow in the terminal
  formflow run

  # Walk a flow served by a remote backend
  formflow run --base-url https://onboarding.example.com --flow PERSONAL_LOAN --product PL

  # Serve a fixture flow over HTTP
  formflow serve --fixture ./flows/personal_loan --addr :8080

  # Check screen documents
  formflow lint screens/
`),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if a.cfg.Verbose {
				a.logger = log.New(cmd.ErrOrStderr(), "formflow: ", log.LstdFlags)
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfg.FixtureDir, "fixture", cfg.FixtureDir, "Fixture flow directory (default: bundled sample)")
	flags.DurationVar(&a.cfg.Timeout, "timeout", cfg.Timeout, "Timeout for each backend call")
	flags.BoolVarP(&a.cfg.Verbose, "verbose", "v", cfg.Verbose, "Log engine and transport diagnostics")

	cmd.AddCommand(newRunCmd(a))
	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newLintCmd(a))
	return cmd
}

func (a *app) timeout() time.Duration {
	if a.cfg.Timeout <= 0 {
		return client.DefaultTimeout
	}
	return a.cfg.Timeout
}
