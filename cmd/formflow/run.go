package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formflow/internal/prompt"
	"github.com/goliatone/go-formflow/internal/runner"
	"github.com/goliatone/go-formflow/pkg/client"
	"github.com/goliatone/go-formflow/pkg/engine"
	"github.com/goliatone/go-formflow/pkg/fixture"
	"github.com/goliatone/go-formflow/pkg/masterdata"
)

// collaborators is what the engine talks to: either a remote backend
// through the HTTP client or a fixture flow answered in process.
type collaborators interface {
	engine.Backend
	engine.Verifier
	engine.OptionLoader
	masterdata.Source
}

func newRunCmd(a *app) *cobra.Command {
	var (
		appID    string
		attempts int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Walk a flow interactively in the terminal",
		Long: strings.TrimSpace(`
Walk a flow screen by screen. With --base-url the screens come from a remote
backend; otherwise a fixture flow is answered in process.
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			backend, flow, err := a.collaborators(ctx)
			if err != nil {
				return err
			}

			opts := []engine.Option{
				engine.WithVerifier(backend),
				engine.WithOptionLoader(backend),
				engine.WithDefaultPartnerCode(a.cfg.DefaultPartner),
				engine.WithApplicationID(appID),
			}
			masterOpts := []masterdata.Option{
				masterdata.WithWorkers(a.cfg.MasterWorkers),
				masterdata.WithTimeout(a.timeout()),
			}
			if a.logger != nil {
				opts = append(opts, engine.WithLogger(a.logger))
				masterOpts = append(masterOpts, masterdata.WithLogger(a.logger))
			}
			if strings.TrimSpace(a.cfg.RedisAddr) != "" {
				cache, err := masterdata.DialRedis(ctx, a.cfg.RedisAddr, masterdata.WithTTL(a.cfg.RedisTTL))
				if err != nil {
					return fmt.Errorf("redis: %w", err)
				}
				defer cache.Close()
				masterOpts = append(masterOpts, masterdata.WithCache(cache))
			}
			opts = append(opts, engine.WithMasterData(backend, masterOpts...))

			e := engine.New(backend, opts...)
			driver := prompt.NewSurvey(prompt.WithStdio(os.Stdin, os.Stdout, os.Stderr))
			res, err := runner.New(e, driver, runner.WithMaxAttempts(attempts)).Run(ctx, flow)
			if errors.Is(err, prompt.ErrAborted) {
				fmt.Fprintln(cmd.ErrOrStderr(), "aborted")
				return nil
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case res.Completed:
				fmt.Fprintf(out, "completed after %d screen(s)\n", len(res.Screens))
			case res.Exited:
				fmt.Fprintln(out, "left the flow")
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&a.cfg.BaseURL, "base-url", a.cfg.BaseURL, "Backend base URL (default: in-process fixture)")
	flags.StringVar(&a.cfg.FlowID, "flow", a.cfg.FlowID, "Flow id")
	flags.StringVar(&a.cfg.ProductCode, "product", a.cfg.ProductCode, "Product code")
	flags.StringVar(&a.cfg.PartnerCode, "partner", a.cfg.PartnerCode, "Partner code")
	flags.StringVar(&a.cfg.BranchCode, "branch", a.cfg.BranchCode, "Branch code")
	flags.StringVar(&a.cfg.RedisAddr, "redis", a.cfg.RedisAddr, "Redis address for the master data cache")
	flags.StringVar(&appID, "application-id", "", "Application id (default: generated)")
	flags.IntVar(&attempts, "attempts", runner.DefaultMaxAttempts, "Retries per prompt before giving up")
	return cmd
}

// collaborators resolves the engine's collaborators and the starting flow
// context.
func (a *app) collaborators(ctx context.Context) (collaborators, engine.FlowContext, error) {
	flow := engine.FlowContext{
		FlowID:      a.cfg.FlowID,
		ProductCode: a.cfg.ProductCode,
		PartnerCode: a.cfg.PartnerCode,
		BranchCode:  a.cfg.BranchCode,
	}

	if base := strings.TrimSpace(a.cfg.BaseURL); base != "" {
		opts := []client.Option{client.WithTimeout(a.timeout())}
		if a.logger != nil {
			opts = append(opts, client.WithLogger(a.logger))
		}
		c, err := client.New(base, opts...)
		if err != nil {
			return nil, flow, err
		}
		if flow.FlowID == "" {
			return nil, flow, errors.New("run: --flow is required with --base-url")
		}
		return c, flow, nil
	}

	f, err := a.loadFixture()
	if err != nil {
		return nil, flow, err
	}
	if err := ctx.Err(); err != nil {
		return nil, flow, err
	}
	if flow.FlowID == "" {
		flow.FlowID = f.ID
	}
	if flow.ProductCode == "" {
		flow.ProductCode = f.ProductCode
	}
	if flow.PartnerCode == "" {
		flow.PartnerCode = f.PartnerCode
	}
	if flow.BranchCode == "" {
		flow.BranchCode = f.BranchCode
	}
	return fixture.NewBackend(f), flow, nil
}

func (a *app) loadFixture() (*fixture.Flow, error) {
	if dir := strings.TrimSpace(a.cfg.FixtureDir); dir != "" {
		f, err := fixture.LoadFS(os.DirFS(dir))
		if err != nil {
			return nil, fmt.Errorf("fixture %s: %w", dir, err)
		}
		return f, nil
	}
	return fixture.Sample()
}
