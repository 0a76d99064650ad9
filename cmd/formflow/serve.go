package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formflow/pkg/fixture"
)

const shutdownGrace = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a fixture flow over the runtime HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := strings.TrimSpace(a.cfg.ListenAddr)
			if addr == "" {
				return errors.New("serve: missing --addr")
			}
			f, err := a.loadFixture()
			if err != nil {
				return err
			}

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			srv := &http.Server{
				Handler:           fixture.Handler(fixture.NewBackend(f)),
				ReadHeaderTimeout: 10 * time.Second,
			}
			if a.logger != nil {
				srv.ErrorLog = a.logger
			}
			fmt.Fprintf(cmd.OutOrStdout(), "serving flow %s on http://%s/\n", f.ID, ln.Addr())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, srv, ln)
		},
	}
	cmd.Flags().StringVar(&a.cfg.ListenAddr, "addr", a.cfg.ListenAddr, "Listen address")
	return cmd
}

// serve runs srv on ln until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, ln net.Listener) error {
	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("serve: shutdown: %w", err)
	}
	return nil
}
