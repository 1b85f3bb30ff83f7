package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/eventory/internal/server"
	"github.com/desertthunder/eventory/internal/shared"
)

// Serve runs the gateway until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if cmd.IsSet("host") {
		r.config.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		r.config.Server.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("upstream") {
		r.config.Server.UpstreamURL = cmd.String("upstream")
	}

	if err := r.config.ValidateServer(); err != nil {
		return err
	}

	db, err := r.database()
	if err != nil {
		return err
	}
	if err := shared.RunMigrations(db.DB, r.config.Database.Driver); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	google := r.config.Credentials.Google
	verifier, err := server.NewOIDCVerifier(ctx, server.OIDCConfig{
		ClientID: google.ClientID,
		CertsURL: google.CertsURL,
		Client:   r.httpClient,
	})
	if err != nil {
		return err
	}

	gateway, err := server.NewGateway(r.config.Server, db, verifier, r.logger)
	if err != nil {
		return err
	}

	return gateway.ListenAndServe(ctx)
}
