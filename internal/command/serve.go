package command

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/swapshelf/swapshelf/internal/config"
	"github.com/swapshelf/swapshelf/internal/server"
	"github.com/swapshelf/swapshelf/internal/web"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "serve the game exchange web app",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, pool, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			grp, ctx := errgroup.WithContext(cmd.Context())

			appServer := web.New(cfg, logger, pool, pool)
			if err := serveApp(ctx, grp, cfg, logger, appServer); err != nil {
				return err
			}
			return grp.Wait()
		},
	}
}

func serveApp(
	ctx context.Context,
	grp *errgroup.Group,
	cfg *config.Config,
	logger *slog.Logger,
	srv *echo.Echo,
) error {
	listener, err := server.Listen(ctx, cfg.Server.Address)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx,
		"starting app server...",
		slog.String("address", listener.Addr().String()),
	)
	server.Serve(ctx, grp, srv.Server, listener, server.ShutdownTimeout)
	return nil
}
