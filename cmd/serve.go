package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/engdrill/internal/api"
	"github.com/example/engdrill/internal/database"
	"github.com/example/engdrill/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the background sweep",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if a.cfg.Scheduler.Enabled {
			sweeper := newSweeper(a)
			if err := sweeper.Start(); err != nil {
				return err
			}
			defer sweeper.Stop()
		}

		gin.SetMode(a.cfg.Server.Mode)
		srv := &http.Server{
			Addr:    ":" + a.cfg.Server.Port,
			Handler: api.Setup(a.logger.Named("http"), a.svc),
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			a.logger.Info("server starting", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			a.logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		if err := g.Wait(); err != nil {
			a.logger.Error("server stopped with error", zap.Error(err))
			return err
		}
		a.logger.Info("server exited")
		return nil
	},
}

func newSweeper(a *app) *scheduler.Scheduler {
	return scheduler.New(
		database.NewSessionRepository(a.db),
		database.NewAttemptRepository(a.db),
		database.NewMistakeRepository(a.db),
		scheduler.Options{
			Interval:         a.cfg.Scheduler.SweepInterval,
			AttemptRetention: a.cfg.Scheduler.AttemptRetention,
		},
		a.logger.Named("sweep"),
	)
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
