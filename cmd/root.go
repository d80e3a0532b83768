package cmd

import (
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/engdrill/internal/config"
	"github.com/example/engdrill/internal/database"
	"github.com/example/engdrill/internal/drill"
	"github.com/example/engdrill/internal/logging"
	"github.com/example/engdrill/internal/spaced_repetition"
)

var (
	projectRoot string
	configFile  string
)

var rootCmd = &cobra.Command{
	Use:   "engdrill",
	Short: "Spaced-repetition drilling of spoken English mistakes",
	Long: `engdrill stores the language mistakes detected in a learner's
conversations, schedules them for practice with an SM-2 style algorithm
and serves ranked drill sessions over HTTP.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&projectRoot, "root", ".", "directory holding .env and config/config.yaml")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "explicit config file, replaces config/config.yaml")
}

// app is everything a command needs, built from the configuration
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sqlx.DB
	repos  drill.Repositories
	svc    *drill.Service
}

func bootstrap() (*app, error) {
	cfg, err := config.Load(projectRoot, configFile)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	db, err := database.Connect(database.Options{
		Driver: cfg.Database.Driver,
		Path:   cfg.Database.Path,
		DSN:    cfg.Database.DSN,
	})
	if err != nil {
		logger.Sync()
		return nil, err
	}

	repos := drill.NewRepositories(db)
	svc := drill.NewService(
		repos,
		spaced_repetition.NewSM2(logger.Named("sm2")),
		spaced_repetition.NewRanker(cfg.Drill.Weights),
		drill.Options{
			DefaultSessionSize: cfg.Drill.DefaultSessionSize,
			MaxSessionSize:     cfg.Drill.MaxSessionSize,
			SessionTTL:         cfg.Drill.SessionTTL,
			ReviveMastered:     cfg.Drill.ReviveMastered,
			SuccessThreshold:   cfg.Drill.SuccessThreshold,
		},
		logger.Named("drill"),
	)

	return &app{cfg: cfg, logger: logger, db: db, repos: repos, svc: svc}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", zap.Error(err))
	}
	a.logger.Sync()
}
