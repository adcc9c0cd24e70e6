package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-typestore/pkg/catalog"
	"github.com/ekaya-inc/ekaya-typestore/pkg/config"
	"github.com/ekaya-inc/ekaya-typestore/pkg/crypto"
	"github.com/ekaya-inc/ekaya-typestore/pkg/database"
	"github.com/ekaya-inc/ekaya-typestore/pkg/engine"
	"github.com/ekaya-inc/ekaya-typestore/pkg/logging"
	"github.com/ekaya-inc/ekaya-typestore/pkg/metacache"
	"github.com/ekaya-inc/ekaya-typestore/pkg/node"
)

// Version is set by main from build flags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:           "typestore",
	Short:         "manage runtime-defined types and their objects",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command line. It is called once by main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", logging.SanitizeError(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "config.yaml", "path of the configuration file; empty reads the environment only")
	rootCmd.PersistentFlags().Bool("verbose", false, "turn on debug logging")
}

// app is the wiring one command runs against.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *database.DB
	node   node.Node
	close  []func()
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.LoadEnv(Version)
	}
	return config.LoadFile(path, Version)
}

func newApp(cmd *cobra.Command) (*app, error) {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Log.Level = "debug"
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}
	a.close = append(a.close, func() { _ = logger.Sync() })

	var store metacache.GenerationStore
	redisClient, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		a.Close()
		return nil, err
	}
	if redisClient != nil {
		store = metacache.NewRedisGeneration(redisClient, cfg.Redis.GenerationKey)
		a.close = append(a.close, func() { _ = redisClient.Close() })
	}

	db, err := database.NewConnection(ctx, &database.Config{
		ReadURL:        cfg.Database.ReadURL(),
		WriteURL:       cfg.Database.WriteURL(),
		AdminURL:       cfg.Database.AdminURL(),
		MaxConnections: cfg.Database.MaxConnections,
		FetchSize:      cfg.Database.FetchSize,
	}, metacache.New(store, logger), logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.db = db
	a.close = append(a.close, db.Close)

	settings := cfg.Settings()
	hasher := crypto.NewPasswordHasher(crypto.HasherConfig{
		Time:        cfg.Password.Time,
		Memory:      cfg.Password.Memory,
		Threads:     cfg.Password.Threads,
		MinStrength: cfg.Password.MinStrength,
	})
	a.node = node.NewRouter(engine.New(catalog.New(settings, logger), settings, hasher, logger))
	return a, nil
}

// Close releases everything newApp opened, in reverse order.
func (a *app) Close() {
	for i := len(a.close) - 1; i >= 0; i-- {
		a.close[i]()
	}
}

// run opens an app, runs fn inside one session of mode and commits.
func run(cmd *cobra.Command, mode database.Mode, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.db.WithSession(cmd.Context(), mode, func(ctx context.Context) error {
		return fn(ctx, a)
	})
}
