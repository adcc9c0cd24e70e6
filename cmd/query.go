package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-typestore/pkg/adapters/mssql"
	"github.com/ekaya-inc/ekaya-typestore/pkg/database"
	"github.com/ekaya-inc/ekaya-typestore/pkg/logging"
	"github.com/ekaya-inc/ekaya-typestore/pkg/node"
)

const (
	backendPostgres  = "postgres"
	backendSQLServer = "sqlserver"
)

var queryCmd = &cobra.Command{
	Use:   "query <statement> [param]...",
	Short: "run a raw query and print its rows as JSON lines",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd, database.ReadOnly, func(ctx context.Context, n node.Node) error {
			tuples, err := n.Query(ctx, args[0], statementParams(args[1:])...)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, tuple := range tuples {
				if err := enc.Encode(tuple); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

var execCmd = &cobra.Command{
	Use:   "exec <statement> [param]...",
	Short: "run a raw statement and print the number of affected rows",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd, database.ReadWrite, func(ctx context.Context, n node.Node) error {
			affected, err := n.Execute(ctx, args[0], statementParams(args[1:])...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), affected)
			return nil
		})
	},
}

func statementParams(args []string) []any {
	params := make([]any, len(args))
	for i, a := range args {
		params[i] = a
	}
	return params
}

// withBackend runs fn against the node selected by --backend. PostgreSQL
// statements run inside one session of mode; SQL Server statements commit
// one by one.
func withBackend(cmd *cobra.Command, mode database.Mode, fn func(ctx context.Context, n node.Node) error) error {
	backend, _ := cmd.Flags().GetString("backend")
	switch backend {
	case backendPostgres:
		return run(cmd, mode, func(ctx context.Context, a *app) error {
			return fn(ctx, a.node)
		})
	case backendSQLServer:
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := logging.New(cfg.Log)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		sc, err := loadSQLServer(cmd)
		if err != nil {
			return err
		}
		n, err := mssql.Open(cmd.Context(), sc, logger)
		if err != nil {
			return err
		}
		defer n.Close()
		logger.Debug("Connected to SQL Server", zap.String("host", sc.Host), zap.String("database", sc.Database))
		return fn(cmd.Context(), n)
	default:
		return fmt.Errorf("unknown backend %q (must be %s or %s)", backend, backendPostgres, backendSQLServer)
	}
}

// loadSQLServer reads the sqlserver section of the configuration file, with
// the MSSQL_* environment variables on top. Secrets come from the environment.
func loadSQLServer(cmd *cobra.Command) (*mssql.Config, error) {
	var file struct {
		SQLServer mssql.Config `yaml:"sqlserver"`
	}
	path, _ := cmd.Flags().GetString("config")
	var err error
	if path == "" {
		err = cleanenv.ReadEnv(&file)
	} else {
		err = cleanenv.ReadConfig(path, &file)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sqlserver configuration: %w", err)
	}
	return &file.SQLServer, nil
}

func init() {
	for _, c := range []*cobra.Command{queryCmd, execCmd} {
		c.Flags().String("backend", backendPostgres, "database the statement runs on: postgres or sqlserver")
		rootCmd.AddCommand(c)
	}
}
