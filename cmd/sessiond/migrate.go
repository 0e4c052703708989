package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/goSession/store/sqlstore"
)

func migrateCmd() *cobra.Command {
	var (
		kind string
		dsn  string
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQL schema migrations",
		Long: `Apply pending schema migrations to a SQL backend.

Examples:
  sessiond migrate --backend=sqlite --dsn=file:sessiond.db
  SESSIOND_DSN=postgres://... sessiond migrate --backend=postgres`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				return errors.New("--dsn is required")
			}
			dialect, err := sqlstore.ParseDialect(kind)
			if err != nil {
				return err
			}
			return runMigrate(cmd.Context(), dialect, dsn)
		},
	}

	cmd.Flags().StringVar(&kind, "backend", "postgres", "SQL backend: postgres or sqlite")
	cmd.Flags().StringVar(&dsn, "dsn", envOr("SESSIOND_DSN", ""), "Database DSN (env SESSIOND_DSN)")

	return cmd
}

func runMigrate(ctx context.Context, dialect sqlstore.Dialect, dsn string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := sqlstore.Open(ctx, dialect, dsn)
	if err != nil {
		return err
	}
	defer st.Close()

	return st.Migrate(ctx)
}
