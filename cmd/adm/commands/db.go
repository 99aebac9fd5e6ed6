package commands

import (
	"context"
	"database/sql"
	"strconv"

	"sportstrivia/internal/database"
	contextutils "sportstrivia/internal/utils"

	"github.com/spf13/cobra"
)

// migrationStatus is the output of the db commands
type migrationStatus struct {
	Database string `json:"database"`
	Version  uint   `json:"version"`
	Dirty    bool   `json:"dirty"`
}

// DatabaseCommands returns the database management commands
func DatabaseCommands(env *Env) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Database management commands for the question bank.

Available commands:
  migrate   - Apply pending schema migrations
  version   - Show the applied schema version`,
	}

	dbCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd.Context(), env, func(ctx context.Context, dm *database.Manager, db *sql.DB) error {
				if err := dm.RunMigrations(ctx, db); err != nil {
					env.Logger.Error(ctx, "Migration failed", err, nil)
					return err
				}
				return env.printMigrationStatus(ctx, dm, db)
			})
		},
	})

	dbCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the applied schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd.Context(), env, env.printMigrationStatus)
		},
	})

	return dbCmd
}

// withDatabase opens the configured database without migrating it and runs fn
func withDatabase(ctx context.Context, env *Env, fn func(context.Context, *database.Manager, *sql.DB) error) error {
	env.Logger.Info(ctx, "Admin command diagnostics", map[string]interface{}{
		"database_url": contextutils.MaskDatabaseURL(env.Config.Database.URL),
	})

	dm := database.NewManager(env.Logger)
	db, err := dm.InitDBWithoutMigrations(ctx, env.Config.Database)
	if err != nil {
		env.Logger.Error(ctx, "Failed to connect to database", err, map[string]interface{}{
			"database_url": contextutils.MaskDatabaseURL(env.Config.Database.URL),
		})
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			env.Logger.Warn(ctx, "Warning: failed to close database connection", map[string]interface{}{"error": err.Error()})
		}
	}()

	return fn(ctx, dm, db)
}

func (e *Env) printMigrationStatus(ctx context.Context, dm *database.Manager, db *sql.DB) error {
	version, dirty, err := dm.MigrationVersion(db)
	if err != nil {
		return contextutils.WrapError(err, "failed to read migration version")
	}
	status := migrationStatus{
		Database: getDatabaseInfo(ctx, db),
		Version:  version,
		Dirty:    dirty,
	}
	return e.Output.Print(status, nil, [][]string{
		{"database", status.Database},
		{"version", strconv.FormatUint(uint64(status.Version), 10)},
		{"dirty", strconv.FormatBool(status.Dirty)},
	})
}
