package commands

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"sportstrivia/internal/models"
	contextutils "sportstrivia/internal/utils"
)

// getDatabaseInfo returns database connection information
func getDatabaseInfo(ctx context.Context, db *sql.DB) string {
	if db == nil {
		return "Not connected"
	}

	var dbName string
	if err := db.QueryRowContext(ctx, "SELECT current_database()").Scan(&dbName); err != nil {
		return "Connected (unknown database)"
	}

	var host sql.NullString
	if err := db.QueryRowContext(ctx, "SELECT inet_server_addr()::text").Scan(&host); err != nil || !host.Valid {
		return fmt.Sprintf("Connected to %s", dbName)
	}

	return fmt.Sprintf("Connected to %s on %s", dbName, host.String)
}

// parseSport normalizes a --sport flag and checks it against the catalog
func (e *Env) parseSport(raw string) (models.Category, error) {
	category := models.NormalizeCategory(raw)
	if _, ok := e.Config.Sport(string(category)); !ok {
		return "", contextutils.WrapErrorf(contextutils.ErrInvalidInput,
			"unknown sport %q, expected one of %s", raw, strings.Join(e.Config.SportNames(), ", "))
	}
	return category, nil
}
