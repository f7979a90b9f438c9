package sqlgen

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// Verify loads the schema into an in-memory SQLite database and executes
// every statement of the script against it.
func Verify(ctx context.Context, script *Script) error {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return fmt.Errorf("failed to open sqlite: %w", err)
	}
	defer db.Close()

	// each connection gets its own :memory: database
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to open sqlite connection: %w", err)
	}
	defer conn.Close()

	for _, ddl := range strings.SplitAfter(schema, ";") {
		if strings.TrimSpace(ddl) == "" {
			continue
		}
		if _, err := conn.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	for i, stmt := range script.Statements {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("statement %d: %w", i+1, err)
		}
	}
	return nil
}
