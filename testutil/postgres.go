package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/meteor314/twitch-bot/db"
)

// SetupTestDB opens TEST_PG_DSN, applies the schema and empties every table.
// It skips the test if TEST_PG_DSN is not set.
func SetupTestDB(t *testing.T) *db.Store {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set")
	}
	database, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	ctx := context.Background()
	if err := db.Migrate(ctx, database); err != nil {
		_ = database.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	if _, err := database.ExecContext(ctx, `TRUNCATE custom_commands, command_aliases, viewer_points, scheduled_messages, oauth_tokens RESTART IDENTITY`); err != nil {
		_ = database.Close()
		t.Fatalf("failed to truncate tables: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})
	return db.NewStore(database)
}
