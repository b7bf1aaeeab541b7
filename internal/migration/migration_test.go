package migration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestApplySQLiteIsIdempotent(t *testing.T) {
	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, Run(ctx, db))
	require.NoError(t, Run(ctx, db))

	for _, table := range []string{
		"missions", "seasons", "achievements", "mission_artifacts",
		"mission_artifact_geolocations", "posting_activities", "poster_activities",
		"xp_transactions", "user_levels", "event_outbox",
	} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("CREATE TABLE a (id TEXT);\n\n  CREATE INDEX b ON a (id);\n")
	assert.Equal(t, []string{"CREATE TABLE a (id TEXT)", "CREATE INDEX b ON a (id)"}, stmts)
}
