package postgres

import (
	"os"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
)

func TestMigrationFiles_PairedUpAndDown(t *testing.T) {
	names, err := MigrationFiles()
	require.NoError(t, err)
	require.NotEmpty(t, names)

	ups, downs := 0, 0
	for _, n := range names {
		switch {
		case strings.HasSuffix(n, ".up.sql"):
			ups++
			assert.Contains(t, names, strings.TrimSuffix(n, ".up.sql")+".down.sql")
		case strings.HasSuffix(n, ".down.sql"):
			downs++
		default:
			t.Errorf("unexpected migration file %q", n)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestMigrationFiles_CreatesMoleculesTable(t *testing.T) {
	data, err := migrationFS.ReadFile("migrations/000001_create_molecules.up.sql")
	require.NoError(t, err)
	sql := string(data)
	assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS molecules")
	for _, col := range []string{"formula", "atom_count", "molecular_weight", "structure", "created_at"} {
		assert.Contains(t, sql, col)
	}
}

func TestMigrator_RollbackRejectsNonPositiveSteps(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m := NewMigrator(NewConnectionWithDB(db, logging.NewNopLogger()), logging.NewNopLogger())
	assert.Error(t, m.Rollback(0))
	assert.Error(t, m.Rollback(-1))
}

// TestMigrator_Live runs against a real database when one is provided.
func TestMigrator_Live(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST_DB_HOST") == "" {
		t.Skip("INTEGRATION_TEST_DB_HOST not set; skipping live migration test")
	}
	conn, err := NewConnection(PostgresConfig{
		Host:     os.Getenv("INTEGRATION_TEST_DB_HOST"),
		Port:     5432,
		Database: "molstruct_test",
		Username: "postgres",
		Password: os.Getenv("INTEGRATION_TEST_DB_PASSWORD"),
	}, logging.NewNopLogger())
	require.NoError(t, err)
	defer conn.Close()

	m := NewMigrator(conn, logging.NewNopLogger())
	require.NoError(t, m.Up())
	require.NoError(t, m.Up())

	version, dirty, err := m.Status()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)
}

//Personal.AI order the ending
