package migration

import (
	"strings"
	"testing"

	"github.com/feerecon/backend/internal/infrastructure/persistence/models"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"
)

func TestList(t *testing.T) {
	names, err := List()
	require.NoError(t, err)
	require.Len(t, names, 2)
	assert.Equal(t, "20260301090000_create_mirror_tables", names[0])
	assert.Equal(t, "20260301090100_create_match_tables", names[1])

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			up, err := Source(name + ".up.sql")
			require.NoError(t, err)
			assert.NotEmpty(t, strings.TrimSpace(up))

			down, err := Source(name + ".down.sql")
			require.NoError(t, err)
			assert.Contains(t, down, "DROP TABLE")
		})
	}
}

func TestSource_Missing(t *testing.T) {
	_, err := Source("nope.up.sql")
	assert.Error(t, err)
}

func TestEmbeddedSource_Versions(t *testing.T) {
	src, err := iofs.New(migrationFS, sourceDir)
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(20260301090000), first)

	next, err := src.Next(first)
	require.NoError(t, err)
	assert.Equal(t, uint(20260301090100), next)
}

// Every mirror model needs a table in the versioned schema
func TestMigrations_CoverEveryModel(t *testing.T) {
	names, err := List()
	require.NoError(t, err)
	var all strings.Builder
	for _, name := range names {
		up, err := Source(name + ".up.sql")
		require.NoError(t, err)
		all.WriteString(up)
	}
	sqlText := all.String()

	for _, model := range models.All() {
		tabler, ok := model.(schema.Tabler)
		require.True(t, ok, "%T has no TableName", model)
		assert.Contains(t, sqlText, "CREATE TABLE IF NOT EXISTS "+tabler.TableName()+" (")
	}
}
