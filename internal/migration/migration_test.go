package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/smallbiznis/taxmate/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)

	var up, down int
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			up++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			down++
		}
	}
	assert.Positive(t, up)
	assert.Equal(t, up, down)
}

func TestAutoMigrateCreatesTaxRecords(t *testing.T) {
	conn := dbtest.Open(t)
	require.NoError(t, AutoMigrate(conn))
	assert.True(t, conn.Migrator().HasTable("tax_records"))
	assert.True(t, conn.Migrator().HasColumn("tax_records", "total_amount"))
}

func TestRunMigrationsRequiresHandle(t *testing.T) {
	assert.Error(t, RunMigrations(nil))
}
