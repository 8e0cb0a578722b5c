package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phaserai/schema-migrate/internal/ledger"
)

func TestNew_returnsNonNil(t *testing.T) {
	t.Parallel()

	// nil pool is accepted at construction time; errors surface on use.
	l := ledger.New(nil)
	assert.NotNil(t, l)
}

func TestErrors_sentinel(t *testing.T) {
	t.Parallel()

	t.Run("ErrEntryNotFound", func(t *testing.T) {
		t.Parallel()
		assert.EqualError(t, ledger.ErrEntryNotFound, "migration not found in schema_migrations")
	})

	t.Run("ErrSchemaCreation", func(t *testing.T) {
		t.Parallel()
		assert.EqualError(t, ledger.ErrSchemaCreation, "creating schema_migrations table")
	})
}
