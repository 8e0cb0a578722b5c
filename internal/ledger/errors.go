package ledger

import "errors"

// ErrEntryNotFound indicates no ledger row exists for the given migration version.
var ErrEntryNotFound = errors.New("migration not found in schema_migrations")

// ErrSchemaCreation indicates the schema_migrations table could not be created.
var ErrSchemaCreation = errors.New("creating schema_migrations table")
