package runner

import "errors"

// ErrChecksumDrift indicates an applied migration's recorded checksum
// differs from the currently compiled definition.
var ErrChecksumDrift = errors.New("migration checksum drift")

// ErrNoDownMigration indicates a rollback target has no reverse SQL.
var ErrNoDownMigration = errors.New("migration has no down SQL")

// ErrNotInRegistry indicates the ledger records a version the compiled
// catalog does not contain.
var ErrNotInRegistry = errors.New("applied migration not found in registry")
