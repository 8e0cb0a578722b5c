package ledger

// createSchemaSQL is the DDL for the schema_migrations ledger table.
const createSchemaSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version            TEXT PRIMARY KEY,
    applied_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    checksum           TEXT,
    execution_time_ms  INTEGER,
    description        TEXT
)`
