package registry

import "embed"

// catalogFS holds the migration catalog compiled into the binary.
//
//go:embed sql/*.sql
var catalogFS embed.FS
