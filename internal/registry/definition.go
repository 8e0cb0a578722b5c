package registry

import (
	"crypto/sha256"
	"encoding/hex"
)

// Definition is a single schema migration compiled into the binary.
// Definitions are immutable after load; the ledger records which of
// them have been applied.
type Definition struct {
	Version     string // "20250101_120000", extracted from filename, globally unique
	Name        string // "initial_schema", extracted from filename
	Description string // human-readable summary, recorded in the ledger
	UpSQL       string // forward statement batch
	DownSQL     string // reverse statement batch (empty if irreversible)
	Checksum    string // SHA-256 hex digest of UpSQL, computed at load time
}

// Reversible reports whether the definition carries a down batch.
func (d Definition) Reversible() bool {
	return d.DownSQL != ""
}

// Checksum returns the SHA-256 hex digest of the given SQL string.
// Used to detect drift between a compiled definition and the content
// recorded in the ledger when it was applied.
func Checksum(sql string) string {
	h := sha256.Sum256([]byte(sql))

	return hex.EncodeToString(h[:])
}
