// Package secrets resolves database credentials from an external
// store. The migration engine consumes the resolved record and never
// fetches secrets itself.
package secrets

import (
	"context"
	"errors"

	"github.com/phaserai/schema-migrate/internal/database"
)

// ErrIncompleteCredentials indicates a resolved record is missing a
// required field.
var ErrIncompleteCredentials = errors.New("incomplete database credentials")

// Resolver produces a connection-ready credential record.
type Resolver interface {
	Resolve(ctx context.Context) (database.Credentials, error)
}

// Static is a Resolver returning a fixed record. Used when the caller
// already holds credentials (e.g. a database URL from config).
type Static struct {
	Credentials database.Credentials
}

// Resolve returns the fixed record.
func (s Static) Resolve(_ context.Context) (database.Credentials, error) {
	return s.Credentials, nil
}

// validate checks the fields no connection can do without.
func validate(creds database.Credentials) error {
	if creds.Host == "" || creds.Database == "" || creds.Username == "" {
		return ErrIncompleteCredentials
	}

	return nil
}
