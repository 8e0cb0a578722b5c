package registry

import "errors"

// ErrDuplicateVersion indicates two catalog definitions share a version.
var ErrDuplicateVersion = errors.New("duplicate migration version")

// ErrOrphanDown indicates a down file exists with no matching up file.
var ErrOrphanDown = errors.New("orphan down migration")

// ErrBadFilename indicates a catalog file does not match the expected naming pattern.
var ErrBadFilename = errors.New("malformed migration filename")
