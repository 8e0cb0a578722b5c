package database

import (
	"fmt"
	"net/url"
)

// Credentials is a resolved database credential record, typically
// produced by a secrets.Resolver. The engine never fetches secrets
// itself; it consumes this record as an opaque input.
type Credentials struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string // "require", "disable", etc.; empty means driver default
}

// URL renders the credentials as a PostgreSQL connection URL with
// userinfo properly escaped.
func (c Credentials) URL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Username, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Database,
	}

	if c.SSLMode != "" {
		q := url.Values{}
		q.Set("sslmode", c.SSLMode)
		u.RawQuery = q.Encode()
	}

	return u.String()
}
