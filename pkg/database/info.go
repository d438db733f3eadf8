package database

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// ServerInfo identifies the database the service is connected to
type ServerInfo struct {
	Version   string    `db:"version"`
	Database  string    `db:"database_name"`
	User      string    `db:"db_user"`
	StartedAt time.Time `db:"started_at"`
}

// ShortVersion is the version string up to the build details ("PostgreSQL 16.2")
func (s ServerInfo) ShortVersion() string {
	v, _, _ := strings.Cut(s.Version, ",")
	if name, _, ok := strings.Cut(v, " on "); ok {
		return name
	}
	return v
}

// Describe queries the server's version, database, user and start time
func Describe(ctx context.Context, q Queryer) (ServerInfo, error) {
	var info ServerInfo
	err := q.GetContext(ctx, &info, `SELECT
		version() AS version,
		current_database() AS database_name,
		current_user AS db_user,
		pg_postmaster_start_time() AS started_at`)
	return info, err
}

var credentials = regexp.MustCompile(`://.*@`)

// MaskURL hides the credentials of a connection URL
func MaskURL(dsn string) string {
	return credentials.ReplaceAllString(dsn, "://****:****@")
}
