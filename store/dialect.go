package store

import (
	"fmt"
	"strings"
	"time"
)

// Dialect hides the SQL differences between the SQLite and PostgreSQL backends.
type Dialect interface {
	Now() string
	JSONType() string
	TimestampType() string
	// JSONParam is the placeholder for a JSON document parameter.
	JSONParam() string
	// JSONText extracts a top-level document field as text.
	JSONText(column, field string) string
	// MergeJSON returns an expression that shallow-merges incoming over current.
	MergeJSON(current, incoming string) string
}

type sqliteDialect struct{}

func (d sqliteDialect) Now() string           { return "datetime('now','localtime')" }
func (d sqliteDialect) JSONType() string      { return "TEXT" }
func (d sqliteDialect) TimestampType() string { return "TEXT" }
func (d sqliteDialect) JSONParam() string     { return "?" }
func (d sqliteDialect) JSONText(column, field string) string {
	return fmt.Sprintf("json_extract(%s, '$.%s')", column, field)
}
func (d sqliteDialect) MergeJSON(current, incoming string) string {
	return fmt.Sprintf("json_patch(%s, %s)", current, incoming)
}

type postgresDialect struct{}

func (d postgresDialect) Now() string           { return "NOW()" }
func (d postgresDialect) JSONType() string      { return "JSONB" }
func (d postgresDialect) TimestampType() string { return "TIMESTAMPTZ" }
func (d postgresDialect) JSONParam() string     { return "?::jsonb" }
func (d postgresDialect) JSONText(column, field string) string {
	return fmt.Sprintf("%s->>'%s'", column, field)
}
func (d postgresDialect) MergeJSON(current, incoming string) string {
	// Matches json_patch: a null in incoming removes the key.
	return fmt.Sprintf("jsonb_strip_nulls(%s || %s)", current, incoming)
}

// parseTime converts a scanned timestamp value to time.Time.
// Handles both SQLite (returns string) and Postgres (returns time.Time).
func parseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case []byte:
		return parseTime(string(t))
	case string:
		if t == "" {
			return time.Time{}
		}
		for _, layout := range []string{
			"2006-01-02 15:04:05",
			time.RFC3339,
			time.RFC3339Nano,
			"2006-01-02 15:04:05-07:00",
			"2006-01-02 15:04:05.999999-07:00",
		} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed
			}
		}
	}
	return time.Time{}
}

// Rebind rewrites ? placeholders to $1, $2, ... for PostgreSQL.
func Rebind(query string) string {
	n := 0
	var b strings.Builder
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteString(fmt.Sprintf("$%d", n))
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}
