package sync

import (
	"database/sql"
	"time"
)

// qboDateLayout is the date-only format used by the v3 API for
// transaction and due dates.
const qboDateLayout = "2006-01-02"

func parseQboDate(value string) time.Time {
	if value == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(qboDateLayout, value)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func nullableTime(value time.Time) sql.NullTime {
	return sql.NullTime{Time: value, Valid: !value.IsZero()}
}

func nullableString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

// referenceValue is the {value, name} pair the remote schema uses for
// cross-entity references.
type referenceValue struct {
	Value string `json:"value"`
	Name  string `json:"name,omitempty"`
}
