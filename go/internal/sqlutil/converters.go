package sqlutil

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/sqlc-dev/pqtype"
)

// Helper functions for converting between Go types and sql.Null* types

// ToSqlTime converts a Go time to sql.NullTime, treating the zero time as NULL
func ToSqlTime(val time.Time) sql.NullTime {
	if val.IsZero() {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: val, Valid: true}
}

// FromSqlTime converts sql.NullTime to Go time, NULL becoming the zero time
func FromSqlTime(val sql.NullTime) time.Time {
	if !val.Valid {
		return time.Time{}
	}
	return val.Time
}

// ToNullRawMessage marshals v into a JSONB parameter
func ToNullRawMessage(v any) (pqtype.NullRawMessage, error) {
	if v == nil {
		return pqtype.NullRawMessage{Valid: false}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return pqtype.NullRawMessage{}, err
	}
	return pqtype.NullRawMessage{RawMessage: data, Valid: true}, nil
}

// FromNullRawMessage unmarshals a JSONB column into v. NULL leaves v untouched
func FromNullRawMessage(val pqtype.NullRawMessage, v any) error {
	if !val.Valid || len(val.RawMessage) == 0 {
		return nil
	}
	return json.Unmarshal(val.RawMessage, v)
}
