package nfcom

import (
	"database/sql"
	"strconv"
	"strings"
)

// CoerceFloat is the single point of numeric normalization: free-text
// numeric fields become a nullable float. Empty or unparseable input
// yields NULL; "0" is a valid zero, never NULL. It never fails.
func CoerceFloat(text string) sql.NullFloat64 {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return sql.NullFloat64{}
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: value, Valid: true}
}
