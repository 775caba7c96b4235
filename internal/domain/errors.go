package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRunNotFound   = errors.New("run not found")
	ErrInvalidWindow = errors.New("start date must not be after end date")
	ErrUnknownTable  = errors.New("unknown table")
	ErrNoAuxData     = errors.New("run has no auxiliary mapping")
)

// SchemaError reports required columns absent from an input table.
type SchemaError struct {
	Source  string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: missing required columns: %s", e.Source, strings.Join(e.Missing, ", "))
}

// MergeSchemaError reports composite-key fields missing at merge time.
// Row is -1 when the whole table lacks the fields.
type MergeSchemaError struct {
	Side    string
	Row     int
	Missing []string
}

func (e *MergeSchemaError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("merge: %s records missing key fields: %s", e.Side, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("merge: %s record %d missing key fields: %s", e.Side, e.Row, strings.Join(e.Missing, ", "))
}

// MissingColumns returns the entries of required not present in have, in
// required order.
func MissingColumns(have, required []string) []string {
	present := make(map[string]bool, len(have))
	for _, c := range have {
		present[c] = true
	}
	var missing []string
	for _, c := range required {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	return missing
}
