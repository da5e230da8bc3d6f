package fileutil

import (
	"encoding/json"
	"io"
)

// PrintJSON writes value as indented JSON followed by a newline.
func PrintJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

// WriteJSONL streams one compact JSON object per line. HTML characters in
// file and project names are written as-is.
func WriteJSONL[T any](w io.Writer, records []T) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	for i := range records {
		if err := encoder.Encode(records[i]); err != nil {
			return err
		}
	}
	return nil
}
