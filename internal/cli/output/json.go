package output

import (
	"encoding/json"
	"io"
)

// PrintJSON writes data as two-space indented JSON. HTML escaping is off so
// signed URLs keep their literal '&' separators.
func PrintJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
