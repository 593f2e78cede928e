package portable

import (
	"io"
	"time"
)

// Encode writes records in format f.
func Encode(w io.Writer, f Format, records []Record, now time.Time) error {
	if f == FormatCSV {
		return EncodeCSV(w, records)
	}
	return EncodeJSON(w, records, now)
}

// Decode parses an import in format f.
func Decode(data []byte, f Format) (*Batch, error) {
	if f == FormatCSV {
		return DecodeCSV(data)
	}
	return DecodeJSON(data)
}
