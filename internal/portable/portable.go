// Package portable encodes and decodes the plaintext export of a vault.
// Two formats exist: a JSON document and a flat delimited-text table.
package portable

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/securepass/internal/common"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Version is written into every JSON export.
const Version = "1.0"

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", common.Validationf("unsupported format %q", s)
}

func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/json"
}

// ExportFilename is the suggested download name for an export made at now.
func ExportFilename(f Format, now time.Time) string {
	return fmt.Sprintf("passwords_export_%s.%s", now.Format("2006-01-02"), f)
}

// Record is one credential with its secret in the clear.
type Record struct {
	Title      string    `json:"title"`
	Website    string    `json:"website"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Password   string    `json:"password"`
	Category   string    `json:"category"`
	Notes      string    `json:"notes"`
	Tags       []string  `json:"tags"`
	IsFavorite bool      `json:"isFavorite"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Document is the JSON export envelope.
type Document struct {
	ExportDate time.Time `json:"exportDate"`
	Version    string    `json:"version"`
	Passwords  []Record  `json:"passwords"`
}

// Candidate is one record read from an import. Tags and IsFavorite are nil
// when the source did not carry them.
type Candidate struct {
	Title      string
	Website    string
	Username   string
	Email      string
	Password   string
	Category   string
	Notes      string
	Tags       []string
	IsFavorite *bool
}

// Rejected is an input record that could not be turned into a Candidate.
type Rejected struct {
	Title  string
	Reason string
}

// Batch is the result of decoding an import.
type Batch struct {
	Candidates []Candidate
	Rejected   []Rejected
}
