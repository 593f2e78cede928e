package portable

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/dmitrijs2005/securepass/internal/common"
)

var csvHeader = []string{"Title", "Website", "Username", "Email", "Password", "Category", "Notes", "Tags", "Favorite", "Created", "Updated"}

// escapeField quotes v when it holds a comma, quote or newline, doubling
// any quotes inside.
func escapeField(v string) string {
	if !strings.ContainsAny(v, ",\"\n") {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}

// EncodeCSV writes the header and one row per record, rows separated by
// "\n". Tags are joined with ";" and times are RFC3339.
func EncodeCSV(w io.Writer, records []Record) error {
	var b strings.Builder
	b.WriteString(strings.Join(csvHeader, ","))

	for _, r := range records {
		favorite := "No"
		if r.IsFavorite {
			favorite = "Yes"
		}
		row := []string{
			escapeField(r.Title),
			escapeField(r.Website),
			escapeField(r.Username),
			escapeField(r.Email),
			escapeField(r.Password),
			escapeField(r.Category),
			escapeField(r.Notes),
			escapeField(strings.Join(r.Tags, ";")),
			favorite,
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.UpdatedAt.UTC().Format(time.RFC3339),
		}
		b.WriteByte('\n')
		b.WriteString(strings.Join(row, ","))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

type row struct {
	line   int
	fields []string
}

// tokenize splits delimited text into rows of fields. A quote toggles the
// in-quotes flag; inside quotes a doubled quote is a literal quote and
// commas and newlines are data. Rows with only whitespace are dropped.
// The second result is false when the input ends inside quotes.
func tokenize(s string) ([]row, bool) {
	var (
		rows     []row
		fields   []string
		field    strings.Builder
		inQuotes bool
		blank    = true
		line     = 1
		start    = 1
	)

	endField := func() {
		fields = append(fields, field.String())
		field.Reset()
	}
	endRow := func() {
		endField()
		if !blank {
			rows = append(rows, row{line: start, fields: fields})
		}
		fields = nil
		blank = true
	}

	rs := []rune(s)
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		switch {
		case r == '"':
			blank = false
			if inQuotes && i+1 < len(rs) && rs[i+1] == '"' {
				field.WriteRune('"')
				i++
				continue
			}
			inQuotes = !inQuotes
		case inQuotes:
			if r == '\n' {
				line++
			}
			field.WriteRune(r)
		case r == ',':
			blank = false
			endField()
		case r == '\r' && i+1 < len(rs) && rs[i+1] == '\n':
			// CRLF; the \n ends the row.
		case r == '\n':
			endRow()
			line++
			start = line
		default:
			if !unicode.IsSpace(r) {
				blank = false
			}
			field.WriteRune(r)
		}
	}
	endRow()

	return rows, !inQuotes
}

type setter func(c *Candidate, v string)

func parseTags(v string) []string {
	tags := make([]string, 0)
	for _, t := range strings.Split(v, ";") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

var columnAliases = map[string]setter{
	"title":     func(c *Candidate, v string) { c.Title = v },
	"name":      func(c *Candidate, v string) { c.Title = v },
	"website":   func(c *Candidate, v string) { c.Website = v },
	"url":       func(c *Candidate, v string) { c.Website = v },
	"site":      func(c *Candidate, v string) { c.Website = v },
	"username":  func(c *Candidate, v string) { c.Username = v },
	"user":      func(c *Candidate, v string) { c.Username = v },
	"email":     func(c *Candidate, v string) { c.Email = v },
	"password":  func(c *Candidate, v string) { c.Password = v },
	"category":  func(c *Candidate, v string) { c.Category = v },
	"notes":     func(c *Candidate, v string) { c.Notes = v },
	"note":      func(c *Candidate, v string) { c.Notes = v },
	"tags":      func(c *Candidate, v string) { c.Tags = parseTags(v) },
	"favorite":  setFavorite,
	"favourite": setFavorite,
}

func setFavorite(c *Candidate, v string) {
	v = strings.ToLower(strings.TrimSpace(v))
	fav := v == "yes" || v == "true"
	c.IsFavorite = &fav
}

// DecodeCSV reads a header row and data rows. Header names are matched
// case-insensitively against known aliases; unknown columns are ignored.
// A row whose column count differs from the header is rejected.
func DecodeCSV(data []byte) (*Batch, error) {
	rows, ok := tokenize(string(data))
	if !ok {
		return nil, common.Validationf("unterminated quoted field")
	}
	if len(rows) < 2 {
		return nil, common.Validationf("CSV must contain at least a header and one data row")
	}

	header := rows[0].fields
	setters := make([]setter, len(header))
	for i, h := range header {
		setters[i] = columnAliases[strings.ToLower(strings.TrimSpace(h))]
	}

	batch := &Batch{Candidates: make([]Candidate, 0, len(rows)-1)}
	for _, r := range rows[1:] {
		if len(r.fields) != len(header) {
			batch.Rejected = append(batch.Rejected, Rejected{
				Title:  fmt.Sprintf("line %d", r.line),
				Reason: fmt.Sprintf("expected %d columns, got %d", len(header), len(r.fields)),
			})
			continue
		}
		var c Candidate
		for i, v := range r.fields {
			if setters[i] != nil {
				setters[i](&c, v)
			}
		}
		batch.Candidates = append(batch.Candidates, c)
	}
	return batch, nil
}
