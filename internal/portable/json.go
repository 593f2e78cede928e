package portable

import (
	"bytes"
	"encoding/json"
	"io"
	"time"

	"github.com/dmitrijs2005/securepass/internal/common"
)

func EncodeJSON(w io.Writer, records []Record, now time.Time) error {
	doc := Document{ExportDate: now.UTC(), Version: Version, Passwords: make([]Record, 0, len(records))}
	for _, r := range records {
		if r.Tags == nil {
			r.Tags = []string{}
		}
		r.CreatedAt, r.UpdatedAt = r.CreatedAt.UTC(), r.UpdatedAt.UTC()
		doc.Passwords = append(doc.Passwords, r)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

type jsonCandidate struct {
	Title      string   `json:"title"`
	Website    string   `json:"website"`
	Username   string   `json:"username"`
	Email      string   `json:"email"`
	Password   string   `json:"password"`
	Category   string   `json:"category"`
	Notes      string   `json:"notes"`
	Tags       []string `json:"tags"`
	IsFavorite *bool    `json:"isFavorite"`
}

// DecodeJSON accepts a bare array of records or an object with a
// "passwords" array. A record of the wrong shape is rejected on its own.
func DecodeJSON(data []byte) (*Batch, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "undefined" {
		return nil, common.Validationf("import data is empty")
	}

	var items []json.RawMessage
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, common.Validationf("invalid import format: %v", err)
		}
	case '{':
		var env struct {
			Passwords *[]json.RawMessage `json:"passwords"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, common.Validationf("invalid import format: %v", err)
		}
		if env.Passwords == nil {
			return nil, common.Validationf("invalid import format: no passwords array")
		}
		items = *env.Passwords
	default:
		return nil, common.Validationf("invalid import format")
	}

	batch := &Batch{Candidates: make([]Candidate, 0, len(items))}
	for _, raw := range items {
		var c jsonCandidate
		if err := json.Unmarshal(raw, &c); err != nil {
			var title struct {
				Title any `json:"title"`
			}
			_ = json.Unmarshal(raw, &title)
			name, _ := title.Title.(string)
			if name == "" {
				name = "Unknown"
			}
			batch.Rejected = append(batch.Rejected, Rejected{Title: name, Reason: err.Error()})
			continue
		}
		batch.Candidates = append(batch.Candidates, Candidate(c))
	}
	return batch, nil
}
