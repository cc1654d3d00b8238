package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Ref is a reference to another directory entity. The backend sends it either
// as a raw id ("64f0..."), a number, or a populated object ({"_id": "64f0...", ...}).
type Ref struct {
	ID string
}

// NewRef builds a reference from a raw id.
func NewRef(id string) Ref {
	return Ref{ID: strings.TrimSpace(id)}
}

// Key returns the normalized comparable form of the reference.
func (r Ref) Key() string {
	return r.ID
}

// IsZero reports whether the reference is empty.
func (r Ref) IsZero() bool {
	return r.ID == ""
}

func (r Ref) String() string {
	return r.ID
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = Ref{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("failed to decode reference: %w", err)
		}
		*r = NewRef(s)
		return nil
	case '{':
		var obj struct {
			MongoID json.RawMessage `json:"_id"`
			ID      json.RawMessage `json:"id"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("failed to decode reference object: %w", err)
		}
		raw := obj.MongoID
		if len(raw) == 0 {
			raw = obj.ID
		}
		if len(raw) == 0 {
			*r = Ref{}
			return nil
		}
		// nested ids go through the same scalar normalization as raw ids
		if raw[0] == '{' {
			return fmt.Errorf("reference id must be a scalar, got %s", raw)
		}
		return r.UnmarshalJSON(raw)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("unsupported reference %s: %w", data, err)
		}
		*r = NewRef(n.String())
		return nil
	}
}

func (r Ref) MarshalJSON() ([]byte, error) {
	if r.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(r.ID)
}
