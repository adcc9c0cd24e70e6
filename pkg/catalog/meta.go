package catalog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
)

// Type metadata travels with the schema as JSON comments on the table, its
// columns and its indexes.

type tableComment struct {
	Create time.Time `json:"create"`
	Alter  time.Time `json:"alter"`
}

type columnComment struct {
	Type      string  `json:"type"`
	Length    *int    `json:"length,omitempty"`
	Precision *int    `json:"precision,omitempty"`
	Scale     *int    `json:"scale,omitempty"`
	Min       *string `json:"min,omitempty"`
	Max       *string `json:"max,omitempty"`
}

type indexComment struct {
	Mode   models.IndexMode `json:"mode"`
	Fields []string         `json:"fields"`
}

func columnCommentOf(f models.TypeField) columnComment {
	return columnComment{
		Type:      f.Type,
		Length:    f.Length,
		Precision: f.Precision,
		Scale:     f.Scale,
		Min:       f.Min,
		Max:       f.Max,
	}
}

func (c columnComment) field(notNull bool) models.TypeField {
	return models.TypeField{
		Type:      c.Type,
		Length:    c.Length,
		Precision: c.Precision,
		Scale:     c.Scale,
		NotNull:   notNull,
		Min:       c.Min,
		Max:       c.Max,
	}
}

// commentLiteral renders v as the quoted JSON literal of a COMMENT statement.
func commentLiteral(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		// The comment structs contain only marshalable fields.
		panic(fmt.Sprintf("marshal comment: %v", err))
	}
	return pq.QuoteLiteral(string(data))
}

func parseComment(raw *string, v any) error {
	if raw == nil || *raw == "" {
		return fmt.Errorf("missing metadata comment")
	}
	if err := json.Unmarshal([]byte(*raw), v); err != nil {
		return fmt.Errorf("decode metadata comment: %w", err)
	}
	return nil
}

// now is the timestamp recorded for creations and alterations, at the
// precision the backing store keeps.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
