package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// AlterResult enumerates the changes applied by an alteration.
type AlterResult struct {
	Type           string            `json:"type"`
	AddedFields    []string          `json:"added_fields,omitempty"`
	AlteredFields  []string          `json:"altered_fields,omitempty"`
	RenamedFields  map[string]string `json:"renamed_fields,omitempty"`
	DroppedFields  []string          `json:"dropped_fields,omitempty"`
	AddedIndexes   []string          `json:"added_indexes,omitempty"`
	AlteredIndexes []string          `json:"altered_indexes,omitempty"`
	RenamedIndexes map[string]string `json:"renamed_indexes,omitempty"`
	DroppedIndexes []string          `json:"dropped_indexes,omitempty"`
	AlterDate      time.Time         `json:"alter_date"`
}

// NewAlterResult returns an empty result for the named type.
func NewAlterResult(typeName string) *AlterResult {
	return &AlterResult{
		Type:           typeName,
		RenamedFields:  make(map[string]string),
		RenamedIndexes: make(map[string]string),
	}
}

// IsAltered reports whether anything changed.
func (r *AlterResult) IsAltered() bool {
	return len(r.AddedFields) > 0 || len(r.AlteredFields) > 0 ||
		len(r.RenamedFields) > 0 || len(r.DroppedFields) > 0 ||
		len(r.AddedIndexes) > 0 || len(r.AlteredIndexes) > 0 ||
		len(r.RenamedIndexes) > 0 || len(r.DroppedIndexes) > 0
}

// Summary is "altered" or "not altered".
func (r *AlterResult) Summary() string {
	if r.IsAltered() {
		return "altered"
	}
	return "not altered"
}

// String lists every change, one group per line.
func (r *AlterResult) String() string {
	if !r.IsAltered() {
		return fmt.Sprintf("%s: not altered", r.Type)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: altered", r.Type)
	writeGroup(&b, "added fields", r.AddedFields)
	writeGroup(&b, "altered fields", r.AlteredFields)
	writeGroup(&b, "renamed fields", renames(r.RenamedFields))
	writeGroup(&b, "dropped fields", r.DroppedFields)
	writeGroup(&b, "added indexes", r.AddedIndexes)
	writeGroup(&b, "altered indexes", r.AlteredIndexes)
	writeGroup(&b, "renamed indexes", renames(r.RenamedIndexes))
	writeGroup(&b, "dropped indexes", r.DroppedIndexes)
	return b.String()
}

func writeGroup(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n  %s: %s", label, strings.Join(items, ", "))
}

func renames(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for oldName, newName := range m {
		out = append(out, oldName+" -> "+newName)
	}
	sort.Strings(out)
	return out
}
