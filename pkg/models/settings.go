package models

// LimitSettings bounds pagination.
type LimitSettings struct {
	Default int `yaml:"default" json:"default"`
	Min     int `yaml:"min" json:"min"`
	Max     int `yaml:"max" json:"max"`
}

// FieldSettings configures one field of a type.
type FieldSettings struct {
	// Default is the textual default parsed by the field's kind. Binary kinds
	// accept "file:<path>" to load content from disk.
	Default       *string  `yaml:"default" json:"default,omitempty"`
	ContentTypes  []string `yaml:"content_types" json:"content_types,omitempty"`
	PreviewLength int      `yaml:"preview_length" json:"preview_length,omitempty"`
}

// TypeSettings configures one type.
type TypeSettings struct {
	// Name is the SQL expression over the type's columns used as display name.
	Name   string                   `yaml:"name" json:"name,omitempty"`
	Filter string                   `yaml:"filter" json:"filter,omitempty"`
	Limit  LimitSettings            `yaml:"limit" json:"limit"`
	Order  map[string]string        `yaml:"order" json:"order,omitempty"`
	Fields map[string]FieldSettings `yaml:"fields" json:"fields,omitempty"`
}

// Field returns the settings of a field, zero if unconfigured.
func (s TypeSettings) Field(name string) FieldSettings {
	return s.Fields[name]
}

// NameExpression returns the display-name expression, defaulting to the identifier.
func (s TypeSettings) NameExpression() string {
	if s.Name == "" {
		return ColumnID
	}
	return s.Name
}

// SettingsProvider resolves per-type settings.
type SettingsProvider interface {
	TypeSettings(typeName string) TypeSettings
}

// Settings is a static SettingsProvider: per-type settings layered over global pagination.
type Settings struct {
	Pagination LimitSettings
	Types      map[string]TypeSettings
}

// Default pagination bounds.
const (
	DefaultLimit = 20
	DefaultMin   = 1
	DefaultMax   = 1000
)

// TypeSettings returns the settings of typeName with unset limits filled from
// the global pagination and then from the package defaults.
func (s *Settings) TypeSettings(typeName string) TypeSettings {
	ts := s.Types[typeName]
	ts.Limit = mergeLimits(ts.Limit, s.Pagination)
	return ts
}

func mergeLimits(l, global LimitSettings) LimitSettings {
	if l.Default == 0 {
		l.Default = global.Default
	}
	if l.Min == 0 {
		l.Min = global.Min
	}
	if l.Max == 0 {
		l.Max = global.Max
	}
	if l.Default == 0 {
		l.Default = DefaultLimit
	}
	if l.Min == 0 {
		l.Min = DefaultMin
	}
	if l.Max == 0 {
		l.Max = DefaultMax
	}
	return l
}
