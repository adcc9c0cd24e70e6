package models

// Comparison is the operator of a filter.
type Comparison string

const (
	Equal          Comparison = "="
	NotEqual       Comparison = "!="
	Greater        Comparison = ">"
	GreaterOrEqual Comparison = ">="
	Less           Comparison = "<"
	LessOrEqual    Comparison = "<="
	Contains       Comparison = "contains"
	NotContains    Comparison = "not_contains"
	StartsWith     Comparison = "starts_with"
	EndsWith       Comparison = "ends_with"
)

// IsPattern reports whether the comparison matches text against a wildcard pattern.
func (c Comparison) IsPattern() bool {
	switch c {
	case Contains, NotContains, StartsWith, EndsWith:
		return true
	}
	return false
}

// Valid reports whether c is a known comparison.
func (c Comparison) Valid() bool {
	switch c {
	case Equal, NotEqual, Greater, GreaterOrEqual, Less, LessOrEqual:
		return true
	}
	return c.IsPattern()
}

// Filter is one search predicate. A nil Value is only legal with Equal and
// NotEqual, where it means "is null" and "is not null". Exclude negates the predicate.
type Filter struct {
	Field      string     `json:"field"`
	Comparison Comparison `json:"comparison"`
	Value      any        `json:"value"`
	Exclude    bool       `json:"exclude,omitempty"`
}

// Direction of an ordering term.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// OrderBy is one ordering term.
type OrderBy struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// NoLimit disables pagination when passed as Query.Limit.
const NoLimit = -1

// Query describes a search over one type.
type Query struct {
	// Fields restricts the projection; empty means every field.
	Fields  []string  `json:"fields,omitempty"`
	Filters []Filter  `json:"filters,omitempty"`
	Search  string    `json:"search,omitempty"`
	Order   []OrderBy `json:"order,omitempty"`
	Offset  int       `json:"offset,omitempty"`
	// Limit nil uses the type's default limit.
	Limit *int `json:"limit,omitempty"`

	// Materialize fetches composite binary fields whole instead of their byte length.
	Materialize bool `json:"materialize,omitempty"`
	// DocumentPreview adds a <field>_preview projection of document text bounded to that many characters.
	DocumentPreview int `json:"document_preview,omitempty"`
	// IncludePasswords projects stored password hashes instead of the redacted placeholder.
	IncludePasswords bool `json:"-"`
	// RawReferences projects reference fields as plain identifiers without resolving display names.
	RawReferences bool `json:"-"`
}

// LimitPtr returns a pointer to limit, for Query.Limit.
func LimitPtr(limit int) *int {
	return &limit
}
