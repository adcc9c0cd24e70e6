package models

// TypeReference is a foreign-key edge between two types, derived from a field
// whose kind names another type.
type TypeReference struct {
	ReferencedType   string `json:"referenced_type"`
	ReferencingType  string `json:"referencing_type"`
	ReferencingField string `json:"referencing_field"`
}

// Reference is one row pointing at an object through a reference field.
type Reference struct {
	ReferencingType  string `json:"referencing_type"`
	ReferencingID    string `json:"referencing_id"`
	ReferencingField string `json:"referencing_field"`
}
