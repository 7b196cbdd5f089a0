package prescription

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// TemplateRef is a search result entry from the template index
type TemplateRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Template is a named, reusable preset of medicine rows
type Template struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Items []Item `json:"items"`
}

// SymptomTemplate is a named preset of delimiter-joined symptom text
type SymptomTemplate struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// SaveTemplateRequest is the payload for persisting the current
// prescription as a reusable template. Saving requires a name, a non-empty
// symptoms value, and at least one item with a medicine name.
type SaveTemplateRequest struct {
	Name      string `json:"name" validate:"required"`
	Symptoms  string `json:"symptoms" validate:"required"`
	Diagnosis string `json:"diagnosis"`
	Items     []Item `json:"items" validate:"required,min=1,dive"`
}

// Validate checks the request locally before any network call
func (r *SaveTemplateRequest) Validate() error {
	return validate.Struct(r)
}
