package validate

import (
	"github.com/FocuswithJustin/JuniperTag/core/document"
	"github.com/FocuswithJustin/JuniperTag/core/entity"
)

// Code identifies a validation finding.
type Code string

// Error codes.
const (
	CodePassageNotFound          Code = "PASSAGE_NOT_FOUND"
	CodeInvalidRange             Code = "INVALID_RANGE"
	CodeRequiredAttributeMissing Code = "REQUIRED_ATTRIBUTE_MISSING"
	CodeReferenceNotFound        Code = "REFERENCE_NOT_FOUND"
	CodeInvalidValue             Code = "INVALID_VALUE"
)

// Warning codes.
const (
	CodeUnknownAttribute Code = "UNKNOWN_ATTRIBUTE"
	CodeEmptySelection   Code = "EMPTY_SELECTION"
	CodeInvalidBoolean   Code = "INVALID_BOOLEAN"
)

// Issue is one error or warning. It carries enough context to render the
// finding or to apply a fix without re-running validation.
type Issue struct {
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	PassageID string `json:"passage_id,omitempty"`
	TagType   string `json:"tag_type,omitempty"`
	Attribute string `json:"attribute,omitempty"`
	Value     string `json:"value,omitempty"`
}

// FixType is the kind of repair a Fix offers.
type FixType string

// Fix types.
const (
	FixAddAttribute FixType = "add-attribute"
	FixCreateEntity FixType = "create-entity"
	FixReplaceValue FixType = "replace-value"
)

// Fix is a repair suggestion attached to an error.
type Fix struct {
	Type      FixType `json:"type"`
	Attribute string  `json:"attribute,omitempty"`

	// SuggestedValues lists candidate values in document order.
	SuggestedValues []string `json:"suggested_values,omitempty"`

	// Preferred holds the subset of SuggestedValues whose entity name
	// resembles the selected text, best match first.
	Preferred []string `json:"preferred,omitempty"`

	// EntityType is set for create-entity fixes.
	EntityType entity.Type `json:"entity_type,omitempty"`
}

// Result is the outcome of validating one selection.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
	Fixes    []Fix   `json:"fixes"`
}

// HasCode reports whether any error or warning carries code.
func (r *Result) HasCode(code Code) bool {
	for _, is := range r.Errors {
		if is.Code == code {
			return true
		}
	}
	for _, is := range r.Warnings {
		if is.Code == code {
			return true
		}
	}
	return false
}

func (r *Result) addError(is Issue, fixes ...Fix) {
	r.Errors = append(r.Errors, is)
	r.Fixes = append(r.Fixes, fixes...)
}

func (r *Result) addWarning(is Issue) {
	r.Warnings = append(r.Warnings, is)
}

// Selection is a proposed tag over a passage range.
type Selection struct {
	PassageID  string             `json:"passage_id"`
	Range      document.TextRange `json:"range"`
	TagType    string             `json:"tag_type"`
	Attributes map[string]string  `json:"attributes,omitempty"`
}
