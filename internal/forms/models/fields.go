package models

import (
	"regexp"
	"strings"

	dErrors "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain-errors"
)

const (
	maxFields       = 100
	maxFieldNameLen = 64
	maxLabelLen     = 200
	maxOptions      = 50
)

// FieldType is the input widget a form field renders as.
type FieldType string

const (
	FieldText      FieldType = "text"
	FieldTextarea  FieldType = "textarea"
	FieldNumber    FieldType = "number"
	FieldDate      FieldType = "date"
	FieldCheckbox  FieldType = "checkbox"
	FieldSelect    FieldType = "select"
	FieldSignature FieldType = "signature"
)

var validFieldTypes = map[FieldType]bool{
	FieldText:      true,
	FieldTextarea:  true,
	FieldNumber:    true,
	FieldDate:      true,
	FieldCheckbox:  true,
	FieldSelect:    true,
	FieldSignature: true,
}

// ParseFieldType validates and converts a string to a FieldType.
func ParseFieldType(s string) (FieldType, bool) {
	fieldType := FieldType(s)
	return fieldType, validFieldTypes[fieldType]
}

func (t FieldType) IsValid() bool { return validFieldTypes[t] }

func (t FieldType) String() string { return string(t) }

// FieldValidation is the closed rule set a field may carry. Pattern applies
// to text inputs, Options to selects; length bounds to both text kinds.
type FieldValidation struct {
	MinLength int      `json:"min_length,omitempty"`
	MaxLength int      `json:"max_length,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
	Options   []string `json:"options,omitempty"`
}

func (v FieldValidation) validate(fieldType FieldType) error {
	if v.MinLength < 0 || v.MaxLength < 0 {
		return dErrors.New(dErrors.CodeValidation, "field length bounds cannot be negative")
	}
	if v.MaxLength > 0 && v.MinLength > v.MaxLength {
		return dErrors.New(dErrors.CodeValidation, "field min_length cannot exceed max_length")
	}
	if v.Pattern != "" {
		if fieldType != FieldText && fieldType != FieldTextarea {
			return dErrors.Newf(dErrors.CodeValidation, "pattern rules do not apply to %s fields", fieldType)
		}
		if _, err := regexp.Compile(v.Pattern); err != nil {
			return dErrors.Newf(dErrors.CodeValidation, "field pattern does not compile: %v", err)
		}
	}
	if fieldType == FieldSelect {
		if len(v.Options) == 0 {
			return dErrors.New(dErrors.CodeValidation, "select fields need at least one option")
		}
		if len(v.Options) > maxOptions {
			return dErrors.Newf(dErrors.CodeValidation, "select fields are capped at %d options", maxOptions)
		}
	} else if len(v.Options) > 0 {
		return dErrors.Newf(dErrors.CodeValidation, "options do not apply to %s fields", fieldType)
	}
	return nil
}

// FormField is one input slot on a form. Fields are an ordered list owned by
// their form; Position is assigned from list order at construction.
type FormField struct {
	Position   int
	Name       string
	Label      string
	FieldType  FieldType
	Required   bool
	Repeatable bool
	Validation FieldValidation
}

// normalizeFields validates the list, trims names and labels, and reassigns
// sequential positions from list order.
func normalizeFields(fields []FormField) ([]FormField, error) {
	if len(fields) > maxFields {
		return nil, dErrors.Newf(dErrors.CodeValidation, "forms are capped at %d fields", maxFields)
	}

	out := make([]FormField, len(fields))
	seen := make(map[string]bool, len(fields))
	for i, field := range fields {
		field.Name = strings.TrimSpace(field.Name)
		field.Label = strings.TrimSpace(field.Label)

		if field.Name == "" {
			return nil, dErrors.Newf(dErrors.CodeValidation, "field %d has no name", i)
		}
		if len(field.Name) > maxFieldNameLen {
			return nil, dErrors.Newf(dErrors.CodeValidation, "field name %q exceeds %d characters", field.Name, maxFieldNameLen)
		}
		if len(field.Label) > maxLabelLen {
			return nil, dErrors.Newf(dErrors.CodeValidation, "field label for %q exceeds %d characters", field.Name, maxLabelLen)
		}
		if !field.FieldType.IsValid() {
			return nil, dErrors.Newf(dErrors.CodeValidation, "field %q has unknown type %q", field.Name, field.FieldType)
		}
		key := strings.ToLower(field.Name)
		if seen[key] {
			return nil, dErrors.Newf(dErrors.CodeValidation, "duplicate field name %q", field.Name)
		}
		seen[key] = true

		if err := field.Validation.validate(field.FieldType); err != nil {
			return nil, err
		}

		field.Position = i
		out[i] = field
	}
	return out, nil
}
