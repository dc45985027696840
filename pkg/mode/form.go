package mode

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/jwebster45206/narration-engine/pkg/state"
)

// FieldType is a normalised form field type.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldSelect   FieldType = "select"
	FieldRadio    FieldType = "radio"
	FieldCheckbox FieldType = "checkbox"
)

var fieldAliases = map[string]FieldType{
	"text":          FieldText,
	"textarea":      FieldText,
	"string":        FieldText,
	"select":        FieldSelect,
	"single_select": FieldSelect,
	"dropdown":      FieldSelect,
	"radio":         FieldRadio,
	"single_choice": FieldRadio,
	"checkbox":      FieldCheckbox,
	"multi_choice":  FieldCheckbox,
	"multi_select":  FieldCheckbox,
	"multiselect":   FieldCheckbox,
}

// ErrInvalidSubmission is returned by Validate for values the schema rejects.
var ErrInvalidSubmission = errors.New("invalid form submission")

// Field is one input of a form.
type Field struct {
	ID            string    `json:"id"`
	Type          FieldType `json:"type"`
	Label         string    `json:"label"`
	Placeholder   string    `json:"placeholder,omitempty"`
	Options       []Option  `json:"options,omitempty"`
	MaxSelections int       `json:"max_selections,omitempty"` // checkbox only, 0 = unlimited
}

// FormSchema is an ordered set of fields under a title.
type FormSchema struct {
	Title  string  `json:"title"`
	Fields []Field `json:"fields"`
}

type wireField struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Label         string          `json:"label"`
	Placeholder   string          `json:"placeholder"`
	Options       json.RawMessage `json:"options"`
	MaxSelections state.FlexInt   `json:"max_selections"`
}

// decodeForm accepts {title, fields: [...]} or a bare field array.
func decodeForm(raw json.RawMessage) FormSchema {
	var schema FormSchema
	if len(raw) == 0 {
		return schema
	}

	var wire struct {
		Title  string          `json:"title"`
		Fields json.RawMessage `json:"fields"`
	}
	fieldsRaw := raw
	if json.Unmarshal(raw, &wire) == nil {
		schema.Title = strings.TrimSpace(wire.Title)
		fieldsRaw = wire.Fields
	}

	var items []json.RawMessage
	if json.Unmarshal(fieldsRaw, &items) != nil {
		return schema
	}

	seen := make(map[string]bool)
	for _, item := range items {
		var wf wireField
		if json.Unmarshal(item, &wf) != nil {
			continue
		}
		f := Field{
			ID:          strings.TrimSpace(wf.ID),
			Type:        normalizeFieldType(wf.Type),
			Label:       strings.TrimSpace(wf.Label),
			Placeholder: wf.Placeholder,
			Options:     decodeOptions(wf.Options),
		}
		// positional ids keep re-renders of the same schema stable
		if f.ID == "" || seen[f.ID] {
			f.ID = "field_" + strconv.Itoa(len(schema.Fields))
		}
		seen[f.ID] = true
		if f.Label == "" {
			f.Label = f.ID
		}

		// a choice field with nothing to choose degrades to text
		if len(f.Options) == 0 {
			f.Type = FieldText
		}
		switch f.Type {
		case FieldText:
			f.Options = nil
		case FieldCheckbox:
			f.MaxSelections = max(int(wf.MaxSelections), 0)
		}

		schema.Fields = append(schema.Fields, f)
	}
	return schema
}

func normalizeFieldType(t string) FieldType {
	key := strings.ToLower(strings.TrimSpace(t))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if ft, ok := fieldAliases[key]; ok {
		return ft
	}
	return FieldText
}

// Field returns the field with the given id.
func (s *FormSchema) Field(id string) (Field, bool) {
	if s == nil {
		return Field{}, false
	}
	for _, f := range s.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

// Validate checks submitted values against the schema. Values are keyed
// by field id; checkbox fields take a list, all others a single string.
// Unknown keys are rejected; missing fields are allowed.
func (s *FormSchema) Validate(values map[string]any) error {
	if s == nil || len(s.Fields) == 0 {
		return ErrEmptySchema
	}
	for id, v := range values {
		f, ok := s.Field(id)
		if !ok {
			return fmt.Errorf("%w: unknown field %q", ErrInvalidSubmission, id)
		}
		switch f.Type {
		case FieldCheckbox:
			picks, ok := stringList(v)
			if !ok {
				return fmt.Errorf("%w: field %q expects a list", ErrInvalidSubmission, id)
			}
			if f.MaxSelections > 0 && len(picks) > f.MaxSelections {
				return fmt.Errorf("%w: field %q allows at most %d selections", ErrInvalidSubmission, id, f.MaxSelections)
			}
			for _, p := range picks {
				if !f.hasValue(p) {
					return fmt.Errorf("%w: field %q has no option %q", ErrInvalidSubmission, id, p)
				}
			}
		case FieldSelect, FieldRadio:
			str, ok := v.(string)
			if !ok || !f.hasValue(str) {
				return fmt.Errorf("%w: field %q has no option %v", ErrInvalidSubmission, id, v)
			}
		default:
			if _, ok := v.(string); !ok {
				return fmt.Errorf("%w: field %q expects text", ErrInvalidSubmission, id)
			}
		}
	}
	return nil
}

func (f Field) hasValue(v string) bool {
	return slices.ContainsFunc(f.Options, func(o Option) bool { return o.Value == v })
}

func stringList(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, x := range t {
			s, ok := x.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
