package mode

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/jwebster45206/narration-engine/pkg/payload"
)

// Resolver maps interface directives to resolutions. It holds only the
// fixed pregen roster; every result depends on the directive alone.
type Resolver struct {
	roster []Option
}

// NewResolver creates a resolver with the local pregen roster. A manual
// option is always appended.
func NewResolver(roster []Option) *Resolver {
	r := &Resolver{roster: slices.Clone(roster)}
	r.roster = append(r.roster, Option{
		Label:       "Create my own",
		Value:       ManualValue,
		Description: "Describe your own character in your next message.",
	})
	return r
}

// Roster returns the pregen options, manual last.
func (r *Resolver) Roster() []Option {
	return slices.Clone(r.roster)
}

// Resolve turns a directive into the next input mode. A nil directive or
// an unknown mode tag yields free text.
func (r *Resolver) Resolve(d *payload.Directive) Resolution {
	if d == nil {
		return Default()
	}
	m, ok := Parse(d.Mode)
	if !ok {
		return Default()
	}

	res := Resolution{Mode: m}
	switch m {
	case FreeText:
		res.AllowFreeInput = true
		return res

	case Buttons:
		res.Options = decodeOptions(buttonContent(d.Content))
		if len(res.Options) == 0 {
			res.Options = []Option{ContinueOption}
		}

	case DiceRoll:
		// the roll itself happens in the model's next turn
		return res

	case Form:
		schema := decodeForm(d.Content)
		res.Form = &schema
		if len(schema.Fields) == 0 {
			res.Err = fmt.Errorf("resolve form: %w", ErrEmptySchema)
		}

	case PregenSelect:
		res.Options = r.Roster()
	}

	if d.AllowFreeInput != nil {
		res.AllowFreeInput = *d.AllowFreeInput
	}
	return res
}

// MaxQuickActions caps the suggestions kept from a payload.
const MaxQuickActions = 4

// ResolvePayload resolves the payload's directive and attaches its quick
// actions. Blank and duplicate suggestions are dropped.
func (r *Resolver) ResolvePayload(p *payload.Payload) Resolution {
	if p == nil {
		return Default()
	}
	res := r.Resolve(p.Interface)
	for _, qa := range p.QuickActions {
		qa = strings.TrimSpace(qa)
		if qa == "" || slices.Contains(res.QuickActions, qa) {
			continue
		}
		res.QuickActions = append(res.QuickActions, qa)
		if len(res.QuickActions) == MaxQuickActions {
			break
		}
	}
	return res
}

// buttonContent unwraps {"options": [...]} and {"buttons": [...]}.
func buttonContent(raw json.RawMessage) json.RawMessage {
	var wrapped struct {
		Options json.RawMessage `json:"options"`
		Buttons json.RawMessage `json:"buttons"`
	}
	if json.Unmarshal(raw, &wrapped) == nil {
		if len(wrapped.Options) > 0 {
			return wrapped.Options
		}
		return wrapped.Buttons
	}
	return raw
}

// decodeOptions accepts a list of strings, numbers or {label, value}
// objects. Entries without a usable label are skipped; a missing value
// defaults to the label.
func decodeOptions(raw json.RawMessage) []Option {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return nil
	}

	var out []Option
	for _, item := range items {
		var o Option
		var s string
		var n json.Number
		switch {
		case json.Unmarshal(item, &s) == nil:
			o.Label = s
		case json.Unmarshal(item, &n) == nil:
			o.Label = n.String()
		default:
			var obj struct {
				Label       string `json:"label"`
				Text        string `json:"text"`
				Title       string `json:"title"`
				Value       any    `json:"value"`
				ID          string `json:"id"`
				Description string `json:"description"`
			}
			if json.Unmarshal(item, &obj) != nil {
				continue
			}
			o.Label = firstNonEmpty(obj.Label, obj.Text, obj.Title)
			if obj.Value != nil {
				o.Value = strings.TrimSpace(fmt.Sprint(obj.Value))
			}
			if o.Value == "" {
				o.Value = obj.ID
			}
			o.Description = obj.Description
		}

		o.Label = strings.TrimSpace(o.Label)
		if o.Label == "" {
			continue
		}
		if o.Value == "" {
			o.Value = o.Label
		}
		out = append(out, o)
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
