package mode

import (
	"errors"
	"strings"
)

// Mode is the input widget the player gets for the next turn.
type Mode string

const (
	FreeText     Mode = "free_text"
	Buttons      Mode = "buttons"
	DiceRoll     Mode = "dice_roll"
	Form         Mode = "form"
	PregenSelect Mode = "pregen_select"
)

// ErrEmptySchema is set on a form Resolution whose schema has no fields.
var ErrEmptySchema = errors.New("form schema has no fields")

// ManualValue is the option value for building a character by hand.
const ManualValue = "manual"

var modeAliases = map[string]Mode{
	"free_text":        FreeText,
	"freetext":         FreeText,
	"text":             FreeText,
	"input":            FreeText,
	"buttons":          Buttons,
	"button":           Buttons,
	"choices":          Buttons,
	"options":          Buttons,
	"dice_roll":        DiceRoll,
	"dice":             DiceRoll,
	"roll":             DiceRoll,
	"form":             Form,
	"pregen_select":    PregenSelect,
	"pregen":           PregenSelect,
	"character_select": PregenSelect,
}

// Parse normalises a mode tag. Unknown tags report false.
func Parse(tag string) (Mode, bool) {
	key := strings.ToLower(strings.TrimSpace(tag))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	m, ok := modeAliases[key]
	return m, ok
}

// Option is one selectable choice, for buttons, select fields and the
// pregen roster.
type Option struct {
	Label       string `json:"label"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// ContinueOption is substituted when a buttons directive has no usable options.
var ContinueOption = Option{Label: "Continue", Value: "Continue"}

// Resolution is everything the client needs to present the next input.
type Resolution struct {
	Mode           Mode        `json:"mode"`
	Options        []Option    `json:"options,omitempty"`
	Form           *FormSchema `json:"form,omitempty"`
	AllowFreeInput bool        `json:"allow_free_input"`
	// QuickActions are short suggested player inputs shown beside the widget.
	QuickActions []string `json:"quick_actions,omitempty"`
	// Err is a recoverable problem with the directive; the turn still commits.
	Err error `json:"-"`
}

// RollPending reports whether input is locked waiting on the model's roll.
func (r Resolution) RollPending() bool {
	return r.Mode == DiceRoll
}

// InputLocked reports whether the free text box must be disabled.
func (r Resolution) InputLocked() bool {
	return !r.AllowFreeInput
}

// Default is the resolution used when there is no directive at all.
func Default() Resolution {
	return Resolution{Mode: FreeText, AllowFreeInput: true}
}
