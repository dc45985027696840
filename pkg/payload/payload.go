package payload

import (
	"encoding/json"
	"fmt"

	"github.com/jwebster45206/narration-engine/pkg/state"
)

// Payload is the structured half of a model response. Every key is
// optional; the engine never trusts it as complete.
type Payload struct {
	Narrative    string                `json:"narrative,omitempty"` // redundant with the prose half, ignored
	StatusUpdate *state.StatusUpdate   `json:"status_update,omitempty"`
	CombatState  *state.CombatSnapshot `json:"combat_state,omitempty"`
	GameEvent    *GameEvent            `json:"game_event,omitempty"`
	QuickActions []string              `json:"quick_actions,omitempty"`
	UpdateScene  *SceneUpdate          `json:"update_scene,omitempty"`
	UpdateAvatar *AvatarUpdate         `json:"update_avatar,omitempty"`
	Interface    *Directive            `json:"interface,omitempty"`
}

// SceneUpdate asks for a new scene illustration.
type SceneUpdate struct {
	Trigger      bool   `json:"trigger"`
	VisualPrompt string `json:"visual_prompt"`
	Style        string `json:"style,omitempty"`
}

// AvatarUpdate asks for a new player portrait.
type AvatarUpdate struct {
	Trigger      bool   `json:"trigger"`
	VisualPrompt string `json:"visual_prompt"`
}

// Directive is the model's instruction for the next input widget.
// Content stays raw here; the mode resolver decodes it per mode.
type Directive struct {
	Mode           string          `json:"mode"`
	AllowFreeInput *bool           `json:"allow_free_input,omitempty"`
	Content        json.RawMessage `json:"content,omitempty"`
}

// EventType tags a GameEvent variant.
type EventType string

const (
	EventNone         EventType = "none"
	EventDiceRoll     EventType = "dice_roll"
	EventCombatHit    EventType = "combat_hit"
	EventItemObtained EventType = "item_obtained"
)

// DiceRoll is the payload of a dice_roll event.
type DiceRoll struct {
	RollName    string        `json:"roll_name"`
	D20Result   state.FlexInt `json:"d20_result"`
	Modifier    state.FlexInt `json:"modifier"`
	Proficiency state.FlexInt `json:"proficiency"`
	TotalValue  state.FlexInt `json:"total_value"`
	IsCritical  bool          `json:"is_critical"`
	IsSuccess   bool          `json:"is_success"`
}

// CombatHit is the payload of a combat_hit event.
type CombatHit struct {
	Target     string        `json:"target"`
	Damage     state.FlexInt `json:"damage"`
	DamageType string        `json:"damage_type"`
	IsCritical bool          `json:"is_critical"`
}

// ItemObtained is the payload of an item_obtained event.
type ItemObtained struct {
	ItemName    string        `json:"item_name"`
	Quantity    state.FlexInt `json:"quantity"`
	Description string        `json:"description"`
	Rarity      string        `json:"rarity,omitempty"`
	Icon        string        `json:"icon,omitempty"`
}

// GameEvent is a tagged union. Exactly one of the variant pointers is
// set, matching Type; EventNone carries no data.
type GameEvent struct {
	Type         EventType
	DiceRoll     *DiceRoll
	CombatHit    *CombatHit
	ItemObtained *ItemObtained
}

type wireEvent struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalJSON decodes the {type, data} envelope. Unknown types, and
// known types whose data does not decode, collapse to EventNone.
func (e *GameEvent) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("game_event: %w", err)
	}

	*e = GameEvent{Type: EventNone}
	switch w.Type {
	case EventDiceRoll:
		var d DiceRoll
		if json.Unmarshal(w.Data, &d) == nil {
			*e = GameEvent{Type: EventDiceRoll, DiceRoll: &d}
		}
	case EventCombatHit:
		var d CombatHit
		if json.Unmarshal(w.Data, &d) == nil {
			*e = GameEvent{Type: EventCombatHit, CombatHit: &d}
		}
	case EventItemObtained:
		var d ItemObtained
		if json.Unmarshal(w.Data, &d) == nil && d.ItemName != "" {
			if d.Quantity <= 0 {
				d.Quantity = 1
			}
			*e = GameEvent{Type: EventItemObtained, ItemObtained: &d}
		}
	}
	return nil
}

// MarshalJSON writes the {type, data} envelope back out.
func (e GameEvent) MarshalJSON() ([]byte, error) {
	w := struct {
		Type EventType `json:"type"`
		Data any       `json:"data,omitempty"`
	}{Type: e.Type}
	if w.Type == "" {
		w.Type = EventNone
	}
	switch e.Type {
	case EventDiceRoll:
		w.Data = e.DiceRoll
	case EventCombatHit:
		w.Data = e.CombatHit
	case EventItemObtained:
		w.Data = e.ItemObtained
	}
	return json.Marshal(w)
}

// Is reports whether the event is present and of type t.
func (e *GameEvent) Is(t EventType) bool {
	return e != nil && e.Type == t
}
