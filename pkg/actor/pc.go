package actor

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/jwebster45206/d20"
	"github.com/jwebster45206/narration-engine/pkg/state"
)

// Stats5e represents the six core ability scores
type Stats5e struct {
	Strength     int `json:"strength"`
	Dexterity    int `json:"dexterity"`
	Constitution int `json:"constitution"`
	Intelligence int `json:"intelligence"`
	Wisdom       int `json:"wisdom"`
	Charisma     int `json:"charisma"`
}

var coreStats = []string{"strength", "dexterity", "constitution", "intelligence", "wisdom", "charisma"}

// ToAttributes converts Stats5e to a map for d20.Actor compatibility
func (s *Stats5e) ToAttributes() map[string]int {
	return map[string]int{
		"strength":     s.Strength,
		"dexterity":    s.Dexterity,
		"constitution": s.Constitution,
		"intelligence": s.Intelligence,
		"wisdom":       s.Wisdom,
		"charisma":     s.Charisma,
	}
}

// PCSpec is the serializable specification for a pre-built protagonist
type PCSpec struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Title           string         `json:"title,omitempty"` // shown under the name, e.g. "Exiled Knight"
	Class           string         `json:"class,omitempty"`
	Level           int            `json:"level,omitempty"`
	Race            string         `json:"race,omitempty"`
	Pronouns        string         `json:"pronouns,omitempty"`
	Description     string         `json:"description,omitempty"`
	Background      string         `json:"background,omitempty"`
	PortraitPrompt  string         `json:"portrait_prompt,omitempty"` // seeds the first avatar image
	Stats           Stats5e        `json:"stats"`
	MaxHP           int            `json:"max_hp"`
	AC              int            `json:"ac"`
	CombatModifiers map[string]int `json:"combat_modifiers,omitempty"`
	Skills          map[string]int `json:"skills,omitempty"`
	Inventory       []string       `json:"inventory,omitempty"`
}

// PC is the runtime representation of a pregen
type PC struct {
	Spec  *PCSpec
	Actor *d20.Actor // Built at runtime from PCSpec
}

// NewPCFromSpec creates a PC from a PCSpec and builds its d20.Actor
func NewPCFromSpec(spec *PCSpec) (*PC, error) {
	if spec == nil {
		return nil, fmt.Errorf("spec cannot be nil")
	}
	if spec.ID == "" || spec.Name == "" {
		return nil, fmt.Errorf("pregen needs an id and a name")
	}

	attrs := spec.Stats.ToAttributes()
	maps.Copy(attrs, spec.Skills)

	a, err := d20.NewActor(spec.ID).
		WithHP(spec.MaxHP).
		WithAC(spec.AC).
		WithAttributes(attrs).
		WithCombatModifiers(spec.CombatModifiers).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build actor %s: %w", spec.ID, err)
	}

	return &PC{Spec: spec, Actor: a}, nil
}

// Headline is the one-line roster label, e.g. "Kestrel, Level 3 Human Sellsword".
func (pc *PC) Headline() string {
	var parts []string
	if pc.Spec.Level > 0 {
		parts = append(parts, fmt.Sprintf("Level %d", pc.Spec.Level))
	}
	if pc.Spec.Race != "" {
		parts = append(parts, pc.Spec.Race)
	}
	if pc.Spec.Class != "" {
		parts = append(parts, pc.Spec.Class)
	}
	if len(parts) == 0 {
		return pc.Spec.Name
	}
	return pc.Spec.Name + ", " + strings.Join(parts, " ")
}

// Summary describes the pregen for the model, reading vitals and scores
// from the built actor.
//
// Example output:
// Kestrel (she/her), Level 3 Human Sellsword. HP 24/24, AC 15. STR 16, DEX 14, ... Inventory: longsword, rope.
func (pc *PC) Summary() string {
	if pc == nil {
		return ""
	}
	sb := strings.Builder{}
	sb.WriteString(pc.Headline())
	if pc.Spec.Pronouns != "" {
		sb.WriteString(fmt.Sprintf(" (%s)", pc.Spec.Pronouns))
	}
	sb.WriteString(". ")
	if pc.Spec.Description != "" {
		sb.WriteString(strings.TrimSuffix(pc.Spec.Description, ".") + ". ")
	}
	sb.WriteString(fmt.Sprintf("HP %d/%d, AC %d. ", pc.Actor.HP(), pc.Actor.MaxHP(), pc.Actor.AC()))

	scores := make([]string, 0, len(coreStats))
	for _, key := range coreStats {
		if v, ok := pc.Actor.Attribute(key); ok {
			scores = append(scores, fmt.Sprintf("%s %d", strings.ToUpper(key[:3]), v))
		}
	}
	sb.WriteString(strings.Join(scores, ", ") + ".")

	if len(pc.Spec.Skills) > 0 {
		skills := slices.Sorted(maps.Keys(pc.Spec.Skills))
		for i, k := range skills {
			v, _ := pc.Actor.Attribute(k)
			skills[i] = fmt.Sprintf("%s %+d", k, v)
		}
		sb.WriteString(" Skills: " + strings.Join(skills, ", ") + ".")
	}
	if len(pc.Spec.Inventory) > 0 {
		sb.WriteString(" Inventory: " + strings.Join(pc.Spec.Inventory, ", ") + ".")
	}
	if pc.Spec.Background != "" {
		sb.WriteString(" Background: " + pc.Spec.Background)
	}
	return sb.String()
}

// StatusUpdate describes this pregen as a full status update, so picking
// a character goes through the same reconcile path as model updates.
func (pc *PC) StatusUpdate() *state.StatusUpdate {
	inventory := slices.Clone(pc.Spec.Inventory)
	if inventory == nil {
		inventory = []string{}
	}
	attrs := make(map[string]state.FlexInt, len(coreStats))
	for k, v := range pc.Spec.Stats.ToAttributes() {
		attrs[k] = state.FlexInt(v)
	}
	return &state.StatusUpdate{
		Name:       state.Ptr(pc.Spec.Name),
		Title:      state.Ptr(pc.Spec.Title),
		HP:         state.Ptr(state.FlexInt(pc.Actor.HP())),
		MaxHP:      state.Ptr(state.FlexInt(pc.Actor.MaxHP())),
		Armor:      state.Ptr(state.FlexInt(pc.Actor.AC())),
		Inventory:  inventory,
		Attributes: attrs,
	}
}

// Status returns the starting GameStatus for this pregen.
func (pc *PC) Status() state.GameStatus {
	return state.Reconcile(state.DefaultStatus(), pc.StatusUpdate(), nil)
}

// MarshalJSON writes the spec with vitals read back from the actor.
func (pc *PC) MarshalJSON() ([]byte, error) {
	if pc == nil {
		return []byte("null"), nil
	}
	spec := *pc.Spec
	if pc.Actor != nil {
		spec.MaxHP = pc.Actor.MaxHP()
		spec.AC = pc.Actor.AC()
	}
	return json.Marshal(spec)
}
