package state

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Quest statuses
const (
	QuestActive   = "active"
	QuestComplete = "complete"
	QuestFailed   = "failed"
)

// Companion is a party member travelling with the player.
type Companion struct {
	Name        string `json:"name"`
	Class       string `json:"class,omitempty"`
	Status      string `json:"status,omitempty"` // e.g. "healthy", "wounded", "down"
	PortraitURL string `json:"portrait_url,omitempty"`
}

// Quest is an entry in the player's journal.
type Quest struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"` // active, complete, failed
}

// Combatant is one entry in a combat turn order.
type Combatant struct {
	Name        string `json:"name"`
	HP          int    `json:"hp"`
	MaxHP       int    `json:"max_hp"`
	IsActive    bool   `json:"is_active"` // acting now
	PortraitURL string `json:"portrait_url,omitempty"`
}

// CombatSnapshot is the full combat picture for one turn. It is always
// replaced wholesale, never patched.
type CombatSnapshot struct {
	Round     int         `json:"round"`
	TurnOrder []Combatant `json:"turn_order"`
}

// IsOver reports whether the snapshot signals the end of combat.
func (c *CombatSnapshot) IsOver() bool {
	return c != nil && c.Round <= 0 && len(c.TurnOrder) == 0
}

// Active returns the combatant flagged as acting now, if any.
func (c *CombatSnapshot) Active() (Combatant, bool) {
	if c == nil {
		return Combatant{}, false
	}
	for _, cb := range c.TurnOrder {
		if cb.IsActive {
			return cb, true
		}
	}
	return Combatant{}, false
}

// UnmarshalJSON tolerates numeric strings and negative rounds.
func (c *CombatSnapshot) UnmarshalJSON(data []byte) error {
	var aux struct {
		Round     FlexInt `json:"round"`
		TurnOrder []struct {
			Name        string  `json:"name"`
			HP          FlexInt `json:"hp"`
			MaxHP       FlexInt `json:"max_hp"`
			IsActive    bool    `json:"is_active"`
			PortraitURL string  `json:"portrait_url,omitempty"`
		} `json:"turn_order"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.Round = max(int(aux.Round), 0)
	c.TurnOrder = make([]Combatant, 0, len(aux.TurnOrder))
	for _, t := range aux.TurnOrder {
		c.TurnOrder = append(c.TurnOrder, Combatant{
			Name:        t.Name,
			HP:          int(t.HP),
			MaxHP:       int(t.MaxHP),
			IsActive:    t.IsActive,
			PortraitURL: t.PortraitURL,
		})
	}
	return nil
}

// Clone returns a deep copy of the snapshot.
func (c *CombatSnapshot) Clone() *CombatSnapshot {
	if c == nil {
		return nil
	}
	return &CombatSnapshot{
		Round:     c.Round,
		TurnOrder: slices.Clone(c.TurnOrder),
	}
}

// GameStatus is the authoritative player-facing state of a session.
// There is exactly one live GameStatus per session; it only changes
// through Reconcile, except for the enrichment-owned image references.
type GameStatus struct {
	Name      string `json:"name"`
	Title     string `json:"title,omitempty"`
	HP        int    `json:"hp"`
	MaxHP     int    `json:"max_hp"`
	Armor     int    `json:"armor"`
	Location  string `json:"location"`
	Objective string `json:"objective"`

	Inventory  []string        `json:"inventory"`
	Attributes map[string]int  `json:"attributes,omitempty"`
	Companions []Companion     `json:"companions,omitempty"`
	Quests     []Quest         `json:"quests,omitempty"`
	Reputation map[string]int  `json:"reputation,omitempty"`
	Clues      []string        `json:"clues,omitempty"`
	Combat     *CombatSnapshot `json:"combat,omitempty"`

	// Owned by enrichment jobs.
	AvatarURL     string `json:"avatar_url,omitempty"`
	SceneImageURL string `json:"scene_image_url,omitempty"`
}

// DefaultStatus is the built-in status for a fresh session.
func DefaultStatus() GameStatus {
	return GameStatus{
		Name:      "Unknown Traveler",
		HP:        10,
		MaxHP:     10,
		Armor:     10,
		Location:  "The Crossroads",
		Objective: "Choose who you are.",
		Inventory: []string{},
	}
}

// Clone returns a deep copy of the status.
func (gs GameStatus) Clone() GameStatus {
	out := gs
	out.Inventory = slices.Clone(gs.Inventory)
	out.Attributes = maps.Clone(gs.Attributes)
	out.Companions = slices.Clone(gs.Companions)
	out.Quests = slices.Clone(gs.Quests)
	out.Reputation = maps.Clone(gs.Reputation)
	out.Clues = slices.Clone(gs.Clues)
	out.Combat = gs.Combat.Clone()
	return out
}

// InCombat reports whether a combat snapshot is live.
func (gs GameStatus) InCombat() bool {
	return gs.Combat != nil && len(gs.Combat.TurnOrder) > 0
}

// ActiveQuests returns quests still in progress.
func (gs GameStatus) ActiveQuests() []Quest {
	var out []Quest
	for _, q := range gs.Quests {
		if q.Status == QuestActive || q.Status == "" {
			out = append(out, q)
		}
	}
	return out
}

// HealthDelta returns the signed change in current health between two statuses.
func HealthDelta(prev, next GameStatus) int {
	return next.HP - prev.HP
}

// FlexInt decodes a JSON number or a numeric string. Models emit both.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		return f.set(string(n))
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("not a number: %s", string(data))
	}
	return f.set(strings.TrimSpace(s))
}

func (f *FlexInt) set(s string) error {
	if i, err := strconv.Atoi(s); err == nil {
		*f = FlexInt(i)
		return nil
	}
	fl, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", s)
	}
	*f = FlexInt(int(fl))
	return nil
}

// Ptr returns a pointer to v; used to build updates in code.
func Ptr[T any](v T) *T {
	return &v
}
