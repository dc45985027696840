package state

import (
	"maps"
	"slices"
	"strings"
)

// StatusUpdate is a partial GameStatus as asserted by the model.
// A nil field is absent and leaves the previous value alone; a non-nil
// field, including an empty collection, replaces the previous value.
type StatusUpdate struct {
	Name      *string  `json:"name,omitempty"`
	Title     *string  `json:"title,omitempty"`
	HP        *FlexInt `json:"hp,omitempty"`
	MaxHP     *FlexInt `json:"max_hp,omitempty"`
	Armor     *FlexInt `json:"armor,omitempty"`
	Location  *string  `json:"location,omitempty"`
	Objective *string  `json:"objective,omitempty"`

	Inventory  []string           `json:"inventory,omitzero"`
	Attributes map[string]FlexInt `json:"attributes,omitzero"`
	Companions []Companion        `json:"companions,omitzero"`
	Quests     []Quest            `json:"quests,omitzero"`
	Reputation map[string]FlexInt `json:"reputation,omitzero"`
	Clues      []string           `json:"clues,omitzero"`
}

// IsEmpty reports whether the update carries no fields at all.
func (u *StatusUpdate) IsEmpty() bool {
	return u == nil || (u.Name == nil && u.Title == nil && u.HP == nil &&
		u.MaxHP == nil && u.Armor == nil && u.Location == nil && u.Objective == nil &&
		u.Inventory == nil && u.Attributes == nil && u.Companions == nil &&
		u.Quests == nil && u.Reputation == nil && u.Clues == nil)
}

// Reconcile merges a partial update and an optional combat snapshot into
// prev and returns the new status. It is a pure function: prev, update and
// combat are never mutated and the result shares no memory with them, so
// calling it again with the same update yields the same status.
//
// Merge is shallow: each present field replaces the previous value
// entirely. An inventory update with an empty list empties the inventory.
// A combat snapshot with round 0 and no combatants ends combat.
func Reconcile(prev GameStatus, update *StatusUpdate, combat *CombatSnapshot) GameStatus {
	next := prev.Clone()

	if update != nil {
		if update.Name != nil {
			next.Name = *update.Name
		}
		if update.Title != nil {
			next.Title = *update.Title
		}
		if update.HP != nil {
			next.HP = int(*update.HP)
		}
		if update.MaxHP != nil {
			next.MaxHP = int(*update.MaxHP)
		}
		if update.Armor != nil {
			next.Armor = int(*update.Armor)
		}
		if update.Location != nil {
			next.Location = *update.Location
		}
		if update.Objective != nil {
			next.Objective = *update.Objective
		}
		if update.Inventory != nil {
			next.Inventory = slices.Clone(update.Inventory)
		}
		if update.Attributes != nil {
			next.Attributes = toIntMap(update.Attributes)
		}
		if update.Companions != nil {
			next.Companions = slices.Clone(update.Companions)
		}
		if update.Quests != nil {
			next.Quests = normalizeQuests(update.Quests)
		}
		if update.Reputation != nil {
			next.Reputation = toIntMap(update.Reputation)
		}
		if update.Clues != nil {
			next.Clues = slices.Clone(update.Clues)
		}
	}

	if combat != nil {
		if combat.IsOver() {
			next.Combat = nil
		} else {
			next.Combat = combat.Clone()
		}
	}

	return next
}

func toIntMap(m map[string]FlexInt) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range maps.All(m) {
		out[k] = int(v)
	}
	return out
}

func normalizeQuests(qs []Quest) []Quest {
	out := make([]Quest, len(qs))
	for i, q := range qs {
		switch strings.ToLower(strings.TrimSpace(q.Status)) {
		case "complete", "completed", "done":
			q.Status = QuestComplete
		case "failed", "fail":
			q.Status = QuestFailed
		default:
			q.Status = QuestActive
		}
		out[i] = q
	}
	return out
}
