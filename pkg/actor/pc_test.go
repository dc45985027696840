package actor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStats5e_ToAttributes(t *testing.T) {
	stats := Stats5e{Strength: 16, Dexterity: 14, Constitution: 15, Intelligence: 10, Wisdom: 12, Charisma: 8}
	attrs := stats.ToAttributes()

	tests := []struct {
		key      string
		expected int
	}{
		{"strength", 16},
		{"dexterity", 14},
		{"constitution", 15},
		{"intelligence", 10},
		{"wisdom", 12},
		{"charisma", 8},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := attrs[tt.key]; got != tt.expected {
				t.Errorf("ToAttributes()[%q] = %d, want %d", tt.key, got, tt.expected)
			}
		})
	}
}

func TestNewPCFromSpec(t *testing.T) {
	spec := &PCSpec{
		ID:       "test_fighter",
		Name:     "Test Fighter",
		Class:    "Fighter",
		Level:    1,
		Race:     "Human",
		Pronouns: "they/them",
		Stats:    Stats5e{Strength: 16, Dexterity: 13, Constitution: 14, Intelligence: 10, Wisdom: 12, Charisma: 8},
		MaxHP:    12,
		AC:       16,
		CombatModifiers: map[string]int{
			"strength":    3,
			"proficiency": 2,
		},
		Skills:    map[string]int{"athletics": 5},
		Inventory: []string{"longsword", "shield"},
	}

	pc, err := NewPCFromSpec(spec)
	if err != nil {
		t.Fatalf("NewPCFromSpec() error = %v", err)
	}
	if pc.Actor == nil {
		t.Fatal("PC.Actor is nil, want non-nil")
	}
	if pc.Actor.MaxHP() != 12 {
		t.Errorf("Actor.MaxHP() = %d, want %d", pc.Actor.MaxHP(), 12)
	}
	if pc.Actor.AC() != 16 {
		t.Errorf("Actor.AC() = %d, want %d", pc.Actor.AC(), 16)
	}
	if v, ok := pc.Actor.Attribute("athletics"); !ok || v != 5 {
		t.Errorf("Actor.Attribute('athletics') = %d, %v; want 5, true", v, ok)
	}
	if mods := pc.Actor.GetCombatModifiers(); len(mods) != 2 {
		t.Errorf("Actor has %d combat modifiers, want 2", len(mods))
	}
}

func TestNewPCFromSpec_Invalid(t *testing.T) {
	tests := []struct {
		name string
		spec *PCSpec
	}{
		{"nil spec", nil},
		{"missing id", &PCSpec{Name: "X", MaxHP: 10, AC: 10}},
		{"missing name", &PCSpec{ID: "x", MaxHP: 10, AC: 10}},
		{"zero max hp", &PCSpec{ID: "x", Name: "X", MaxHP: 0, AC: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPCFromSpec(tt.spec); err == nil {
				t.Error("NewPCFromSpec() should return error")
			}
		})
	}
}

func TestPC_Summary(t *testing.T) {
	pc, err := NewPCFromSpec(&PCSpec{
		ID:          "kes",
		Name:        "Kestrel",
		Class:       "Sellsword",
		Level:       3,
		Race:        "Human",
		Pronouns:    "she/her",
		Description: "A scarred mercenary.",
		Stats:       Stats5e{Strength: 16, Dexterity: 14, Constitution: 15, Intelligence: 10, Wisdom: 12, Charisma: 9},
		MaxHP:       24,
		AC:          15,
		Skills:      map[string]int{"stealth": 2, "athletics": 5},
		Inventory:   []string{"longsword", "rope"},
	})
	if err != nil {
		t.Fatalf("NewPCFromSpec() error = %v", err)
	}

	got := pc.Summary()
	for _, want := range []string{
		"Kestrel, Level 3 Human Sellsword (she/her).",
		"A scarred mercenary.",
		"HP 24/24, AC 15.",
		"STR 16, DEX 14, CON 15, INT 10, WIS 12, CHA 9.",
		"Skills: athletics +5, stealth +2.",
		"Inventory: longsword, rope.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Summary() = %q, missing %q", got, want)
		}
	}
}

func TestPC_Status(t *testing.T) {
	pc, err := NewPCFromSpec(&PCSpec{
		ID: "pip", Name: "Pip", Title: "Cutpurse", MaxHP: 18, AC: 14,
		Stats: Stats5e{Dexterity: 17},
	})
	if err != nil {
		t.Fatalf("NewPCFromSpec() error = %v", err)
	}

	gs := pc.Status()
	if gs.Name != "Pip" || gs.Title != "Cutpurse" {
		t.Errorf("Status() identity = %q/%q", gs.Name, gs.Title)
	}
	if gs.HP != 18 || gs.MaxHP != 18 || gs.Armor != 14 {
		t.Errorf("Status() vitals = %d/%d AC %d", gs.HP, gs.MaxHP, gs.Armor)
	}
	if gs.Inventory == nil {
		t.Error("Status().Inventory should be empty, not nil")
	}
	if gs.Attributes["dexterity"] != 17 {
		t.Errorf("Status().Attributes[dexterity] = %d, want 17", gs.Attributes["dexterity"])
	}
}

func TestDefaultRoster(t *testing.T) {
	r, err := DefaultRoster()
	if err != nil {
		t.Fatalf("DefaultRoster() error = %v", err)
	}
	if len(r.All()) < 3 {
		t.Fatalf("DefaultRoster() has %d pregens, want at least 3", len(r.All()))
	}
	for _, pc := range r.All() {
		if pc.Actor == nil {
			t.Errorf("pregen %s has no actor", pc.Spec.ID)
		}
	}

	pc, err := r.Lookup("oona")
	if err != nil {
		t.Fatalf("Lookup(oona) error = %v", err)
	}
	if pc.Spec.Name != "Oona Vell" {
		t.Errorf("Lookup(oona).Name = %q", pc.Spec.Name)
	}

	if _, err := r.Lookup("nobody"); err == nil {
		t.Error("Lookup(nobody) should return error")
	}
}

func TestLoadRoster(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "roster.json")
	if err := os.WriteFile(good, []byte(`[{"id":"a","name":"A","max_hp":8,"ac":12}]`), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
	r, err := LoadRoster(good)
	if err != nil {
		t.Fatalf("LoadRoster() error = %v", err)
	}
	if len(r.All()) != 1 {
		t.Errorf("LoadRoster() has %d pregens, want 1", len(r.All()))
	}

	dup := filepath.Join(dir, "dup.json")
	if err := os.WriteFile(dup, []byte(`[{"id":"a","name":"A","max_hp":8,"ac":12},{"id":"a","name":"B","max_hp":8,"ac":12}]`), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
	if _, err := LoadRoster(dup); err == nil {
		t.Error("LoadRoster() with duplicate ids should return error")
	}

	if _, err := LoadRoster(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("LoadRoster() with missing file should return error")
	}

	r, err = LoadRoster("")
	if err != nil || len(r.All()) == 0 {
		t.Errorf("LoadRoster(\"\") should fall back to the built-in roster, err = %v", err)
	}
}
