package payload

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/jwebster45206/narration-engine/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testExtractor() *Extractor {
	return NewExtractor(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestExtract_ScenarioA(t *testing.T) {
	raw := "You see a door.\n--- [JSON_DATA] ---\n{\"interface\":{\"mode\":\"buttons\",\"content\":[{\"label\":\"Open\",\"value\":\"open\"}]}}"

	res := testExtractor().Extract(raw)

	assert.Equal(t, MethodStrict, res.Method)
	assert.Equal(t, "You see a door.", res.Narrative)
	require.NotNil(t, res.Payload)
	require.NotNil(t, res.Payload.Interface)
	assert.Equal(t, "buttons", res.Payload.Interface.Mode)
	assert.JSONEq(t, `[{"label":"Open","value":"open"}]`, string(res.Payload.Interface.Content))
}

func TestExtract_StrictPayloadMatchesJSON(t *testing.T) {
	body := `{
		"narrative": "ignored",
		"status_update": {"hp": 7, "inventory": [], "location": "Cellar"},
		"combat_state": {"round": 1, "turn_order": [{"name": "Ghoul", "hp": 9, "max_hp": 9, "is_active": true}]},
		"game_event": {"type": "combat_hit", "data": {"target": "Mira", "damage": 5, "damage_type": "slashing", "is_critical": false}},
		"quick_actions": ["Flee", "Fight"],
		"update_scene": {"trigger": true, "visual_prompt": "a dark cellar", "style": "ink"},
		"update_avatar": {"trigger": false, "visual_prompt": ""},
		"interface": {"mode": "free_text", "allow_free_input": true}
	}`
	raw := "  The ghoul lunges.  \n" + Separator + body

	res := testExtractor().Extract(raw)
	require.NoError(t, res.ParseErr)
	require.NotNil(t, res.Payload)
	assert.Equal(t, "The ghoul lunges.", res.Narrative)

	want := &Payload{
		Narrative: "ignored",
		StatusUpdate: &state.StatusUpdate{
			HP:        state.Ptr(state.FlexInt(7)),
			Inventory: []string{},
			Location:  state.Ptr("Cellar"),
		},
		CombatState: &state.CombatSnapshot{
			Round:     1,
			TurnOrder: []state.Combatant{{Name: "Ghoul", HP: 9, MaxHP: 9, IsActive: true}},
		},
		GameEvent: &GameEvent{
			Type:      EventCombatHit,
			CombatHit: &CombatHit{Target: "Mira", Damage: 5, DamageType: "slashing"},
		},
		QuickActions: []string{"Flee", "Fight"},
		UpdateScene:  &SceneUpdate{Trigger: true, VisualPrompt: "a dark cellar", Style: "ink"},
		UpdateAvatar: &AvatarUpdate{},
		Interface: &Directive{
			Mode:           "free_text",
			AllowFreeInput: state.Ptr(true),
		},
	}
	assert.Equal(t, want, res.Payload)
}

func TestExtract_ScenarioC_MalformedAfterStrict(t *testing.T) {
	raw := "The bridge creaks.\n--- [JSON_DATA] ---\n{\"interface\": {\"mode\": \"buttons\", "

	res := testExtractor().Extract(raw)

	assert.Equal(t, MethodStrict, res.Method)
	assert.Equal(t, "The bridge creaks.", res.Narrative)
	assert.Nil(t, res.Payload)
	assert.Error(t, res.ParseErr)
}

func TestExtract_StrictDoesNotFallThrough(t *testing.T) {
	// A valid fenced block must not rescue a broken strict payload.
	raw := "Story.\n```json\n{\"quick_actions\":[\"x\"]}\n```\n--- [JSON_DATA] ---\nnot json"

	res := testExtractor().Extract(raw)
	assert.Equal(t, MethodStrict, res.Method)
	assert.Equal(t, "Story.\n```json\n{\"quick_actions\":[\"x\"]}\n```", res.Narrative)
	assert.Nil(t, res.Payload)
}

func TestExtract_Strategies(t *testing.T) {
	tests := []struct {
		name          string
		raw           string
		wantMethod    Method
		wantNarrative string
		wantPayload   bool
	}{
		{
			name:          "loose separator without dashes",
			raw:           "The wind howls.\n[JSON_DATA] {\"quick_actions\":[\"Hide\"]}",
			wantMethod:    MethodLoose,
			wantNarrative: "The wind howls.",
			wantPayload:   true,
		},
		{
			name:          "loose separator lowercase with newline before brace",
			raw:           "Rain.\n-- json_data --\n{\"quick_actions\":[\"Wait\"]}",
			wantMethod:    MethodLoose,
			wantNarrative: "Rain.",
			wantPayload:   true,
		},
		{
			name:          "loose separator with broken json",
			raw:           "Rain.\nJSON_DATA {\"quick_actions\": [",
			wantMethod:    MethodLoose,
			wantNarrative: "Rain.",
			wantPayload:   false,
		},
		{
			name:          "fenced block removed from narrative",
			raw:           "You enter the hall.\n```json\n{\"quick_actions\":[\"Look\"]}\n```\nTorches flicker.",
			wantMethod:    MethodFenced,
			wantNarrative: "You enter the hall.\n\nTorches flicker.",
			wantPayload:   true,
		},
		{
			name:          "fenced block with bad json keeps original text",
			raw:           "You enter the hall.\n```json\n{oops}\n```",
			wantMethod:    MethodFenced,
			wantNarrative: "You enter the hall.\n```json\n{oops}\n```",
			wantPayload:   false,
		},
		{
			name:          "plain prose",
			raw:           "  Nothing but prose here.\n",
			wantMethod:    MethodNone,
			wantNarrative: "Nothing but prose here.",
			wantPayload:   false,
		},
		{
			name:          "untagged fence is prose",
			raw:           "Code:\n```\n{\"a\":1}\n```",
			wantMethod:    MethodNone,
			wantNarrative: "Code:\n```\n{\"a\":1}\n```",
			wantPayload:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := testExtractor().Extract(tt.raw)
			assert.Equal(t, tt.wantMethod, res.Method)
			assert.Equal(t, tt.wantNarrative, res.Narrative)
			assert.Equal(t, tt.wantPayload, res.Payload != nil)
		})
	}
}

func TestParsePayload_Salvage(t *testing.T) {
	tests := []struct {
		name        string
		candidate   string
		wantErr     bool
		wantDropped []string
		check       func(t *testing.T, p *Payload)
	}{
		{
			name:      "trailing chatter after object",
			candidate: `{"quick_actions":["Run"]} Hope that helps!`,
			check: func(t *testing.T, p *Payload) {
				assert.Equal(t, []string{"Run"}, p.QuickActions)
			},
		},
		{
			name:      "wrapped in fences",
			candidate: "```json\n{\"quick_actions\":[\"Run\"]}\n```",
			check: func(t *testing.T, p *Payload) {
				assert.Equal(t, []string{"Run"}, p.QuickActions)
			},
		},
		{
			name:        "bad key dropped, rest survives",
			candidate:   `{"quick_actions":"Run","status_update":{"hp":3}}`,
			wantDropped: []string{"quick_actions"},
			check: func(t *testing.T, p *Payload) {
				assert.Nil(t, p.QuickActions)
				require.NotNil(t, p.StatusUpdate)
				assert.Equal(t, state.FlexInt(3), *p.StatusUpdate.HP)
			},
		},
		{
			name:      "null keys are absent",
			candidate: `{"combat_state":null,"game_event":null}`,
			check: func(t *testing.T, p *Payload) {
				assert.Nil(t, p.CombatState)
				assert.Nil(t, p.GameEvent)
			},
		},
		{name: "empty", candidate: "   ", wantErr: true},
		{name: "null", candidate: "null", wantErr: true},
		{name: "array", candidate: `[1,2]`, wantErr: true},
		{name: "garbage", candidate: `the end`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, dropped, err := ParsePayload(tt.candidate)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDropped, dropped)
			tt.check(t, p)
		})
	}
}

func TestGameEvent_JSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want GameEvent
	}{
		{
			name: "dice roll",
			in:   `{"type":"dice_roll","data":{"roll_name":"Stealth","d20_result":17,"modifier":3,"proficiency":2,"total_value":22,"is_critical":false,"is_success":true}}`,
			want: GameEvent{Type: EventDiceRoll, DiceRoll: &DiceRoll{
				RollName: "Stealth", D20Result: 17, Modifier: 3, Proficiency: 2, TotalValue: 22, IsSuccess: true,
			}},
		},
		{
			name: "item obtained defaults quantity",
			in:   `{"type":"item_obtained","data":{"item_name":"Silver Key","description":"Cold to the touch","rarity":"rare"}}`,
			want: GameEvent{Type: EventItemObtained, ItemObtained: &ItemObtained{
				ItemName: "Silver Key", Quantity: 1, Description: "Cold to the touch", Rarity: "rare",
			}},
		},
		{
			name: "none",
			in:   `{"type":"none"}`,
			want: GameEvent{Type: EventNone},
		},
		{
			name: "unknown type collapses to none",
			in:   `{"type":"level_up","data":{"level":3}}`,
			want: GameEvent{Type: EventNone},
		},
		{
			name: "known type with bad data collapses to none",
			in:   `{"type":"combat_hit","data":"ouch"}`,
			want: GameEvent{Type: EventNone},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ev GameEvent
			require.NoError(t, json.Unmarshal([]byte(tt.in), &ev))
			assert.Equal(t, tt.want, ev)
		})
	}
}

func TestGameEvent_MarshalEnvelope(t *testing.T) {
	ev := GameEvent{Type: EventCombatHit, CombatHit: &CombatHit{Target: "Ghoul", Damage: 4, DamageType: "fire", IsCritical: true}}
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"combat_hit","data":{"target":"Ghoul","damage":4,"damage_type":"fire","is_critical":true}}`, string(data))

	data, err = json.Marshal(GameEvent{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"none"}`, string(data))
}
