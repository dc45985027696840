package prompts

import (
	"fmt"
	"strings"
	"testing"

	"github.com/jwebster45206/narration-engine/pkg/chat"
	"github.com/jwebster45206/narration-engine/pkg/state"
)

func TestNew(t *testing.T) {
	builder := New()
	if builder == nil {
		t.Fatal("Expected builder to be created, got nil")
	}
	if builder.historyLimit != 20 {
		t.Errorf("Expected default history limit of 20, got %d", builder.historyLimit)
	}
}

func TestBuilder_FluentInterface(t *testing.T) {
	gs := state.DefaultStatus()
	builder := New().
		WithStatus(gs).
		WithUserMessage("Hello").
		WithContentRating("PG").
		WithHistoryLimit(10)

	if builder.status == nil || builder.status.Name != gs.Name {
		t.Error("WithStatus did not set status")
	}
	if builder.userMessage != "Hello" {
		t.Error("WithUserMessage did not set message")
	}
	if builder.rating != "PG" {
		t.Error("WithContentRating did not set rating")
	}
	if builder.historyLimit != 10 {
		t.Error("WithHistoryLimit did not set limit")
	}
}

func TestBuilder_Build_Requires(t *testing.T) {
	if _, err := New().WithUserMessage("hi").Build(); err == nil {
		t.Error("Build() without status should fail")
	}
	if _, err := New().WithStatus(state.DefaultStatus()).WithUserMessage("  ").Build(); err == nil {
		t.Error("Build() without a message should fail")
	}
}

func TestBuilder_Build_Layout(t *testing.T) {
	gs := state.DefaultStatus()
	gs.Name = "Kestrel"

	history := []chat.Turn{
		chat.NewUserTurn("I enter the inn."),
		chat.NewModelTurn("The inn is loud.", "The inn is loud.\n--- [JSON_DATA] ---\n{}", nil),
	}

	msgs, err := New().
		WithStatus(gs).
		WithHistory(history).
		WithUserMessage("I order ale.").
		WithContentRating("PG").
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(msgs) != 5 {
		t.Fatalf("Build() returned %d messages, want 5", len(msgs))
	}

	if msgs[0].Role != chat.ChatRoleSystem {
		t.Errorf("first message role = %q, want system", msgs[0].Role)
	}
	for _, want := range []string{"--- [JSON_DATA] ---", ContentRatingPG, `"name":"Kestrel"`} {
		if !strings.Contains(msgs[0].Content, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
	if msgs[1].Role != chat.ChatRoleUser || msgs[2].Role != chat.ChatRoleAgent {
		t.Errorf("history roles = %q, %q", msgs[1].Role, msgs[2].Role)
	}
	if msgs[3].Content != "Kestrel: I order ale." {
		t.Errorf("user message = %q, want speaker prefix", msgs[3].Content)
	}
	if msgs[4].Content != UserPostPrompt {
		t.Errorf("last message = %q, want post prompt", msgs[4].Content)
	}
}

func TestBuilder_SystemMessageNotPrefixed(t *testing.T) {
	gs := state.DefaultStatus()
	msgs, err := BuildMessages(gs, nil, chat.Retry("no fields"), "PG", 20)
	if err != nil {
		t.Fatalf("BuildMessages() error = %v", err)
	}
	user := msgs[len(msgs)-2]
	if !strings.HasPrefix(user.Content, "[SYSTEM: RETRY]") {
		t.Errorf("system message was rewritten: %q", user.Content)
	}
}

func TestBuilder_HistoryWindow(t *testing.T) {
	var history []chat.Turn
	for i := range 30 {
		history = append(history, chat.NewUserTurn(fmt.Sprintf("msg %d", i)))
	}
	failed := chat.NewModelTurn("The narrator stumbles.", "", nil)
	failed.Failed = true
	history = append(history, failed)

	msgs, err := New().
		WithStatus(state.DefaultStatus()).
		WithHistory(history).
		WithUserMessage("next").
		WithHistoryLimit(5).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	// system + 5 history + user + post
	if len(msgs) != 8 {
		t.Fatalf("Build() returned %d messages, want 8", len(msgs))
	}
	// msg 29 led to the failed turn and is dropped with it
	if msgs[1].Content != "msg 24" || msgs[5].Content != "msg 28" {
		t.Errorf("history window = %q..%q, want msg 24..msg 28", msgs[1].Content, msgs[5].Content)
	}
	for _, m := range msgs {
		if strings.Contains(m.Content, "stumbles") {
			t.Error("failed turns must not be replayed to the model")
		}
	}
}
