package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jwebster45206/narration-engine/internal/enrich"
	"github.com/jwebster45206/narration-engine/internal/services"
	"github.com/jwebster45206/narration-engine/internal/services/events"
	"github.com/jwebster45206/narration-engine/pkg/actor"
	"github.com/jwebster45206/narration-engine/pkg/chat"
	"github.com/jwebster45206/narration-engine/pkg/mode"
	"github.com/jwebster45206/narration-engine/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []events.Event
}

func (n *recordingNotifier) Publish(_ context.Context, e events.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return nil
}

func (n *recordingNotifier) ofType(t events.EventType) []events.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []events.Event
	for _, e := range n.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	ctl      *Controller
	llm      *services.MockLLMAPI
	store    *storage.MockStorage
	media    *services.MockMedia
	notifier *recordingNotifier
}

func newFixture(t *testing.T, store *storage.MockStorage) *fixture {
	t.Helper()
	if store == nil {
		store = storage.NewMockStorage()
	}
	roster, err := actor.DefaultRoster()
	require.NoError(t, err)

	f := &fixture{
		llm:      services.NewMockLLMAPI(),
		store:    store,
		media:    &services.MockMedia{},
		notifier: &recordingNotifier{},
	}
	f.ctl, err = New(Deps{
		LLM:      f.llm,
		Store:    store,
		Roster:   roster,
		Notifier: f.notifier,
		Enrich: enrich.Options{
			Images: f.media,
			Speech: f.media,
		},
		ContentRating:  "PG13",
		RequestTimeout: time.Second,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	require.NoError(t, f.ctl.Bootstrap(context.Background()))
	t.Cleanup(f.ctl.Wait)
	return f
}

// lastUserMessage returns the player message of the n-th narrator call.
func (f *fixture) lastUserMessage(t *testing.T) string {
	t.Helper()
	calls := f.llm.GetCalls()
	require.NotEmpty(t, calls)
	msgs := calls[len(calls)-1].Messages
	require.GreaterOrEqual(t, len(msgs), 2)
	return msgs[len(msgs)-2].Content
}

func TestBootstrap_FreshSession(t *testing.T) {
	f := newFixture(t, nil)
	v := f.ctl.View()

	require.Len(t, v.Turns, 1)
	assert.Equal(t, OpeningNarrative, v.Turns[0].Text)
	assert.Equal(t, mode.PregenSelect, v.Mode.Mode)
	assert.True(t, v.Mode.InputLocked)
	require.Len(t, v.Mode.Options, 4)
	assert.Equal(t, "kestrel", v.Mode.Options[0].Value)
	assert.Equal(t, mode.ManualValue, v.Mode.Options[3].Value)
	assert.Equal(t, "Unknown Traveler", v.Status.Name)
	assert.Zero(t, f.store.Saves(), "opening turn alone is never saved")
}

func TestBootstrap_MissingStatusStartsFresh(t *testing.T) {
	store := storage.NewMockStorage()
	store.SetRaw([]byte(`{"version":1,"saved_at":"2026-01-01T00:00:00Z","turns":[{"role":"user","text":"hello"},{"role":"model","text":"hi"}]}`))

	f := newFixture(t, store)
	v := f.ctl.View()

	require.Len(t, v.Turns, 1)
	assert.Equal(t, OpeningNarrative, v.Turns[0].Text)
	assert.Equal(t, 10, v.Status.HP)
}

func TestSubmit_ButtonsDirective(t *testing.T) {
	f := newFixture(t, nil)
	f.llm.Queue("You see a door.\n--- [JSON_DATA] ---\n{\"interface\":{\"mode\":\"buttons\",\"content\":[{\"label\":\"Open\",\"value\":\"open\"}]}}")

	res, err := f.ctl.Submit(context.Background(), "I look around")
	require.NoError(t, err)

	assert.Equal(t, "You see a door.", res.ModelTurn.Text)
	assert.Equal(t, mode.Buttons, res.Mode.Mode)
	require.Len(t, res.Mode.Options, 1)
	assert.Equal(t, "Open", res.Mode.Options[0].Label)

	v := f.ctl.View()
	require.Len(t, v.Turns, 3)
	assert.Equal(t, "I look around", v.Turns[1].Text)
	assert.Equal(t, 1, f.store.Saves())
	assert.Len(t, f.notifier.ofType(events.EventTypeTurnCommitted), 1)
	assert.Contains(t, f.lastUserMessage(t), "I look around")
}

func TestSubmit_MalformedPayloadKeepsStatus(t *testing.T) {
	f := newFixture(t, nil)
	f.llm.Queue("You see a door.\n--- [JSON_DATA] ---\n{\"status_update\":{\"hp\":1},,}")

	before := f.ctl.View().Status
	res, err := f.ctl.Submit(context.Background(), "knock")
	require.NoError(t, err)

	assert.Equal(t, "You see a door.", res.ModelTurn.Text)
	assert.Nil(t, res.ModelTurn.Payload)
	assert.Equal(t, mode.FreeText, res.Mode.Mode)
	assert.False(t, res.Mode.InputLocked)
	assert.Equal(t, before, f.ctl.View().Status)
}

func TestSubmit_CombatDeltaNotification(t *testing.T) {
	f := newFixture(t, nil)
	f.llm.Queue(
		"You steady yourself.\n--- [JSON_DATA] ---\n{\"status_update\":{\"hp\":12,\"max_hp\":12}}",
		"The goblin strikes.\n--- [JSON_DATA] ---\n{\"status_update\":{\"hp\":7},\"game_event\":{\"type\":\"combat_hit\",\"data\":{\"target\":\"you\",\"damage\":5,\"damage_type\":\"slashing\"}},\"combat_state\":{\"round\":1,\"turn_order\":[{\"name\":\"Goblin\",\"hp\":6,\"max_hp\":6,\"is_active\":true}]}}",
	)

	_, err := f.ctl.Submit(context.Background(), "I wait")
	require.NoError(t, err)
	res, err := f.ctl.Submit(context.Background(), "I attack")
	require.NoError(t, err)
	f.ctl.Wait()

	assert.Equal(t, 7, res.Status.HP)
	assert.True(t, res.Status.InCombat())

	deltas := f.notifier.ofType(events.EventTypeCombatDelta)
	require.Len(t, deltas, 2)
	assert.Equal(t, "+2", deltas[0].Data["text"])
	assert.Equal(t, "-5", deltas[1].Data["text"])
	assert.Equal(t, res.ModelTurn.ID.String(), deltas[1].TurnID)
	assert.Empty(t, f.notifier.ofType(events.EventTypeLootToast))
}

func TestSubmit_RejectsWhileInFlight(t *testing.T) {
	f := newFixture(t, nil)

	entered := make(chan struct{})
	release := make(chan struct{})
	f.llm.ChatFunc = func(ctx context.Context, _ []chat.ChatMessage) (string, error) {
		close(entered)
		<-release
		return "Done.", nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.ctl.Submit(context.Background(), "first")
		done <- err
	}()
	<-entered

	assert.True(t, f.ctl.View().InFlight)
	_, err := f.ctl.Submit(context.Background(), "second")
	assert.ErrorIs(t, err, ErrTurnInFlight)

	close(release)
	require.NoError(t, <-done)

	v := f.ctl.View()
	assert.False(t, v.InFlight)
	require.Len(t, v.Turns, 3, "rejected request leaves no trace")
	assert.Equal(t, "first", v.Turns[1].Text)
}

func TestSubmit_NarratorFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.llm.SetChatError(errors.New("connection reset"))

	res, err := f.ctl.Submit(context.Background(), "hello?")
	require.NoError(t, err)

	assert.True(t, res.ModelTurn.Failed)
	assert.Equal(t, FailureNarrative, res.ModelTurn.Text)
	assert.Equal(t, mode.FreeText, res.Mode.Mode)
	assert.False(t, res.Mode.InputLocked)
	assert.Len(t, f.notifier.ofType(events.EventTypeTurnFailed), 1)

	// The failed exchange is not replayed on the next request.
	f.llm.ChatFunc = nil
	_, err = f.ctl.Submit(context.Background(), "hello again")
	require.NoError(t, err)
	calls := f.llm.GetCalls()
	for _, m := range calls[len(calls)-1].Messages {
		assert.NotContains(t, m.Content, "hello?")
		assert.NotContains(t, m.Content, FailureNarrative)
	}
}

func TestSubmit_InvalidInput(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.ctl.Submit(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.ctl.Submit(context.Background(), strings.Repeat("a", chat.MaxMessageLength+1))
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, f.llm.GetCalls())
}

func TestSubmit_SanitizesAndFilters(t *testing.T) {
	f := newFixture(t, nil)
	f.llm.Queue("[SCENE: a dark cellar]\nThe damn door sticks.\n[[ROLL d20]]\n--- [JSON_DATA] ---\n{}")

	res, err := f.ctl.Submit(context.Background(), "push")
	require.NoError(t, err)

	assert.NotContains(t, res.ModelTurn.Text, "SCENE")
	assert.NotContains(t, res.ModelTurn.Text, "ROLL")
	assert.NotContains(t, res.ModelTurn.Text, "damn")
	assert.Contains(t, res.ModelTurn.Raw, "[SCENE: a dark cellar]")
}

func TestEmptyFormAndRetry(t *testing.T) {
	f := newFixture(t, nil)
	f.llm.Queue(
		"Fill this in.\n--- [JSON_DATA] ---\n{\"interface\":{\"mode\":\"form\",\"content\":{\"title\":\"Oath\",\"fields\":[]}}}",
		"Swear your oath.\n--- [JSON_DATA] ---\n{\"interface\":{\"mode\":\"form\",\"content\":{\"title\":\"Oath\",\"fields\":[{\"id\":\"deity\",\"type\":\"dropdown\",\"label\":\"Deity\",\"options\":[\"Sun\",\"Moon\"]}]}}}",
		"The oath is sworn.\n--- [JSON_DATA] ---\n{}",
	)
	ctx := context.Background()

	res, err := f.ctl.Submit(ctx, "I kneel")
	require.NoError(t, err)
	assert.Equal(t, mode.Form, res.Mode.Mode)
	assert.True(t, res.Mode.CanRetry)
	assert.Contains(t, res.Mode.Error, "no fields")

	_, err = f.ctl.SubmitForm(ctx, map[string]any{"deity": "Sun"})
	assert.ErrorIs(t, err, ErrNoForm)

	res, err = f.ctl.RetryForm(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(f.lastUserMessage(t), "[SYSTEM: RETRY]"))
	require.NotNil(t, res.Mode.Form)
	assert.Empty(t, res.Mode.Error)

	_, err = f.ctl.RetryForm(ctx)
	assert.ErrorIs(t, err, ErrNoForm)

	_, err = f.ctl.SubmitForm(ctx, map[string]any{"deity": "Stars"})
	assert.ErrorIs(t, err, mode.ErrInvalidSubmission)

	res, err = f.ctl.SubmitForm(ctx, map[string]any{"deity": "Moon"})
	require.NoError(t, err)
	msg := f.lastUserMessage(t)
	assert.True(t, strings.HasPrefix(msg, "[SYSTEM: FORM_SUBMISSION]"))
	assert.Contains(t, msg, `"deity":"Moon"`)
	assert.Contains(t, msg, `"form":"Oath"`)
	assert.Equal(t, mode.FreeText, res.Mode.Mode)
}

func TestSelectPregenAndItems(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.ctl.SelectPregen(ctx, "nobody")
	assert.ErrorIs(t, err, actor.ErrUnknownPregen)

	res, err := f.ctl.SelectPregen(ctx, "kestrel")
	require.NoError(t, err)
	assert.Equal(t, "Kestrel", res.Status.Name)
	assert.Contains(t, res.Status.Inventory, "rope")
	assert.True(t, strings.HasPrefix(f.lastUserMessage(t), "[SYSTEM: CHARACTER_SELECTED]"))
	assert.Contains(t, f.lastUserMessage(t), "Kestrel")

	_, err = f.ctl.ItemAction(ctx, "juggle", "rope")
	assert.ErrorIs(t, err, ErrInvalidAction)
	_, err = f.ctl.ItemAction(ctx, "use", "lute")
	assert.ErrorIs(t, err, ErrUnknownItem)

	_, err = f.ctl.ItemAction(ctx, "Examine", " ROPE ")
	require.NoError(t, err)
	assert.Equal(t, `[SYSTEM: ITEM_ACTION] The player chooses to examine: "rope".`, f.lastUserMessage(t))
}

func TestSelectPregen_Manual(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.ctl.SelectPregen(context.Background(), "manual")
	require.NoError(t, err)
	assert.Equal(t, chat.ManualCharacter(), f.lastUserMessage(t))
	assert.Equal(t, "Unknown Traveler", f.ctl.View().Status.Name)
}

func TestEnrichmentAttachesToOriginTurn(t *testing.T) {
	f := newFixture(t, nil)
	f.ctl.SetNarration(true)

	release := make(chan struct{})
	f.media.ImageFunc = func(ctx context.Context, req services.ImageRequest) (string, error) {
		<-release
		return "img:" + req.Prompt, nil
	}
	f.llm.Queue(
		"A lighthouse looms.\n--- [JSON_DATA] ---\n{\"update_scene\":{\"trigger\":true,\"visual_prompt\":\"lighthouse\"},\"update_avatar\":{\"trigger\":true,\"visual_prompt\":\"salt-stained coat\"}}",
		"You climb the stairs.\n--- [JSON_DATA] ---\n{}",
	)
	ctx := context.Background()

	first, err := f.ctl.Submit(ctx, "approach")
	require.NoError(t, err)
	assert.ElementsMatch(t, []enrich.JobKind{enrich.JobSceneImage, enrich.JobAvatarImage, enrich.JobSpeech}, first.Jobs)

	second, err := f.ctl.Submit(ctx, "climb")
	require.NoError(t, err)

	close(release)
	f.ctl.Wait()

	v := f.ctl.View()
	byID := map[string]chat.Turn{}
	for _, turn := range v.Turns {
		byID[turn.ID.String()] = turn
	}
	assert.Equal(t, "img:lighthouse", byID[first.ModelTurn.ID.String()].ImageURL)
	assert.Empty(t, byID[second.ModelTurn.ID.String()].ImageURL)
	assert.NotEmpty(t, byID[first.ModelTurn.ID.String()].AudioRef)
	assert.NotEmpty(t, byID[second.ModelTurn.ID.String()].AudioRef)
	assert.Equal(t, "img:lighthouse", v.Status.SceneImageURL)
	assert.Equal(t, "img:salt-stained coat", v.Status.AvatarURL)
	assert.Len(t, f.notifier.ofType(events.EventTypeMediaReady), 4)
}

func TestBootstrap_RestoresSavedSession(t *testing.T) {
	store := storage.NewMockStorage()
	f := newFixture(t, store)
	f.llm.Queue("Roll for it.\n--- [JSON_DATA] ---\n{\"status_update\":{\"location\":\"The Gate\"},\"interface\":{\"mode\":\"dice_roll\",\"allow_free_input\":true}}")

	_, err := f.ctl.Submit(context.Background(), "I leap")
	require.NoError(t, err)
	f.ctl.Wait()

	restored := newFixture(t, store)
	v := restored.ctl.View()
	require.Len(t, v.Turns, 3)
	assert.Equal(t, "The Gate", v.Status.Location)
	assert.Equal(t, mode.DiceRoll, v.Mode.Mode)
	assert.True(t, v.Mode.RollPending)
	assert.True(t, v.Mode.InputLocked)
}

func TestSubmit_KeepsImagesAttachedDuringCall(t *testing.T) {
	f := newFixture(t, nil)
	f.llm.ChatFunc = func(context.Context, []chat.ChatMessage) (string, error) {
		gen := f.ctl.BeginAvatar()
		require.True(t, f.ctl.AttachAvatar(gen, "https://img.test/late.webp"))
		return "The wind shifts.\n--- [JSON_DATA] ---\n{\"status_update\":{\"location\":\"Ridge\"}}", nil
	}

	res, err := f.ctl.Submit(context.Background(), "I climb")
	require.NoError(t, err)

	assert.Equal(t, "Ridge", res.Status.Location)
	assert.Equal(t, "https://img.test/late.webp", res.Status.AvatarURL)
	assert.Equal(t, "https://img.test/late.webp", f.ctl.View().Status.AvatarURL)
}

func TestSelectPregen_NarratorFailureKeepsPicker(t *testing.T) {
	store := storage.NewMockStorage()
	f := newFixture(t, store)
	ctx := context.Background()
	f.llm.SetChatError(errors.New("upstream timeout"))

	res, err := f.ctl.SelectPregen(ctx, "kestrel")
	require.NoError(t, err)

	assert.True(t, res.ModelTurn.Failed)
	assert.Equal(t, mode.PregenSelect, res.Mode.Mode)
	assert.NotEmpty(t, res.Mode.Options)
	assert.Equal(t, "Unknown Traveler", res.Status.Name)

	v := f.ctl.View()
	assert.Equal(t, mode.PregenSelect, v.Mode.Mode)
	assert.Equal(t, "Unknown Traveler", v.Status.Name)

	// The picker survives a restart too.
	restored := newFixture(t, store)
	rv := restored.ctl.View()
	assert.Equal(t, mode.PregenSelect, rv.Mode.Mode)
	assert.Len(t, rv.Mode.Options, len(v.Mode.Options))

	// Picking again once the narrator is back seeds the status.
	f.llm.ChatFunc = nil
	res, err = f.ctl.SelectPregen(ctx, "kestrel")
	require.NoError(t, err)
	assert.False(t, res.ModelTurn.Failed)
	assert.Equal(t, "Kestrel", res.Status.Name)
	assert.True(t, strings.HasPrefix(f.lastUserMessage(t), "[SYSTEM: CHARACTER_SELECTED]"))
}

func TestSubmit_QuickActionsSurviveRestore(t *testing.T) {
	store := storage.NewMockStorage()
	f := newFixture(t, store)

	res, err := f.ctl.Submit(context.Background(), "I open the vault")
	require.NoError(t, err)
	assert.Equal(t, []string{"Check inventory"}, res.Mode.QuickActions)
	f.ctl.Wait()

	restored := newFixture(t, store)
	assert.Equal(t, []string{"Check inventory"}, restored.ctl.View().Mode.QuickActions)
}
