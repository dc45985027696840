package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jwebster45206/narration-engine/internal/handlers"
	"github.com/jwebster45206/narration-engine/internal/services"
	"github.com/jwebster45206/narration-engine/internal/services/events"
	"github.com/jwebster45206/narration-engine/internal/session"
	"github.com/jwebster45206/narration-engine/pkg/actor"
	"github.com/jwebster45206/narration-engine/pkg/mode"
	"github.com/jwebster45206/narration-engine/pkg/storage"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	assert.Equal(t, command{name: "use", arg: "Healing Potion"}, parseCommand("/USE  Healing Potion "))
	assert.Equal(t, command{name: "retry"}, parseCommand("/retry"))
}

func TestParseFormValues(t *testing.T) {
	schema := &mode.FormSchema{Fields: []mode.Field{
		{ID: "name", Type: mode.FieldText},
		{ID: "skills", Type: mode.FieldCheckbox},
	}}
	got := parseFormValues(`name="Vex Arden" skills=stealth,lockpicking`, schema)
	assert.Equal(t, map[string]any{
		"name":   "Vex Arden",
		"skills": []any{"stealth", "lockpicking"},
	}, got)
}

func TestPickOption(t *testing.T) {
	mv := session.ModeView{Resolution: mode.Resolution{
		Mode:    mode.Buttons,
		Options: []mode.Option{{Label: "Open", Value: "open"}, {Label: "Leave", Value: "leave"}},
	}}
	opt, ok := pickOption("2", mv)
	require.True(t, ok)
	assert.Equal(t, "leave", opt.Value)

	_, ok = pickOption("3", mv)
	assert.False(t, ok)
	_, ok = pickOption("open", mv)
	assert.False(t, ok)
}

func TestFormatToast(t *testing.T) {
	delta, ok := events.CombatDelta("t", -5)
	require.True(t, ok)
	// Events arrive as JSON, so numbers decode as float64.
	loot := events.LootToast("t", "Rope", 2, "common", "")
	loot.Data["quantity"] = float64(2)

	assert.Contains(t, formatToast(delta), "-5 HP")
	assert.Contains(t, formatToast(loot), "+2 Rope")
	assert.Contains(t, formatToast(events.MediaReady("t", events.MediaSceneImage, "u")), "scene image ready")
	assert.Empty(t, formatToast(events.TurnCommitted("t", "buttons", false)))
}

func TestWriteWidget(t *testing.T) {
	broken := session.ModeView{Resolution: mode.Resolution{Mode: mode.Form}, Error: "form schema has no fields", CanRetry: true}
	assert.Contains(t, writeWidget(broken, 60), "/retry")

	roll := session.ModeView{Resolution: mode.Resolution{Mode: mode.DiceRoll}, RollPending: true}
	assert.Contains(t, writeWidget(roll, 60), "ROLL PENDING")
	roll.QuickActions = []string{"Pray"}
	assert.NotContains(t, writeWidget(roll, 60), "Pray", "suggestions hidden while input is locked")

	free := session.ModeView{Resolution: mode.Resolution{Mode: mode.FreeText, AllowFreeInput: true, QuickActions: []string{"Check inventory", "Hide"}}}
	out := writeWidget(free, 80)
	assert.Contains(t, out, "[/q 1] Check inventory")
	assert.Contains(t, out, "[/q 2] Hide")
}

func TestPickQuickAction(t *testing.T) {
	mv := session.ModeView{Resolution: mode.Resolution{QuickActions: []string{"Check inventory", "Hide"}}}

	got, ok := pickQuickAction("2", mv)
	assert.True(t, ok)
	assert.Equal(t, "Hide", got)

	for _, arg := range []string{"", "0", "3", "two"} {
		_, ok := pickQuickAction(arg, mv)
		assert.False(t, ok, arg)
	}
	assert.Equal(t, command{name: "q", arg: "1"}, parseCommand("/q 1"))
}

func newTestAPI(t *testing.T) (*apiClient, *events.Broadcaster) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	broadcaster := events.NewBroadcaster(rc, "console", logger)

	roster, err := actor.DefaultRoster()
	require.NoError(t, err)
	store := storage.NewMockStorage()
	ctl, err := session.New(session.Deps{
		LLM:            services.NewMockLLMAPI(),
		Store:          store,
		Roster:         roster,
		Notifier:       broadcaster,
		RequestTimeout: time.Second,
		Logger:         logger,
	})
	require.NoError(t, err)
	require.NoError(t, ctl.Bootstrap(context.Background()))
	t.Cleanup(ctl.Wait)

	mux := http.NewServeMux()
	mux.Handle("/health", handlers.NewHealthHandler(store, logger))
	sh := handlers.NewSessionHandler(ctl, logger)
	mux.Handle("/v1/session", sh)
	mux.Handle("/v1/settings", sh)
	th := handlers.NewTurnHandler(ctl, logger)
	for _, p := range []string{"/v1/turns", "/v1/form", "/v1/form/retry", "/v1/items", "/v1/pregen"} {
		mux.Handle(p, th)
	}
	mux.Handle("/v1/events", handlers.NewEventsHandler(broadcaster, logger))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &apiClient{client: srv.Client(), baseURL: srv.URL}, broadcaster
}

func TestAPIClient_Flow(t *testing.T) {
	api, _ := newTestAPI(t)
	require.True(t, api.testConnection())

	v, err := api.getSession()
	require.NoError(t, err)
	assert.Equal(t, mode.PregenSelect, v.Mode.Mode)

	res, err := api.selectPregen("kestrel")
	require.NoError(t, err)
	assert.Equal(t, mode.Buttons, res.Mode.Mode)
	assert.Equal(t, []string{"Check inventory"}, res.Mode.QuickActions)

	_, err = api.submitForm(map[string]any{"x": "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no form")

	v, err = api.setNarration(true)
	require.NoError(t, err)
	assert.True(t, v.Narration)
}

func TestAPIClient_ListenToSSE(t *testing.T) {
	api, broadcaster := newTestAPI(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ch := make(chan events.Event, 4)
	done := make(chan error, 1)
	go func() { done <- api.listenToSSE(ctx, ch) }()

	// Publish until the stream is subscribed and delivers.
	delta, _ := events.CombatDelta("t-9", 3)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case e := <-ch:
			assert.Equal(t, events.EventTypeCombatDelta, e.Type)
			assert.Equal(t, "t-9", e.TurnID)
			cancel()
			<-done
			return
		case <-tick.C:
			require.NoError(t, broadcaster.Publish(context.Background(), delta))
		case <-ctx.Done():
			t.Fatal("no event received")
		}
	}
}
