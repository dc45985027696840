package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeLootToast     EventType = "loot.toast"
	EventTypeCombatDelta   EventType = "combat.delta"
	EventTypeMediaReady    EventType = "media.ready"
	EventTypeTurnCommitted EventType = "turn.committed"
	EventTypeTurnFailed    EventType = "turn.failed"
)

// Media kinds carried by media.ready events.
const (
	MediaSceneImage = "scene_image"
	MediaAvatar     = "avatar"
	MediaAudio      = "audio"
)

// DefaultBacklog is how many recent events are kept for late subscribers.
const DefaultBacklog = 50

// Event is a transient notification for the client.
type Event struct {
	Type   EventType      `json:"type"`
	TurnID string         `json:"turn_id,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
	At     time.Time      `json:"at"`
}

// LootToast announces an obtained item.
func LootToast(turnID, itemName string, quantity int, rarity, icon string) Event {
	if quantity < 1 {
		quantity = 1
	}
	return Event{
		Type:   EventTypeLootToast,
		TurnID: turnID,
		Data: map[string]any{
			"item_name": itemName,
			"quantity":  quantity,
			"rarity":    rarity,
			"icon":      icon,
		},
	}
}

// CombatDelta is the floating health number shown after a hit or heal.
// A zero delta produces no event; callers check ok.
func CombatDelta(turnID string, delta int) (Event, bool) {
	if delta == 0 {
		return Event{}, false
	}
	return Event{
		Type:   EventTypeCombatDelta,
		TurnID: turnID,
		Data: map[string]any{
			"delta": delta,
			"text":  fmt.Sprintf("%+d", delta),
		},
	}, true
}

// MediaReady tells the client an enrichment result is attached.
func MediaReady(turnID, kind, url string) Event {
	return Event{
		Type:   EventTypeMediaReady,
		TurnID: turnID,
		Data: map[string]any{
			"kind": kind,
			"url":  url,
		},
	}
}

// TurnCommitted announces a committed model turn and its input mode.
func TurnCommitted(turnID, mode string, failed bool) Event {
	t := EventTypeTurnCommitted
	if failed {
		t = EventTypeTurnFailed
	}
	return Event{
		Type:   t,
		TurnID: turnID,
		Data:   map[string]any{"mode": mode},
	}
}

// Channel returns the pub/sub channel for a save slot.
func Channel(slot string) string {
	return fmt.Sprintf("narration-events:%s", slot)
}

func backlogKey(slot string) string {
	return fmt.Sprintf("narration-events:%s:recent", slot)
}

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution and
// keeps a short backlog list for clients that connect late.
type Broadcaster struct {
	redisClient *redis.Client
	slot        string
	backlog     int64
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, slot string, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		slot:        slot,
		backlog:     DefaultBacklog,
		logger:      logger,
	}
}

// Publish stamps and sends an event on the slot channel.
func (b *Broadcaster) Publish(ctx context.Context, event Event) error {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	channel := Channel(b.slot)
	key := backlogKey(b.slot)

	pipe := b.redisClient.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -b.backlog, -1)
	pipe.Publish(ctx, channel, data)
	if _, err := pipe.Exec(ctx); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
		"turn_id", event.TurnID,
	)
	return nil
}

// Recent returns up to n of the latest events, oldest first.
// Entries that fail to decode are skipped.
func (b *Broadcaster) Recent(ctx context.Context, n int64) ([]Event, error) {
	if n <= 0 {
		return nil, nil
	}
	raw, err := b.redisClient.LRange(ctx, backlogKey(b.slot), -n, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read recent events: %w", err)
	}

	out := make([]Event, 0, len(raw))
	for _, r := range raw {
		var e Event
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			b.logger.Warn("Skipping corrupt backlog event", "error", err)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Subscribe opens a pub/sub subscription on the slot channel. Callers
// must Close it.
func (b *Broadcaster) Subscribe(ctx context.Context) *redis.PubSub {
	return b.redisClient.Subscribe(ctx, Channel(b.slot))
}
