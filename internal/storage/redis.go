package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/narration-engine/pkg/chat"
	"github.com/jwebster45206/narration-engine/pkg/state"
	"github.com/jwebster45206/narration-engine/pkg/storage"
	"github.com/redis/go-redis/v9"
)

// RedisStore implements storage.Gateway for a single save slot
type RedisStore struct {
	client *redis.Client
	slot   string
	logger *slog.Logger
}

// Ensure RedisStore implements Gateway interface
var _ storage.Gateway = (*RedisStore)(nil)

// NewRedisStore creates a store bound to one save slot
func NewRedisStore(client *redis.Client, slot string, logger *slog.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		slot:   slot,
		logger: logger.With("save_key", SaveKey(slot)),
	}
}

// SaveKey returns the redis key holding a slot's snapshot.
func SaveKey(slot string) string {
	return "narration:save:" + slot
}

// Health and lifecycle methods

func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// Session operations

func (r *RedisStore) Save(ctx context.Context, turns []chat.Turn, status state.GameStatus) error {
	if !storage.ShouldSave(turns) {
		r.logger.Debug("Skipping save for bootstrap log", "turns", len(turns))
		return nil
	}

	data, err := json.Marshal(storage.NewSnapshot(turns, status))
	if err != nil {
		r.logger.Error("Failed to marshal snapshot", "error", err)
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	// Saves never expire; a slot lives until it is overwritten.
	if err := r.client.Set(ctx, SaveKey(r.slot), data, 0).Err(); err != nil {
		r.logger.Error("Failed to save snapshot", "error", err)
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	r.logger.Debug("Snapshot saved", "turns", len(turns), "bytes", len(data))
	return nil
}

func (r *RedisStore) Load(ctx context.Context) (*storage.Snapshot, error) {
	data, err := r.client.Get(ctx, SaveKey(r.slot)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.logger.Info("No saved session found")
			return nil, nil
		}
		r.logger.Error("Failed to load snapshot", "error", err)
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	snap, err := storage.DecodeSnapshot(data)
	if err != nil {
		r.logger.Warn("Discarding saved session", "error", err)
		return nil, nil
	}

	r.logger.Info("Saved session loaded", "turns", len(snap.Turns), "saved_at", snap.SavedAt)
	return snap, nil
}
