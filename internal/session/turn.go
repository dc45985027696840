package session

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jwebster45206/narration-engine/internal/enrich"
	"github.com/jwebster45206/narration-engine/internal/logger"
	"github.com/jwebster45206/narration-engine/internal/services/events"
	"github.com/jwebster45206/narration-engine/pkg/chat"
	"github.com/jwebster45206/narration-engine/pkg/mode"
	"github.com/jwebster45206/narration-engine/pkg/prompts"
	"github.com/jwebster45206/narration-engine/pkg/state"
	"github.com/jwebster45206/narration-engine/pkg/textfilter"
)

// Result is what a primary request returns once its turn is committed.
type Result struct {
	UserTurn  chat.Turn        `json:"user_turn"`
	ModelTurn chat.Turn        `json:"model_turn"`
	Status    state.GameStatus `json:"status"`
	Mode      ModeView         `json:"mode"`
	// Jobs lists the enrichment kinds started for this turn.
	Jobs []enrich.JobKind `json:"jobs,omitempty"`
}

// Submit sends free player input to the narrator.
func (c *Controller) Submit(ctx context.Context, text string) (*Result, error) {
	req := chat.ChatRequest{Message: text}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return c.run(ctx, strings.TrimSpace(text), nil)
}

// run is the single primary request path. seed, when set, is reconciled
// into the status before the prompt is built.
func (c *Controller) run(ctx context.Context, message string, seed *state.StatusUpdate) (*Result, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, ErrTurnInFlight
	}
	defer c.inFlight.Store(false)

	if c.lock != nil {
		ok, err := c.lock.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire turn lock: %w", err)
		}
		if !ok {
			return nil, ErrTurnInFlight
		}
		defer func() {
			if err := c.lock.Release(context.WithoutCancel(ctx)); err != nil {
				c.logger.Warn("Failed to release turn lock", "error", err)
			}
		}()
	}

	c.mu.Lock()
	if !c.bootstrapped {
		c.mu.Unlock()
		return nil, ErrNotBootstrapped
	}
	history := slices.Clone(c.turns)
	prev := c.status.Clone()
	if seed != nil {
		prev = state.Reconcile(prev, seed, nil)
	}
	userTurn := chat.NewUserTurn(message)
	c.turns = append(c.turns, userTurn)
	narration := c.narration
	active := c.mode
	c.mu.Unlock()

	log := logger.WithTurn(c.logger, userTurn.ID.String())

	msgs, err := prompts.New().
		WithStatus(prev).
		WithHistory(history).
		WithUserMessage(message).
		WithContentRating(c.rating).
		WithHistoryLimit(c.historyLimit).
		Build()
	if err != nil {
		c.rollback(userTurn)
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}

	llmCtx := ctx
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		llmCtx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	raw, err := c.llm.Chat(llmCtx, msgs)
	if err != nil {
		log.Error("Narrator request failed", "error", err)
		fallback := mode.Default()
		if seed != nil {
			// The selection never reached the narrator; offer the picker again.
			fallback = active
		}
		return c.commitFailure(ctx, userTurn, fallback), nil
	}

	ext := c.extractor.Extract(raw)
	narrative := c.filter.Apply(textfilter.Sanitize(ext.Narrative))
	if ext.ParseErr != nil {
		log.Warn("Payload did not parse, keeping narrative only",
			"method", ext.Method, "error", ext.ParseErr)
	}

	next := prev
	res := mode.Default()
	if p := ext.Payload; p != nil {
		next = state.Reconcile(prev, p.StatusUpdate, p.CombatState)
		res = c.resolver.ResolvePayload(p)
		if res.Err != nil {
			log.Warn("Interface directive unusable", "mode", res.Mode, "error", res.Err)
		}
	}

	modelTurn := chat.NewModelTurn(narrative, raw, ext.Payload)
	modelTurn.Widget = &res

	c.mu.Lock()
	// Enrichment may have attached images while the narrator was busy.
	next.AvatarURL = c.status.AvatarURL
	next.SceneImageURL = c.status.SceneImageURL
	c.turns = append(c.turns, modelTurn)
	c.status = next
	c.mode = res
	c.mu.Unlock()

	c.persist(ctx)

	jobs := c.enricher.Dispatch(ctx, enrich.Input{
		TurnID:    modelTurn.ID,
		Narrative: narrative,
		Payload:   ext.Payload,
		Prev:      prev,
		Next:      next,
		Narration: narration,
	})
	c.publish(ctx, events.TurnCommitted(modelTurn.ID.String(), string(res.Mode), false))

	log.Info("Turn committed",
		"extract_method", ext.Method,
		"mode", res.Mode,
		"jobs", len(jobs),
		"in_combat", next.InCombat())

	kinds := make([]enrich.JobKind, len(jobs))
	for i, j := range jobs {
		kinds[i] = j.Kind
	}
	return &Result{
		UserTurn:  userTurn,
		ModelTurn: modelTurn,
		Status:    next.Clone(),
		Mode:      newModeView(res),
		Jobs:      kinds,
	}, nil
}

// commitFailure records a failed narrator call as a visible model turn.
// Status is kept and res becomes the active mode.
func (c *Controller) commitFailure(ctx context.Context, userTurn chat.Turn, res mode.Resolution) *Result {
	failed := chat.NewModelTurn(FailureNarrative, "", nil)
	failed.Failed = true
	failed.Widget = &res

	c.mu.Lock()
	c.turns = append(c.turns, failed)
	c.mode = res
	status := c.status.Clone()
	c.mu.Unlock()

	c.persist(ctx)
	c.publish(ctx, events.TurnCommitted(failed.ID.String(), string(res.Mode), true))

	return &Result{
		UserTurn:  userTurn,
		ModelTurn: failed,
		Status:    status,
		Mode:      newModeView(res),
	}
}

// rollback removes a user turn that never reached the narrator.
func (c *Controller) rollback(userTurn chat.Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = slices.DeleteFunc(c.turns, func(t chat.Turn) bool { return t.ID == userTurn.ID })
}
