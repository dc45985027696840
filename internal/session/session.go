package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jwebster45206/narration-engine/internal/enrich"
	"github.com/jwebster45206/narration-engine/internal/services"
	"github.com/jwebster45206/narration-engine/internal/services/events"
	"github.com/jwebster45206/narration-engine/pkg/actor"
	"github.com/jwebster45206/narration-engine/pkg/chat"
	"github.com/jwebster45206/narration-engine/pkg/mode"
	"github.com/jwebster45206/narration-engine/pkg/payload"
	"github.com/jwebster45206/narration-engine/pkg/prompts"
	"github.com/jwebster45206/narration-engine/pkg/state"
	"github.com/jwebster45206/narration-engine/pkg/storage"
	"github.com/jwebster45206/narration-engine/pkg/textfilter"
)

var (
	// ErrTurnInFlight rejects a request while another primary request is pending.
	ErrTurnInFlight = errors.New("a turn is already in flight")
	// ErrNoForm rejects form actions when no form is awaiting input.
	ErrNoForm = errors.New("no form is awaiting submission")
	// ErrUnknownItem rejects item actions on items the player does not carry.
	ErrUnknownItem = errors.New("item not in inventory")
	// ErrInvalidAction rejects item actions other than use, examine and discard.
	ErrInvalidAction = errors.New("invalid item action")
	// ErrInvalidInput rejects empty or oversized player messages.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotBootstrapped rejects requests before Bootstrap has run.
	ErrNotBootstrapped = errors.New("session not bootstrapped")
)

const (
	// OpeningNarrative is the built-in first turn of a fresh session.
	OpeningNarrative = "The road behind you is lost in mist, and the road ahead is not yet written. " +
		"Before the story begins, tell me who you are: choose one of the travelers below, or create your own."

	// FailureNarrative replaces the narrative when the narrator cannot be reached.
	FailureNarrative = "The narrator falters and the thread of the story slips away for a moment. " +
		"Nothing you did was lost. Send your action again to continue."

	saveTimeout = 10 * time.Second
)

// Locker guards the primary request across processes.
type Locker interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Deps are the collaborators of a Controller. Store, LLM and Roster are
// required; the rest may be zero.
type Deps struct {
	LLM            services.LLMService
	Store          storage.Gateway
	Roster         *actor.Roster
	Lock           Locker
	Notifier       enrich.Notifier
	Enrich         enrich.Options
	ContentRating  string
	HistoryLimit   int
	RequestTimeout time.Duration
	Narration      bool
	Logger         *slog.Logger
}

// Controller owns the single live session: the turn log, the GameStatus
// and the active input mode. All status changes go through state.Reconcile
// on the primary request path; enrichment only touches image and audio
// references through the Sink methods.
type Controller struct {
	llm            services.LLMService
	store          storage.Gateway
	roster         *actor.Roster
	lock           Locker
	notifier       enrich.Notifier
	enricher       *enrich.Orchestrator
	extractor      *payload.Extractor
	resolver       *mode.Resolver
	filter         *textfilter.ContentFilter
	rating         string
	historyLimit   int
	requestTimeout time.Duration
	logger         *slog.Logger

	inFlight atomic.Bool
	saveMu   sync.Mutex // orders snapshots so an older one never lands last

	mu           sync.Mutex // protects the fields below
	bootstrapped bool
	turns        []chat.Turn
	status       state.GameStatus
	mode         mode.Resolution
	narration    bool
	avatarGen    uint64
}

var _ enrich.Sink = (*Controller)(nil)

// New creates a controller. Call Bootstrap before serving requests.
func New(deps Deps) (*Controller, error) {
	if deps.LLM == nil || deps.Store == nil || deps.Roster == nil {
		return nil, fmt.Errorf("session requires an LLM, a store and a roster")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.HistoryLimit <= 0 {
		deps.HistoryLimit = prompts.DefaultHistoryLimit
	}

	options := make([]mode.Option, 0, len(deps.Roster.All()))
	for _, pc := range deps.Roster.All() {
		options = append(options, mode.Option{
			Label:       pc.Spec.Name,
			Value:       pc.Spec.ID,
			Description: pc.Headline(),
		})
	}

	c := &Controller{
		llm:            deps.LLM,
		store:          deps.Store,
		roster:         deps.Roster,
		lock:           deps.Lock,
		notifier:       deps.Notifier,
		extractor:      payload.NewExtractor(deps.Logger),
		resolver:       mode.NewResolver(options),
		filter:         textfilter.NewContentFilter(deps.ContentRating),
		rating:         deps.ContentRating,
		historyLimit:   deps.HistoryLimit,
		requestTimeout: deps.RequestTimeout,
		logger:         deps.Logger,
		narration:      deps.Narration,
	}

	opts := deps.Enrich
	opts.Sink = c
	if opts.Notifier == nil {
		opts.Notifier = deps.Notifier
	}
	if opts.Logger == nil {
		opts.Logger = deps.Logger
	}
	c.enricher = enrich.New(opts)
	return c, nil
}

// Bootstrap loads the saved session or starts a fresh one. A missing or
// unusable save is not an error.
func (c *Controller) Bootstrap(ctx context.Context) error {
	snap, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Warn("Failed to load saved session, starting fresh", "error", err)
		snap = nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if snap != nil {
		c.turns = snap.Turns
		c.status = snap.Status
		c.mode = c.modeFor(snap.Turns)
		c.bootstrapped = true
		c.logger.Info("Session restored", "turns", len(c.turns), "mode", c.mode.Mode)
		return nil
	}

	res := c.resolver.Resolve(&payload.Directive{Mode: string(mode.PregenSelect)})
	opening := chat.NewModelTurn(OpeningNarrative, "", nil)
	opening.Widget = &res

	c.turns = []chat.Turn{opening}
	c.status = state.DefaultStatus()
	c.mode = res
	c.bootstrapped = true
	c.logger.Info("Fresh session started")
	return nil
}

// modeFor re-derives the active mode from the last model turn's directive.
func (c *Controller) modeFor(turns []chat.Turn) mode.Resolution {
	for _, t := range slices.Backward(turns) {
		if t.Role != chat.RoleModel {
			continue
		}
		if t.Payload == nil {
			if t.Widget != nil {
				return *t.Widget
			}
			return mode.Default()
		}
		return c.resolver.ResolvePayload(t.Payload)
	}
	return mode.Default()
}

// SetNarration toggles speech synthesis for future turns.
func (c *Controller) SetNarration(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.narration = on
}

// Wait joins outstanding enrichment jobs.
func (c *Controller) Wait() {
	c.enricher.Wait()
}

// persist saves the current session. Failures are logged, never returned.
func (c *Controller) persist(ctx context.Context) {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.Lock()
	turns := slices.Clone(c.turns)
	status := c.status.Clone()
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	if err := c.store.Save(ctx, turns, status); err != nil {
		c.logger.Error("Failed to save session", "error", err, "turns", len(turns))
	}
}

func (c *Controller) publish(ctx context.Context, e events.Event) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Publish(context.WithoutCancel(ctx), e); err != nil {
		c.logger.Warn("Failed to publish event", "event_type", e.Type, "error", err)
	}
}
