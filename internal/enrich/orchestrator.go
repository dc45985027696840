package enrich

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/narration-engine/internal/services"
	"github.com/jwebster45206/narration-engine/internal/services/events"
	"golang.org/x/sync/errgroup"
)

// DefaultJobTimeout bounds a single media job.
const DefaultJobTimeout = 2 * time.Minute

// Sink receives enrichment results. Implementations route each result
// by the identity captured at dispatch time, never by "current" turn.
type Sink interface {
	AttachSceneImage(turnID uuid.UUID, url string)
	AttachAudio(turnID uuid.UUID, ref string)
	// BeginAvatar reserves a new avatar generation.
	BeginAvatar() uint64
	// AttachAvatar applies url only if gen is still the newest generation.
	AttachAvatar(gen uint64, url string) bool
}

// Notifier publishes transient client notifications.
type Notifier interface {
	Publish(ctx context.Context, event events.Event) error
}

// Options configures an Orchestrator. Images, Speech and Notifier may be
// nil; jobs needing a missing backend are skipped.
type Options struct {
	Images      services.ImageGenerator
	Speech      services.SpeechSynthesizer
	Notifier    Notifier
	Sink        Sink
	Policy      Policy
	Concurrency int
	JobTimeout  time.Duration
	Logger      *slog.Logger
}

// Orchestrator dispatches fire-and-forget enrichment jobs for committed turns.
type Orchestrator struct {
	images     services.ImageGenerator
	speech     services.SpeechSynthesizer
	notifier   Notifier
	sink       Sink
	policy     Policy
	jobTimeout time.Duration
	group      errgroup.Group
	logger     *slog.Logger
}

// New creates an orchestrator. A nil Policy.Rand uses math/rand.
func New(opts Options) *Orchestrator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = DefaultJobTimeout
	}
	if opts.Policy.Rand == nil {
		opts.Policy.Rand = rand.Float64
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	o := &Orchestrator{
		images:     opts.Images,
		speech:     opts.Speech,
		notifier:   opts.Notifier,
		sink:       opts.Sink,
		policy:     opts.Policy,
		jobTimeout: opts.JobTimeout,
		logger:     opts.Logger,
	}
	o.group.SetLimit(opts.Concurrency)
	return o
}

// Plan is Plan with the orchestrator's policy.
func (o *Orchestrator) Plan(in Input) []Job {
	return Plan(in, o.policy)
}

// Dispatch plans and starts jobs for a committed turn and returns the jobs
// that were started. It never blocks on job completion. Jobs outlive ctx's
// cancellation but keep its values.
func (o *Orchestrator) Dispatch(ctx context.Context, in Input) []Job {
	base := context.WithoutCancel(ctx)
	var started []Job

	for _, job := range o.Plan(in) {
		run := o.runner(job)
		if run == nil {
			o.logger.Debug("Enrichment backend unavailable, skipping job",
				"kind", job.Kind, "turn_id", job.TurnID)
			continue
		}
		if !o.group.TryGo(func() error {
			o.execute(base, job, run)
			return nil
		}) {
			o.logger.Warn("Enrichment pool saturated, dropping job",
				"kind", job.Kind, "turn_id", job.TurnID)
			continue
		}
		started = append(started, job)
	}
	return started
}

// Wait blocks until every started job has finished. Used on shutdown and
// in tests; do not call concurrently with Dispatch.
func (o *Orchestrator) Wait() {
	_ = o.group.Wait()
}

type runFunc func(ctx context.Context) error

func (o *Orchestrator) execute(base context.Context, job Job, run runFunc) {
	ctx, cancel := context.WithTimeout(base, o.jobTimeout)
	defer cancel()

	start := time.Now()
	if err := run(ctx); err != nil {
		o.logger.Warn("Enrichment job failed",
			"kind", job.Kind,
			"turn_id", job.TurnID,
			"error", err)
		return
	}
	o.logger.Debug("Enrichment job finished",
		"kind", job.Kind,
		"turn_id", job.TurnID,
		"duration_ms", time.Since(start).Milliseconds())
}

// runner binds a job to its backend, or returns nil if the backend is missing.
func (o *Orchestrator) runner(job Job) runFunc {
	turnID := job.TurnID
	switch job.Kind {
	case JobNotify:
		if o.notifier == nil || job.Event == nil {
			return nil
		}
		event := *job.Event
		return func(ctx context.Context) error {
			return o.notifier.Publish(ctx, event)
		}

	case JobSceneImage:
		if o.images == nil || o.sink == nil {
			return nil
		}
		req := services.ImageRequest{Prompt: job.Prompt, Style: job.Style}
		return func(ctx context.Context) error {
			url, err := o.images.GenerateImage(ctx, req)
			if err != nil {
				return err
			}
			o.sink.AttachSceneImage(turnID, url)
			o.notify(ctx, events.MediaReady(turnID.String(), events.MediaSceneImage, url))
			return nil
		}

	case JobAvatarImage:
		if o.images == nil || o.sink == nil {
			return nil
		}
		req := services.ImageRequest{Prompt: job.Prompt, Width: 512, Height: 512}
		// Reserve the generation now so dispatch order decides the winner.
		gen := o.sink.BeginAvatar()
		return func(ctx context.Context) error {
			url, err := o.images.GenerateImage(ctx, req)
			if err != nil {
				return err
			}
			if !o.sink.AttachAvatar(gen, url) {
				o.logger.Debug("Discarding stale avatar", "turn_id", turnID, "generation", gen)
				return nil
			}
			o.notify(ctx, events.MediaReady(turnID.String(), events.MediaAvatar, url))
			return nil
		}

	case JobSpeech:
		if o.speech == nil || o.sink == nil {
			return nil
		}
		text := job.Text
		return func(ctx context.Context) error {
			ref, err := o.speech.Synthesize(ctx, text)
			if err != nil {
				return err
			}
			o.sink.AttachAudio(turnID, ref)
			o.notify(ctx, events.MediaReady(turnID.String(), events.MediaAudio, ref))
			return nil
		}
	}
	return nil
}

func (o *Orchestrator) notify(ctx context.Context, e events.Event) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Publish(ctx, e); err != nil {
		o.logger.Warn("Failed to publish notification", "event_type", e.Type, "error", err)
	}
}
