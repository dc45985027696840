package enrich

import (
	"strings"

	"github.com/google/uuid"
	"github.com/jwebster45206/narration-engine/internal/services/events"
	"github.com/jwebster45206/narration-engine/pkg/payload"
	"github.com/jwebster45206/narration-engine/pkg/state"
)

// JobKind names an enrichment job.
type JobKind string

const (
	JobSceneImage  JobKind = "scene_image"
	JobAvatarImage JobKind = "avatar_image"
	JobSpeech      JobKind = "speech"
	JobNotify      JobKind = "notify"
)

// maxPromptExcerpt caps the narrative excerpt used for derived scene prompts.
const maxPromptExcerpt = 400

// Input is everything the orchestrator may look at for one committed turn.
type Input struct {
	TurnID    uuid.UUID
	Narrative string // sanitized
	Payload   *payload.Payload
	Prev      state.GameStatus
	Next      state.GameStatus
	Narration bool
}

// Job is one planned unit of enrichment work.
type Job struct {
	Kind   JobKind
	TurnID uuid.UUID
	Prompt string
	Style  string
	Text   string
	// Opportunistic marks a scene image nobody asked for.
	Opportunistic bool
	Event         *events.Event
}

// Policy tunes the opportunistic scene image.
type Policy struct {
	SceneChance    float64
	SceneMinLength int
	// Rand returns a value in [0, 1). Nil means never fire.
	Rand func() float64
}

// Plan decides which jobs a committed turn gets. It has no side effects
// apart from calling p.Rand at most once.
func Plan(in Input, p Policy) []Job {
	var jobs []Job
	turn := in.TurnID.String()

	// Notifications first so a saturated pool drops media, not toasts.
	if in.Payload != nil && in.Payload.GameEvent.Is(payload.EventItemObtained) && in.Payload.GameEvent.ItemObtained != nil {
		item := in.Payload.GameEvent.ItemObtained
		e := events.LootToast(turn, item.ItemName, int(item.Quantity), item.Rarity, item.Icon)
		jobs = append(jobs, Job{Kind: JobNotify, TurnID: in.TurnID, Event: &e})
	}
	if e, ok := events.CombatDelta(turn, state.HealthDelta(in.Prev, in.Next)); ok {
		jobs = append(jobs, Job{Kind: JobNotify, TurnID: in.TurnID, Event: &e})
	}

	if job, ok := planScene(in, p); ok {
		jobs = append(jobs, job)
	}

	if in.Payload != nil && in.Payload.UpdateAvatar != nil && in.Payload.UpdateAvatar.Trigger {
		if prompt := strings.TrimSpace(in.Payload.UpdateAvatar.VisualPrompt); prompt != "" {
			jobs = append(jobs, Job{Kind: JobAvatarImage, TurnID: in.TurnID, Prompt: prompt})
		}
	}

	if in.Narration && strings.TrimSpace(in.Narrative) != "" {
		jobs = append(jobs, Job{Kind: JobSpeech, TurnID: in.TurnID, Text: in.Narrative})
	}

	return jobs
}

func planScene(in Input, p Policy) (Job, bool) {
	if in.Payload != nil && in.Payload.UpdateScene != nil && in.Payload.UpdateScene.Trigger {
		scene := in.Payload.UpdateScene
		prompt := strings.TrimSpace(scene.VisualPrompt)
		if prompt == "" {
			prompt = derivePrompt(in)
		}
		if prompt == "" {
			return Job{}, false
		}
		return Job{Kind: JobSceneImage, TurnID: in.TurnID, Prompt: prompt, Style: scene.Style}, true
	}

	if p.Rand == nil || p.SceneChance <= 0 || len([]rune(in.Narrative)) <= p.SceneMinLength {
		return Job{}, false
	}
	if p.Rand() >= p.SceneChance {
		return Job{}, false
	}
	prompt := derivePrompt(in)
	if prompt == "" {
		return Job{}, false
	}
	return Job{Kind: JobSceneImage, TurnID: in.TurnID, Prompt: prompt, Opportunistic: true}, true
}

// derivePrompt builds a scene prompt from the location and the opening of
// the narrative.
func derivePrompt(in Input) string {
	excerpt := strings.Join(strings.Fields(in.Narrative), " ")
	if r := []rune(excerpt); len(r) > maxPromptExcerpt {
		excerpt = string(r[:maxPromptExcerpt])
	}
	if in.Next.Location == "" {
		return excerpt
	}
	if excerpt == "" {
		return in.Next.Location
	}
	return in.Next.Location + ". " + excerpt
}
