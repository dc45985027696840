package session

import (
	"context"
	"slices"

	"github.com/google/uuid"
	"github.com/jwebster45206/narration-engine/pkg/chat"
	"github.com/jwebster45206/narration-engine/pkg/mode"
	"github.com/jwebster45206/narration-engine/pkg/state"
)

// ModeView is a Resolution shaped for clients.
type ModeView struct {
	mode.Resolution
	InputLocked bool   `json:"input_locked"`
	RollPending bool   `json:"roll_pending"`
	Error       string `json:"error,omitempty"`
	CanRetry    bool   `json:"can_retry,omitempty"`
}

func newModeView(r mode.Resolution) ModeView {
	v := ModeView{
		Resolution:  r,
		InputLocked: r.InputLocked(),
		RollPending: r.RollPending(),
	}
	if r.Err != nil {
		v.Error = r.Err.Error()
		v.CanRetry = r.Mode == mode.Form
	}
	return v
}

// View is a read-only copy of the session for rendering.
type View struct {
	Turns     []chat.Turn      `json:"turns"`
	Status    state.GameStatus `json:"status"`
	Mode      ModeView         `json:"mode"`
	Narration bool             `json:"narration"`
	InFlight  bool             `json:"in_flight"`
}

// View returns a copy that shares no mutable state with the session.
// Committed payloads and widgets are never modified, so turns are copied
// by value.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return View{
		Turns:     slices.Clone(c.turns),
		Status:    c.status.Clone(),
		Mode:      newModeView(c.mode),
		Narration: c.narration,
		InFlight:  c.inFlight.Load(),
	}
}

// Sink methods. Results are routed by the turn identity captured when the
// job was dispatched.

// AttachSceneImage sets a turn's image. The status scene reference follows
// only if no later turn already has an image.
func (c *Controller) AttachSceneImage(turnID uuid.UUID, url string) {
	c.mu.Lock()
	idx := c.indexOf(turnID)
	if idx < 0 {
		c.mu.Unlock()
		c.logger.Warn("Scene image for unknown turn", "turn_id", turnID)
		return
	}
	c.turns[idx].ImageURL = url
	newest := !slices.ContainsFunc(c.turns[idx+1:], func(t chat.Turn) bool { return t.ImageURL != "" })
	if newest {
		c.status.SceneImageURL = url
	}
	c.mu.Unlock()

	c.persist(context.Background())
}

// AttachAudio sets a turn's narration audio.
func (c *Controller) AttachAudio(turnID uuid.UUID, ref string) {
	c.mu.Lock()
	idx := c.indexOf(turnID)
	if idx < 0 {
		c.mu.Unlock()
		c.logger.Warn("Audio for unknown turn", "turn_id", turnID)
		return
	}
	c.turns[idx].AudioRef = ref
	c.mu.Unlock()

	c.persist(context.Background())
}

// BeginAvatar reserves the next avatar generation.
func (c *Controller) BeginAvatar() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.avatarGen++
	return c.avatarGen
}

// AttachAvatar applies an avatar only if no newer one was requested since.
func (c *Controller) AttachAvatar(gen uint64, url string) bool {
	c.mu.Lock()
	if gen != c.avatarGen {
		c.mu.Unlock()
		return false
	}
	c.status.AvatarURL = url
	c.mu.Unlock()

	c.persist(context.Background())
	return true
}

func (c *Controller) indexOf(id uuid.UUID) int {
	return slices.IndexFunc(c.turns, func(t chat.Turn) bool { return t.ID == id })
}
