package session

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jwebster45206/narration-engine/pkg/chat"
	"github.com/jwebster45206/narration-engine/pkg/mode"
)

// Item actions the client may send.
const (
	ActionUse     = "use"
	ActionExamine = "examine"
	ActionDiscard = "discard"
)

const emptyFormReason = "the form had no fields"

// SubmitForm validates values against the active form and sends them to
// the narrator as a system-tagged submission.
func (c *Controller) SubmitForm(ctx context.Context, values map[string]any) (*Result, error) {
	c.mu.Lock()
	res := c.mode
	c.mu.Unlock()

	if res.Mode != mode.Form || res.Form == nil || res.Err != nil {
		return nil, ErrNoForm
	}
	if err := res.Form.Validate(values); err != nil {
		return nil, err
	}

	msg, err := chat.FormSubmission(res.Form.Title, values)
	if err != nil {
		return nil, err
	}
	return c.run(ctx, msg, nil)
}

// RetryForm asks the narrator to resend a form that arrived without fields.
func (c *Controller) RetryForm(ctx context.Context) (*Result, error) {
	c.mu.Lock()
	res := c.mode
	c.mu.Unlock()

	if res.Mode != mode.Form || res.Err == nil {
		return nil, ErrNoForm
	}
	return c.run(ctx, chat.Retry(emptyFormReason), nil)
}

// ItemAction uses, examines or discards an inventory item.
func (c *Controller) ItemAction(ctx context.Context, action, item string) (*Result, error) {
	action = strings.ToLower(strings.TrimSpace(action))
	switch action {
	case ActionUse, ActionExamine, ActionDiscard:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	c.mu.Lock()
	inventory := slices.Clone(c.status.Inventory)
	c.mu.Unlock()

	idx := slices.IndexFunc(inventory, func(s string) bool {
		return strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(item))
	})
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownItem, item)
	}
	return c.run(ctx, chat.ItemAction(action, inventory[idx]), nil)
}

// SelectPregen picks a roster character, or "manual" to describe one in
// free text. A pregen's stats are reconciled into the status before the
// narrator sees the selection.
func (c *Controller) SelectPregen(ctx context.Context, id string) (*Result, error) {
	if strings.EqualFold(strings.TrimSpace(id), mode.ManualValue) {
		return c.run(ctx, chat.ManualCharacter(), nil)
	}

	pc, err := c.roster.Lookup(id)
	if err != nil {
		return nil, err
	}
	return c.run(ctx, chat.CharacterSelected(pc.Summary()), pc.StatusUpdate())
}
