package chat

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Tags for synthetic requests the client sends on the player's behalf.
const (
	TagFormSubmission    = "FORM_SUBMISSION"
	TagItemAction        = "ITEM_ACTION"
	TagCharacterSelected = "CHARACTER_SELECTED"
	TagRetry             = "RETRY"
)

var systemTag = regexp.MustCompile(`^\[SYSTEM:\s*([A-Z_]+)\]`)

func tagged(tag, body string) string {
	return fmt.Sprintf("[SYSTEM: %s] %s", tag, body)
}

// SystemTag returns the tag of a system-tagged message.
func SystemTag(text string) (string, bool) {
	m := systemTag.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// FormSubmission encodes submitted form values.
func FormSubmission(title string, values map[string]any) (string, error) {
	body, err := json.Marshal(struct {
		Form   string         `json:"form,omitempty"`
		Values map[string]any `json:"values"`
	}{Form: title, Values: values})
	if err != nil {
		return "", fmt.Errorf("failed to marshal form values: %w", err)
	}
	return tagged(TagFormSubmission, string(body)), nil
}

// ItemAction tells the narrator the player used an inventory item.
func ItemAction(action, item string) string {
	return tagged(TagItemAction, fmt.Sprintf("The player chooses to %s: %q.", strings.ToLower(action), item))
}

// CharacterSelected tells the narrator which pregen the player picked.
func CharacterSelected(summary string) string {
	return tagged(TagCharacterSelected, "The player will play as "+summary+
		" Update status_update with this character and begin the adventure.")
}

// ManualCharacter tells the narrator the player will describe their own character.
func ManualCharacter() string {
	return tagged(TagCharacterSelected, "The player wants to create their own character. "+
		"Ask them who they are using a form or free text.")
}

// Retry asks the narrator to resend a turn whose directive was unusable.
func Retry(reason string) string {
	return tagged(TagRetry, "Your previous response could not be used ("+reason+"). "+
		"Repeat it with a complete interface directive.")
}
