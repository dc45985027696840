package main

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jwebster45206/narration-engine/internal/session"
	"github.com/jwebster45206/narration-engine/pkg/mode"
)

const helpText = `
Commands:
• /help - Show this help
• /use <item>, /examine <item>, /discard <item> - Item actions
• /form field=value ... - Submit the open form (quote values with spaces)
• /retry - Ask the narrator to resend a broken form
• /q <n> - Send suggested action n
• /narrate on|off - Toggle spoken narration
• /copy - Copy the last narration to the clipboard
• /refresh - Reload the session
• Ctrl+C - Quit

How to play:
• Type your actions and press Enter
• When choices are shown, type the number of a choice
• When a roll is pending, press Enter to roll
`

// rollMessage is sent when the player confirms a pending roll.
const rollMessage = "I roll the dice."

type command struct {
	name string
	arg  string
}

func parseCommand(input string) command {
	name, arg, _ := strings.Cut(strings.TrimSpace(input), " ")
	return command{
		name: strings.ToLower(strings.TrimPrefix(name, "/")),
		arg:  strings.TrimSpace(arg),
	}
}

var formPair = regexp.MustCompile(`([A-Za-z0-9_\-]+)=("[^"]*"|\S+)`)

// parseFormValues turns `name="Vex Arden" skills=stealth,lockpicking` into
// submission values. Checkbox fields take a comma separated list.
func parseFormValues(arg string, schema *mode.FormSchema) map[string]any {
	values := make(map[string]any)
	for _, m := range formPair.FindAllStringSubmatch(arg, -1) {
		id, raw := m[1], strings.Trim(m[2], `"`)
		if schema != nil {
			if f, ok := schema.Field(id); ok && f.Type == mode.FieldCheckbox {
				var picks []any
				for p := range strings.SplitSeq(raw, ",") {
					if p = strings.TrimSpace(p); p != "" {
						picks = append(picks, p)
					}
				}
				values[id] = picks
				continue
			}
		}
		values[id] = raw
	}
	return values
}

// pickOption maps a typed number to a buttons option.
func pickOption(input string, mv session.ModeView) (mode.Option, bool) {
	if mv.Mode != mode.Buttons {
		return mode.Option{}, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || n < 1 || n > len(mv.Options) {
		return mode.Option{}, false
	}
	return mv.Options[n-1], true
}

// pickQuickAction maps "/q n" to the n-th suggested action.
func pickQuickAction(arg string, mv session.ModeView) (string, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || n < 1 || n > len(mv.QuickActions) {
		return "", false
	}
	return mv.QuickActions[n-1], true
}
