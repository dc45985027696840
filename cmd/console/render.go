package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jwebster45206/narration-engine/internal/services/events"
	"github.com/jwebster45206/narration-engine/internal/session"
	"github.com/jwebster45206/narration-engine/pkg/chat"
	"github.com/jwebster45206/narration-engine/pkg/mode"
	"github.com/jwebster45206/narration-engine/pkg/state"
	"github.com/muesli/reflow/wordwrap"
)

const (
	AgentName = "Narrator"
	maxToasts = 5
)

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	healStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	damageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("160")).
			Bold(true)

	errorCardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("196")).
			Padding(0, 1)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	modalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	modalSelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey
)

// writeChatContent renders the whole transcript for the given width.
func writeChatContent(turns []chat.Turn, chatWidth int) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("NARRATION ENGINE") + "\n\n")
	content.WriteString("Type your messages below to interact with the story.\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", max(chatWidth-6, 1))) + "\n\n")

	for _, t := range turns {
		switch {
		case t.Role == chat.RoleUser:
			content.WriteString(userStyle.Render("You: ") + wordwrap.String(t.Text, max(chatWidth-6, 10)) + "\n\n")
		case t.Failed:
			content.WriteString(errorStyle.Render(wordwrap.String(t.Text, max(chatWidth, 10))) + "\n\n")
		default:
			content.WriteString(formatNarratorResponse(t.Text, chatWidth) + "\n")
			if t.ImageURL != "" {
				content.WriteString(promptStyle.Render("[scene illustrated]") + "\n")
			}
			if t.AudioRef != "" {
				content.WriteString(promptStyle.Render("[narration ready]") + "\n")
			}
			content.WriteString("\n")
		}
	}
	return content.String()
}

func formatNarratorResponse(response string, width int) string {
	// Check if response already has a speaker prefix
	hasPrefix := false
	if idx := strings.Index(response, ":"); idx > 0 && idx <= 20 {
		speaker := response[:idx]
		if len(strings.Fields(speaker)) <= 2 {
			hasPrefix = true
		}
	}

	wrapWidth := width
	if !hasPrefix {
		wrapWidth = width - len(AgentName+": ")
	}

	wrappedResponse := wordwrap.String(response, max(wrapWidth, 10))
	lines := strings.Split(wrappedResponse, "\n")
	formattedLines := make([]string, 0, len(lines))

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			formattedLines = append(formattedLines, "")
			continue
		}

		if idx := strings.Index(trimmed, ":"); idx > 0 && idx <= 20 {
			speaker := trimmed[:idx]
			rest := trimmed[idx+1:]
			if len(strings.Fields(speaker)) <= 2 {
				formattedLines = append(formattedLines, speakerStyle.Render(speaker+":")+rest)
				continue
			}
		}

		formattedLines = append(formattedLines, line)
	}

	result := strings.Join(formattedLines, "\n")
	if !hasPrefix {
		result = narratorStyle.Render(AgentName+": ") + result
	}
	return result
}

// writeStatus renders the side panel.
func writeStatus(gs state.GameStatus, narration bool, toasts []string) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render(strings.ToUpper(gs.Name)) + "\n")
	if gs.Title != "" {
		content.WriteString(promptStyle.Render(gs.Title) + "\n")
	}
	content.WriteString("\n")

	fmt.Fprintf(&content, "HP:    %d/%d\n", gs.HP, gs.MaxHP)
	fmt.Fprintf(&content, "Armor: %d\n\n", gs.Armor)

	if gs.Location != "" {
		content.WriteString("Location:\n" + gs.Location + "\n\n")
	}
	if gs.Objective != "" {
		content.WriteString("Objective:\n" + gs.Objective + "\n\n")
	}

	content.WriteString("Inventory:\n")
	if len(gs.Inventory) == 0 {
		content.WriteString("Empty\n")
	}
	for _, item := range gs.Inventory {
		content.WriteString("• " + item + "\n")
	}
	content.WriteString("\n")

	if len(gs.Companions) > 0 {
		content.WriteString("Companions:\n")
		for _, c := range gs.Companions {
			content.WriteString("• " + c.Name)
			if c.Status != "" {
				content.WriteString(" (" + c.Status + ")")
			}
			content.WriteString("\n")
		}
		content.WriteString("\n")
	}

	if len(gs.Quests) > 0 {
		content.WriteString("Quests:\n")
		for _, q := range gs.Quests {
			mark := "○"
			switch q.Status {
			case state.QuestComplete:
				mark = "●"
			case state.QuestFailed:
				mark = "✕"
			}
			content.WriteString(mark + " " + q.Title + "\n")
		}
		content.WriteString("\n")
	}

	if gs.Combat != nil {
		fmt.Fprintf(&content, "Combat, round %d:\n", gs.Combat.Round)
		for _, c := range gs.Combat.TurnOrder {
			marker := " "
			if c.IsActive {
				marker = "▶"
			}
			fmt.Fprintf(&content, "%s %s %d/%d\n", marker, c.Name, c.HP, c.MaxHP)
		}
		content.WriteString("\n")
	}

	if narration {
		content.WriteString("Narration: on\n\n")
	} else {
		content.WriteString("Narration: off\n\n")
	}

	if len(toasts) > 0 {
		content.WriteString("Recent:\n")
		for _, t := range toasts {
			content.WriteString(t + "\n")
		}
		content.WriteString("\n")
	}

	content.WriteString("Commands:\n")
	content.WriteString("• Ctrl+C: Quit\n")
	content.WriteString("• Enter: Send\n")
	content.WriteString("• /help: Help\n")
	return content.String()
}

// formatToast turns a side-channel event into a one-line notice. Events
// with nothing to show return "".
func formatToast(e events.Event) string {
	switch e.Type {
	case events.EventTypeLootToast:
		qty := 1
		if q, ok := e.Data["quantity"].(float64); ok {
			qty = int(q)
		}
		name, _ := e.Data["item_name"].(string)
		return healStyle.Render(fmt.Sprintf("+%d %s", qty, name))
	case events.EventTypeCombatDelta:
		text, _ := e.Data["text"].(string)
		if strings.HasPrefix(text, "-") {
			return damageStyle.Render(text + " HP")
		}
		return healStyle.Render(text + " HP")
	case events.EventTypeMediaReady:
		kind, _ := e.Data["kind"].(string)
		return promptStyle.Render(strings.ReplaceAll(kind, "_", " ") + " ready")
	}
	return ""
}

// writeWidget renders the input widget for the current mode.
func writeWidget(mv session.ModeView, width int) string {
	var b strings.Builder

	if mv.Error != "" {
		msg := "The narrator sent an empty form: " + mv.Error
		if mv.CanRetry {
			msg += "\nType /retry to ask again."
		}
		return errorCardStyle.Width(max(width-4, 10)).Render(msg)
	}

	switch mv.Mode {
	case mode.Buttons:
		for i, o := range mv.Options {
			fmt.Fprintf(&b, "%s %s\n", speakerStyle.Render(fmt.Sprintf("[%d]", i+1)), o.Label)
		}
		b.WriteString(promptStyle.Render("Type a number to choose."))
	case mode.DiceRoll:
		b.WriteString(loadingStyle.Render("ROLL PENDING  press Enter to roll"))
	case mode.Form:
		if mv.Form != nil {
			if mv.Form.Title != "" {
				b.WriteString(titleStyle.Render(mv.Form.Title) + "\n")
			}
			for _, f := range mv.Form.Fields {
				fmt.Fprintf(&b, "• %s %s", f.ID, promptStyle.Render("("+f.Label+")"))
				if len(f.Options) > 0 {
					vals := make([]string, len(f.Options))
					for i, o := range f.Options {
						vals[i] = o.Value
					}
					b.WriteString(promptStyle.Render(": " + strings.Join(vals, " | ")))
				}
				b.WriteString("\n")
			}
		}
		b.WriteString(promptStyle.Render("/form field=value field=a,b ..."))
	case mode.PregenSelect:
		b.WriteString(promptStyle.Render("Choose a character to begin."))
	}

	if len(mv.QuickActions) > 0 && !mv.InputLocked {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		qs := make([]string, len(mv.QuickActions))
		for i, qa := range mv.QuickActions {
			qs[i] = fmt.Sprintf("[/q %d] %s", i+1, qa)
		}
		b.WriteString(promptStyle.Render("Try: " + strings.Join(qs, "  ")))
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderProgressBar creates an animated progress bar for loading states
func renderProgressBar(tick, width int) string {
	usable := width - 6
	if usable <= 0 {
		usable = 30 // fallback before sizing
	}
	usable = min(max(usable, 10), 80)

	const totalFrames = 40
	frame := tick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && frame%4 < 2 {
			bar.WriteString("▓") // Blinking effect at the progress point
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}
