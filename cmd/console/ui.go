package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jwebster45206/narration-engine/internal/services/events"
	"github.com/jwebster45206/narration-engine/internal/session"
	"github.com/jwebster45206/narration-engine/pkg/chat"
	"github.com/jwebster45206/narration-engine/pkg/mode"
)

const PlaceHolderText = "Type your message here..."

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	api          *apiClient
	events       <-chan events.Event
	view         *session.View
	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	err          error
	notice       string
	loading      bool
	pending      string
	toasts       []string

	selectedPregen int
	showQuitModal  bool
	progressTick   int
}

type turnResultMsg struct {
	result *session.Result
	err    error
}

type sessionMsg struct {
	view *session.View
	err  error
}

type sseEventMsg struct {
	event events.Event
}

type progressTickMsg struct{}

func NewConsoleUI(api *apiClient, view *session.View, eventChan <-chan events.Event) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 1000
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		api:          api,
		events:       eventChan,
		view:         view,
		textarea:     ta,
		chatViewport: chatVp,
		metaViewport: metaVp,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.waitForEvent())
}

func (m ConsoleUI) showPregenModal() bool {
	return m.view != nil && m.view.Mode.Mode == mode.PregenSelect && !m.loading
}

// refreshContent rebuilds both panels from the current view.
func (m *ConsoleUI) refreshContent() {
	if m.view == nil {
		return
	}
	chatWidth := m.chatViewport.Width - 6 // Account for left(3) + right(3) padding

	var content strings.Builder
	content.WriteString(writeChatContent(m.view.Turns, chatWidth))
	if m.pending != "" {
		content.WriteString(userStyle.Render("You: ") + m.pending + "\n\n")
	}
	if m.loading {
		content.WriteString(renderProgressBar(m.progressTick, m.chatViewport.Width) + "\n\n")
	} else if w := writeWidget(m.view.Mode, chatWidth); w != "" {
		content.WriteString(w + "\n\n")
	}
	if m.err != nil {
		content.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n\n")
	}
	if m.notice != "" {
		content.WriteString(promptStyle.Render(m.notice) + "\n\n")
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
	m.metaViewport.SetContent(writeStatus(m.view.Status, m.view.Narration, m.toasts))
}

func (m *ConsoleUI) resize() {
	chatWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - chatWidth - 6

	m.chatViewport.Width = chatWidth - 2
	m.chatViewport.Height = m.height - 7
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 4
	m.textarea.SetWidth(chatWidth - 4)
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)
		return m, tea.Batch(vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.ready = true
		m.refreshContent()

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
			m.showQuitModal = true
			return m, nil
		}
		if m.showPregenModal() {
			return m.updatePregenModal(msg)
		}
		if msg.Type == tea.KeyEnter {
			return m.submit()
		}

	case turnResultMsg:
		m.loading = false
		m.pending = ""
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.view.Turns = append(m.view.Turns, msg.result.UserTurn, msg.result.ModelTurn)
			m.view.Status = msg.result.Status
			m.view.Mode = msg.result.Mode
		}
		m.refreshContent()
		return m, m.refreshSession()

	case sessionMsg:
		if msg.err != nil {
			m.err = msg.err
		} else if !m.loading {
			m.view = msg.view
		}
		m.refreshContent()

	case sseEventMsg:
		if toast := formatToast(msg.event); toast != "" {
			m.toasts = append(m.toasts, toast)
			if len(m.toasts) > maxToasts {
				m.toasts = m.toasts[len(m.toasts)-maxToasts:]
			}
		}
		m.refreshContent()
		if msg.event.Type == events.EventTypeMediaReady {
			return m, tea.Batch(m.waitForEvent(), m.refreshSession())
		}
		return m, m.waitForEvent()

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.refreshContent()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

// submit handles Enter in the main view. The server accepts any turn, so
// the widget locks are enforced here.
func (m ConsoleUI) submit() (tea.Model, tea.Cmd) {
	if m.loading {
		return m, nil
	}
	input := strings.TrimSpace(m.textarea.Value())
	m.notice = ""

	if strings.HasPrefix(input, "/") {
		m.textarea.Reset()
		return m.handleCommand(parseCommand(input))
	}

	mv := m.view.Mode
	switch {
	case mv.RollPending:
		m.textarea.Reset()
		return m.startTurn(rollMessage, func() (*session.Result, error) { return m.api.sendTurn(rollMessage) })
	case input == "":
		return m, nil
	}

	if opt, ok := pickOption(input, mv); ok {
		m.textarea.Reset()
		return m.startTurn(opt.Label, func() (*session.Result, error) { return m.api.sendTurn(opt.Value) })
	}
	if mv.InputLocked {
		m.notice = "Free input is locked for this turn."
		m.refreshContent()
		return m, nil
	}

	m.textarea.Reset()
	return m.startTurn(input, func() (*session.Result, error) { return m.api.sendTurn(input) })
}

func (m ConsoleUI) startTurn(echo string, call func() (*session.Result, error)) (tea.Model, tea.Cmd) {
	m.loading = true
	m.pending = echo
	m.progressTick = 0
	m.err = nil
	m.refreshContent()
	return m, tea.Batch(func() tea.Msg {
		res, err := call()
		return turnResultMsg{res, err}
	}, progressTick())
}

func (m ConsoleUI) handleCommand(cmd command) (tea.Model, tea.Cmd) {
	switch cmd.name {
	case "help":
		m.notice = titleStyle.Render("Help:") + helpText

	case "use", "examine", "discard":
		if cmd.arg == "" {
			m.notice = fmt.Sprintf("Usage: /%s <item>", cmd.name)
			break
		}
		action, item := cmd.name, cmd.arg
		return m.startTurn(fmt.Sprintf("/%s %s", action, item), func() (*session.Result, error) {
			return m.api.itemAction(action, item)
		})

	case "form":
		values := parseFormValues(cmd.arg, m.view.Mode.Form)
		return m.startTurn("(form submitted)", func() (*session.Result, error) {
			return m.api.submitForm(values)
		})

	case "retry":
		return m.startTurn("(retry form)", m.api.retryForm)

	case "q":
		action, ok := pickQuickAction(cmd.arg, m.view.Mode)
		switch {
		case !ok:
			m.notice = "No such suggestion."
		case m.view.Mode.InputLocked:
			m.notice = "Free input is locked for this turn."
		default:
			return m.startTurn(action, func() (*session.Result, error) { return m.api.sendTurn(action) })
		}

	case "narrate":
		on := cmd.arg != "off"
		return m, func() tea.Msg {
			v, err := m.api.setNarration(on)
			return sessionMsg{v, err}
		}

	case "copy":
		if text := lastNarrative(m.view.Turns); text == "" {
			m.notice = "Nothing to copy yet."
		} else if err := clipboard.WriteAll(text); err != nil {
			m.err = fmt.Errorf("failed to copy: %w", err)
		} else {
			m.notice = "Copied the last narration."
		}

	case "refresh":
		return m, m.refreshSession()

	default:
		m.notice = fmt.Sprintf("Unknown command /%s. Type /help.", cmd.name)
	}

	m.refreshContent()
	return m, nil
}

func lastNarrative(turns []chat.Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == chat.RoleModel && !turns[i].Failed {
			return turns[i].Text
		}
	}
	return ""
}

func (m ConsoleUI) refreshSession() tea.Cmd {
	return func() tea.Msg {
		v, err := m.api.getSession()
		return sessionMsg{v, err}
	}
}

// waitForEvent delivers the next side-channel event. It returns nil once
// the stream is closed.
func (m ConsoleUI) waitForEvent() tea.Cmd {
	if m.events == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-m.events
		if !ok {
			return nil
		}
		return sseEventMsg{e}
	}
}

func (m ConsoleUI) updatePregenModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	options := m.view.Mode.Options
	switch msg.Type {
	case tea.KeyUp:
		if m.selectedPregen > 0 {
			m.selectedPregen--
		}
	case tea.KeyDown:
		if m.selectedPregen < len(options)-1 {
			m.selectedPregen++
		}
	case tea.KeyEnter:
		if len(options) > 0 {
			opt := options[m.selectedPregen]
			m.selectedPregen = 0
			return m.startTurn(opt.Label, func() (*session.Result, error) {
				return m.api.selectPregen(opt.Value)
			})
		}
	}
	return m, nil
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit Game?"))
	content.WriteString("\n\n")
	content.WriteString("Are you sure you want to quit your adventure?")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderPregenModal() string {
	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Choose Your Character"))
	content.WriteString("\n\n")

	for i, o := range m.view.Mode.Options {
		label := o.Label
		if o.Description != "" {
			label += promptStyle.Render("  " + o.Description)
		}
		if i == m.selectedPregen {
			content.WriteString(modalSelectedItemStyle.Render("▶ " + o.Label))
			if o.Description != "" {
				content.WriteString(promptStyle.Render("  " + o.Description))
			}
		} else {
			content.WriteString(modalItemStyle.Render("  " + label))
		}
		content.WriteString("\n")
	}

	content.WriteString("\n")
	content.WriteString(promptStyle.Render("Use ↑/↓ to navigate, Enter to select, Ctrl+C to exit"))

	modal := modalStyle.Width(70).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if !m.ready || m.width == 0 || m.height == 0 {
		return "\n  Initializing..."
	}
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if m.showPregenModal() {
		return m.renderPregenModal()
	}

	chatWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - chatWidth - 6

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", max(chatWidth-4, 1))),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}

// progressTick creates a command that sends a progress tick message
func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
