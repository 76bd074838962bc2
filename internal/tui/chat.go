// Package tui implements the interactive terminal chat client. It drives the
// engine in-process with a bubbletea event loop.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/atelierhq/atelier/internal/engine"
)

type styles struct {
	header    lipgloss.Style
	user      lipgloss.Style
	agent     lipgloss.Style
	status    lipgloss.Style
	errText   lipgloss.Style
	planBadge lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		user:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		agent:     lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		status:    lipgloss.NewStyle().Faint(true),
		errText:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		planBadge: lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
	}
}

type chatMessage struct {
	role    string // "user" or "agent"
	content string
	time    time.Time
}

type (
	responseMsg *engine.Response
	errorMsg    error
)

type chatModel struct {
	textinput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	renderer  *glamour.TermRenderer
	styles    styles

	eng         *engine.Engine
	workspaceID string

	history   []chatMessage
	planState string
	isLoading bool
	err       error
	width     int
	height    int
	ready     bool
}

func newChatModel(eng *engine.Engine, workspaceID string) chatModel {
	ti := textinput.New()
	ti.Placeholder = "Describe what you want to build... (Enter to send, Ctrl+C to exit)"
	ti.Focus()
	ti.Prompt = "│ "
	ti.CharLimit = 4096
	ti.Width = 80

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	vp := viewport.New(80, 20)
	vp.SetContent("")

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)

	return chatModel{
		textinput:   ti,
		viewport:    vp,
		spinner:     sp,
		renderer:    renderer,
		styles:      defaultStyles(),
		eng:         eng,
		workspaceID: workspaceID,
		planState:   "none",
	}
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if !m.isLoading {
				return m.handleSubmit()
			}
		}
		if !m.isLoading {
			m.textinput, tiCmd = m.textinput.Update(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 2
		inputHeight := 3
		if !m.ready {
			m.viewport = viewport.New(msg.Width-4, msg.Height-headerHeight-inputHeight-2)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 4
			m.viewport.Height = msg.Height - headerHeight - inputHeight - 2
		}
		m.textinput.Width = msg.Width - 4
		m.renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(max(msg.Width-8, 20)),
		)
		m.refreshViewport()

	case spinner.TickMsg:
		if m.isLoading {
			m.spinner, spCmd = m.spinner.Update(msg)
			return m, spCmd
		}

	case responseMsg:
		m.isLoading = false
		m.err = nil
		resp := (*engine.Response)(msg)
		m.planState = string(resp.State.PlanStatus)

		content := resp.Reply
		if len(resp.Actions) > 0 {
			content += fmt.Sprintf("\n\n_%d actions ready to execute._", len(resp.Actions))
		}
		if resp.FailedOver {
			content += "\n\n_Note: the primary model was unavailable, a fallback answered._"
		}
		m.history = append(m.history, chatMessage{role: "agent", content: content, time: time.Now()})
		m.refreshViewport()
		m.viewport.GotoBottom()

	case errorMsg:
		m.isLoading = false
		m.err = msg
		m.refreshViewport()
	}

	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd, spCmd)
}

func (m chatModel) handleSubmit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textinput.Value())
	if input == "" {
		return m, nil
	}

	m.history = append(m.history, chatMessage{role: "user", content: input, time: time.Now()})
	m.textinput.Reset()
	m.isLoading = true
	m.err = nil
	m.refreshViewport()
	m.viewport.GotoBottom()

	eng, workspaceID := m.eng, m.workspaceID
	generate := func() tea.Msg {
		resp, err := eng.Generate(context.Background(), engine.Request{
			WorkspaceID: workspaceID,
			Message:     input,
		})
		if err != nil {
			return errorMsg(err)
		}
		return responseMsg(resp)
	}
	return m, tea.Batch(generate, m.spinner.Tick)
}

func (m *chatModel) refreshViewport() {
	var b strings.Builder
	for _, msg := range m.history {
		switch msg.role {
		case "user":
			b.WriteString(m.styles.user.Render("you ▸ "))
			b.WriteString(msg.content)
		default:
			rendered := msg.content
			if m.renderer != nil {
				if out, err := m.renderer.Render(msg.content); err == nil {
					rendered = out
				}
			}
			b.WriteString(m.styles.agent.Render(strings.TrimRight(rendered, "\n")))
		}
		b.WriteString("\n\n")
	}
	if m.err != nil {
		b.WriteString(m.styles.errText.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
}

func (m chatModel) View() string {
	header := m.styles.header.Render("atelier") +
		m.styles.status.Render(fmt.Sprintf("  workspace %s · plan %s", m.workspaceID, m.planState))

	input := m.textinput.View()
	if m.isLoading {
		input = m.spinner.View() + " thinking..."
	}

	return header + "\n\n" + m.viewport.View() + "\n\n" + input
}

// Run starts the interactive chat session for one workspace.
func Run(eng *engine.Engine, workspaceID string) error {
	p := tea.NewProgram(newChatModel(eng, workspaceID), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run chat ui: %w", err)
	}
	return nil
}
