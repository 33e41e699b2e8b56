// This file implements the interactive chat interface using bubbletea.
package main

import (
	"collab/cmd/collab/ui"
	"collab/internal/session"
	"collab/internal/types"
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// chatModel is the main model for the interactive chat interface
type chatModel struct {
	// UI components
	textinput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	styles    ui.Styles
	renderer  *glamour.TermRenderer

	// State
	isLoading bool
	pending   string // user message shown while the turn is running
	err       error
	width     int
	height    int
	ready     bool

	// Backend
	rt   *runtime
	sess *session.Session
}

// Messages for tea updates
type (
	turnDoneMsg struct{ err error }
	noticeMsg   string
)

// runInteractiveChat opens the backend and runs the TUI until exit.
func runInteractiveChat() error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	p := tea.NewProgram(newChatModel(rt), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func newChatModel(rt *runtime) chatModel {
	styles := ui.DefaultStyles()

	ti := textinput.New()
	ti.Placeholder = "Pergunte algo... (Enter envia, Ctrl+C sai)"
	ti.Focus()
	ti.Prompt = "│ "
	ti.CharLimit = 4096
	ti.Width = 80
	ti.PromptStyle = styles.Prompt
	ti.TextStyle = styles.UserInput

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	vp := viewport.New(80, 20)
	vp.SetContent("")

	var renderer *glamour.TermRenderer
	if styles.Theme.IsDark {
		renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(80),
		)
	} else {
		renderer, _ = glamour.NewTermRenderer(
			glamour.WithStylePath("light"),
			glamour.WithWordWrap(80),
		)
	}

	sess := session.New(rt.router, rt.actions, rt.sessionsDir())

	return chatModel{
		textinput: ti,
		viewport:  vp,
		spinner:   sp,
		styles:    styles,
		renderer:  renderer,
		rt:        rt,
		sess:      sess,
	}
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
	)
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

		headerHeight := 4
		footerHeight := 2
		inputHeight := 3

		if !m.ready {
			m.viewport = viewport.New(msg.Width-4, msg.Height-headerHeight-footerHeight-inputHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 4
			m.viewport.Height = msg.Height - headerHeight - footerHeight - inputHeight
		}

		m.textinput.Width = msg.Width - 4

		if m.renderer != nil {
			m.renderer, _ = glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(msg.Width-8),
			)
		}
		m.viewport.SetContent(m.renderHistory())

	case spinner.TickMsg:
		if m.isLoading {
			m.spinner, spCmd = m.spinner.Update(msg)
			return m, spCmd
		}

	case turnDoneMsg:
		m.isLoading = false
		m.pending = ""
		m.err = msg.err
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()

	case noticeMsg:
		m.isLoading = false
		m.viewport.SetContent(m.renderHistory() + "\n" + m.safeRenderMarkdown(string(msg)))
		m.viewport.GotoBottom()
	}

	m.viewport, vpCmd = m.viewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, spCmd)
}

func (m chatModel) handleSubmit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textinput.Value())
	if input == "" {
		return m, nil
	}

	if strings.HasPrefix(input, "/") {
		return m.handleCommand(input)
	}

	m.textinput.Reset()
	m.err = nil
	m.pending = input
	m.isLoading = true
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()

	return m, tea.Batch(
		m.spinner.Tick,
		m.processInput(input),
	)
}

func (m chatModel) handleCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	cmd := parts[0]
	m.textinput.Reset()

	switch cmd {
	case "/quit", "/exit", "/q":
		return m, tea.Quit

	case "/clear":
		m.sess.Clear()
		m.err = nil
		m.viewport.SetContent("")
		return m, nil

	case "/user":
		if len(parts) < 2 {
			return m, notice("Uso: `/user <nome>`")
		}
		m.sess.SetUserID(parts[1])
		return m, notice(fmt.Sprintf("Agora você é **%s**.", parts[1]))

	case "/tasks":
		return m, m.listTasks()

	case "/topics":
		return m, m.listTopics()

	case "/help":
		help := `## Comandos

| Comando | Descrição |
|---------|-----------|
| /help | Mostra esta ajuda |
| /clear | Limpa o histórico |
| /user <nome> | Define quem está falando |
| /tasks | Lista as tarefas pendentes |
| /topics | Lista os placares de votação |
| /quit, /exit, /q | Sai do chat |

## Prefixos de mensagem

| Prefixo | Efeito |
|---------|--------|
| buscar: <consulta> | Busca nos PDFs indexados |
| resumir: <texto> | Resume o texto |
| votar: <tema> ; <sim \| não \| abster> | Registra um voto |
| tarefa: <descrição> ; <usuário> ; <prazo> | Cria uma tarefa |

Mensagens sem prefixo vão direto para o modelo.`
		return m, notice(help)
	}

	return m, notice(fmt.Sprintf("Comando desconhecido: `%s`. Use `/help`.", cmd))
}

func notice(text string) tea.Cmd {
	return func() tea.Msg { return noticeMsg(text) }
}

func (m chatModel) listTasks() tea.Cmd {
	return func() tea.Msg {
		tasks, err := m.rt.ledger.ListTasks()
		if err != nil {
			return turnDoneMsg{err: err}
		}
		if len(tasks) == 0 {
			return noticeMsg("Nenhuma tarefa pendente.")
		}
		var sb strings.Builder
		sb.WriteString("## Tarefas\n\n")
		for _, t := range tasks {
			sb.WriteString(fmt.Sprintf("- `%s` %s - %s (%s)\n", t.ID, t.Description, t.Assignee, t.Deadline))
		}
		return noticeMsg(sb.String())
	}
}

func (m chatModel) listTopics() tea.Cmd {
	return func() tea.Msg {
		topics, err := m.rt.ledger.ListTopics()
		if err != nil {
			return turnDoneMsg{err: err}
		}
		if len(topics) == 0 {
			return noticeMsg("Nenhuma votação aberta.")
		}
		var sb strings.Builder
		sb.WriteString("## Votações\n\n")
		for _, topic := range topics {
			tally, err := m.rt.ledger.GetTally(topic)
			if err != nil {
				continue
			}
			sb.WriteString(fmt.Sprintf("- %s: sim=%d não=%d abster=%d\n",
				topic, tally.Yes, tally.No, tally.Abstain))
		}
		return noticeMsg(sb.String())
	}
}

func (m chatModel) processInput(input string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		_, err := m.sess.RunTurn(ctx, input)
		return turnDoneMsg{err: err}
	}
}

func (m chatModel) renderHistory() string {
	var sb strings.Builder

	for _, msg := range m.sess.Messages() {
		sb.WriteString(m.renderMessage(msg))
	}
	if m.pending != "" {
		sb.WriteString(m.renderMessage(types.Message{
			Role:    types.RoleUser,
			Author:  m.sess.UserID,
			Content: m.pending,
		}))
	}

	return sb.String()
}

func (m chatModel) renderMessage(msg types.Message) string {
	var sb strings.Builder

	if msg.Role == types.RoleUser {
		label := msg.Author
		if label == "" {
			label = "você"
		}
		userStyle := m.styles.Bold.
			Foreground(m.styles.Theme.Primary).
			MarginTop(1)
		sb.WriteString(userStyle.Render(label) + "\n")
		sb.WriteString(m.styles.UserInput.Render(msg.Content))
		sb.WriteString("\n\n")
	} else {
		assistantStyle := m.styles.Bold.
			Foreground(m.styles.Theme.Accent).
			MarginTop(1)
		sb.WriteString(assistantStyle.Render("🤝 collab") + "\n")
		sb.WriteString(m.safeRenderMarkdown(msg.Content))
		sb.WriteString("\n")
	}

	return sb.String()
}

// safeRenderMarkdown renders markdown with panic recovery
func (m chatModel) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			// If glamour panics, return plain text
			result = content
		}
	}()

	if m.renderer != nil && content != "" {
		rendered, err := m.renderer.Render(content)
		if err == nil {
			return rendered
		}
	}
	return content
}

func (m chatModel) View() string {
	if !m.ready {
		return "Inicializando..."
	}

	header := m.renderHeader()

	chatView := m.styles.Content.Render(m.viewport.View())

	if m.isLoading {
		chatView += "\n" + m.styles.Spinner.Render(m.spinner.View()) + " Pensando..."
	}

	if m.err != nil {
		chatView += "\n" + m.styles.Error.Render("Erro: "+m.err.Error())
	}

	inputStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.styles.Theme.Accent).
		Padding(0, 1)
	inputArea := inputStyle.Render(m.textinput.View())

	footer := m.renderFooter()

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		chatView,
		inputArea,
		footer,
	)
}

func (m chatModel) renderHeader() string {
	title := m.styles.Header.Render(" 🤝 collab ")
	user := m.styles.Badge.Render(m.sess.UserID)

	var status string
	if m.isLoading {
		status = m.styles.Warning.Render("● Processando")
	} else {
		status = m.styles.Success.Render("● Pronto")
	}

	headerLine := lipgloss.JoinHorizontal(
		lipgloss.Center,
		title,
		" ",
		user,
		"  ",
		status,
	)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		headerLine,
		m.styles.Muted.Render(" 📁 "+m.rt.cfg.Storage.Dir),
		m.styles.RenderDivider(m.width),
	)
}

func (m chatModel) renderFooter() string {
	help := m.styles.Muted.Render("Enter: envia • /help: comandos • Ctrl+C: sai")
	return lipgloss.NewStyle().
		MarginTop(1).
		Render(help)
}
