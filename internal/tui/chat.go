// Package tui is the interactive chat client for the QA server.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Reply is one answer from the server.
type Reply struct {
	Answer        string
	Confidence    float64
	MatchedKBs    []string
	ContextLength int
}

// Asker sends a question, optionally pinned to one knowledge base.
type Asker interface {
	Ask(ctx context.Context, question, kb string) (Reply, error)
}

type exchange struct {
	question string
	kb       string
	reply    *Reply
	err      error
}

type answerMsg struct {
	reply Reply
	err   error
}

// Model is the Bubble Tea model of the chat screen.
type Model struct {
	ctx      context.Context
	asker    Asker
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	history []exchange
	kb      string
	pending bool
	status  string
	ready   bool
}

func New(ctx context.Context, asker Asker, kb string) Model {
	ti := textinput.New()
	ti.Prompt = "问> "
	ti.Placeholder = "输入Java面试问题，回车发送（/kb <名称> 限定知识库，/clear 清空）"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:      ctx,
		asker:    asker,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		kb:       kb,
		status:   "Ready. Esc or Ctrl+C to quit.",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, fh := transcriptStyle.GetFrameSize()
		_, ih := inputStyle.GetFrameSize()
		// header, status and the input line
		h := msg.Height - fh - ih - 3
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, h)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case answerMsg:
		m.pending = false
		if len(m.history) == 0 {
			return m, nil
		}
		last := &m.history[len(m.history)-1]
		if msg.err != nil {
			last.err = msg.err
			m.status = "Error: " + msg.err.Error()
		} else {
			reply := msg.reply
			last.reply = &reply
			m.status = fmt.Sprintf("Answered from %s", strings.Join(reply.MatchedKBs, ", "))
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit handles the slash commands or sends the question.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.pending {
		return m, nil
	}
	m.input.Reset()

	switch {
	case text == "/clear":
		m.history = nil
		m.status = "Cleared."
		m.refresh()
		return m, nil
	case text == "/kb" || strings.HasPrefix(text, "/kb "):
		m.kb = strings.TrimSpace(strings.TrimPrefix(text, "/kb"))
		if m.kb == "" {
			m.status = "Routing across all knowledge bases."
		} else {
			m.status = "Asking " + m.kb + " only."
		}
		return m, nil
	}

	m.history = append(m.history, exchange{question: text, kb: m.kb})
	m.pending = true
	m.status = "Thinking..."
	m.refresh()
	return m, tea.Batch(m.spinner.Tick, m.ask(text, m.kb))
}

func (m Model) ask(question, kb string) tea.Cmd {
	ctx, asker := m.ctx, m.asker
	return func() tea.Msg {
		reply, err := asker.Ask(ctx, question, kb)
		return answerMsg{reply: reply, err: err}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

func (m Model) renderHistory() string {
	if len(m.history) == 0 {
		return mutedStyle.Render("No questions yet.")
	}

	width := m.viewport.Width
	var b strings.Builder
	for i, ex := range m.history {
		if i > 0 {
			b.WriteString("\n\n")
		}
		q := "Q: " + ex.question
		if ex.kb != "" {
			q += mutedStyle.Render(" [" + ex.kb + "]")
		}
		b.WriteString(questionStyle.Render(q))
		b.WriteString("\n")

		switch {
		case ex.err != nil:
			b.WriteString(errorStyle.Render(ex.err.Error()))
		case ex.reply == nil:
			b.WriteString(mutedStyle.Render("..."))
		default:
			body := ex.reply.Answer
			if width > 0 {
				body = lipgloss.NewStyle().Width(width).Render(body)
			}
			b.WriteString(body)
			b.WriteString("\n")
			b.WriteString(mutedStyle.Render(fmt.Sprintf("confidence %.2f · %s · %d contexts",
				ex.reply.Confidence, strings.Join(ex.reply.MatchedKBs, ", "), ex.reply.ContextLength)))
		}
	}
	return b.String()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := "Java面试AI问答"
	if m.kb != "" {
		header += mutedStyle.Render("  · " + m.kb)
	}

	status := m.status
	if m.pending {
		status = m.spinner.View() + " " + status
	}

	return headerStyle.Render(header) + "\n" +
		transcriptStyle.Render(m.viewport.View()) + "\n" +
		inputStyle.Render(m.input.View()) + "\n" +
		statusStyle.Render(status)
}

var (
	headerStyle     = lipgloss.NewStyle().Bold(true)
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	mutedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)
