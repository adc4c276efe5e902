package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"docqa/internal/domain"
	"docqa/internal/session"
)

// Welcome is shown once, before anything is uploaded.
const Welcome = "👋 Hello! I'm your PDF AI Assistant. Upload a PDF and ask me anything from it."

const helpText = "/open <path> upload · /sources toggle sources · /reset new conversation · ctrl+c quit"

// SessionPort is the TUI-facing subset of the session manager.
type SessionPort interface {
	Upload(ctx context.Context, name string, data []byte) (*session.Session, error)
	Ask(ctx context.Context, question string) domain.Answer
	Reset() *session.Session
	Current() *session.Session
}

type entry struct {
	role    domain.Role
	text    string
	sources []domain.Source
	failed  bool
}

type answerMsg struct {
	answer domain.Answer
}

type uploadMsg struct {
	name    string
	session *session.Session
	err     error
}

// Model is the Bubble Tea model for the chat transcript.
type Model struct {
	port        SessionPort
	input       textinput.Model
	viewport    viewport.Model
	spinner     spinner.Model
	renderer    *glamour.TermRenderer
	entries     []entry
	summary     string
	document    string
	status      string
	busy        string
	showSources bool
	ready       bool
	initialPath string
}

const processingStatus = "🔍 Processing your document..."

// New creates a chat model. A non-empty path is uploaded on start.
func New(port SessionPort, path string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask your document a question..."
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	var busy string
	if path != "" {
		busy = processingStatus
	}

	return Model{
		port:        port,
		busy:        busy,
		input:       ti,
		viewport:    viewport.New(0, 0),
		spinner:     sp,
		entries:     []entry{{role: domain.RoleBot, text: Welcome}},
		status:      helpText,
		showSources: true,
		initialPath: path,
	}
}

// Init starts the cursor blink and the initial upload, if any.
func (m Model) Init() tea.Cmd {
	if m.initialPath == "" {
		return textinput.Blink
	}
	return tea.Batch(textinput.Blink, m.spinner.Tick, uploadCmd(m.port, m.initialPath))
}

// Update handles key, window and result events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header+summary, status, input box, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		if r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(max(20, msg.Width-6))); err == nil {
			m.renderer = r
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if m.busy == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case answerMsg:
		m.busy = ""
		if errors.Is(msg.answer.Err, domain.ErrNoSession) {
			m.status = "Upload a document first: /open <path>"
			return m, nil
		}
		m.entries = append(m.entries, entry{
			role:    domain.RoleBot,
			text:    msg.answer.Text,
			sources: msg.answer.Sources,
			failed:  msg.answer.Failed,
		})
		m.status = helpText
		if msg.answer.Err != nil {
			m.status = "Error: " + msg.answer.Err.Error()
		}
		m.refresh()
		return m, nil

	case uploadMsg:
		m.busy = ""
		if msg.err != nil {
			m.status = fmt.Sprintf("Upload of %s failed: %v", msg.name, msg.err)
			return m, nil
		}
		m.document = msg.name
		m.summary = msg.session.Summary
		m.entries = []entry{{role: domain.RoleBot, text: fmt.Sprintf("📄 %s is ready: %d pages, %d chunks. Ask me anything about it.",
			msg.name, len(msg.session.Document.Pages), msg.session.Index.Len())}}
		m.status = helpText
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			return m.submit()
		}
		if msg.Type == tea.KeyPgUp || msg.Type == tea.KeyPgDown {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	if line == "" || m.busy != "" {
		return m, nil
	}
	m.input.Reset()

	if strings.HasPrefix(line, "/") {
		return m.command(line)
	}
	if m.port.Current() == nil {
		m.status = "Upload a document first: /open <path>"
		return m, nil
	}
	m.entries = append(m.entries, entry{role: domain.RoleUser, text: line})
	m.busy = "🤖 Thinking..."
	m.refresh()
	return m, tea.Batch(m.spinner.Tick, askCmd(m.port, line))
}

func (m Model) command(line string) (tea.Model, tea.Cmd) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "/open":
		if arg == "" {
			m.status = "Usage: /open <path>"
			return m, nil
		}
		m.busy = processingStatus
		return m, tea.Batch(m.spinner.Tick, uploadCmd(m.port, arg))
	case "/sources":
		m.showSources = !m.showSources
		m.refresh()
		return m, nil
	case "/reset":
		if m.port.Reset() == nil {
			m.status = "Nothing to reset yet."
			return m, nil
		}
		m.entries = []entry{{role: domain.RoleBot, text: "🧹 Started a new conversation about " + m.document + "."}}
		m.refresh()
		return m, nil
	case "/quit", "/exit":
		return m, tea.Quit
	default:
		m.status = "Unknown command " + name + ". " + helpText
		return m, nil
	}
}

func askCmd(port SessionPort, question string) tea.Cmd {
	return func() tea.Msg {
		return answerMsg{answer: port.Ask(context.Background(), question)}
	}
}

func uploadCmd(port SessionPort, path string) tea.Cmd {
	return func() tea.Msg {
		name := filepath.Base(path)
		data, err := os.ReadFile(path)
		if err != nil {
			return uploadMsg{name: name, err: err}
		}
		sess, err := port.Upload(context.Background(), name, data)
		return uploadMsg{name: name, session: sess, err: err}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// View renders the header, transcript, input and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	title := "✨ AI Based PDF Bot ✨"
	if m.document != "" {
		title += "  ·  " + m.document
	}
	header := headerStyle.Render(title)
	summary := summaryStyle.Render(m.summary)
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	if m.busy != "" {
		status = m.spinner.View() + " " + statusStyle.Render(m.busy)
	}
	return header + "\n" + summary + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteString("\n")
		}
		switch e.role {
		case domain.RoleUser:
			b.WriteString(userStyle.Render("🧑‍🎓 " + e.text))
			b.WriteString("\n")
		default:
			text := e.text
			if e.failed {
				b.WriteString(failedStyle.Render("🤖 " + text))
				b.WriteString("\n")
				continue
			}
			b.WriteString(botStyle.Render("🤖"))
			b.WriteString("\n")
			b.WriteString(m.markdown(text))
			if m.showSources && len(e.sources) > 0 {
				b.WriteString(renderSources(e.sources))
			}
		}
	}
	return b.String()
}

func (m Model) markdown(text string) string {
	if m.renderer == nil {
		return text + "\n"
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text + "\n"
	}
	return out
}

func renderSources(sources []domain.Source) string {
	var b strings.Builder
	b.WriteString(sourceHeaderStyle.Render("Sources"))
	b.WriteString("\n")
	for _, s := range sources {
		fmt.Fprintf(&b, "%s %s\n", sourcePageStyle.Render(fmt.Sprintf("[page %d · %.2f]", s.Page, s.Score)), s.Excerpt)
	}
	return b.String()
}

var (
	headerStyle        = lipgloss.NewStyle().Bold(true)
	summaryStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	spinnerStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	failedStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	sourceHeaderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Underline(true)
	sourcePageStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)
