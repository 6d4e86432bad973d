// Package chat is the interactive terminal chat built on bubbletea.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	chatstore "github.com/samsaffron/orchat/internal/chat"
	"github.com/samsaffron/orchat/internal/llm"
	"github.com/samsaffron/orchat/internal/session"
	"github.com/samsaffron/orchat/internal/ui"
)

const (
	inputHeight  = 3
	chromeHeight = inputHeight + 4 // header, notice, help and a spacer
	defaultWidth = 80
)

// Model is the bubbletea model for the chat screen.
type Model struct {
	ctx     context.Context
	backend Backend
	styles  *ui.Styles

	textarea textarea.Model
	keyInput textinput.Model
	spinner  spinner.Model
	viewport viewport.Model

	width  int
	height int

	keyMode   bool
	streaming bool
	quitting  bool

	// updates is the stream being rendered. Updates from older streams are
	// drained but ignored.
	updates <-chan session.Update

	notice    string
	noticeErr bool
	// info is shown below the transcript: help text or the model list.
	info string
}

// New returns a chat model driving b.
func New(ctx context.Context, b Backend, styles *ui.Styles) *Model {
	if styles == nil {
		styles = ui.DefaultStyles()
	}

	ta := textarea.New()
	ta.Placeholder = "Send a message (/help for commands)"
	ta.ShowLineNumbers = false
	ta.Prompt = "┃ "
	ta.CharLimit = 0
	ta.SetHeight(inputHeight)
	ta.SetWidth(defaultWidth)
	ta.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")
	ta.Focus()

	ki := textinput.New()
	ki.Placeholder = "sk-or-..."
	ki.Prompt = "API key: "
	ki.EchoMode = textinput.EchoPassword
	ki.EchoCharacter = '•'

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = styles.Spinner

	m := &Model{
		ctx:      ctx,
		backend:  b,
		styles:   styles,
		textarea: ta,
		keyInput: ki,
		spinner:  sp,
		viewport: viewport.New(defaultWidth, 20),
		width:    defaultWidth,
	}
	if !b.HasCredential() {
		m.openKeyInput()
	}
	return m
}

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textarea.Blink,
		listenForCredentialRequests(m.backend.CredentialRequests()),
	}
	if m.backend.HasCredential() && len(m.backend.Models()) == 0 {
		cmds = append(cmds, refreshModelsCmd(m.ctx, m.backend))
	}
	return tea.Batch(cmds...)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case streamUpdateMsg:
		return m.handleStreamUpdate(msg)

	case streamClosedMsg:
		if msg.updates == m.updates {
			m.streaming = false
			m.updates = nil
		}
		return m, nil

	case credentialRequestMsg:
		m.openKeyInput()
		m.notice = "An OpenRouter API key is required to chat."
		m.noticeErr = true
		return m, listenForCredentialRequests(m.backend.CredentialRequests())

	case keySavedMsg:
		if msg.err != nil {
			m.openKeyInput()
			return m.showNotice("Could not save key: "+msg.err.Error(), true)
		}
		m.info = m.renderModelList()
		m.refreshViewport()
		if _, ok := m.backend.SelectedModel(); !ok {
			return m.showNotice("Key saved, but no free models are available.", true)
		}
		return m.showNotice("Key saved.", false)

	case keyClearedMsg:
		if msg.err != nil {
			return m.showNotice("Could not remove key: "+msg.err.Error(), true)
		}
		m.info = m.renderModelList()
		m.refreshViewport()
		return m.showNotice("Key removed. Use /key to enter a new one.", false)

	case modelsLoadedMsg:
		if len(msg.models) == 0 {
			return m.showNotice("No free models available. Check your key with /key.", true)
		}
		m.info = m.renderModelList()
		m.refreshViewport()
		return m.showNotice(fmt.Sprintf("%d free models. Use /model <id> to switch.", len(msg.models)), false)

	case spinner.TickMsg:
		if !m.streaming {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refreshViewport()
		return m, cmd
	}

	return m, nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m.cmdQuit()
	}
	if m.keyMode {
		return m.handleKeyInput(msg)
	}

	switch msg.Type {
	case tea.KeyEsc:
		if m.backend.Cancel() {
			m.streaming = false
			m.updates = nil
			m.refreshViewport()
			return m.showNotice("Cancelled.", false)
		}
		m.info = ""
		m.refreshViewport()
		return m, nil

	case tea.KeyCtrlK:
		return m.cmdClear()

	case tea.KeyEnter:
		value := m.textarea.Value()
		if strings.HasPrefix(strings.TrimSpace(value), "/") {
			return m.ExecuteCommand(strings.TrimSpace(value))
		}
		return m.submit(value)
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m *Model) handleKeyInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.closeKeyInput()
		return m.showNotice("", false)
	case tea.KeyEnter:
		key := strings.TrimSpace(m.keyInput.Value())
		if key == "" {
			return m.showNotice("Key cannot be empty.", true)
		}
		m.closeKeyInput()
		m.notice = "Saving key and loading models..."
		m.noticeErr = false
		return m, saveKeyCmd(m.ctx, m.backend, key)
	}

	var cmd tea.Cmd
	m.keyInput, cmd = m.keyInput.Update(msg)
	return m, cmd
}

func (m *Model) submit(text string) (tea.Model, tea.Cmd) {
	if m.backend.Status().Busy() {
		return m.showNotice("A reply is still streaming (Esc to cancel).", true)
	}

	updates, err := m.backend.Submit(m.ctx, text)
	switch {
	case errors.Is(err, chatstore.ErrEmptyMessage):
		return m, nil
	case errors.Is(err, llm.ErrCredentialMissing):
		// The session signals a credential request; the key input opens when it arrives.
		return m, nil
	case errors.Is(err, llm.ErrNoModel):
		return m.showNotice("No model selected. Use /models to load the catalog.", true)
	case err != nil:
		m.refreshViewport()
		return m.showNotice(err.Error(), true)
	}

	m.textarea.Reset()
	m.streaming = true
	m.updates = updates
	m.notice = ""
	m.info = ""
	m.refreshViewport()
	return m, tea.Batch(waitForUpdate(updates), m.spinner.Tick)
}

func (m *Model) handleStreamUpdate(msg streamUpdateMsg) (tea.Model, tea.Cmd) {
	if msg.updates != m.updates {
		return m, waitForUpdate(msg.updates)
	}

	switch u := msg.update.(type) {
	case session.UpdateError:
		m.notice = u.Message
		m.noticeErr = true
	case session.UpdateDone:
		m.streaming = false
		m.updates = nil
		if u.Cancelled {
			m.notice = "Cancelled."
			m.noticeErr = false
		}
	}
	m.refreshViewport()
	return m, waitForUpdate(msg.updates)
}

func (m *Model) openKeyInput() {
	m.keyMode = true
	m.keyInput.Reset()
	m.keyInput.Focus()
	m.textarea.Blur()
}

func (m *Model) closeKeyInput() {
	m.keyMode = false
	m.keyInput.Blur()
	m.textarea.Focus()
}

func (m *Model) layout() {
	w := max(m.width, 20)
	m.textarea.SetWidth(w)
	m.keyInput.Width = w - len(m.keyInput.Prompt) - 1
	m.viewport.Width = w
	m.viewport.Height = max(m.height-chromeHeight, 3)
	m.refreshViewport()
}

func (m *Model) refreshViewport() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m *Model) renderTranscript() string {
	width := max(m.viewport.Width, 20)
	body := lipgloss.NewStyle().Width(width - 2)

	var b strings.Builder
	for _, turn := range m.backend.Transcript() {
		switch turn.Role {
		case chatstore.RoleUser:
			b.WriteString(m.styles.UserLabel.Render("You") + "\n")
			b.WriteString(ui.Indent(body.Render(turn.Content), "  "))
		case chatstore.RoleAssistant:
			label := "Assistant"
			if turn.Model != "" {
				label = turn.Model
			}
			b.WriteString(m.styles.AssistantLabel.Render(label) + "\n")
			switch {
			case turn.Failed:
				b.WriteString(ui.Indent(m.styles.Error.Render(body.Render(turn.Content)), "  "))
			case turn.Content == "" && m.streaming:
				b.WriteString("  " + m.spinner.View())
			default:
				b.WriteString(ui.Indent(body.Render(turn.Content), "  "))
			}
		}
		b.WriteString("\n\n")
	}
	if m.info != "" {
		b.WriteString(m.styles.Muted.Render(m.info))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) renderModelList() string {
	models := m.backend.Models()
	if len(models) == 0 {
		return ""
	}
	current, _ := m.backend.SelectedModel()
	idWidth := ui.ModelIDWidth(models, 48)

	var b strings.Builder
	for _, mdl := range models {
		b.WriteString(m.styles.FormatModelRow(mdl, mdl.ID == current.ID, idWidth, m.width))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderHeader() + "\n")
	b.WriteString(m.viewport.View() + "\n")

	switch {
	case m.notice == "":
		b.WriteString("\n")
	case m.noticeErr:
		b.WriteString(m.styles.Error.Render(m.notice) + "\n")
	default:
		b.WriteString(m.styles.Muted.Render(m.notice) + "\n")
	}

	if m.keyMode {
		b.WriteString(m.keyInput.View() + "\n")
		b.WriteString(m.styles.Muted.Render("Enter save · Esc dismiss"))
		return b.String()
	}
	b.WriteString(m.textarea.View() + "\n")
	b.WriteString(m.styles.Muted.Render("Enter send · Esc cancel · Ctrl+K clear · Ctrl+C quit"))
	return b.String()
}

func (m *Model) renderHeader() string {
	model := "no model"
	if selected, ok := m.backend.SelectedModel(); ok {
		model = selected.ID
	}
	status := m.backend.Status().String()
	if m.streaming {
		status = m.spinner.View() + " " + status
	}
	header := m.styles.Title.Render("orchat") + " " + m.styles.Muted.Render(model+" · "+status)
	return ansi.Truncate(header, max(m.width, 20), "…")
}
