package chat

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"
	chatstore "github.com/samsaffron/orchat/internal/chat"
	"github.com/samsaffron/orchat/internal/llm"
)

// Command represents a slash command
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
}

// AllCommands returns all available slash commands
func AllCommands() []Command {
	return []Command{
		{
			Name:        "help",
			Aliases:     []string{"h", "?"},
			Description: "Show help and available commands",
			Usage:       "/help",
		},
		{
			Name:        "key",
			Description: "Enter or replace the API key (/key clear forgets it)",
			Usage:       "/key [clear]",
		},
		{
			Name:        "models",
			Aliases:     []string{"ls"},
			Description: "Refresh and list free models",
			Usage:       "/models",
		},
		{
			Name:        "model",
			Aliases:     []string{"m"},
			Description: "Select a model by id or fuzzy name",
			Usage:       "/model <id>",
		},
		{
			Name:        "clear",
			Aliases:     []string{"c"},
			Description: "Clear conversation history",
			Usage:       "/clear",
		},
		{
			Name:        "quit",
			Aliases:     []string{"q", "exit"},
			Description: "Exit chat",
			Usage:       "/quit",
		},
	}
}

// CommandSource implements fuzzy.Source for command searching
type CommandSource []Command

func (c CommandSource) String(i int) string {
	return c[i].Name
}

func (c CommandSource) Len() int {
	return len(c)
}

// FilterCommands returns commands matching the query using fuzzy search
func FilterCommands(query string) []Command {
	commands := AllCommands()
	query = strings.TrimPrefix(query, "/")
	if query == "" {
		return commands
	}

	queryLower := strings.ToLower(query)
	if cmd, ok := lookupCommand(queryLower); ok {
		return []Command{cmd}
	}

	var result []Command
	for _, match := range fuzzy.FindFrom(query, CommandSource(commands)) {
		result = append(result, commands[match.Index])
	}
	return result
}

func lookupCommand(name string) (Command, bool) {
	for _, c := range AllCommands() {
		if c.Name == name {
			return c, true
		}
		for _, alias := range c.Aliases {
			if alias == name {
				return c, true
			}
		}
	}
	return Command{}, false
}

// ExecuteCommand handles slash command execution
func (m *Model) ExecuteCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}
	m.textarea.Reset()

	cmdName := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	args := parts[1:]

	cmd, ok := lookupCommand(cmdName)
	if !ok {
		// Unique prefix match
		var prefixMatches []Command
		for _, c := range AllCommands() {
			if strings.HasPrefix(c.Name, cmdName) {
				prefixMatches = append(prefixMatches, c)
			}
		}
		switch len(prefixMatches) {
		case 0:
			return m.showNotice(fmt.Sprintf("Unknown command: /%s (try /help)", cmdName), true)
		case 1:
			cmd = prefixMatches[0]
		default:
			var names []string
			for _, c := range prefixMatches {
				names = append(names, "/"+c.Name)
			}
			return m.showNotice(fmt.Sprintf("Ambiguous command: /%s, did you mean %s?", cmdName, strings.Join(names, ", ")), true)
		}
	}

	switch cmd.Name {
	case "help":
		return m.cmdHelp()
	case "key":
		return m.cmdKey(args)
	case "models":
		return m.cmdModels()
	case "model":
		return m.cmdModel(args)
	case "clear":
		return m.cmdClear()
	case "quit":
		return m.cmdQuit()
	default:
		return m.showNotice(fmt.Sprintf("Command /%s is not available.", cmd.Name), true)
	}
}

func (m *Model) showNotice(content string, isErr bool) (tea.Model, tea.Cmd) {
	m.notice = content
	m.noticeErr = isErr
	return m, nil
}

func (m *Model) cmdHelp() (tea.Model, tea.Cmd) {
	var b strings.Builder
	for _, c := range AllCommands() {
		fmt.Fprintf(&b, "%-12s %s\n", c.Usage, c.Description)
	}
	b.WriteString("Enter send · Alt+Enter newline · Esc cancel · Ctrl+K clear · Ctrl+C quit")
	m.info = b.String()
	m.refreshViewport()
	return m, nil
}

func (m *Model) cmdKey(args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		m.openKeyInput()
		return m, nil
	}
	if !strings.EqualFold(args[0], "clear") {
		return m.showNotice("Usage: /key [clear]", true)
	}

	if m.backend.Cancel() {
		m.streaming = false
		m.updates = nil
	}
	m.notice = "Removing key..."
	m.noticeErr = false
	return m, clearKeyCmd(m.ctx, m.backend)
}

func (m *Model) cmdModels() (tea.Model, tea.Cmd) {
	m.notice = "Loading models..."
	m.noticeErr = false
	return m, refreshModelsCmd(m.ctx, m.backend)
}

func (m *Model) cmdModel(args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		return m.cmdModels()
	}

	query := args[0]
	models := m.backend.Models()
	id := query
	if indexOfModel(models, query) < 0 {
		matches := llm.FilterModels(models, query)
		if len(matches) == 0 {
			return m.showNotice(fmt.Sprintf("No free model matches %q (try /models)", query), true)
		}
		id = matches[0].ID
	}

	if err := m.backend.SelectModel(id); err != nil {
		return m.showNotice(err.Error(), true)
	}
	return m.showNotice("Using "+id, false)
}

func (m *Model) cmdClear() (tea.Model, tea.Cmd) {
	if err := m.backend.Clear(); err != nil {
		if errors.Is(err, chatstore.ErrBusy) {
			return m.showNotice("Cannot clear while a reply is streaming (Esc to cancel)", true)
		}
		return m.showNotice(err.Error(), true)
	}
	m.info = ""
	m.refreshViewport()
	return m.showNotice("Conversation cleared.", false)
}

func (m *Model) cmdQuit() (tea.Model, tea.Cmd) {
	m.backend.Cancel()
	m.quitting = true
	return m, tea.Quit
}

func indexOfModel(models []llm.ModelDescriptor, id string) int {
	for i, mdl := range models {
		if mdl.ID == id {
			return i
		}
	}
	return -1
}
