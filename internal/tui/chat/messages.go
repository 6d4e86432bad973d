package chat

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/samsaffron/orchat/internal/llm"
	"github.com/samsaffron/orchat/internal/session"
)

// streamUpdateMsg carries one session update into the UI loop.
type streamUpdateMsg struct {
	update  session.Update
	updates <-chan session.Update
}

// streamClosedMsg is sent once the update channel has been drained.
type streamClosedMsg struct {
	updates <-chan session.Update
}

// credentialRequestMsg is sent when a submit was refused for lack of a key.
type credentialRequestMsg struct{}

type modelsLoadedMsg struct {
	models []llm.ModelDescriptor
}

type keySavedMsg struct {
	err error
}

type keyClearedMsg struct {
	err error
}

func waitForUpdate(updates <-chan session.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return streamClosedMsg{updates: updates}
		}
		return streamUpdateMsg{update: u, updates: updates}
	}
}

func listenForCredentialRequests(requests <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-requests
		return credentialRequestMsg{}
	}
}

func refreshModelsCmd(ctx context.Context, b Backend) tea.Cmd {
	return func() tea.Msg {
		return modelsLoadedMsg{models: b.RefreshModels(ctx)}
	}
}

func saveKeyCmd(ctx context.Context, b Backend, key string) tea.Cmd {
	return func() tea.Msg {
		return keySavedMsg{err: b.SaveCredential(ctx, key)}
	}
}

func clearKeyCmd(ctx context.Context, b Backend) tea.Cmd {
	return func() tea.Msg {
		return keyClearedMsg{err: b.ClearCredential(ctx)}
	}
}
