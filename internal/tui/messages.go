package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/artwork/internal/domain"
)

// Message types for the TUI

// ImagesChangedMsg carries a newly published image map
type ImagesChangedMsg struct {
	Images domain.ImageMap
}

// updatesClosedMsg signals that the observer channel was closed
type updatesClosedMsg struct{}

// WaitForImagesCmd waits for the next snapshot from the observer channel
func WaitForImagesCmd(ch <-chan domain.ImageMap) tea.Cmd {
	return func() tea.Msg {
		images, ok := <-ch
		if !ok {
			return updatesClosedMsg{}
		}
		return ImagesChangedMsg{Images: images}
	}
}
