// Package tui is the interactive screen for browsing references and their images.
package tui

import (
	"log/slog"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/artwork/internal/domain"
	"github.com/mmcdole/artwork/internal/tui/styles"
)

// Loader is the part of the load coordinator the screen drives.
type Loader interface {
	Image(ref string) *domain.Image
	ActivateList(refs []string)
	PauseList()
	ResumeList()
	ActivateDetail(entityID string, refs []string)
	PauseDetail(entityID string)
	Mode() domain.Mode
}

// ApplicationState represents the current state of the screen
type ApplicationState int

const (
	StateBrowsing ApplicationState = iota
	StateFiltering
	StateDetail
)

// Model is the Bubble Tea model
type Model struct {
	State  ApplicationState
	Width  int
	Height int

	loader  Loader
	updates <-chan domain.ImageMap
	logger  *slog.Logger
	keys    KeyMap

	refs   []string
	index  refIndex
	images domain.ImageMap

	// List state
	rows   []row
	cursor int
	offset int

	// Detail state
	detailRef string

	spinner spinner.Model
	filter  textinput.Model
}

// NewModel creates the screen for refs. updates receives published image maps.
func NewModel(loader Loader, refs []string, updates <-chan domain.ImageMap, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = styles.SpinnerStyle

	ti := textinput.New()
	ti.Prompt = "/"
	ti.PromptStyle = styles.FilterPromptStyle
	ti.Placeholder = "filter references"
	ti.CharLimit = 256

	index := newRefIndex(refs)
	return Model{
		State:   StateBrowsing,
		loader:  loader,
		updates: updates,
		logger:  logger,
		keys:    DefaultKeyMap(),
		refs:    refs,
		index:   index,
		images:  make(domain.ImageMap),
		rows:    filterRows(index, ""),
		spinner: sp,
		filter:  ti,
	}
}

// Init starts the spinner and the image update listener
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, WaitForImagesCmd(m.updates))
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.clampCursor()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case ImagesChangedMsg:
		m.images = msg.Images
		return m, WaitForImagesCmd(m.updates)

	case updatesClosedMsg:
		return m, nil
	}
	return m, nil
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.State == StateFiltering {
		return m.handleFilterKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Escape):
		if m.State == StateDetail {
			m.closeDetail()
			return m, nil
		}
		if m.filter.Value() != "" {
			m.filter.SetValue("")
			m.applyFilter()
		}
		return m, nil
	}

	if m.State == StateDetail {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.Home):
		m.cursor = 0
		m.clampCursor()
	case key.Matches(msg, m.keys.End):
		m.cursor = len(m.rows) - 1
		m.clampCursor()
	case key.Matches(msg, m.keys.Enter):
		m.openDetail()
	case key.Matches(msg, m.keys.Filter):
		m.State = StateFiltering
		return m, m.filter.Focus()
	case key.Matches(msg, m.keys.Pause):
		m.loader.PauseList()
	case key.Matches(msg, m.keys.Resume):
		m.loader.ResumeList()
	}
	return m, nil
}

func (m Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filter.SetValue("")
		m.filter.Blur()
		m.State = StateBrowsing
		m.applyFilter()
		return m, nil
	case tea.KeyEnter:
		m.filter.Blur()
		m.State = StateBrowsing
		return m, nil
	case tea.KeyCtrlC:
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

// === State helpers ===

func (m *Model) applyFilter() {
	m.rows = filterRows(m.index, m.filter.Value())
	m.cursor = 0
	m.offset = 0
}

func (m *Model) moveCursor(delta int) {
	m.cursor += delta
	m.clampCursor()
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	height := m.listHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if height > 0 && m.cursor >= m.offset+height {
		m.offset = m.cursor - height + 1
	}
}

// selectedRef returns the reference under the cursor, or "" for an empty list.
func (m Model) selectedRef() string {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return ""
	}
	return m.refs[m.rows[m.cursor].Index]
}

func (m *Model) openDetail() {
	ref := m.selectedRef()
	if ref == "" {
		return
	}
	m.logger.Debug("opening detail", "ref", ref)
	m.detailRef = ref
	m.State = StateDetail
	m.loader.ActivateDetail(ref, []string{ref})
}

func (m *Model) closeDetail() {
	m.loader.PauseDetail(m.detailRef)
	m.loader.ResumeList()
	m.detailRef = ""
	m.State = StateBrowsing
}

// image returns the published image for ref, or the cached one in detail view.
func (m Model) image(ref string) *domain.Image {
	if img, ok := m.images[ref]; ok {
		return img
	}
	if m.State == StateDetail && ref == m.detailRef {
		return m.loader.Image(ref)
	}
	return nil
}
