package tui

import (
	"image"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/artwork/internal/domain"
)

// fakeLoader records calls and tracks a minimal mode.
type fakeLoader struct {
	mu     sync.Mutex
	calls  []string
	mode   domain.Mode
	images map[string]*domain.Image
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{mode: domain.ListMode{}, images: make(map[string]*domain.Image)}
}

func (f *fakeLoader) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeLoader) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeLoader) Image(ref string) *domain.Image { return f.images[ref] }

func (f *fakeLoader) ActivateList(refs []string) {
	f.record("list:" + strings.Join(refs, ","))
	f.mode = domain.ListMode{}
}

func (f *fakeLoader) PauseList() {
	f.record("pause-list")
	f.mode = domain.IdleMode{}
}

func (f *fakeLoader) ResumeList() {
	f.record("resume-list")
	f.mode = domain.ListMode{}
}

func (f *fakeLoader) ActivateDetail(id string, refs []string) {
	f.record("detail:" + id)
	f.mode = domain.DetailMode{EntityID: id}
}

func (f *fakeLoader) PauseDetail(id string) {
	f.record("pause-detail:" + id)
	f.mode = domain.IdleMode{}
}

func (f *fakeLoader) Mode() domain.Mode { return f.mode }

func testImage(w, h int) *domain.Image {
	return &domain.Image{Data: []byte{1, 2, 3}, Format: "png", Pixels: image.NewRGBA(image.Rect(0, 0, w, h))}
}

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model
}

func newTestModel(refs ...string) (Model, *fakeLoader) {
	loader := newFakeLoader()
	m := NewModel(loader, refs, make(chan domain.ImageMap, 1), nil)
	return m, loader
}

func TestCursorMovement(t *testing.T) {
	m, _ := newTestModel("/a.png", "/b.png", "/c.png")

	m = update(t, m, runeKey("j"))
	m = update(t, m, runeKey("j"))
	m = update(t, m, runeKey("j"))
	assert.Equal(t, "/c.png", m.selectedRef(), "cursor stops at the end")

	m = update(t, m, runeKey("g"))
	assert.Equal(t, "/a.png", m.selectedRef())

	m = update(t, m, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, "/a.png", m.selectedRef())
}

func TestEnterAndEscapeDriveDetailMode(t *testing.T) {
	m, loader := newTestModel("/a.png", "/b.png")

	m = update(t, m, runeKey("j"))
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, StateDetail, m.State)
	assert.Equal(t, "/b.png", m.detailRef)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, StateBrowsing, m.State)
	assert.Equal(t, []string{"detail:/b.png", "pause-detail:/b.png", "resume-list"}, loader.Calls())
}

func TestPauseAndResumeKeys(t *testing.T) {
	m, loader := newTestModel("/a.png")

	m = update(t, m, runeKey("p"))
	assert.Contains(t, m.renderHeader(), "PAUSED")
	m = update(t, m, runeKey("r"))
	assert.Contains(t, m.renderHeader(), "LIST")

	assert.Equal(t, []string{"pause-list", "resume-list"}, loader.Calls())
}

func TestFilter(t *testing.T) {
	m, _ := newTestModel("/posters/alpha.png", "/posters/beta.png", "/banners/alpine.jpg")

	m = update(t, m, runeKey("/"))
	assert.Equal(t, StateFiltering, m.State)

	for _, r := range "alp" {
		m = update(t, m, runeKey(string(r)))
	}
	require.Len(t, m.rows, 2)
	for _, r := range m.rows {
		assert.NotEqual(t, "/posters/beta.png", m.refs[r.Index])
		assert.NotEmpty(t, r.MatchedIndexes)
	}

	// Keys typed while filtering never reach the loader
	m = update(t, m, runeKey("p"))
	assert.Equal(t, StateFiltering, m.State)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, StateBrowsing, m.State)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Len(t, m.rows, 3, "escape clears the filter")
}

func TestImagesChangedUpdatesRows(t *testing.T) {
	m, _ := newTestModel("/a.png", "/b.png")
	m.Width, m.Height = 80, 20

	m = update(t, m, ImagesChangedMsg{Images: domain.ImageMap{"/a.png": testImage(3, 2)}})

	view := m.View()
	assert.Contains(t, view, "3x2 png")
	assert.Contains(t, view, "1/2 loaded")
}

func TestDetailViewRendersPreview(t *testing.T) {
	m, loader := newTestModel("/a.png")
	m.Width, m.Height = 40, 20
	loader.images["/a.png"] = testImage(8, 8)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	view := m.View()
	assert.Contains(t, view, "8x8 png, 3 bytes")
	assert.Contains(t, view, halfBlock)
}

func TestQuit(t *testing.T) {
	m, _ := newTestModel("/a.png")
	_, cmd := m.Update(runeKey("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestChannelObserverKeepsNewest(t *testing.T) {
	ch := make(chan domain.ImageMap, 1)
	obs := NewChannelObserver(ch)

	obs.OnImagesChanged(domain.ImageMap{"a": nil})
	obs.OnImagesChanged(domain.ImageMap{"a": nil, "b": nil})

	got := <-ch
	assert.Len(t, got, 2)
	select {
	case <-ch:
		t.Fatal("stale snapshot left in channel")
	default:
	}
}

func TestWaitForImagesCmd(t *testing.T) {
	ch := make(chan domain.ImageMap, 1)
	ch <- domain.ImageMap{"a": nil}

	msg := WaitForImagesCmd(ch)()
	changed, ok := msg.(ImagesChangedMsg)
	require.True(t, ok)
	assert.Contains(t, changed.Images, "a")

	close(ch)
	assert.Equal(t, updatesClosedMsg{}, WaitForImagesCmd(ch)())
}

func TestRenderPreviewFits(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 50))

	out := renderPreview(img, 20, 10)
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 5, "20x10 pixels in half-block rows")
	for _, line := range lines {
		assert.Equal(t, 20, lipgloss.Width(line))
	}

	// Never scaled up
	small := renderPreview(image.NewRGBA(image.Rect(0, 0, 2, 2)), 20, 10)
	assert.Equal(t, 2, lipgloss.Width(small))
	assert.Empty(t, renderPreview(nil, 10, 10))
}
