// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

// Package tui is the terminal browser: an endless anime list driven by a
// pagination engine, with favorite stars and a fuzzy title filter.
package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/tomtom215/animescope/internal/favorites"
	"github.com/tomtom215/animescope/internal/jikan"
	"github.com/tomtom215/animescope/internal/models"
	"github.com/tomtom215/animescope/internal/paginate"
)

// chromeLines is the space taken by the frame, header and footer.
const chromeLines = 6

// Options configures a browser Model.
type Options struct {
	Title   string
	Source  paginate.Source[models.CatalogItem]
	Config  paginate.Config
	Overlay *favorites.Overlay // nil hides favorite toggling
	Details DetailsFunc        // nil disables the detail view
}

// Model is the browsing screen.
type Model struct {
	title   string
	engine  *paginate.Engine[models.CatalogItem]
	buffer  *Buffer[models.CatalogItem]
	overlay *favorites.Overlay
	details DetailsFunc

	rows    []paginate.Annotated[models.CatalogItem]
	visible []int // indices into rows while filtering
	cursor  int   // index into the shown list
	offset  int
	width   int
	height  int

	state   paginate.State
	pending bool
	status  string
	errText string

	filtering bool
	filter    textinput.Model
	spinner   spinner.Model

	shown *models.Details
}

// New creates a Model and its engine. Call Close when the program exits.
func New(opts Options) *Model {
	buf := &Buffer[models.CatalogItem]{}
	engineOpts := []paginate.Option[models.CatalogItem]{paginate.WithRenderer[models.CatalogItem](buf)}
	if opts.Overlay != nil {
		engineOpts = append(engineOpts, paginate.WithAnnotator[models.CatalogItem](opts.Overlay))
	}

	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "filter titles"
	ti.CharLimit = 64

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = AccentStyle

	title := opts.Title
	if title == "" {
		title = "Animescope"
	}

	return &Model{
		title:   title,
		engine:  paginate.New(opts.Source, func(it models.CatalogItem) int { return it.ID }, opts.Config, engineOpts...),
		buffer:  buf,
		overlay: opts.Overlay,
		details: opts.Details,
		filter:  ti,
		spinner: sp,
	}
}

// Close stops the engine.
func (m *Model) Close() {
	m.engine.Close()
}

// Init loads the first page.
func (m *Model) Init() tea.Cmd {
	m.pending = true
	return tea.Batch(LoadNextCmd(m.engine), m.spinner.Tick)
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ensureVisible()
		return m, nil

	case spinner.TickMsg:
		if !m.pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case LoadedMsg:
		m.pending = false
		m.applyBuffered()
		m.state = m.engine.State()
		if msg.Err != nil {
			m.errText = describe(msg.Err)
		} else if !msg.Result.Skipped && !msg.Result.Stale {
			m.errText = ""
		}
		return m, nil

	case ToggledMsg:
		if msg.Err != nil {
			m.errText = describe(msg.Err)
			return m, nil
		}
		m.errText = ""
		if msg.Favorite {
			m.status = fmt.Sprintf("%s %s added to favorites", StarChar, msg.Title)
		} else {
			m.status = fmt.Sprintf("%s removed from favorites", msg.Title)
		}
		return m, nil

	case DetailsMsg:
		if msg.Err != nil {
			m.errText = describe(msg.Err)
			return m, nil
		}
		m.shown = msg.Details
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}

	if m.filtering {
		switch key {
		case "enter":
			m.filtering = false
			m.filter.Blur()
			return m, nil
		case "esc":
			m.clearFilter()
			return m, nil
		}
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.applyFilter()
		return m, cmd
	}

	if m.shown != nil {
		switch key {
		case "q":
			return m, tea.Quit
		case "esc", "enter", "backspace":
			m.shown = nil
		}
		return m, nil
	}

	h := m.listHeight()
	switch key {
	case "q":
		return m, tea.Quit
	case "j", "down":
		return m, m.move(1)
	case "k", "up":
		return m, m.move(-1)
	case "ctrl+d", "pgdown":
		return m, m.move(h / 2)
	case "ctrl+u", "pgup":
		return m, m.move(-h / 2)
	case "g", "home":
		return m, m.move(-m.shownLen())
	case "G", "end":
		return m, m.move(m.shownLen())
	case "n", "r":
		return m, m.loadNext()
	case "f", " ":
		return m, m.toggle()
	case "/":
		m.filtering = true
		return m, m.filter.Focus()
	case "esc":
		m.clearFilter()
	case "enter":
		if it, ok := m.selected(); ok && m.details != nil {
			return m, DetailsCmd(m.details, it.ID)
		}
	}
	return m, nil
}

// =====================================================
// List state
// =====================================================

// applyBuffered replays renderer calls made since the last load.
func (m *Model) applyBuffered() {
	rows, removed := Apply(m.rows, m.buffer.Drain())
	m.rows = rows
	switch {
	case removed < 0:
		m.cursor, m.offset = 0, 0
	case removed > 0 && m.visible == nil:
		m.cursor = max(0, m.cursor-removed)
		m.offset = max(0, m.offset-removed)
	}
	if m.visible != nil {
		m.applyFilter()
		return
	}
	m.clampCursor()
}

func (m *Model) shownLen() int {
	if m.visible != nil {
		return len(m.visible)
	}
	return len(m.rows)
}

// rowIndex maps a shown position to an index into rows.
func (m *Model) rowIndex(i int) int {
	if m.visible != nil {
		return m.visible[i]
	}
	return i
}

func (m *Model) selected() (models.CatalogItem, bool) {
	if m.cursor < 0 || m.cursor >= m.shownLen() {
		return models.CatalogItem{}, false
	}
	return m.rows[m.rowIndex(m.cursor)].Item, true
}

func (m *Model) listHeight() int {
	if m.height == 0 {
		return 20
	}
	return max(1, m.height-chromeLines)
}

func (m *Model) clampCursor() {
	n := m.shownLen()
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.ensureVisible()
}

func (m *Model) ensureVisible() {
	h := m.listHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

// viewport returns the visible rows as engine positions.
func (m *Model) viewport() paginate.Viewport {
	n := m.shownLen()
	if n == 0 {
		return paginate.Viewport{}
	}
	last := min(m.offset+m.listHeight(), n) - 1
	return paginate.Viewport{First: m.rowIndex(m.offset), Last: m.rowIndex(last)}
}

// move shifts the cursor and reports the new viewport to the engine.
func (m *Model) move(delta int) tea.Cmd {
	m.cursor += delta
	m.clampCursor()
	if m.pending || m.state == paginate.Exhausted || m.shownLen() == 0 {
		return nil
	}
	m.pending = true
	return tea.Batch(ScrollCmd(m.engine, m.viewport()), m.spinner.Tick)
}

func (m *Model) loadNext() tea.Cmd {
	if m.pending || m.state == paginate.Exhausted {
		return nil
	}
	m.pending = true
	m.errText = ""
	return tea.Batch(LoadNextCmd(m.engine), m.spinner.Tick)
}

func (m *Model) toggle() tea.Cmd {
	it, ok := m.selected()
	if !ok {
		return nil
	}
	if m.overlay == nil {
		m.errText = describe(favorites.ErrUnauthenticated)
		return nil
	}
	return ToggleCmd(m.overlay, it)
}

func (m *Model) isFavorite(row paginate.Annotated[models.CatalogItem]) bool {
	if m.overlay != nil {
		return m.overlay.IsFavorite(row.Item.ID)
	}
	return row.Favorite
}

// =====================================================
// Filter
// =====================================================

func (m *Model) applyFilter() {
	query := strings.TrimSpace(m.filter.Value())
	if query == "" {
		m.visible = nil
		m.clampCursor()
		return
	}

	titles := make([]string, len(m.rows))
	for i, r := range m.rows {
		titles[i] = strings.ToLower(r.Item.Title)
	}
	matches := fuzzy.Find(strings.ToLower(query), titles)
	m.visible = make([]int, len(matches))
	for i, match := range matches {
		m.visible[i] = match.Index
	}
	m.cursor = 0
	m.offset = 0
}

func (m *Model) clearFilter() {
	m.filtering = false
	m.filter.Blur()
	m.filter.SetValue("")
	m.visible = nil
	m.clampCursor()
}

// =====================================================
// View
// =====================================================

// View renders the screen.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render(m.title))
	b.WriteString(DimStyle.Render(fmt.Sprintf("  %d loaded", len(m.rows))))
	if pruned := m.engine.Offset(); pruned > 0 {
		b.WriteString(DimStyle.Render(fmt.Sprintf(" (%d earlier dropped)", pruned)))
	}
	if m.pending {
		b.WriteString(" " + m.spinner.View())
	}
	b.WriteString("\n\n")

	if m.shown != nil {
		b.WriteString(m.detailsView())
	} else {
		b.WriteString(m.listView())
	}

	b.WriteString("\n")
	b.WriteString(m.footerView())

	frame := FrameStyle
	if m.width > 2 {
		frame = frame.Width(m.width - 2)
	}
	return frame.Render(b.String())
}

func (m *Model) listView() string {
	n := m.shownLen()
	if n == 0 {
		switch {
		case m.pending:
			return DimStyle.Render("Loading...")
		case m.visible != nil:
			return DimStyle.Render("No titles match the filter")
		default:
			return DimStyle.Render("No titles")
		}
	}

	width := m.width - 4
	if width <= 0 {
		width = 80
	}
	end := min(m.offset+m.listHeight(), n)
	lines := make([]string, 0, end-m.offset+1)
	for i := m.offset; i < end; i++ {
		row := m.rows[m.rowIndex(i)]
		star := NoStar
		if m.isFavorite(row) {
			star = Star
		}
		text := truncate(row.Item.Title, width-24)
		meta := DimStyle.Render(itemMeta(row.Item))
		line := star + " " + text + "  " + meta
		if i == m.cursor {
			line = star + " " + SelectedStyle.Render(text) + "  " + meta
		}
		lines = append(lines, line)
	}
	if m.state == paginate.Exhausted && end == n && m.visible == nil {
		lines = append(lines, DimStyle.Render("  end of list"))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) detailsView() string {
	d := m.shown
	var b strings.Builder
	b.WriteString(AccentStyle.Render(d.Title))
	if d.TitleJA != nil && *d.TitleJA != "" {
		b.WriteString(SubtitleStyle.Render("  " + *d.TitleJA))
	}
	b.WriteString("\n")
	b.WriteString(DimStyle.Render(itemMeta(d.CatalogItem)))
	if d.Rank != nil {
		b.WriteString(DimStyle.Render(fmt.Sprintf(" · rank #%d", *d.Rank)))
	}
	b.WriteString("\n")
	if len(d.Studios) > 0 {
		b.WriteString(SubtitleStyle.Render("Studios: " + strings.Join(d.Studios, ", ")))
		b.WriteString("\n")
	}
	if len(d.Genres) > 0 {
		names := make([]string, len(d.Genres))
		for i, g := range d.Genres {
			names[i] = g.Name
		}
		b.WriteString(SubtitleStyle.Render("Genres: " + strings.Join(names, ", ")))
		b.WriteString("\n")
	}
	if d.Synopsis != nil {
		b.WriteString("\n")
		w := m.width - 4
		if w <= 0 {
			w = 80
		}
		b.WriteString(lipgloss.NewStyle().Width(w).Render(*d.Synopsis))
		b.WriteString("\n")
	}
	if d.Source == models.SourceCache {
		b.WriteString(DimStyle.Render("(from local cache, catalog unavailable)"))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) footerView() string {
	var lines []string
	switch {
	case m.filtering:
		lines = append(lines, m.filter.View())
	case m.visible != nil:
		lines = append(lines, DimStyle.Render(fmt.Sprintf("filter: %q (%d matches, esc clears)", m.filter.Value(), len(m.visible))))
	}
	if m.errText != "" {
		lines = append(lines, ErrorStyle.Render(m.errText))
	} else if m.status != "" {
		lines = append(lines, SuccessStyle.Render(m.status))
	}
	if m.shown != nil {
		lines = append(lines, DimStyle.Render("esc back · q quit"))
	} else {
		lines = append(lines, DimStyle.Render("j/k move · f favorite · / filter · enter details · n more · q quit"))
	}
	return strings.Join(lines, "\n")
}

func itemMeta(it models.CatalogItem) string {
	parts := make([]string, 0, 4)
	if it.Score != nil {
		parts = append(parts, fmt.Sprintf("%.2f", *it.Score))
	}
	if it.Year != nil {
		parts = append(parts, fmt.Sprintf("%d", *it.Year))
	}
	if it.Episodes != nil {
		parts = append(parts, fmt.Sprintf("%d ep", *it.Episodes))
	}
	if it.Status != "" && it.Status != models.StatusUnknown {
		parts = append(parts, string(it.Status))
	}
	return strings.Join(parts, " · ")
}

func truncate(s string, width int) string {
	if width < 8 {
		width = 8
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}

// describe turns an error into a status line.
func describe(err error) string {
	switch {
	case errors.Is(err, favorites.ErrUnauthenticated):
		return "Log in to manage favorites (animescope login)"
	case errors.Is(err, favorites.ErrToggleInProgress):
		return "Still saving that favorite, try again"
	case errors.Is(err, jikan.ErrTransientUpstream):
		return "Catalog temporarily unavailable, press r to retry"
	default:
		return "Error: " + err.Error()
	}
}
