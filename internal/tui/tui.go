// Package tui renders the clock in a terminal and turns mouse and keyboard
// activity into clock input.
package tui

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sweeney/magic-clock/internal/gesture"
	"github.com/sweeney/magic-clock/internal/logic"
	"github.com/sweeney/magic-clock/internal/status"
	"github.com/sweeney/magic-clock/internal/trigger"
)

// refresh is how often the terminal picks up the latest frame.
const refresh = time.Second / 30

// Program runs the terminal UI. It is a render sink: the event loop hands it
// snapshots and events without ever blocking on the terminal.
type Program struct {
	prog *tea.Program
	feed *feed
}

// feed holds what the event loop produced since the last refresh.
type feed struct {
	mu     sync.Mutex
	snap   status.Snapshot
	fresh  bool
	events []logic.Event
}

func (f *feed) take() (status.Snapshot, bool, []logic.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, fresh, events := f.snap, f.fresh, f.events
	f.fresh = false
	f.events = nil
	return snap, fresh, events
}

// New creates a terminal UI that delivers input on inputs, stamped by now.
// Input is dropped once done is closed.
func New(inputs chan<- trigger.Input, done <-chan struct{}, now func() time.Time, opts ...tea.ProgramOption) *Program {
	f := &feed{}
	m := NewModel(inputs, done, now)
	m.feed = f
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithMouseCellMotion()}, opts...)
	return &Program{prog: tea.NewProgram(m, opts...), feed: f}
}

// Render records the latest snapshot.
func (p *Program) Render(snap status.Snapshot) {
	p.feed.mu.Lock()
	p.feed.snap = snap
	p.feed.fresh = true
	p.feed.mu.Unlock()
}

// Notify queues events for the next refresh.
func (p *Program) Notify(snap status.Snapshot, events []logic.Event) {
	p.feed.mu.Lock()
	p.feed.snap = snap
	p.feed.fresh = true
	p.feed.events = append(p.feed.events, events...)
	p.feed.mu.Unlock()
}

// Run blocks until the UI exits.
func (p *Program) Run() error {
	_, err := p.prog.Run()
	return err
}

// Quit stops the UI.
func (p *Program) Quit() {
	p.prog.Quit()
}

type refreshMsg struct{}

func tick() tea.Cmd {
	return tea.Tick(refresh, func(time.Time) tea.Msg { return refreshMsg{} })
}

// frameMsg and eventsMsg deliver updates directly; used by tests.
type frameMsg status.Snapshot

type eventsMsg []logic.Event

// extra menu entries after the settings actions
var menuTail = []string{"Calibrar", "Reiniciar", "Cerrar menú"}

// Model is the bubbletea model.
type Model struct {
	inputs chan<- trigger.Input
	done   <-chan struct{}
	now    func() time.Time
	feed   *feed

	snap          status.Snapshot
	width, height int
	menuOpen      bool
	cursor        int
	shakeHigh     bool
}

// NewModel creates a model. Exported for tests and embedding.
func NewModel(inputs chan<- trigger.Input, done <-chan struct{}, now func() time.Time) Model {
	return Model{inputs: inputs, done: done, now: now}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

// send blocks until the event loop takes in, or gives up once the loop is
// gone so Update never wedges the program.
func (m Model) send(in trigger.Input) {
	if m.inputs == nil {
		return
	}
	select {
	case m.inputs <- in:
	case <-m.done:
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case refreshMsg:
		if m.feed == nil {
			return m, tick()
		}
		snap, fresh, events := m.feed.take()
		if fresh {
			m.snap = snap
		}
		if quit := m.handleEvents(events); quit {
			return m, tea.Quit
		}
		return m, tick()

	case frameMsg:
		m.snap = status.Snapshot(msg)
		return m, nil

	case eventsMsg:
		if m.handleEvents(msg) {
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.send(trigger.ViewportInput{Width: float64(msg.Width), Height: float64(msg.Height)})
		return m, nil

	case tea.MouseMsg:
		if m.menuOpen || msg.Button != tea.MouseButtonLeft && msg.Action != tea.MouseActionRelease {
			return m, nil
		}
		kind := gesture.PointerMove
		switch msg.Action {
		case tea.MouseActionPress:
			kind = gesture.PointerDown
		case tea.MouseActionRelease:
			kind = gesture.PointerUp
		}
		m.send(trigger.PointerInput{Event: gesture.PointerEvent{
			Kind:   kind,
			Points: []gesture.Point{{X: float64(msg.X), Y: float64(msg.Y)}},
			Time:   m.now(),
		}})
		return m, nil

	case tea.KeyMsg:
		if m.menuOpen {
			return m.menuKey(msg)
		}
		return m.key(msg)
	}
	return m, nil
}

// handleEvents reacts to menu events and reports whether the UI should quit.
func (m *Model) handleEvents(events []logic.Event) bool {
	for _, e := range events {
		switch e.Type {
		case logic.EventOpenSettings:
			m.menuOpen = true
			m.cursor = 0
		case logic.EventCloseApp:
			return true
		}
	}
	return false
}

func (m Model) key(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := msg.String()
	if k, ok := logic.ParseKey(s); ok {
		m.send(trigger.KeyInput{Key: k})
		return m, nil
	}
	switch s {
	case "t", " ":
		m.send(trigger.ButtonInput{})
	case "s":
		// Two samples further apart than the highest sensitivity. The order
		// alternates so the first sample never repeats the previous jump.
		lo, hi := 0.0, 50.0
		if m.shakeHigh {
			lo, hi = hi, lo
		}
		m.shakeHigh = !m.shakeHigh
		now := m.now()
		m.send(trigger.MotionInput{Sample: gesture.MotionSample{X: lo, Time: now}})
		m.send(trigger.MotionInput{Sample: gesture.MotionSample{X: hi, Time: now}})
	case "m":
		m.send(trigger.CommandInput{Command: trigger.CommandOpenSettings})
	case "r":
		m.send(trigger.CommandInput{Command: trigger.CommandReset})
	case "c":
		m.send(trigger.CommandInput{Command: trigger.CommandCalibrate})
	case "q", "ctrl+c":
		m.send(trigger.CommandInput{Command: trigger.CommandClose})
	}
	return m, nil
}

func (m Model) menuKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := len(trigger.MenuActions) + len(menuTail)
	switch msg.String() {
	case "up", "k":
		m.cursor = (m.cursor + n - 1) % n
	case "down", "j":
		m.cursor = (m.cursor + 1) % n
	case "esc", "m":
		m.menuOpen = false
	case "ctrl+c":
		m.send(trigger.CommandInput{Command: trigger.CommandClose})
	case "enter", " ":
		if m.cursor < len(trigger.MenuActions) {
			m.send(trigger.MenuInput{Action: trigger.MenuActions[m.cursor]})
			return m, nil
		}
		switch m.cursor - len(trigger.MenuActions) {
		case 0:
			m.send(trigger.CommandInput{Command: trigger.CommandCalibrate})
		case 1:
			m.send(trigger.CommandInput{Command: trigger.CommandReset})
		}
		m.menuOpen = false
	}
	return m, nil
}

var (
	timeStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))
	dateStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	keyStyle    = lipgloss.NewStyle().Faint(true)
	menuStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 2).Foreground(lipgloss.Color("255"))
	cursorStyle = lipgloss.NewStyle().Reverse(true)
	debugStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	if m.menuOpen {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.menuView())
	}

	face := m.snap.Face()
	if face.KeypadAlpha > 0.3 {
		return m.hintView(face)
	}

	var blocks []string
	for i, line := range face.Lines {
		if isClock(line) {
			blocks = append(blocks, timeStyle.Render(spaced(line)))
		} else {
			blocks = append(blocks, dateStyle.Render(line))
		}
		if i < len(face.Lines)-1 {
			blocks = append(blocks, "")
		}
	}
	if m.snap.Settings.Debug {
		blocks = append(blocks, "", debugStyle.Render(m.debugLine()))
	}

	body := lipgloss.JoinVertical(lipgloss.Center, blocks...)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Top,
		lipgloss.NewStyle().MarginTop(m.height/8).Render(body))
}

func (m Model) debugLine() string {
	f := m.snap.Frame
	return f.Phase.String() + " " + f.Offset.String() + " " + f.PendingSign.String()
}

// hintView lays the keypad hint over the face on the full-screen grid that
// mouse taps are hit-tested against: each label sits at its cell's center.
func (m Model) hintView(face status.Face) string {
	c := newCanvas(m.width, m.height)
	y := m.height / 8
	for _, line := range face.Lines {
		st := &dateStyle
		if isClock(line) {
			line, st = spaced(line), &timeStyle
		}
		c.put((m.width-utf8.RuneCountInString(line))/2, y, line, st)
		y++
	}
	if m.snap.Settings.Debug {
		line := m.debugLine()
		c.put((m.width-len(line))/2, m.height-1, line, &debugStyle)
	}
	for _, cell := range gesture.DefaultKeypad().Cells(float64(m.width), float64(m.height)) {
		cx, cy := cell.Center()
		c.put(int(cx), int(cy), cell.Key.String(), &keyStyle)
	}
	return c.String()
}

// canvas is a fixed grid of runes, each with the style it is drawn in.
type canvas struct {
	w, h  int
	runes [][]rune
	ink   [][]*lipgloss.Style
}

func newCanvas(w, h int) *canvas {
	c := &canvas{w: w, h: h, runes: make([][]rune, h), ink: make([][]*lipgloss.Style, h)}
	for y := range c.runes {
		c.runes[y] = []rune(strings.Repeat(" ", w))
		c.ink[y] = make([]*lipgloss.Style, w)
	}
	return c
}

// put writes s from (x, y), clipped to the grid.
func (c *canvas) put(x, y int, s string, st *lipgloss.Style) {
	if y < 0 || y >= c.h {
		return
	}
	for i, r := range []rune(s) {
		if x+i >= 0 && x+i < c.w {
			c.runes[y][x+i] = r
			c.ink[y][x+i] = st
		}
	}
}

func (c *canvas) String() string {
	rows := make([]string, c.h)
	for y := range c.runes {
		var b strings.Builder
		for x := 0; x < c.w; {
			st := c.ink[y][x]
			end := x + 1
			for end < c.w && c.ink[y][end] == st {
				end++
			}
			run := string(c.runes[y][x:end])
			if st != nil {
				run = st.Render(run)
			}
			b.WriteString(run)
			x = end
		}
		rows[y] = b.String()
	}
	return strings.Join(rows, "\n")
}

func (m Model) menuView() string {
	var lines []string
	labels := make([]string, 0, len(trigger.MenuActions)+len(menuTail))
	for _, a := range trigger.MenuActions {
		labels = append(labels, a.Label(m.snap.Settings))
	}
	labels = append(labels, menuTail...)
	for i, l := range labels {
		if i == m.cursor {
			l = cursorStyle.Render(l)
		}
		lines = append(lines, l)
	}
	return menuStyle.Render(strings.Join(lines, "\n"))
}

func isClock(line string) bool {
	return len(line) == 5 && strings.Contains(line, ":")
}

// spaced widens "09:41" to "0 9 : 4 1".
func spaced(s string) string {
	return strings.Join(strings.Split(s, ""), " ")
}
