package roomview

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"dollhouse/pkg/bot"
	"dollhouse/pkg/room"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	DefaultFrameInterval = 100 * time.Millisecond

	bubbleWidth = 28
	minWidth    = 40
	minHeight   = 8
)

// FrameSource is the read model the view draws from.
type FrameSource interface {
	LoadInitial(ctx context.Context) error
	ComputeFrame(now time.Time) room.Frame
}

// SayFunc posts one line as the viewer's character.
type SayFunc func(ctx context.Context, content string) error

// Options tune the room view. Say may be nil for a watch-only viewer.
type Options struct {
	Clock         func() time.Time
	FrameInterval time.Duration
	Say           SayFunc
	SpeakerName   string
}

type frameTickMsg struct{}

type loadResultMsg struct {
	err error
}

type sayResultMsg struct {
	err error
}

type model struct {
	ctx    context.Context
	source FrameSource
	opts   Options

	theme   theme
	spinner spinner.Model
	input   textinput.Model
	width   int
	height  int
	loading bool
	sending bool
	lastErr string
	frame   room.Frame
}

func newModel(ctx context.Context, source FrameSource, opts Options) *model {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = DefaultFrameInterval
	}

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("177"))

	in := textinput.New()
	in.Prompt = ""
	in.Placeholder = "Say something to the room..."
	in.CharLimit = room.MaxContentLength
	if opts.Say != nil {
		in.Focus()
	}

	return &model{
		ctx:     ctx,
		source:  source,
		opts:    opts,
		theme:   defaultTheme(),
		spinner: spin,
		input:   in,
		width:   100,
		height:  30,
		loading: true,
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, loadCmd(m.ctx, m.source), frameTickCmd(m.opts.FrameInterval))
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.input.Width = max(minWidth, m.width-6)
		return m, nil
	case loadResultMsg:
		m.loading = false
		if typed.err != nil {
			m.lastErr = typed.err.Error()
		}
		m.frame = m.source.ComputeFrame(m.opts.Clock())
		if m.opts.Say != nil {
			return m, textinput.Blink
		}
		return m, nil
	case frameTickMsg:
		if !m.loading {
			m.frame = m.source.ComputeFrame(m.opts.Clock())
		}
		return m, frameTickCmd(m.opts.FrameInterval)
	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(typed)
		return m, cmd
	case sayResultMsg:
		m.sending = false
		if typed.err != nil {
			m.lastErr = typed.err.Error()
		} else {
			m.lastErr = ""
		}
		return m, nil
	case tea.KeyMsg:
		switch typed.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			return m, m.submit()
		}
	}

	if m.opts.Say == nil || m.frame.Terminal {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the typed line, if any.
func (m *model) submit() tea.Cmd {
	if m.opts.Say == nil || m.sending || m.loading || m.frame.Terminal {
		return nil
	}

	content := strings.TrimSpace(m.input.Value())
	if content == "" {
		return nil
	}
	if isExitCommand(content) {
		return tea.Quit
	}

	m.input.SetValue("")
	m.sending = true
	return sayCmd(m.ctx, m.opts.Say, content)
}

func (m *model) View() string {
	header := m.theme.header.Width(max(minWidth, m.width-2)).Render("Dollhouse")
	if m.loading {
		return lipgloss.JoinVertical(lipgloss.Left, header, m.theme.statusBusy.Render(m.spinner.View()+" loading the room..."))
	}
	if m.frame.Terminal {
		return m.blueScreenView()
	}

	meta := m.theme.headerMeta.Render(fmt.Sprintf(
		"characters:%d · bots:%d · bubbles:%d",
		len(m.frame.VisibleCharacters),
		len(m.frame.VisibleBots),
		len(m.frame.DisplayMessages),
	))

	width, height := m.roomSize()
	scene := m.theme.roomBorder.Render(m.renderRoom(width, height))

	parts := []string{header, meta, scene, m.statusLine()}
	if m.opts.Say != nil {
		label := "You"
		if name := strings.TrimSpace(m.opts.SpeakerName); name != "" {
			label = name
		}
		parts = append(parts,
			m.theme.inputLabel.Render(label)+" "+m.theme.hint.Render("(enter to speak, /exit to leave)"),
			m.theme.input.Width(max(minWidth, m.width-2)).Render(m.input.View()),
		)
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *model) statusLine() string {
	switch {
	case m.frame.Err != "":
		return m.theme.statusErr.Render("store unreachable: " + m.frame.Err)
	case m.lastErr != "":
		return m.theme.statusErr.Render(m.lastErr)
	case m.sending:
		return m.theme.statusBusy.Render("sending...")
	default:
		return m.theme.status.Render("Ctrl+C/Esc quit")
	}
}

// roomSize is the canvas area left after the header, status and input rows.
func (m *model) roomSize() (int, int) {
	chrome := 5
	if m.opts.Say != nil {
		chrome += 4
	}
	return max(minWidth, m.width-2), max(minHeight, m.height-chrome)
}

type sprite struct {
	id       string
	name     string
	body     string
	bot      bool
	position room.Position
}

// renderRoom draws popups first so they sit on top, then sprites from the
// highest Z down.
func (m *model) renderRoom(width, height int) string {
	c := newCanvas(width, height)

	for _, popup := range m.frame.Popups {
		style := m.theme.popup
		if popup.Opacity < 0.5 {
			style = m.theme.popupFaint
		}
		row := popup.Top * (height - 1) / 100
		col := popup.Left * (width - 1) / 100
		c.place(row, col, popupText(popup.Scale), style)
	}

	for _, s := range m.sprites() {
		m.drawSprite(c, s, width, height)
	}

	c.place(height-1, 0, strings.Repeat("_", width), m.theme.floor)
	return c.render()
}

func (m *model) sprites() []sprite {
	sprites := make([]sprite, 0, len(m.frame.VisibleCharacters)+len(m.frame.VisibleBots))
	for _, character := range m.frame.VisibleCharacters {
		sprites = append(sprites, sprite{
			id:       character.ID,
			name:     character.Name,
			body:     character.Avatar.Body,
			position: bot.PositionFor(character.ID),
		})
	}
	for _, actor := range m.frame.VisibleBots {
		sprites = append(sprites, sprite{
			id:       actor.ID,
			name:     actor.Name,
			body:     actor.Avatar.Body,
			bot:      true,
			position: actor.Position,
		})
	}
	slices.SortStableFunc(sprites, func(a, b sprite) int { return b.position.Z - a.position.Z })
	return sprites
}

// drawSprite stacks bubble, figure and name label above the sprite's
// floor row.
func (m *model) drawSprite(c *canvas, s sprite, width, height int) {
	nameRow := height - 2 - s.position.Bottom*(height-4)/100
	center := s.position.Left * (width - 1) / 100

	label := "[" + s.name + "]"
	figure := "(^_^)"
	nameStyle := m.theme.name.Foreground(spriteColor(s.body))
	if s.bot {
		figure = "[o_o]"
		nameStyle = m.theme.botName.Foreground(spriteColor(s.body))
	}

	if !c.place(nameRow-1, center-len(figure)/2, figure, lipgloss.NewStyle().Foreground(spriteColor(s.body))) {
		return
	}
	c.place(nameRow, center-len([]rune(label))/2, label, nameStyle)

	if bubble, ok := m.frame.DisplayMessages[s.id]; ok {
		text := bubbleText(bubble.Content)
		c.place(nameRow-2, center-len([]rune(text))/2, text, lipgloss.NewStyle().Foreground(bubbleColor(bubble.Opacity)))
	}
}

func (m *model) blueScreenView() string {
	text := strings.Join([]string{
		":(",
		"",
		"The dollhouse ran into a problem and needs to restart.",
		"Too many visitors were talking at once.",
		"",
		"Stop code: DOLLHOUSE_OVERCROWDED",
		"",
		"Press Ctrl+C to leave.",
	}, "\n")
	return m.theme.blueScreen.
		Width(max(minWidth, m.width)).
		Height(max(minHeight, m.height)).
		Render(text)
}

// bubbleText quotes content, cut to fit above a sprite.
func bubbleText(content string) string {
	runes := []rune(strings.Join(strings.Fields(content), " "))
	if len(runes) > bubbleWidth-2 {
		runes = append(runes[:bubbleWidth-5], []rune("...")...)
	}
	return "\"" + string(runes) + "\""
}

func popupText(scale float64) string {
	if scale >= 1.1 {
		return " [!] FATAL EXCEPTION 0E AT 0028:C0011E36 "
	}
	if scale >= 0.9 {
		return " [!] FATAL EXCEPTION 0E "
	}
	return " [!] ERROR "
}

func frameTickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return frameTickMsg{}
	})
}

func loadCmd(ctx context.Context, source FrameSource) tea.Cmd {
	return func() tea.Msg {
		return loadResultMsg{err: source.LoadInitial(ctx)}
	}
}

func sayCmd(ctx context.Context, say SayFunc, content string) tea.Cmd {
	return func() tea.Msg {
		return sayResultMsg{err: say(ctx, content)}
	}
}

func isExitCommand(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "exit", "/exit", "quit", ":q":
		return true
	default:
		return false
	}
}
