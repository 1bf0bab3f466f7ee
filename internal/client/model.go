package client

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/weiawesome/sync-party/internal/composer"
	"github.com/weiawesome/sync-party/internal/domain"
	"github.com/weiawesome/sync-party/pkg/log"
)

// Emojis is the picker palette.
var Emojis = []string{"😀", "😂", "😍", "👍", "🎉", "🔥", "😮", "😢", "👏", "🍿"}

type (
	frameMsg        Frame
	disconnectedMsg struct{ err error }
	hideMsg         struct{ gen uint64 }
	caretMsg        struct{ offset int }
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA")).Background(lipgloss.Color("#7D56F4")).Padding(0, 1)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6C6C"))
	timeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#505050"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	pickedStyle = lipgloss.NewStyle().Reverse(true)
	nameColors  = []lipgloss.Color{"#FF875F", "#5FD7FF", "#AFFF5F", "#FFD75F", "#D787FF", "#5FFFAF"}
)

// Options configures a Model.
type Options struct {
	Me         domain.Principal
	Parties    []domain.Party
	// StartParty selects the initial party when it is in Parties.
	StartParty string
	HideAfter  time.Duration
	History    int
}

// Model is the terminal chat UI.
type Model struct {
	conn    ChatConn
	me      domain.Principal
	parties []domain.Party
	current int
	joined  map[string]bool

	composer *composer.Machine
	timer    *composer.HideTimer
	history  *composer.History

	input      textinput.Model
	viewport   viewport.Model
	globalKeys bool
	picked     int
	status     string
	err        error

	now func() time.Time
}

func NewModel(conn ChatConn, opts Options) *Model {
	ti := textinput.New()
	ti.Placeholder = "Say something..."
	ti.CharLimit = 2000
	ti.Prompt = "> "

	current := 0
	for i, p := range opts.Parties {
		if p.ID == opts.StartParty {
			current = i
		}
	}

	return &Model{
		conn:       conn,
		current:    current,
		me:         opts.Me,
		parties:    opts.Parties,
		joined:     make(map[string]bool),
		composer:   composer.NewMachine(),
		timer:      composer.NewHideTimer(opts.HideAfter),
		history:    composer.NewHistory(opts.History),
		input:      ti,
		viewport:   viewport.New(80, 20),
		globalKeys: true,
		now:        time.Now,
	}
}

// Err is the error that ended the session, if any.
func (m *Model) Err() error { return m.err }

func (m *Model) Init() tea.Cmd {
	m.joinCurrent()
	return tea.Batch(m.waitForFrame(), m.armHide())
}

func (m *Model) currentParty() *domain.Party {
	if len(m.parties) == 0 {
		return nil
	}
	return &m.parties[m.current]
}

func (m *Model) waitForFrame() tea.Cmd {
	return func() tea.Msg {
		f, ok := <-m.conn.Frames()
		if !ok {
			return disconnectedMsg{err: m.conn.Err()}
		}
		return frameMsg(f)
	}
}

// joinCurrent queues a join for the selected party. Sends happen inside
// Update so they keep the order of the keys that caused them.
func (m *Model) joinCurrent() {
	p := m.currentParty()
	if p == nil || m.joined[p.ID] {
		return
	}
	if err := m.conn.Join(p.ID); err != nil {
		m.status = errorStyle.Render(err.Error())
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// header, composer, picker and status lines
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-4, 1)
		m.input.Width = max(msg.Width-4, 10)
		m.refresh()
		return m, nil

	case frameMsg:
		return m, tea.Batch(m.onFrame(Frame(msg)), m.waitForFrame())

	case disconnectedMsg:
		m.err = msg.err
		if m.err == nil {
			m.err = fmt.Errorf("connection closed")
		}
		return m, tea.Quit

	case hideMsg:
		m.timer.Fire(msg.gen)
		return m, nil

	case caretMsg:
		m.input.SetCursor(runeIndex(m.input.Value(), msg.offset))
		m.composer.SelectionChanged(msg.offset)
		return m, nil

	case tea.KeyMsg:
		return m, m.onKey(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) onFrame(f Frame) tea.Cmd {
	l := log.L()

	switch f.Type {
	case domain.MsgTypeChatMessage:
		if f.Chat == nil || !m.history.Append(*f.Chat) {
			return nil
		}
		if p := m.currentParty(); p != nil && p.ID == f.PartyID {
			m.refresh()
		}
		return m.armHide()

	case domain.MsgTypePartyJoined:
		m.joined[f.PartyID] = true
		m.status = dimStyle.Render("joined " + m.partyName(f.PartyID))

	case domain.MsgTypePartyLeft:
		delete(m.joined, f.PartyID)
		m.history.Clear(f.PartyID)

	case domain.MsgTypeError:
		l.Warn().Str("code", f.Code).Str(log.FieldPartyID, f.PartyID).Msg("server rejected frame")
		m.status = errorStyle.Render(describeCode(f.Code))
	}
	return nil
}

func (m *Model) armHide() tea.Cmd {
	gen, _ := m.timer.Arm(m.now())
	return tea.Tick(m.timer.Window(), func(time.Time) tea.Msg { return hideMsg{gen: gen} })
}

func (m *Model) onKey(msg tea.KeyMsg) tea.Cmd {
	if msg.Type == tea.KeyCtrlC {
		return tea.Quit
	}

	switch m.composer.State() {
	case composer.Idle:
		return m.onGlobalKey(msg)

	case composer.EmojiPicking:
		switch msg.Type {
		case tea.KeyLeft:
			m.picked = (m.picked + len(Emojis) - 1) % len(Emojis)
		case tea.KeyRight:
			m.picked = (m.picked + 1) % len(Emojis)
		case tea.KeyEnter, tea.KeySpace:
			return m.apply(m.composer.SelectEmoji(Emojis[m.picked]))
		case tea.KeyCtrlS:
			return m.apply(m.composer.Enter())
		case tea.KeyEsc:
			return m.apply(m.composer.Escape())
		}
		return nil

	default:
		switch msg.Type {
		case tea.KeyEnter:
			return m.apply(m.composer.Enter())
		case tea.KeyEsc:
			return m.apply(m.composer.Escape())
		case tea.KeyCtrlE:
			return m.apply(m.composer.OpenPicker())
		}

		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		value := m.input.Value()
		m.composer.TextChanged(value, utf16Offset(value, m.input.Position()))
		return cmd
	}
}

// onGlobalKey handles shortcuts, which only apply while the composer is
// idle.
func (m *Model) onGlobalKey(msg tea.KeyMsg) tea.Cmd {
	if !m.globalKeys {
		return nil
	}

	switch msg.String() {
	case "q":
		return tea.Quit
	case "i", "enter":
		return m.apply(m.composer.Focus())
	case "e":
		return m.apply(m.composer.OpenPicker())
	case "tab":
		if len(m.parties) == 0 {
			return nil
		}
		m.current = (m.current + 1) % len(m.parties)
		m.refresh()
		m.joinCurrent()
		return nil
	case "s":
		// show the surface again
		return m.armHide()
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return cmd
}

// apply performs composer effects and returns the commands they need.
func (m *Model) apply(effects []composer.Effect) tea.Cmd {
	var cmds []tea.Cmd

	for _, e := range effects {
		switch e.Kind {
		case composer.SuspendGlobalKeys:
			m.globalKeys = false
		case composer.ResumeGlobalKeys:
			m.globalKeys = true
		case composer.PinSurface:
			m.timer.Pin(e.Pin)
			if !e.Pin && !m.timer.Hidden() {
				cmds = append(cmds, m.armHide())
			}
		case composer.FocusInput:
			cmds = append(cmds, m.input.Focus())
		case composer.BlurInput:
			m.input.Blur()
		case composer.MoveCaret:
			offset := e.Offset
			cmds = append(cmds, func() tea.Msg { return caretMsg{offset: offset} })
		case composer.Publish:
			m.publish(e.Text)
		}
	}

	if m.input.Value() != m.composer.Text() {
		m.input.SetValue(m.composer.Text())
	}
	if m.composer.State() == composer.Focused && !m.input.Focused() {
		cmds = append(cmds, m.input.Focus())
	}
	return tea.Batch(cmds...)
}

func (m *Model) publish(text string) {
	p := m.currentParty()
	if p == nil {
		m.status = errorStyle.Render("no party selected")
		return
	}
	if err := m.conn.Publish(p.ID, text); err != nil {
		m.status = errorStyle.Render(err.Error())
	}
}

func (m *Model) refresh() {
	p := m.currentParty()
	if p == nil {
		m.viewport.SetContent(dimStyle.Render("You are not a member of any party."))
		return
	}

	msgs := m.history.Messages(p.ID)
	lines := make([]string, 0, len(msgs))
	for _, c := range msgs {
		lines = append(lines, formatMessage(c))
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	m.viewport.GotoBottom()
}

func (m *Model) partyName(id string) string {
	for _, p := range m.parties {
		if p.ID == id {
			return p.Name
		}
	}
	return id
}

func (m *Model) View() string {
	var b strings.Builder

	header := "no party"
	if p := m.currentParty(); p != nil {
		header = p.Name
		if !p.Active {
			header += " (closed)"
		}
	}
	b.WriteString(titleStyle.Render("sync-party") + " " + header + dimStyle.Render("  as "+m.me.Username) + "\n")

	if m.timer.Hidden() {
		b.WriteString(dimStyle.Render("chat hidden, press s to show") + "\n")
	} else {
		b.WriteString(m.viewport.View() + "\n")
	}

	switch m.composer.State() {
	case composer.Idle:
		b.WriteString(dimStyle.Render("i chat  e emoji  tab next party  s show  q quit"))
	case composer.EmojiPicking:
		b.WriteString(m.input.View() + "\n")
		for i, e := range Emojis {
			if i == m.picked {
				b.WriteString(pickedStyle.Render(e))
			} else {
				b.WriteString(e)
			}
			b.WriteString(" ")
		}
	default:
		b.WriteString(m.input.View())
	}
	b.WriteString("\n" + m.status)

	return b.String()
}

func formatMessage(c domain.ChatMessage) string {
	h := fnv.New32a()
	h.Write([]byte(c.UserID))
	name := lipgloss.NewStyle().Bold(true).Foreground(nameColors[h.Sum32()%uint32(len(nameColors))]).Render(c.UserName)
	return fmt.Sprintf("%s %s %s", timeStyle.Render(c.Timestamp.Local().Format("15:04")), name, c.Message)
}

func describeCode(code string) string {
	switch code {
	case "notAuthorized":
		return "you cannot chat in this party"
	case "notFound":
		return "party not found"
	case "validationError":
		return "message rejected"
	default:
		return "error: " + code
	}
}

// utf16Offset converts a rune index in s to UTF-16 code units.
func utf16Offset(s string, runePos int) int {
	n := 0
	for i, r := range []rune(s) {
		if i >= runePos {
			break
		}
		n += utf16.RuneLen(r)
	}
	return n
}

// runeIndex converts a UTF-16 offset in s to a rune index.
func runeIndex(s string, offset int) int {
	units := 0
	for i, r := range []rune(s) {
		if units >= offset {
			return i
		}
		units += utf16.RuneLen(r)
	}
	return len([]rune(s))
}
