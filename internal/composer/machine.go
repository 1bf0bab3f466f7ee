// Package composer holds the client-local chat input logic: a focus and
// emoji-picker state machine with caret offsets in UTF-16 code units, the
// auto-hide timer for the chat surface and the per-client message store.
package composer

import (
	"strings"
	"unicode/utf16"
)

// State is the input's interaction state.
type State int

const (
	Idle State = iota
	Focused
	EmojiPicking
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Focused:
		return "focused"
	case EmojiPicking:
		return "emoji_picking"
	default:
		return "unknown"
	}
}

// EffectKind names a side effect the host UI must perform.
type EffectKind int

const (
	SuspendGlobalKeys EffectKind = iota
	ResumeGlobalKeys
	PinSurface
	FocusInput
	BlurInput
	// MoveCaret is applied after the next redraw, once the new text is
	// on screen.
	MoveCaret
	Publish
)

// Effect is one side effect. Pin is set for PinSurface, Offset for
// MoveCaret and Text for Publish.
type Effect struct {
	Kind   EffectKind
	Pin    bool
	Offset int
	Text   string
}

// Deferred reports whether the effect waits for the next redraw.
func (e Effect) Deferred() bool {
	return e.Kind == MoveCaret
}

// Machine is the composer state machine. It is not safe for concurrent
// use; drive it from the UI loop.
type Machine struct {
	state State
	text  []uint16
	caret int
	// anchor is the caret captured when the picker opened.
	anchor int
}

// NewMachine starts Idle with empty text.
func NewMachine() *Machine {
	return &Machine{}
}

func (m *Machine) State() State { return m.state }

// Text returns the current input.
func (m *Machine) Text() string {
	return string(utf16.Decode(m.text))
}

// Caret returns the caret offset in UTF-16 code units.
func (m *Machine) Caret() int { return m.caret }

// Anchor returns the insertion offset captured by OpenPicker.
func (m *Machine) Anchor() int { return m.anchor }

// Focus moves Idle to Focused.
func (m *Machine) Focus() []Effect {
	if m.state != Idle {
		return nil
	}
	m.state = Focused
	return []Effect{{Kind: SuspendGlobalKeys}, {Kind: PinSurface, Pin: true}}
}

// Blur moves Focused to Idle. The picker owns focus while open, so blur
// is ignored then.
func (m *Machine) Blur() []Effect {
	if m.state != Focused {
		return nil
	}
	m.state = Idle
	return []Effect{{Kind: ResumeGlobalKeys}, {Kind: PinSurface, Pin: false}}
}

// OpenPicker captures the caret and opens the picker. From Idle it
// focuses first.
func (m *Machine) OpenPicker() []Effect {
	var effects []Effect
	switch m.state {
	case EmojiPicking:
		return nil
	case Idle:
		effects = m.Focus()
	}
	m.anchor = m.caret
	m.state = EmojiPicking
	return effects
}

// SelectEmoji inserts g at the captured offset and closes the picker.
func (m *Machine) SelectEmoji(g string) []Effect {
	if m.state != EmojiPicking {
		return nil
	}

	ins := utf16.Encode([]rune(g))
	k := m.snap(m.anchor)

	next := make([]uint16, 0, len(m.text)+len(ins))
	next = append(next, m.text[:k]...)
	next = append(next, ins...)
	next = append(next, m.text[k:]...)
	m.text = next

	m.caret = k + len(ins)
	m.state = Focused
	return []Effect{{Kind: FocusInput}, {Kind: MoveCaret, Offset: m.caret}}
}

// CancelPicker closes the picker without changing the text.
func (m *Machine) CancelPicker() []Effect {
	if m.state != EmojiPicking {
		return nil
	}
	m.state = Focused
	return []Effect{{Kind: FocusInput}}
}

// Enter publishes non-blank text and clears it. It always leaves the
// picker and unpins the surface.
func (m *Machine) Enter() []Effect {
	if m.state == Idle {
		return nil
	}

	var effects []Effect
	text := m.Text()
	if strings.TrimSpace(text) != "" {
		effects = append(effects, Effect{Kind: Publish, Text: text})
		m.text = nil
		m.caret = 0
		m.anchor = 0
	}
	if m.state == EmojiPicking {
		effects = append(effects, Effect{Kind: FocusInput})
	}
	m.state = Focused
	return append(effects, Effect{Kind: PinSurface, Pin: false})
}

// Escape closes the picker, or leaves the input when no picker is open.
func (m *Machine) Escape() []Effect {
	switch m.state {
	case EmojiPicking:
		return m.CancelPicker()
	case Focused:
		m.state = Idle
		return []Effect{{Kind: BlurInput}, {Kind: ResumeGlobalKeys}, {Kind: PinSurface, Pin: false}}
	default:
		return nil
	}
}

// SelectionChanged samples the caret. It runs in every state and never
// moves the captured picker offset.
func (m *Machine) SelectionChanged(offset int) {
	m.caret = m.clamp(offset)
}

// TextChanged replaces the text and samples the caret.
func (m *Machine) TextChanged(text string, caret int) {
	m.text = utf16.Encode([]rune(text))
	m.caret = m.clamp(caret)
	if m.anchor > len(m.text) {
		m.anchor = len(m.text)
	}
}

func (m *Machine) clamp(offset int) int {
	if offset < 0 {
		return 0
	}
	if offset > len(m.text) {
		return len(m.text)
	}
	return offset
}

// snap clamps offset and moves it off the middle of a surrogate pair.
func (m *Machine) snap(offset int) int {
	k := m.clamp(offset)
	if k > 0 && k < len(m.text) && utf16.IsSurrogate(rune(m.text[k])) && isHighSurrogate(m.text[k-1]) {
		k--
	}
	return k
}

func isHighSurrogate(u uint16) bool {
	return u >= 0xd800 && u < 0xdc00
}

// UTF16Len returns the length of s in UTF-16 code units.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
