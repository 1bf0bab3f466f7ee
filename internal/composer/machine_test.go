package composer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(effects []Effect) []EffectKind {
	out := make([]EffectKind, 0, len(effects))
	for _, e := range effects {
		out = append(out, e.Kind)
	}
	return out
}

func TestMachine_FocusAndBlur(t *testing.T) {
	m := NewMachine()
	assert.Equal(t, Idle, m.State())

	effects := m.Focus()
	assert.Equal(t, Focused, m.State())
	require.Len(t, effects, 2)
	assert.Equal(t, SuspendGlobalKeys, effects[0].Kind)
	assert.Equal(t, Effect{Kind: PinSurface, Pin: true}, effects[1])

	assert.Nil(t, m.Focus())

	effects = m.Blur()
	assert.Equal(t, Idle, m.State())
	assert.Equal(t, []Effect{{Kind: ResumeGlobalKeys}, {Kind: PinSurface, Pin: false}}, effects)
	assert.Nil(t, m.Blur())
}

func TestMachine_EmojiInsertUsesUTF16Offsets(t *testing.T) {
	m := NewMachine()
	m.Focus()
	m.TextChanged("hello", 5)

	m.OpenPicker()
	assert.Equal(t, EmojiPicking, m.State())
	assert.Equal(t, 5, m.Anchor())

	effects := m.SelectEmoji("😀")
	assert.Equal(t, Focused, m.State())
	assert.Equal(t, "hello😀", m.Text())
	assert.Equal(t, 7, m.Caret())

	require.Len(t, effects, 2)
	assert.Equal(t, FocusInput, effects[0].Kind)
	assert.Equal(t, MoveCaret, effects[1].Kind)
	assert.Equal(t, 7, effects[1].Offset)
	assert.True(t, effects[1].Deferred())
	assert.False(t, effects[0].Deferred())
}

func TestMachine_PickerKeepsCapturedOffset(t *testing.T) {
	m := NewMachine()
	m.Focus()
	m.TextChanged("ab", 1)
	m.OpenPicker()

	// caret moves while the picker has focus
	m.SelectionChanged(2)
	assert.Equal(t, 2, m.Caret())
	assert.Equal(t, 1, m.Anchor())

	m.SelectEmoji("🎉")
	assert.Equal(t, "a🎉b", m.Text())
	assert.Equal(t, 3, m.Caret())
}

func TestMachine_InsertNeverSplitsSurrogatePair(t *testing.T) {
	m := NewMachine()
	m.Focus()
	m.TextChanged("a😀b", 2)
	m.OpenPicker()

	m.SelectEmoji("👍")
	assert.Equal(t, "a👍😀b", m.Text())
	assert.Equal(t, 3, m.Caret())
}

func TestMachine_OpenPickerFromIdleFocuses(t *testing.T) {
	m := NewMachine()

	effects := m.OpenPicker()
	assert.Equal(t, EmojiPicking, m.State())
	assert.Equal(t, []EffectKind{SuspendGlobalKeys, PinSurface}, kinds(effects))

	assert.Nil(t, m.OpenPicker())
}

func TestMachine_BlurIgnoredWhilePicking(t *testing.T) {
	m := NewMachine()
	m.OpenPicker()

	assert.Nil(t, m.Blur())
	assert.Equal(t, EmojiPicking, m.State())
}

func TestMachine_CancelAndEscape(t *testing.T) {
	m := NewMachine()
	m.Focus()
	m.TextChanged("hi", 2)
	m.OpenPicker()

	assert.Equal(t, []Effect{{Kind: FocusInput}}, m.CancelPicker())
	assert.Equal(t, Focused, m.State())
	assert.Equal(t, "hi", m.Text())

	m.OpenPicker()
	assert.Equal(t, []Effect{{Kind: FocusInput}}, m.Escape())
	assert.Equal(t, Focused, m.State())

	effects := m.Escape()
	assert.Equal(t, Idle, m.State())
	assert.Equal(t, []EffectKind{BlurInput, ResumeGlobalKeys, PinSurface}, kinds(effects))
	assert.False(t, effects[2].Pin)

	assert.Nil(t, m.Escape())
	assert.Nil(t, m.CancelPicker())
	assert.Nil(t, m.SelectEmoji("😀"))
}

func TestMachine_Enter(t *testing.T) {
	t.Run("publishes and clears", func(t *testing.T) {
		m := NewMachine()
		m.Focus()
		m.TextChanged("  hi there ", 11)

		effects := m.Enter()
		require.Len(t, effects, 2)
		assert.Equal(t, Effect{Kind: Publish, Text: "  hi there "}, effects[0])
		assert.Equal(t, Effect{Kind: PinSurface, Pin: false}, effects[1])
		assert.Equal(t, "", m.Text())
		assert.Equal(t, 0, m.Caret())
		assert.Equal(t, Focused, m.State())
	})

	t.Run("blank text is not published", func(t *testing.T) {
		m := NewMachine()
		m.Focus()
		m.TextChanged("   ", 3)

		effects := m.Enter()
		assert.Equal(t, []EffectKind{PinSurface}, kinds(effects))
		assert.Equal(t, "   ", m.Text())
	})

	t.Run("exits picking", func(t *testing.T) {
		m := NewMachine()
		m.Focus()
		m.TextChanged("yo", 2)
		m.OpenPicker()

		effects := m.Enter()
		assert.Equal(t, []EffectKind{Publish, FocusInput, PinSurface}, kinds(effects))
		assert.Equal(t, Focused, m.State())
	})

	t.Run("idle ignores enter", func(t *testing.T) {
		assert.Nil(t, NewMachine().Enter())
	})
}

func TestMachine_SelectionClamped(t *testing.T) {
	m := NewMachine()
	m.TextChanged("abc", 10)
	assert.Equal(t, 3, m.Caret())

	m.SelectionChanged(-4)
	assert.Equal(t, 0, m.Caret())
}

func TestUTF16Len(t *testing.T) {
	assert.Equal(t, 0, UTF16Len(""))
	assert.Equal(t, 5, UTF16Len("hello"))
	assert.Equal(t, 2, UTF16Len("😀"))
	assert.Equal(t, 2, UTF16Len("é!"))
}
