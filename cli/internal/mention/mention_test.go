package mention

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedSource() []Candidate {
	return []Candidate{
		{ID: "p1", Label: "Go generics"},
		{ID: "p2", Label: "Rust lifetimes"},
		{ID: "p3", Label: "Go channels"},
	}
}

func TestPickerCyclesCircularly(t *testing.T) {
	p := NewPicker(fixedSource)
	p.Open()

	c, ok := p.Highlighted()
	require.True(t, ok)
	assert.Equal(t, "p1", c.ID)

	p.Handle(KeyUp)
	assert.Equal(t, 2, p.HighlightIndex())
	p.Handle(KeyDown)
	assert.Equal(t, 0, p.HighlightIndex())
	p.Handle(KeyDown)
	p.Handle(KeyDown)
	p.Handle(KeyDown)
	assert.Equal(t, 0, p.HighlightIndex())

	p.Handle(KeyDown)
	got, ok := p.Handle(KeyEnter)
	require.True(t, ok)
	assert.Equal(t, "p2", got.ID)
	assert.False(t, p.IsOpen())
}

func TestPickerEscapeAndClickOutsideDoNotCommit(t *testing.T) {
	p := NewPicker(fixedSource)

	p.Open()
	p.Handle(KeyDown)
	_, ok := p.Handle(KeyEscape)
	assert.False(t, ok)
	assert.False(t, p.IsOpen())

	p.Open()
	assert.Equal(t, 0, p.HighlightIndex())
	p.ClickOutside()
	assert.False(t, p.IsOpen())
	_, ok = p.Handle(KeyEnter)
	assert.False(t, ok)
}

func TestPickerFilter(t *testing.T) {
	p := NewPicker(fixedSource)
	p.Open()
	p.Filter("go")
	require.Len(t, p.Candidates(), 2)
	p.Handle(KeyDown)
	c, _ := p.Highlighted()
	assert.Equal(t, "p3", c.ID)

	p.Filter("nothing")
	assert.Empty(t, p.Candidates())
	_, ok := p.Handle(KeyEnter)
	assert.False(t, ok)
}

type fakeSink struct {
	added   []string
	removed []string
	err     error
}

func (f *fakeSink) AddMention(id string) error {
	if f.err != nil {
		return f.err
	}
	f.added = append(f.added, id)
	return nil
}

func (f *fakeSink) RemoveMention(id string) { f.removed = append(f.removed, id) }

func TestComposerCommitRemovesTrigger(t *testing.T) {
	sink := &fakeSink{}
	c := NewComposer(NewPicker(fixedSource), sink)

	c.SetInput("explain @")
	require.True(t, c.Picker().IsOpen())
	c.SetInput("explain @chan")
	require.Len(t, c.Picker().Candidates(), 1)

	cand, ok, err := c.Press(KeyEnter)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "p3", cand.ID)
	assert.Equal(t, "explain ", c.Input())
	assert.Equal(t, []string{"p3"}, sink.added)

	c.Remove("p3")
	assert.Equal(t, []string{"p3"}, sink.removed)
}

func TestComposerIgnoresInlineAt(t *testing.T) {
	c := NewComposer(NewPicker(fixedSource), &fakeSink{})
	c.SetInput("mail me at bob@")
	assert.False(t, c.Picker().IsOpen())

	c.SetInput("@")
	assert.True(t, c.Picker().IsOpen())
	c.SetInput("")
	assert.False(t, c.Picker().IsOpen())
}

func TestComposerEscapeKeepsInput(t *testing.T) {
	sink := &fakeSink{}
	c := NewComposer(NewPicker(fixedSource), sink)
	c.SetInput("hi @")
	c.SetInput("hi @go")
	require.True(t, c.Picker().IsOpen())

	_, ok, err := c.Press(KeyEscape)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "hi @go", c.Input())
	assert.Empty(t, sink.added)
}

func TestComposerSinkError(t *testing.T) {
	sink := &fakeSink{err: errors.New("unknown pin")}
	c := NewComposer(NewPicker(fixedSource), sink)
	c.SetInput("@")
	_, ok, err := c.Press(KeyEnter)
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestParseKey(t *testing.T) {
	k, ok := ParseKey("Down")
	require.True(t, ok)
	assert.Equal(t, KeyDown, k)
	_, ok = ParseKey("sideways")
	assert.False(t, ok)
}
