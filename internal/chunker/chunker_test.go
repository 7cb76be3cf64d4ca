package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitEmpty(t *testing.T) {
	c := New(100, 20)
	assert.Nil(t, c.Split(""))
	assert.Nil(t, c.Split("   \n\t  "))
}

func TestSplitShortText(t *testing.T) {
	c := New(1000, 200)
	pieces := c.Split("a short note")
	require.Len(t, pieces, 1)
	assert.Equal(t, 0, pieces[0].Index)
	assert.Equal(t, "a short note", pieces[0].Text)
	assert.Equal(t, 0, pieces[0].StartChar)
	assert.Equal(t, 12, pieces[0].EndChar)
}

func TestSplitPrefersSentenceBoundary(t *testing.T) {
	c := New(20, 5)
	text := "Sentence one. Sentence two. Sentence three."
	pieces := c.Split(text)
	require.NotEmpty(t, pieces)
	// The first window covers bytes [0,20) and the last '.' inside it sits
	// at offset 12, past the midpoint, so the cut lands right after it.
	assert.Equal(t, "Sentence one.", pieces[0].Text)
	assert.Equal(t, 13, pieces[0].EndChar)
	for i, p := range pieces {
		assert.Equal(t, i, p.Index)
		assert.NotEmpty(t, p.Text)
	}
}

func TestSplitOverlap(t *testing.T) {
	c := New(50, 10)
	text := strings.Repeat("abcdefghij", 20)
	pieces := c.Split(text)
	require.Greater(t, len(pieces), 1)
	for i := 1; i < len(pieces); i++ {
		assert.Equal(t, pieces[i-1].EndChar-10, pieces[i].StartChar)
	}
	assert.Equal(t, len(text), pieces[len(pieces)-1].EndChar)
}

func TestSplitCoversWholeText(t *testing.T) {
	c := New(100, 20)
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 30)
	pieces := c.Split(text)
	require.NotEmpty(t, pieces)
	assert.Equal(t, 0, pieces[0].StartChar)
	for i := 1; i < len(pieces); i++ {
		// Overlapping windows must never leave a gap.
		assert.LessOrEqual(t, pieces[i].StartChar, pieces[i-1].EndChar)
		assert.Greater(t, pieces[i].EndChar, pieces[i-1].EndChar)
	}
}

func TestSplitNeverBreaksRunes(t *testing.T) {
	c := New(10, 2)
	text := strings.Repeat("日本語テキスト。", 20)
	pieces := c.Split(text)
	require.NotEmpty(t, pieces)
	for _, p := range pieces {
		assert.True(t, strings.HasPrefix(text[p.StartChar:], p.Text) ||
			strings.Contains(text[p.StartChar:p.EndChar], p.Text))
		for _, r := range p.Text {
			assert.NotEqual(t, '�', r)
		}
	}
}

func TestSplitTerminates(t *testing.T) {
	// Overlap equal to the post-break window must not stall the scan.
	c := New(20, 19)
	pieces := c.Split(strings.Repeat("x", 500))
	require.NotEmpty(t, pieces)
	assert.Equal(t, 500, pieces[len(pieces)-1].EndChar)
}

func TestSplitTerminatesOnMultibyteText(t *testing.T) {
	// With a step this small the next offset lands mid-rune and gets
	// rounded back; the scan must still advance past every window.
	c := New(12, 10)
	text := strings.Repeat("日本語テキスト", 10)
	pieces := c.Split(text)
	require.NotEmpty(t, pieces)
	assert.Equal(t, len(text), pieces[len(pieces)-1].EndChar)
	for i := 1; i < len(pieces); i++ {
		assert.Greater(t, pieces[i].EndChar, pieces[i-1].EndChar)
	}
}
