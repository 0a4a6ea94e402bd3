package tmx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectEvents(t *testing.T, input string) []*Event {
	t.Helper()
	w := NewWalker(input)
	var events []*Event
	for {
		ev, err := w.Next()
		require.NoError(t, err)
		if ev == nil {
			return events
		}
		events = append(events, ev)
	}
}

func TestWalkerEventSequence(t *testing.T) {
	events := collectEvents(t, `<map width="4"><layer name="ground"/>text</map>`)

	require.Len(t, events, 5)
	assert.Equal(t, StartElement, events[0].Kind)
	assert.Equal(t, "map", events[0].Name)

	width, ok := events[0].Attr("width")
	assert.True(t, ok)
	assert.Equal(t, "4", width)

	// Self-closing elements produce a start/end pair.
	assert.Equal(t, StartElement, events[1].Kind)
	assert.Equal(t, "layer", events[1].Name)
	assert.Equal(t, EndElement, events[2].Kind)
	assert.Equal(t, "layer", events[2].Name)

	assert.Equal(t, Text, events[3].Kind)
	assert.Equal(t, "text", events[3].Text)
	assert.Equal(t, EndElement, events[4].Kind)
}

func TestWalkerIgnoresWhitespaceAndComments(t *testing.T) {
	events := collectEvents(t, "<?xml version=\"1.0\"?>\n<map>\n  <!-- comment -->\n  <data>\n    1,2\n  </data>\n</map>\n")

	require.Len(t, events, 5)
	assert.Equal(t, Text, events[2].Kind)
	assert.Equal(t, "1,2", events[2].Text)
}

func TestWalkerUnterminatedTag(t *testing.T) {
	w := NewWalker(`<map><layer>`)
	for {
		ev, err := w.Next()
		if err != nil {
			assert.True(t, IsKind(err, ErrMalformedXML))
			return
		}
		require.NotNil(t, ev, "expected a malformed XML error before EOF")
	}
}

func TestWalkerMismatchedCloseTag(t *testing.T) {
	w := NewWalker(`<map><layer></map></layer>`)
	var sawErr bool
	for {
		ev, err := w.Next()
		if err != nil {
			sawErr = true
			assert.True(t, IsKind(err, ErrMalformedXML))
			break
		}
		if ev == nil {
			break
		}
	}
	assert.True(t, sawErr)
}

func TestWalkerNotRestartable(t *testing.T) {
	w := NewWalker(`<map/>`)
	for {
		ev, err := w.Next()
		require.NoError(t, err)
		if ev == nil {
			break
		}
	}
	ev, err := w.Next()
	require.NoError(t, err)
	assert.Nil(t, ev)
}
