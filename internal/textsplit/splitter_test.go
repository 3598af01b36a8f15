package textsplit

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_EmptyInput(t *testing.T) {
	assert.Nil(t, Split("", 800, 200))
	assert.Nil(t, Split("   \n\t  ", 800, 200))
}

func TestSplit_ShortTextSingleSegment(t *testing.T) {
	segments := Split("Discount codes expire after 30 days.", 800, 200)

	require.Len(t, segments, 1)
	assert.Equal(t, "Discount codes expire after 30 days.", segments[0])
}

func TestSplit_PrefersParagraphBoundaries(t *testing.T) {
	para1 := strings.Repeat("alpha ", 20)
	para2 := strings.Repeat("bravo ", 20)
	text := strings.TrimSpace(para1) + "\n\n" + strings.TrimSpace(para2)

	segments := Split(text, 150, 0)

	require.Len(t, segments, 2)
	assert.Contains(t, segments[0], "alpha")
	assert.NotContains(t, segments[0], "bravo")
	assert.Contains(t, segments[1], "bravo")
}

func TestSplit_SegmentsWithinSize(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 60; i++ {
		sb.WriteString("The quick brown fox jumps over the lazy dog. ")
	}

	segments := Split(sb.String(), 200, 50)

	require.NotEmpty(t, segments)
	for _, s := range segments {
		assert.LessOrEqual(t, utf8.RuneCountInString(s), 200)
	}
}

func TestSplit_AdjacentSegmentsOverlap(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 40; i++ {
		sb.WriteString("Sentence number content keeps flowing here. ")
	}

	segments := Split(sb.String(), 200, 50)

	require.Greater(t, len(segments), 1)
	// The head of each following segment repeats the tail of its predecessor.
	for i := 1; i < len(segments); i++ {
		prev := segments[i-1]
		tail := prev[len(prev)-20:]
		assert.Contains(t, segments[i], strings.TrimSpace(tail))
	}
}

func TestSplit_RawCutWithoutSeparators(t *testing.T) {
	text := strings.Repeat("x", 1000)

	segments := Split(text, 300, 0)

	require.NotEmpty(t, segments)
	for _, s := range segments {
		assert.LessOrEqual(t, utf8.RuneCountInString(s), 300)
	}
	assert.Equal(t, text, strings.Join(segments, ""))
}

func TestSplit_RawCutKeepsOverlap(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 150; i++ {
		sb.WriteRune(rune('a' + i%26))
	}

	segments := Split(sb.String(), 50, 10)

	require.Greater(t, len(segments), 1)
	for i := 1; i < len(segments); i++ {
		prev := []rune(segments[i-1])
		tail := string(prev[len(prev)-10:])
		assert.True(t, strings.HasPrefix(segments[i], tail),
			"segment %d does not start with the previous segment's tail", i)
	}

	var total int
	for _, s := range segments {
		total += utf8.RuneCountInString(s)
	}
	assert.Greater(t, total, 150, "segments carry no overlap")
}

func TestSplit_OverlapTrimmedToFit(t *testing.T) {
	segments := Split("abcdefgh ijklmnop", 10, 4)

	require.Len(t, segments, 2)
	assert.Equal(t, "abcdefgh", segments[0])
	// The full 4-rune overlap does not fit next to the 8-rune word, so it is
	// trimmed rather than dropped.
	assert.Equal(t, "h ijklmnop", segments[1])
}

func TestSplit_OrderPreserved(t *testing.T) {
	text := "first paragraph\n\nsecond paragraph\n\nthird paragraph"

	segments := Split(text, 20, 0)

	require.Len(t, segments, 3)
	assert.Equal(t, []string{"first paragraph", "second paragraph", "third paragraph"}, segments)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 800, cfg.Size)
	assert.Equal(t, 200, cfg.Overlap)
}
