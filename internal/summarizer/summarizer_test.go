package summarizer

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingGenerator struct {
	inputs []string
}

func (g *recordingGenerator) Generate(_ context.Context, system, prompt string) (string, error) {
	g.inputs = append(g.inputs, prompt)
	return fmt.Sprintf("summary-%d", len(g.inputs)), nil
}

func TestSummarizeShortTextSinglePass(t *testing.T) {
	gen := &recordingGenerator{}
	s := New(gen)

	out, err := s.Summarize(context.Background(), "a short report about nothing in particular")
	require.NoError(t, err)
	assert.Equal(t, "summary-1", out)
	assert.Len(t, gen.inputs, 1)
}

func TestSummarizeLongTextMapReduce(t *testing.T) {
	gen := &recordingGenerator{}
	s := New(gen)
	s.WordThreshold = 10
	s.ChunkChars = 40

	long := strings.Repeat("word ", 30)
	out, err := s.Summarize(context.Background(), long)
	require.NoError(t, err)

	// N mapped pieces plus one reduce pass; the reduce input is built from
	// the piece summaries.
	require.Greater(t, len(gen.inputs), 2)
	last := gen.inputs[len(gen.inputs)-1]
	assert.Contains(t, last, "summary-1")
	assert.Equal(t, fmt.Sprintf("summary-%d", len(gen.inputs)), out)
}

func TestSummarizeEmptyInput(t *testing.T) {
	s := New(&recordingGenerator{})
	_, err := s.Summarize(context.Background(), "   \n")
	assert.Error(t, err)
}

func TestSummarizeChunksJoins(t *testing.T) {
	gen := &recordingGenerator{}
	s := New(gen)

	_, err := s.SummarizeChunks(context.Background(), []string{"first chunk", "second chunk"})
	require.NoError(t, err)
	require.Len(t, gen.inputs, 1)
	assert.Contains(t, gen.inputs[0], "first chunk\n\nsecond chunk")
}

func TestSplitByChars(t *testing.T) {
	pieces := splitByChars(strings.Repeat("abcd ", 10), 20)
	require.NotEmpty(t, pieces)
	for _, p := range pieces {
		assert.NotEmpty(t, strings.TrimSpace(p))
	}
	assert.Equal(t, strings.Fields(strings.Repeat("abcd ", 10)), strings.Fields(strings.Join(pieces, " ")))
}
