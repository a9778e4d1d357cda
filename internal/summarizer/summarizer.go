// Package summarizer produces abstractive summaries with a simple
// map-reduce: long texts are split on a character budget, each piece is
// summarized independently, and the concatenation gets one final
// condensing pass.
package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"voice-rag/internal/llmservice"
)

const summarySystemPrompt = `You are a helpful AI assistant that creates clear, concise, and informative summaries.
Focus on the key points and main ideas in the text.
Your summary should be well-structured and capture the essence of the original text.`

const summaryPromptTemplate = `Please create a comprehensive summary of the following text:

%s

Provide a well-structured summary that covers the main points, key findings, and important conclusions.`

const (
	defaultWordThreshold = 3000
	defaultChunkChars    = 3000
)

type Summarizer struct {
	generator llmservice.Generator

	// WordThreshold is the input size above which the map-reduce path is
	// taken; ChunkChars bounds each mapped piece.
	WordThreshold int
	ChunkChars    int
}

func New(g llmservice.Generator) *Summarizer {
	return &Summarizer{
		generator:     g,
		WordThreshold: defaultWordThreshold,
		ChunkChars:    defaultChunkChars,
	}
}

// Summarize returns an abstractive summary of text. Inputs longer than
// WordThreshold words are summarized piecewise and then condensed once
// more.
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("nothing to summarize")
	}

	if len(strings.Fields(text)) <= s.WordThreshold {
		return s.summarizeOne(ctx, text)
	}

	pieces := splitByChars(text, s.ChunkChars)
	log.Debug().Int("pieces", len(pieces)).Msg("summarizing long text piecewise")

	summaries := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		sum, err := s.summarizeOne(ctx, piece)
		if err != nil {
			return "", err
		}
		summaries = append(summaries, sum)
	}
	return s.summarizeOne(ctx, strings.Join(summaries, " "))
}

// SummarizeChunks joins retrieved chunks and summarizes the result.
func (s *Summarizer) SummarizeChunks(ctx context.Context, chunks []string) (string, error) {
	return s.Summarize(ctx, strings.Join(chunks, "\n\n"))
}

func (s *Summarizer) summarizeOne(ctx context.Context, text string) (string, error) {
	return s.generator.Generate(ctx, summarySystemPrompt, fmt.Sprintf(summaryPromptTemplate, text))
}

// splitByChars cuts text into word-bounded pieces of roughly maxChars
// characters each.
func splitByChars(text string, maxChars int) []string {
	words := strings.Fields(text)
	var pieces []string
	var current []string
	currentLen := 0
	for _, word := range words {
		current = append(current, word)
		currentLen += len(word) + 1
		if currentLen >= maxChars {
			pieces = append(pieces, strings.Join(current, " "))
			current = nil
			currentLen = 0
		}
	}
	if len(current) > 0 {
		pieces = append(pieces, strings.Join(current, " "))
	}
	return pieces
}
