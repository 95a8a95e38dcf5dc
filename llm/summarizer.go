package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lumikids/tutorflow/types"
)

const summarizerSystemPrompt = "You are an expert at creating concise, useful summaries of educational interactions."

const summaryPromptTemplate = `You are helping to summarize a child's learning interactions for an AI tutor.

Please create a concise summary of the following memories that captures:
1. Key preferences and interests
2. Learning strengths and difficulties
3. Emotional patterns and responses
4. Important personal information
5. Educational progress and achievements

Keep the summary focused, factual, and useful for personalizing future tutoring sessions.

Memories to summarize:
%s

Please provide a clear, organized summary in 2-3 paragraphs.`

// Summarizer condenses a group of memory records into narrative text via one
// model call. Satisfies the compactor's summarization dependency.
type Summarizer struct {
	client Client
	logger *zap.Logger

	// Now is injectable for tests.
	Now func() time.Time
}

// NewSummarizer creates a summarizer over the given client.
func NewSummarizer(client Client, logger *zap.Logger) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{
		client: client,
		logger: logger.With(zap.String("component", "memory_summarizer")),
		Now:    time.Now,
	}
}

// Summarize sends the formatted memory list to the model and returns the
// summary text.
func (s *Summarizer) Summarize(ctx context.Context, memories []types.MemoryRecord) (string, error) {
	if len(memories) == 0 {
		return "", fmt.Errorf("no memories to summarize")
	}

	prompt := fmt.Sprintf(summaryPromptTemplate, s.formatMemories(memories))
	msgs := []types.Message{
		types.NewSystemMessage(summarizerSystemPrompt),
		types.NewUserMessage(prompt),
	}

	s.logger.Debug("requesting summarization", zap.Int("memory_count", len(memories)))

	resp, err := s.client.Complete(ctx, msgs, nil)
	if err != nil {
		return "", err
	}
	if resp == nil || resp.Content == "" {
		return "", types.NewError(types.ErrModelUnavailable, "empty summarization response").WithRetryable(true)
	}
	return resp.Content, nil
}

// formatMemories renders records as a numbered list with type, importance
// stars and age, one blank line between entries.
func (s *Summarizer) formatMemories(memories []types.MemoryRecord) string {
	now := s.Now()

	entries := make([]string, 0, len(memories))
	for i, mem := range memories {
		entries = append(entries, fmt.Sprintf("%d. [%s] %s (%s)\n   %s",
			i+1,
			titleCase(string(mem.Type)),
			strings.Repeat("★", mem.Importance),
			formatAge(now.Sub(mem.Timestamp)),
			strings.TrimSpace(mem.Text)))
	}
	return strings.Join(entries, "\n\n")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func formatAge(age time.Duration) string {
	switch {
	case age < 24*time.Hour:
		return "today"
	case age < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(age.Hours()/24))
	case age < 30*24*time.Hour:
		return fmt.Sprintf("%dw ago", int(age.Hours()/(24*7)))
	default:
		return fmt.Sprintf("%dmo ago", int(age.Hours()/(24*30)))
	}
}
