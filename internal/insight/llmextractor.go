package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/meetinglens/transcriptd/internal/llmrouter"
	"github.com/meetinglens/transcriptd/internal/model"
)

// chatter is the narrow slice of llmrouter.Router the extractor needs,
// kept as an interface so tests can substitute a scripted fake.
type chatter interface {
	Chat(ctx context.Context, messages []llmrouter.Message, params llmrouter.ChatParams) (llmrouter.ChatResult, error)
}

// LLMExtractor implements Extractor over a chatter (normally an
// *llmrouter.Router), running §4.8's two-stage prompt contract: detect
// the meeting's current subject, then extract tagged candidates from a
// batch of transcript text. Grounded on the corpus's OpenAI chat
// request/response shape already wired in internal/llmrouter.
type LLMExtractor struct {
	router chatter
}

// NewLLMExtractor constructs an Extractor backed by router.
func NewLLMExtractor(router chatter) *LLMExtractor {
	return &LLMExtractor{router: router}
}

const extractSystemPrompt = `You are analyzing a live meeting transcript excerpt. Identify distinct insights and classify each as exactly one of: summary, action_item, decision, key_point, topic, sentiment. Respond with a JSON array only, no prose, no markdown fences. Each element has fields: kind, body, confidence (0-1), assignee (string, only for action_item, else empty), priority (low|medium|high, only for action_item), due_ms (integer unix millis, 0 if unknown).`

const subjectSystemPrompt = `In at most eight words, name the single topic this meeting excerpt is currently discussing. Respond with the topic only, no punctuation, no prose.`

type rawCandidate struct {
	Kind       string  `json:"kind"`
	Body       string  `json:"body"`
	Confidence float64 `json:"confidence"`
	Assignee   string  `json:"assignee"`
	Priority   string  `json:"priority"`
	DueMS      int64   `json:"due_ms"`
}

// Extract runs stage 1 of §4.8: ask the router for tagged candidates
// over text, given the already-detected subject for context.
func (x *LLMExtractor) Extract(ctx context.Context, text string, subject string) ([]Candidate, error) {
	user := text
	if subject != "" {
		user = fmt.Sprintf("Current subject: %s\n\nTranscript excerpt:\n%s", subject, text)
	}
	res, err := x.router.Chat(ctx, []llmrouter.Message{
		{Role: "system", Content: extractSystemPrompt},
		{Role: "user", Content: user},
	}, llmrouter.ChatParams{Temperature: 0.2, MaxTokens: 1024})
	if err != nil {
		return nil, fmt.Errorf("insight: extract candidates: %w", err)
	}

	var raw []rawCandidate
	body := stripFences(res.Content)
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("insight: parse candidate response: %w", err)
	}

	out := make([]Candidate, 0, len(raw))
	for _, r := range raw {
		kind := model.InsightKind(r.Kind)
		if !validKind(kind) {
			continue
		}
		out = append(out, Candidate{
			Kind:       kind,
			Body:       strings.TrimSpace(r.Body),
			Confidence: r.Confidence,
			Assignee:   r.Assignee,
			Priority:   model.TaskPriority(r.Priority),
			DueMS:      r.DueMS,
		})
	}
	return out, nil
}

// DetectSubject runs the subject-detection half of the two-stage
// contract, §4.8.
func (x *LLMExtractor) DetectSubject(ctx context.Context, text string) (string, error) {
	res, err := x.router.Chat(ctx, []llmrouter.Message{
		{Role: "system", Content: subjectSystemPrompt},
		{Role: "user", Content: text},
	}, llmrouter.ChatParams{Temperature: 0, MaxTokens: 32})
	if err != nil {
		return "", fmt.Errorf("insight: detect subject: %w", err)
	}
	return strings.TrimSpace(res.Content), nil
}

func validKind(k model.InsightKind) bool {
	for _, v := range model.AllInsightKinds {
		if v == k {
			return true
		}
	}
	return false
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

var _ Extractor = (*LLMExtractor)(nil)
