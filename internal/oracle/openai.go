package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/AmanSingh336699/ai-interview-battle/internal/errors"
)

// QuestionsPerBattle is the fixed battle question count.
const QuestionsPerBattle = 5

const (
	maxRankPicks = 3
	maxScore     = 10
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAI is the chat-completions backed Oracle. One shared instance serves
// all requests; the underlying client is safe for concurrent use.
type OpenAI struct {
	client openai.Client
	model  openai.ChatModel
}

func NewOpenAI(c Config) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(c.APIKey)}
	if c.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.BaseURL))
	}

	model := openai.ChatModel(c.Model)
	if c.Model == "" {
		model = openai.ChatModelGPT4oMini
	}

	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (o *OpenAI) GenerateQuestions(ctx context.Context, topic, difficulty string) ([]string, error) {
	prompt := fmt.Sprintf(`You are an AI interview simulator. Generate %d technical interview questions on topic %q with %q difficulty.
Guidelines:
- No duplicate, irrelevant, or overly simple questions.
- Questions should cover theoretical, practical and scenario-based topics.
- Return JSON: {"questions": ["Question 1", "..."]}`, QuestionsPerBattle, topic, difficulty)

	text, err := o.complete(ctx, prompt, 1000)
	if err != nil {
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("question generation failed"),
			errors.WithCause(err))
	}

	questions, err := ParseQuestions(text)
	if err != nil {
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("question generation returned malformed output"),
			errors.WithCause(err))
	}
	return questions, nil
}

// ParseQuestions validates model output against the fixed question count:
// excess questions are truncated, a short list is malformed.
func ParseQuestions(text string) ([]string, error) {
	var out struct {
		Questions []string `json:"questions"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, err
	}
	if len(out.Questions) < QuestionsPerBattle {
		return nil, fmt.Errorf("got %d questions, want %d", len(out.Questions), QuestionsPerBattle)
	}
	return out.Questions[:QuestionsPerBattle], nil
}

func (o *OpenAI) Score(ctx context.Context, question, answer string) (int, error) {
	prompt := fmt.Sprintf(`Evaluate the answer and return only JSON with a score from 0 to %d.

Question: %s
Answer: %s

Return JSON: {"score": 0-%d}`, maxScore, question, answer, maxScore)

	text, err := o.complete(ctx, prompt, 200)
	if err != nil {
		return 0, fmt.Errorf("oracle: score: %w", err)
	}

	var out struct {
		Score int `json:"score"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return 0, fmt.Errorf("oracle: score: malformed output: %w", err)
	}

	return ClampScore(out.Score), nil
}

func (o *OpenAI) Rank(ctx context.Context, entries []RankEntry) ([]RankEntry, error) {
	raw, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("oracle: rank: %w", err)
	}

	prompt := fmt.Sprintf(`Below are answers submitted during a quiz battle. Pick the best answers: at most one per distinct question, at most %d total.
Return a JSON array of the picked entries unchanged, e.g. [{"userId": "...", "question": "...", "answer": "..."}].

Answers:
%s`, maxRankPicks, raw)

	text, err := o.complete(ctx, prompt, 1200)
	if err != nil {
		return nil, fmt.Errorf("oracle: rank: %w", err)
	}

	var picks []RankEntry
	if err := json.Unmarshal([]byte(text), &picks); err != nil {
		return nil, fmt.Errorf("oracle: rank: malformed output: %w", err)
	}

	return CapRanking(picks), nil
}

func (o *OpenAI) complete(ctx context.Context, prompt string, maxTokens int64) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxTokens: openai.Int(maxTokens),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}

	return stripFences(resp.Choices[0].Message.Content), nil
}

// stripFences removes the markdown code fences models wrap JSON in.
func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// ClampScore bounds a model-issued score to [0, 10].
func ClampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > maxScore {
		return maxScore
	}
	return s
}

// CapRanking enforces the ranking contract on model output: at most one pick
// per distinct question, at most three picks total.
func CapRanking(picks []RankEntry) []RankEntry {
	seen := make(map[string]bool, len(picks))
	out := make([]RankEntry, 0, maxRankPicks)
	for _, p := range picks {
		if seen[p.Question] {
			continue
		}
		seen[p.Question] = true
		out = append(out, p)
		if len(out) == maxRankPicks {
			break
		}
	}
	return out
}
