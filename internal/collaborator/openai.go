package collaborator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/rs/zerolog/log"

	"github.com/uxpulse/uxpulse/internal/config"
)

const systemPrompt = `You are a UX optimization advisor for a social platform.
Given aggregate behavioral analytics, respond with a single JSON object:
{"priority":"high"|"medium"|"low","changes":[{"category":...,"recommendation":...,"reasoning":...,"expectedImpact":...,"implementation":...}],"themeAdjustments":{"primaryHue":0-360,"saturation":0-100,"lightness":0-100},"urgentIssues":[...],"overallStrategy":...}
Respond with JSON only, no prose.`

// OpenAIReasoner is a Collaborator backed by an OpenAI-compatible
// chat-completion endpoint.
type OpenAIReasoner struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIReasoner builds a reasoner from config. A custom base URL
// allows pointing at any OpenAI-compatible service.
func NewOpenAIReasoner(cfg config.CollaboratorConfig) *OpenAIReasoner {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIReasoner{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
}

// Recommend sends the analytics request and parses the JSON answer.
// Any transport, timeout, or parse failure is returned as an error;
// the caller is expected to fall back to heuristics.
func (r *OpenAIReasoner) Recommend(ctx context.Context, req AnalysisRequest) (*RecommendationSet, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis request: %w", err)
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(payload)},
		},
		Temperature: 0.4,
	})
	if err != nil {
		return nil, fmt.Errorf("collaborator call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("collaborator returned no choices")
	}

	set, err := ParseRecommendation(resp.Choices[0].Message.Content)
	if err != nil {
		log.Warn().Err(err).Msg("Collaborator response unparseable")
		return nil, err
	}
	return set, nil
}

// ParseRecommendation defensively parses a recommendation set from
// raw model output. Markdown code fences are stripped and the
// outermost JSON object is extracted before unmarshalling.
func ParseRecommendation(raw string) (*RecommendationSet, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in collaborator response")
	}

	var set RecommendationSet
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &set); err != nil {
		return nil, fmt.Errorf("parse recommendation: %w", err)
	}

	switch set.Priority {
	case "low", "medium", "high":
	default:
		return nil, fmt.Errorf("invalid priority %q", set.Priority)
	}
	return &set, nil
}
