// Package llm implements the engine's generation and judging boundaries on
// top of OpenAI-compatible chat APIs, with fallback across an ordered list
// of providers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/mentor/internal/engine"
	"github.com/pavelanni/mentor/internal/llm/prompts"
	"github.com/pavelanni/mentor/internal/model"
)

// ProviderConfig describes one OpenAI-compatible endpoint.
type ProviderConfig struct {
	Name    string
	BaseURL string
	APIKey  string
	Model   string
}

type provider struct {
	name  string
	api   *openai.Client
	model string
}

// Client tries each configured provider in order and falls through to the
// next on any API error. It implements engine.Generator and engine.Judge.
type Client struct {
	providers []provider
	maxTokens int
}

// New creates a client over the given providers. At least one is required.
func New(configs []ProviderConfig, maxTokens int) (*Client, error) {
	if len(configs) == 0 {
		return nil, errors.New("no LLM providers configured")
	}
	c := &Client{maxTokens: maxTokens}
	for _, cfg := range configs {
		apiCfg := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			apiCfg.BaseURL = cfg.BaseURL
		}
		c.providers = append(c.providers, provider{
			name:  cfg.Name,
			api:   openai.NewClientWithConfig(apiCfg),
			model: cfg.Model,
		})
	}
	return c, nil
}

// complete runs one chat completion, trying each provider in order.
func (c *Client) complete(ctx context.Context, system string, history []model.ChatMessage, user string, temperature float32, maxTokens int) (string, error) {
	msgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
	}
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == model.RoleTutor {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	if user != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: user})
	}

	var lastErr error
	for _, p := range c.providers {
		resp, err := p.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       p.model,
			Messages:    msgs,
			Temperature: temperature,
			MaxTokens:   maxTokens,
		})
		if err != nil {
			slog.Warn("provider failed, trying next", "provider", p.name, "error", err)
			lastErr = err
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("provider %s returned no choices", p.name)
			continue
		}
		return resp.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("all providers failed: %w", lastErr)
}

// GenerateLesson produces lesson content in the given modality.
func (c *Client) GenerateLesson(ctx context.Context, modality model.Modality, module *model.Module, profile *model.LearnerProfile) (string, error) {
	data := lessonData(module)
	if profile != nil {
		data.OptimalMinutes = profile.Patterns.OptimalSessionMinutes
		data.AsksQuestions = profile.Patterns.AsksQuestions
	}
	system, err := prompts.Lesson(modality, data)
	if err != nil {
		return "", err
	}
	return c.complete(ctx, system, nil, "Teach me this module.", 0.7, c.maxTokens)
}

// TutorReply answers a learner's mid-lesson message with the recent
// conversation replayed for context.
func (c *Client) TutorReply(ctx context.Context, module *model.Module, modality model.Modality, history []model.ChatMessage, message string) (string, error) {
	data := prompts.TutorData{Modality: modality}
	if module != nil {
		data.Title = module.Title
		data.Topic = module.Topic
	}
	system, err := prompts.Tutor(data)
	if err != nil {
		return "", err
	}
	return c.complete(ctx, system, history, message, 0.7, c.maxTokens)
}

// ComprehensionQuestion asks for one conversational check question.
func (c *Client) ComprehensionQuestion(ctx context.Context, module *model.Module) (string, error) {
	system, err := prompts.ComprehensionQuestion(lessonData(module))
	if err != nil {
		return "", err
	}
	return c.complete(ctx, system, nil, "Ask me the question.", 0.8, 200)
}

// RetentionQuestion asks for one casual recall question about a concept.
func (c *Client) RetentionQuestion(ctx context.Context, concept string) (string, error) {
	system, err := prompts.RecallQuestion(concept)
	if err != nil {
		return "", err
	}
	return c.complete(ctx, system, nil, "Ask me the question.", 0.8, 200)
}

// ReviewContent produces a quick refresher over weak concepts.
func (c *Client) ReviewContent(ctx context.Context, concepts []model.ConceptMastery) (string, error) {
	data := prompts.ReviewData{}
	for _, m := range concepts {
		data.Concepts = append(data.Concepts, m.ConceptID)
	}
	system, err := prompts.Review(data)
	if err != nil {
		return "", err
	}
	return c.complete(ctx, system, nil, "Run the review.", 0.7, c.maxTokens)
}

// EvaluateRecall judges a retention test answer. The judge replies with
// labeled score lines which are parsed leniently; a missing score defaults
// to 0.5.
func (c *Client) EvaluateRecall(ctx context.Context, concept, answer string) (engine.RecallScores, error) {
	system := buildRecallJudgePrompt(concept)
	raw, err := c.complete(ctx, system, nil, answer, 0.2, 300)
	if err != nil {
		return engine.RecallScores{}, err
	}
	slog.Debug("recall judge response", "concept", concept, "raw", raw)
	return parseRecallScores(raw), nil
}

// EvaluateComprehension judges a comprehension check answer.
func (c *Client) EvaluateComprehension(ctx context.Context, module *model.Module, answer string) (engine.CheckScores, error) {
	system := buildCheckJudgePrompt(module)
	raw, err := c.complete(ctx, system, nil, answer, 0.2, 300)
	if err != nil {
		return engine.CheckScores{}, err
	}
	slog.Debug("comprehension judge response", "raw", raw)
	return parseCheckScores(raw), nil
}

func lessonData(module *model.Module) prompts.LessonData {
	if module == nil {
		return prompts.LessonData{}
	}
	return prompts.LessonData{
		Title:       module.Title,
		Description: module.Description,
		Topic:       module.Topic,
		Objectives:  module.LearningObjectives,
		Minutes:     module.EstimatedTime,
	}
}

func buildRecallJudgePrompt(concept string) string {
	var sb strings.Builder
	sb.WriteString("You are evaluating how well a learner remembers the concept \"")
	sb.WriteString(concept)
	sb.WriteString("\" some time after studying it.\n\n")
	sb.WriteString("The learner's answer follows. Assess three dimensions, each from 0.0 to 1.0:\n")
	sb.WriteString("- recall: how accurately they remember the core idea\n")
	sb.WriteString("- confidence: how sure of themselves they sound\n")
	sb.WriteString("- application: whether they could apply the concept, not just recite it\n\n")
	sb.WriteString("Respond with EXACTLY these four lines and nothing else:\n")
	sb.WriteString("RECALL: <0.0-1.0>\n")
	sb.WriteString("CONFIDENCE: <0.0-1.0>\n")
	sb.WriteString("APPLICATION: <0.0-1.0>\n")
	sb.WriteString("FEEDBACK: <one encouraging sentence>\n")
	return sb.String()
}

func buildCheckJudgePrompt(module *model.Module) string {
	var sb strings.Builder
	sb.WriteString("You are evaluating a learner's answer to a comprehension check")
	if module != nil {
		sb.WriteString(" for the module \"" + module.Title + "\"")
	}
	sb.WriteString(".\n\n")
	sb.WriteString("Score understanding from 0.0 (no understanding) to 1.0 (complete understanding).\n")
	sb.WriteString("Reward genuine reasoning over recited definitions.\n\n")
	sb.WriteString("Respond with EXACTLY these two lines and nothing else:\n")
	sb.WriteString("SCORE: <0.0-1.0>\n")
	sb.WriteString("FEEDBACK: <one or two sentences of specific feedback>\n")
	return sb.String()
}

// parseRecallScores extracts the labeled scores from a judge reply. Missing
// or malformed scores fall back to 0.5 so one odd reply does not fail the
// whole evaluation.
func parseRecallScores(raw string) engine.RecallScores {
	scores := engine.RecallScores{Recall: 0.5, Confidence: 0.5, Application: 0.5}
	for _, line := range strings.Split(raw, "\n") {
		label, value, ok := splitLabeled(line)
		if !ok {
			continue
		}
		switch label {
		case "RECALL":
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				scores.Recall = f
			}
		case "CONFIDENCE":
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				scores.Confidence = f
			}
		case "APPLICATION":
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				scores.Application = f
			}
		case "FEEDBACK":
			scores.Feedback = value
		}
	}
	return scores
}

// parseCheckScores extracts SCORE and FEEDBACK lines from a judge reply.
func parseCheckScores(raw string) engine.CheckScores {
	scores := engine.CheckScores{Score: 0.5}
	for _, line := range strings.Split(raw, "\n") {
		label, value, ok := splitLabeled(line)
		if !ok {
			continue
		}
		switch label {
		case "SCORE":
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				scores.Score = f
			}
		case "FEEDBACK":
			scores.Feedback = value
		}
	}
	return scores
}

func splitLabeled(line string) (label, value string, ok bool) {
	label, value, ok = strings.Cut(line, ":")
	if !ok {
		return "", "", false
	}
	return strings.ToUpper(strings.TrimSpace(label)), strings.TrimSpace(value), true
}
