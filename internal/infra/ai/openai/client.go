package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"

	domai "github.com/muzaffarmhd/mindscape/internal/domain/ai"
	"github.com/muzaffarmhd/mindscape/internal/infra/ai/prompt"
)

const maxTokens = 1024

// Client wraps the OpenAI SDK behind the domain AI ports: completion,
// sentiment analysis, moderation, transcription, and image analysis.
// Safe for concurrent use by multiple in-flight requests and tasks.
type Client struct {
	*openai.Client
	Model string
}

func NewClient(apiKey, model string) *Client {
	return &Client{Client: openai.NewClient(apiKey), Model: model}
}

func (c *Client) model() string {
	if c.Model != "" {
		return c.Model
	}
	return openai.GPT4oMini
}

// Complete generates a reply from a system prompt plus user text.
func (c *Client) Complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model(),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userText},
		},
	}
	setTokenLimit(&req)

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", wrapErr("create chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", domai.ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

// Analyze scores free text and returns the provider's attribute mapping.
func (c *Client) Analyze(ctx context.Context, text string) (map[string]any, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model(),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetAnalyzerSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: prompt.GetAnalyzerUserPrompt(text)},
		},
	}
	setTokenLimit(&req)

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, wrapErr("create analysis completion", err)
	}
	if len(resp.Choices) == 0 {
		return nil, domai.ErrEmptyCompletion
	}
	return decodePayload(resp.Choices[0].Message.Content)
}

// AnalyzeImage scores an image reachable at imageURL via the vision API.
func (c *Client) AnalyzeImage(ctx context.Context, imageURL string) (map[string]any, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model(),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetImageSystemPrompt()},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: "Analyze the emotional content of this image and respond with the JSON per schema."},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
						URL:    imageURL,
						Detail: openai.ImageURLDetailAuto,
					}},
				},
			},
		},
	}
	setTokenLimit(&req)

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, wrapErr("create image completion", err)
	}
	if len(resp.Choices) == 0 {
		return nil, domai.ErrEmptyCompletion
	}
	return decodePayload(resp.Choices[0].Message.Content)
}

// Moderate forwards text to the moderation endpoint and returns the verdict
// verbatim as "flagged: <categories>" or "clean".
func (c *Client) Moderate(ctx context.Context, text string) (string, error) {
	resp, err := c.Moderations(ctx, openai.ModerationRequest{
		Input: text,
		Model: openai.ModerationOmniLatest,
	})
	if err != nil {
		return "", wrapErr("create moderation", err)
	}
	if len(resp.Results) == 0 {
		return "", domai.ErrEmptyCompletion
	}
	res := resp.Results[0]
	if !res.Flagged {
		return "clean", nil
	}
	return "flagged: " + strings.Join(flaggedCategories(res.Categories), ", "), nil
}

// Transcribe runs Whisper over uploaded audio and returns the transcript.
func (c *Client) Transcribe(ctx context.Context, filename string, r io.Reader) (string, error) {
	resp, err := c.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: filename,
		Reader:   r,
	})
	if err != nil {
		return "", wrapErr("create transcription", err)
	}
	return resp.Text, nil
}

// setTokenLimit picks the right token cap field: reasoning models
// (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens.
func setTokenLimit(req *openai.ChatCompletionRequest) {
	m := req.Model
	if strings.HasPrefix(m, "o1") || strings.HasPrefix(m, "o3") || strings.HasPrefix(m, "o4") || strings.HasPrefix(m, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}
}

func decodePayload(content string) (map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("decode analyzer response: %w", err)
	}
	return payload, nil
}

// wrapErr maps provider quota errors onto the domain sentinel so the router
// can answer 429, and wraps everything else with the operation name.
func wrapErr(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 429 {
		return fmt.Errorf("%s: %w", op, domai.ErrQuotaExceeded)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func flaggedCategories(c openai.ResultCategories) []string {
	pairs := []struct {
		name string
		hit  bool
	}{
		{"hate", c.Hate},
		{"hate/threatening", c.HateThreatening},
		{"harassment", c.Harassment},
		{"harassment/threatening", c.HarassmentThreatening},
		{"self-harm", c.SelfHarm},
		{"self-harm/intent", c.SelfHarmIntent},
		{"self-harm/instructions", c.SelfHarmInstructions},
		{"sexual", c.Sexual},
		{"sexual/minors", c.SexualMinors},
		{"violence", c.Violence},
		{"violence/graphic", c.ViolenceGraphic},
	}
	var out []string
	for _, p := range pairs {
		if p.hit {
			out = append(out, p.name)
		}
	}
	return out
}
