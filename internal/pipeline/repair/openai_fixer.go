package repair

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/model"
	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/perr"
)

// OpenAIFixer is the production Fixer, grounded in the donor extractor's
// chat-completion shape: a JSON-object response format and a single
// system+user message pair, parsed back into a typed struct.
type OpenAIFixer struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAIFixer builds a Fixer backed by the OpenAI chat completions API.
func NewOpenAIFixer(apiKey, model string, logger *zap.Logger) *OpenAIFixer {
	return &OpenAIFixer{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: logger,
	}
}

// patchEnvelope is the object wrapper the model is asked to emit. OpenAI's
// JSON-object response format requires a top-level object, not a bare
// array, so the patch list is nested under a key rather than returned
// directly.
type patchEnvelope struct {
	Patches []model.JsonPatch `json:"patches"`
}

// ProposePatch sends one chat completion and parses its response into a
// patch list. Any transport, timeout, or malformed-JSON failure is wrapped
// as perr.LlmError so the orchestrator treats it as "no patch" rather than
// a fatal job error.
func (f *OpenAIFixer) ProposePatch(ctx context.Context, req Request) ([]model.JsonPatch, error) {
	userPayload, err := json.Marshal(req)
	if err != nil {
		return nil, perr.LlmError{Message: fmt.Sprintf("marshal repair request: %v", err)}
	}

	resp, err := f.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       f.model,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(userPayload)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		if f.logger != nil {
			f.logger.Warn("llm repair call failed", zap.Error(err))
		}
		return nil, perr.LlmError{Message: err.Error()}
	}
	if len(resp.Choices) == 0 {
		return nil, perr.LlmError{Message: "no choices in llm response"}
	}

	var envelope patchEnvelope
	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), &envelope); err != nil {
		if f.logger != nil {
			f.logger.Warn("llm repair response unparseable", zap.Error(err), zap.String("content", content))
		}
		return nil, perr.LlmError{Message: fmt.Sprintf("parse llm repair response: %v", err)}
	}
	return envelope.Patches, nil
}
