package nvidianim

import (
	"github.com/sashabaranov/go-openai"

	"github.com/florianilch/nimbridge/internal/anthropicadapter/types"
)

// buildRequest constructs the outbound chat completion. Validation failures
// return an invalid_request ErrorResponse so they surface before any backend
// work or limiter admission.
func buildRequest(req types.CreateMessageRequest, aliases map[string]string, stream bool) (openai.ChatCompletionRequest, error) {
	if req.Model == "" {
		return openai.ChatCompletionRequest{}, types.NewErrorResponse(types.ErrorTypeInvalidRequest, "model: field required")
	}
	if req.MaxTokens < 1 {
		return openai.ChatCompletionRequest{}, types.NewErrorResponse(types.ErrorTypeInvalidRequest, "max_tokens: must be at least 1")
	}
	if len(req.Messages) == 0 {
		return openai.ChatCompletionRequest{}, types.NewErrorResponse(types.ErrorTypeInvalidRequest, "messages: at least one message is required")
	}

	messages, err := toBackendMessages(req)
	if err != nil {
		return openai.ChatCompletionRequest{}, types.NewErrorResponse(types.ErrorTypeInvalidRequest, err.Error())
	}

	out := openai.ChatCompletionRequest{
		Model:     resolveModel(req.Model, aliases),
		Messages:  messages,
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature != nil {
		out.Temperature = float32(*req.Temperature)
	}
	if req.TopP != nil {
		out.TopP = float32(*req.TopP)
	}
	if len(req.StopSequences) > 0 {
		out.Stop = req.StopSequences
	}
	out.Tools = toBackendTools(req.Tools)
	out.ToolChoice = toBackendToolChoice(req.ToolChoice)
	if tc := req.ToolChoice; tc != nil && tc.DisableParallelToolUse != nil && *tc.DisableParallelToolUse {
		out.ParallelToolCalls = false
	}
	if stream {
		out.Stream = true
		out.StreamOptions = &openai.StreamOptions{IncludeUsage: true}
	}
	return out, nil
}

// resolveModel maps a client model id through the alias table; unmapped ids
// pass through so native backend ids keep working.
func resolveModel(model string, aliases map[string]string) string {
	if target, ok := aliases[model]; ok {
		return target
	}
	return model
}
