package reasoning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
)

// OpenAIConfig configures the OpenAI-backed reasoning service.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
}

// OpenAIService streams decisions from the OpenAI Responses API.
type OpenAIService struct {
	client *openai.Client
	cfg    OpenAIConfig
	logger *slog.Logger
}

// NewOpenAIService creates an OpenAI reasoning service.
func NewOpenAIService(cfg OpenAIConfig, logger *slog.Logger) (*OpenAIService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("reasoning: openai api key required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	return &OpenAIService{client: &client, cfg: cfg, logger: logger}, nil
}

// Name returns the backend identifier.
func (s *OpenAIService) Name() string { return "openai" }

// Stream performs one streaming reasoning call. Text deltas are forwarded
// to onText as they arrive; tool calls are assembled from argument deltas
// and returned in the result.
func (s *OpenAIService) Stream(ctx context.Context, req Request, onText TextFunc) (Result, error) {
	params := s.buildParams(req)
	stream := s.client.Responses.NewStreaming(ctx, params)

	var text strings.Builder
	builders := make(map[string]*ToolCall)
	var order []string

	for stream.Next() {
		switch ev := stream.Current().AsAny().(type) {
		case responses.ResponseTextDeltaEvent:
			if ev.Delta == "" {
				continue
			}
			text.WriteString(ev.Delta)
			if onText != nil {
				if err := onText(ev.Delta); err != nil {
					return Result{}, err
				}
			}
		case responses.ResponseOutputItemAddedEvent:
			if ev.Item.Type != "function_call" {
				continue
			}
			tc := builders[ev.Item.ID]
			if tc == nil {
				tc = &ToolCall{ID: ev.Item.ID}
				builders[ev.Item.ID] = tc
				order = append(order, ev.Item.ID)
			}
			tc.Name = ev.Item.Name
		case responses.ResponseFunctionCallArgumentsDeltaEvent:
			tc := builders[ev.ItemID]
			if tc == nil {
				tc = &ToolCall{ID: ev.ItemID}
				builders[ev.ItemID] = tc
				order = append(order, ev.ItemID)
			}
			tc.Arguments += ev.Delta
		case responses.ResponseCompletedEvent:
			// The final response carries complete call arguments; prefer
			// them over anything assembled from deltas.
			for _, item := range ev.Response.Output {
				if item.Type != "function_call" {
					continue
				}
				tc := builders[item.ID]
				if tc == nil {
					tc = &ToolCall{ID: item.ID}
					builders[item.ID] = tc
					order = append(order, item.ID)
				}
				tc.Name = item.Name
				tc.Arguments = item.Arguments
			}
		case responses.ResponseErrorEvent:
			return Result{}, fmt.Errorf("reasoning: openai stream: %s", ev.Message)
		}
	}
	if err := stream.Err(); err != nil {
		return Result{}, fmt.Errorf("reasoning: openai stream: %w", err)
	}

	calls := make([]ToolCall, 0, len(order))
	for _, id := range order {
		calls = append(calls, *builders[id])
	}
	return Result{Text: text.String(), ToolCalls: calls}, nil
}

func (s *OpenAIService) buildParams(req Request) responses.ResponseNewParams {
	input := responses.ResponseInputParam{}
	if req.System != "" {
		input = append(input, responses.ResponseInputItemParamOfMessage(req.System, responses.EasyInputMessageRoleSystem))
	}
	input = append(input, responses.ResponseInputItemParamOfMessage(req.Prompt, responses.EasyInputMessageRoleUser))

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.cfg.MaxTokens
	}

	params := responses.ResponseNewParams{
		Model:           shared.ResponsesModel(s.cfg.Model),
		Input:           responses.ResponseNewParamsInputUnion{OfInputItemList: input},
		MaxOutputTokens: openai.Int(int64(maxTokens)),
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	} else if s.cfg.Temperature > 0 {
		params.Temperature = openai.Float(s.cfg.Temperature)
	}
	if len(req.Tools) > 0 {
		params.Tools = convertTools(req.Tools)
	}
	return params
}

func convertTools(tools []ToolSpec) []responses.ToolUnionParam {
	out := make([]responses.ToolUnionParam, len(tools))
	for i, t := range tools {
		out[i] = responses.ToolParamOfFunction(t.Name, ensureObjectType(t.Parameters), true)
		if t.Description != "" {
			fn := out[i].OfFunction
			fn.Description = openai.String(t.Description)
			out[i].OfFunction = fn
		}
	}
	return out
}

func ensureObjectType(params map[string]any) map[string]any {
	if params == nil {
		return map[string]any{"type": "object"}
	}
	if _, ok := params["type"]; !ok {
		// Copy before mutating; callers share the catalog maps.
		clone := make(map[string]any, len(params)+1)
		for k, v := range params {
			clone[k] = v
		}
		clone["type"] = "object"
		return clone
	}
	return params
}
