package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/carebridge-dev/carebridge/internal/transcript"
)

const detectFunctionName = "detect_medical_emergency"

const systemPromptTemplate = `You analyze a live phone conversation between a caller and an AI assistant.
Determine whether the conversation indicates a medical emergency requiring immediate human assistance.
Base your answer only on the conversation so far.

Conversation:
%s`

// detectSchema is the fixed single-choice function schema. Both fields are
// required so a well-formed response always carries a reason.
var detectSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"is_emergency": {
			"type": "boolean",
			"description": "True if the conversation indicates a medical emergency requiring immediate assistance"
		},
		"reason": {
			"type": "string",
			"description": "Explanation of why this is or is not considered a medical emergency"
		}
	},
	"required": ["is_emergency", "reason"]
}`)

// OpenAI classifies conversation snapshots with a forced tool call, so the
// model's answer is parsed as typed fields rather than free text.
type OpenAI struct {
	client *openai.Client
	model  string
}

func NewOpenAI(apiKey, model string) *OpenAI {
	return NewOpenAIWithConfig(openai.DefaultConfig(apiKey), model)
}

func NewOpenAIWithConfig(config openai.ClientConfig, model string) *OpenAI {
	if strings.TrimSpace(model) == "" {
		model = "gpt-4o"
	}
	return &OpenAI{client: openai.NewClientWithConfig(config), model: model}
}

func (c *OpenAI) Classify(ctx context.Context, turns []transcript.Turn) Result {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: fmt.Sprintf(systemPromptTemplate, transcript.Format(turns)),
			},
		},
		Tools: []openai.Tool{
			{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        detectFunctionName,
					Description: "Determines if the conversation indicates a medical emergency requiring immediate assistance",
					Parameters:  detectSchema,
				},
			},
		},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: detectFunctionName},
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Result{Outcome: OutcomeUnknown, Err: fmt.Errorf("classifier completion: %w", err)}
	}
	if len(resp.Choices) == 0 {
		return Result{Outcome: OutcomeUnknown, Err: fmt.Errorf("classifier: no choices in response")}
	}

	calls := resp.Choices[0].Message.ToolCalls
	if len(calls) == 0 {
		return Result{Outcome: OutcomeUnknown, Err: fmt.Errorf("classifier: no tool call in response")}
	}

	var args struct {
		IsEmergency bool   `json:"is_emergency"`
		Reason      string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(calls[0].Function.Arguments), &args); err != nil {
		return Result{Outcome: OutcomeUnknown, Err: fmt.Errorf("classifier: parse tool arguments: %w", err)}
	}

	if args.IsEmergency {
		return Result{Outcome: OutcomeDetected, Reason: args.Reason}
	}
	return Result{Outcome: OutcomeNotDetected, Reason: args.Reason}
}
