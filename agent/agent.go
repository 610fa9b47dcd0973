// Package agent runs the LLM conversation loop for the travel assistant. It
// turns stored message history into chat-completion calls and dispatches the
// model's tool calls to the registered tools.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/voyahq/voya-agent/models"
)

// maxToolIterations bounds how many completion rounds a single chat turn may
// take when the model keeps requesting tools.
const maxToolIterations = 5

// Agent orchestrates calls to the LLM and the registered tools to produce
// one assistant reply per chat turn.
type Agent struct {
	client *openai.Client
	model  string
	prompt string
	tools  []Tool
	logger *slog.Logger
}

func New(apiKey, baseURL, model string, tools []Tool) *Agent {
	var client *openai.Client
	if baseURL != "" {
		client = openai.NewClient(option.WithBaseURL(baseURL), option.WithAPIKey(apiKey))
	} else {
		client = openai.NewClient(option.WithAPIKey(apiKey))
	}
	return &Agent{
		client: client,
		model:  model,
		prompt: systemPrompt,
		tools:  tools,
		logger: slog.Default(),
	}
}

// Respond produces the assistant's reply for a conversation whose history
// already ends with the latest user message. The returned metadata records
// the tool calls made while answering.
func (a *Agent) Respond(ctx context.Context, history []models.Message) (string, map[string]interface{}, error) {
	messages := a.buildMessages(history)
	var traces []map[string]interface{}

	for i := 0; i < maxToolIterations; i++ {
		params := openai.ChatCompletionNewParams{
			Messages: openai.F(messages),
			Model:    openai.F(a.model),
		}
		if tools := a.toolParams(); len(tools) > 0 {
			params.Tools = openai.F(tools)
		}

		completion, err := a.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return "", nil, fmt.Errorf("chat completion: %w", err)
		}
		if len(completion.Choices) == 0 {
			return "", nil, errors.New("chat completion returned no choices")
		}

		message := completion.Choices[0].Message
		if len(message.ToolCalls) == 0 {
			meta := map[string]interface{}{}
			if len(traces) > 0 {
				meta["tool_calls"] = traces
			}
			return message.Content, meta, nil
		}

		messages = append(messages, message)
		for _, call := range message.ToolCalls {
			result, trace := a.runTool(ctx, call)
			traces = append(traces, trace)
			messages = append(messages, toolMessage(call.ID, result))
		}
	}
	return "", nil, errors.New("tool iteration limit reached")
}

// buildMessages converts stored history into chat-completion params, with
// the system prompt up front.
func (a *Agent) buildMessages(history []models.Message) []openai.ChatCompletionMessageParamUnion {
	messages := []openai.ChatCompletionMessageParamUnion{openai.ChatCompletionDeveloperMessageParam{
		Role:    openai.F(openai.ChatCompletionDeveloperMessageParamRoleDeveloper),
		Content: openai.F([]openai.ChatCompletionContentPartTextParam{openai.TextPart(a.prompt)}),
	}}
	for _, m := range history {
		switch m.Role {
		case models.RoleUser:
			messages = append(messages, openai.UserMessage(m.Content))
		case models.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		}
	}
	return messages
}

func (a *Agent) toolParams() []openai.ChatCompletionToolParam {
	params := []openai.ChatCompletionToolParam{}
	for _, tool := range a.tools {
		params = append(params, openai.ChatCompletionToolParam{
			Type: openai.F(openai.ChatCompletionToolTypeFunction),
			Function: openai.F(openai.FunctionDefinitionParam{
				Name:        openai.F(tool.Name()),
				Description: openai.F(tool.Description()),
				Parameters:  openai.F(tool.Parameters()),
			}),
		})
	}
	return params
}

func (a *Agent) tool(name string) Tool {
	for _, tool := range a.tools {
		if tool.Name() == name {
			return tool
		}
	}
	return nil
}

// runTool executes one tool call and returns the text fed back to the model
// plus a trace entry for the message metadata.
func (a *Agent) runTool(ctx context.Context, call openai.ChatCompletionMessageToolCall) (string, map[string]interface{}) {
	trace := map[string]interface{}{
		"tool":      call.Function.Name,
		"arguments": call.Function.Arguments,
	}

	tool := a.tool(call.Function.Name)
	if tool == nil {
		a.logger.Error("Unknown tool requested", "tool", call.Function.Name)
		trace["error"] = "unknown tool"
		return "Error: unknown tool. Do not retry", trace
	}

	args := map[string]interface{}{}
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			a.logger.Error("Tool arguments are not valid JSON", "tool", call.Function.Name, "error", err)
			trace["error"] = err.Error()
			return "Error: arguments were not valid JSON. Retry with valid JSON", trace
		}
	}

	result, err := tool.Execute(ctx, args)
	if err != nil {
		a.logger.Error("Error running tool", "tool", call.Function.Name, "error", err)
		trace["error"] = err.Error()
		return fmt.Sprintf("Error: %s. Do not retry", err), trace
	}
	return result, trace
}

func toolMessage(toolCallID, content string) openai.ChatCompletionToolMessageParam {
	return openai.ChatCompletionToolMessageParam{
		Role:       openai.F(openai.ChatCompletionToolMessageParamRoleTool),
		Content:    openai.F([]openai.ChatCompletionContentPartTextParam{{Type: openai.F(openai.ChatCompletionContentPartTextTypeText), Text: openai.F(content)}}),
		ToolCallID: openai.F(toolCallID),
	}
}
