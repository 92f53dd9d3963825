package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	tellm "github.com/santiagomed/tellm/sdk"
	"github.com/sashabaranov/go-openai"

	"gamesmith/apperr"
	"gamesmith/logger"
)

// OpenAIClient is the production Client backed by the OpenAI API.
type OpenAIClient struct {
	openAIClient *openai.Client
	config       *ClientConfig
	tellmClient  *tellm.Client
	logger       logger.Logger
}

// NewOpenAIClient creates a new LLM client
func NewOpenAIClient(cfg *ClientConfig, logger logger.Logger) (Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	cfg.BatchID = EnsureBatchID(cfg.BatchID)
	openAIClient := openai.NewClient(cfg.APIKey)
	tellmClient := tellm.NewClient(cfg.TellmURL)
	return &OpenAIClient{
		openAIClient: openAIClient,
		config:       cfg,
		tellmClient:  tellmClient,
		logger:       logger,
	}, nil
}

func (c *OpenAIClient) Classify(ctx context.Context, message string) (Classification, error) {
	text, err := c.getCompletion(ctx, getClassifyPrompt(message), openai.ChatCompletionResponseFormatTypeJSONObject)
	if err != nil {
		return Classification{}, err
	}

	var result Classification
	if err := json.Unmarshal([]byte(StripFences(text)), &result); err != nil {
		return Classification{}, fmt.Errorf("error parsing classification: %w", err)
	}
	return result, nil
}

func (c *OpenAIClient) GenerateGame(ctx context.Context, req GenerationRequest) (CodeResponse, error) {
	var prompt string
	if req.Code == "" {
		prompt = getCreatePrompt(req.Request, req.Question)
	} else {
		prompt = getModifyPrompt(req.Request, req.Question, req.Code, req.Data)
	}

	text, err := c.getCompletion(ctx, prompt, openai.ChatCompletionResponseFormatTypeText)
	if err != nil {
		return CodeResponse{}, err
	}
	return ParseCodeResponse(text), nil
}

func (c *OpenAIClient) AnswerQuestion(ctx context.Context, question, code, data string) (string, error) {
	text, err := c.getCompletion(ctx, getAnswerPrompt(question, code, data), openai.ChatCompletionResponseFormatTypeText)
	if err != nil {
		return "", err
	}

	answer := ParseAnswer(text)
	if !answer.Present {
		return "", fmt.Errorf("response is missing the ANSWER section")
	}
	return answer.Text, nil
}

func (c *OpenAIClient) UpdateSpecification(ctx context.Context, oldSpec, answers string) (SpecUpdate, error) {
	text, err := c.getCompletion(ctx, getSpecUpdatePrompt(oldSpec, answers), openai.ChatCompletionResponseFormatTypeText)
	if err != nil {
		return SpecUpdate{}, err
	}

	update := ParseSpecUpdate(text)
	if update.Specification == "" {
		return SpecUpdate{}, fmt.Errorf("response is missing the SPECIFICATION section")
	}
	return update, nil
}

func (c *OpenAIClient) SpecInterview(ctx context.Context, history, message, spec string) (string, error) {
	text, err := c.getCompletion(ctx, getSpecInterviewPrompt(history, message, spec), openai.ChatCompletionResponseFormatTypeText)
	if err != nil {
		return "", err
	}
	return StripFences(text), nil
}

// getCompletion sends a request to the OpenAI API and returns the generated text
func (c *OpenAIClient) getCompletion(ctx context.Context, prompt string, responseType openai.ChatCompletionResponseFormatType) (string, error) {
	resp, err := c.openAIClient.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.config.ModelName,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: getSystemPrompt(),
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{Type: responseType},
		},
	)

	e := &openai.APIError{}
	if errors.As(err, &e) {
		switch e.HTTPStatusCode {
		case 401:
			// unauthorized
			return "", apperr.NewServiceError("llm", fmt.Errorf("unauthorized: invalid OpenAI API key"))
		case 429:
			// rate limiting or engine overload (wait and retry)
			return "", apperr.NewServiceError("llm", fmt.Errorf("rate limited by OpenAI API"))
		case 500:
			// openai server error (retry)
			return "", apperr.NewServiceError("llm", fmt.Errorf("OpenAI server error"))
		default:
			// unhandled
			return "", apperr.NewServiceError("llm", fmt.Errorf("OpenAI API error: %v", e))
		}
	}
	if err != nil {
		return "", apperr.NewServiceError("llm", err)
	}

	if len(resp.Choices) == 0 {
		return "", apperr.NewServiceError("llm", fmt.Errorf("no choices returned from OpenAI"))
	}
	usage := resp.Usage
	res := resp.Choices[0].Message.Content
	err = c.tellmClient.Log(c.config.BatchID, prompt, res, c.config.ModelName, usage.PromptTokens, usage.CompletionTokens)
	if err != nil {
		c.logger.WithField("warning", err).Warn("failed to log to tellm")
	}

	return res, nil
}
