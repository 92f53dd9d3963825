package llm

import "context"

// Classification is the structured decision for one inbound message.
type Classification struct {
	ModificationRequests []string `json:"modification_requests"`
	Questions            []string `json:"questions"`
	Disallowed           []string `json:"disallowed_items"`
}

// GenerationRequest carries everything one code-generation call needs.
// Code and Data are the current on-disk contents; empty Code selects
// the create template instead of the modify template.
type GenerationRequest struct {
	Request  string
	Question string
	Code     string
	Data     string
}

// CodeResponse is the parsed result of one generation call. A field
// the model chose not to produce is the empty string.
type CodeResponse struct {
	Code        string
	Data        string
	AssetList   string
	Description string
}

// SpecUpdate is the parsed result of a specification-update call.
type SpecUpdate struct {
	Comment       string
	Specification string
}

type Client interface {
	Classify(ctx context.Context, message string) (Classification, error)
	GenerateGame(ctx context.Context, req GenerationRequest) (CodeResponse, error)
	AnswerQuestion(ctx context.Context, question, code, data string) (string, error)
	UpdateSpecification(ctx context.Context, oldSpec, answers string) (SpecUpdate, error)
	SpecInterview(ctx context.Context, history, message, spec string) (string, error)
}

// ClientConfig holds settings for the OpenAI-backed client.
type ClientConfig struct {
	APIKey    string
	ModelName string
	TellmURL  string
	BatchID   string
}
