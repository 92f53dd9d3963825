package core

import (
	"context"
	"fmt"
	"strings"

	"gamesmith/project"
)

// QuestionAnswer is one answered item from the spec questionnaire.
type QuestionAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ExtraRequest is a free-form addition the user made outside the
// questionnaire.
type ExtraRequest struct {
	Request string `json:"request"`
}

// InterviewAnswers is the submitted questionnaire payload.
type InterviewAnswers struct {
	MainQuestions      []QuestionAnswer `json:"mainQuestions"`
	AdditionalRequests []ExtraRequest   `json:"additionalRequests"`
}

// ApplyInterviewAnswers folds a completed questionnaire into the
// project's specification and returns the model's follow-up message.
func (e *Engine) ApplyInterviewAnswers(ctx context.Context, gameName string, answers InterviewAnswers) (string, error) {
	unlock := e.lockGame(gameName)
	defer unlock()

	p := e.ws.Project(gameName)
	if err := p.Scaffold(); err != nil {
		return "", err
	}
	oldSpec, err := p.ReadSpec()
	if err != nil {
		return "", err
	}

	update, err := e.llm.UpdateSpecification(ctx, oldSpec, formatInterviewAnswers(answers))
	if err != nil {
		return "", err
	}
	if update.Specification != "" {
		if err := p.WriteSpec(update.Specification); err != nil {
			return "", err
		}
	}
	if update.Comment != "" {
		return update.Comment, nil
	}
	return "Specification updated.", nil
}

// SpecChat handles one free-form turn of the spec interview without
// modifying the stored specification.
func (e *Engine) SpecChat(ctx context.Context, gameName, message string) (string, error) {
	p := e.ws.Project(gameName)
	spec, err := p.ReadSpec()
	if err != nil {
		return "", err
	}
	history := chatTranscript(e.chat.Load(p.ChatPath()))
	return e.llm.SpecInterview(ctx, history, message, spec)
}

// formatInterviewAnswers flattens the questionnaire into the plain
// text block the specification-update prompt expects.
func formatInterviewAnswers(answers InterviewAnswers) string {
	var b strings.Builder
	for i, qa := range answers.MainQuestions {
		fmt.Fprintf(&b, "Question %d: %s\nAnswer %d: %s\n\n", i+1, qa.Question, i+1, qa.Answer)
	}
	for i, req := range answers.AdditionalRequests {
		fmt.Fprintf(&b, "Additional request %d: %s\n", i+1, req.Request)
	}
	return b.String()
}

// chatTranscript renders chat history in the speaker-prefixed form
// the interview prompt consumes.
func chatTranscript(entries []project.ChatEntry) string {
	var b strings.Builder
	for _, entry := range entries {
		fmt.Fprintf(&b, "%s: %s\n", entry.Speaker, entry.Text)
	}
	return b.String()
}
