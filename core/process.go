package core

import (
	"context"
	"fmt"
	"strings"

	"gamesmith/apperr"
	"gamesmith/llm"
	"gamesmith/project"
)

// Response is the outcome of one processed chat message.
type Response struct {
	Status string `json:"status"`
	Code   string `json:"code"`
	Data   string `json:"data"`
	Reply  string `json:"reply"`
}

const (
	StatusSuccess = "success"
	StatusFail    = "fail"
)

// ProcessMessage runs one chat turn end to end: classify the message,
// route it (small talk, question, or modification), and record exactly
// one user and one bot entry in the transcript. It never returns an
// error; every failure becomes a fail Response so the transcript and
// the HTTP reply stay consistent.
func (e *Engine) ProcessMessage(ctx context.Context, gameName, message string) Response {
	unlock := e.lockGame(gameName)
	defer unlock()

	p := e.ws.Project(gameName)

	cls, err := e.classifyWithRetry(ctx, message)
	if err != nil {
		reply := fmt.Sprintf("Something went wrong while reading your message: %v", err)
		e.appendChat(p, message, reply)
		return Response{Status: StatusFail, Reply: reply}
	}

	summary := classificationSummary(cls)
	rejections := formatRejections(cls.Disallowed)
	requests := strings.Join(cls.ModificationRequests, "\n")
	question := strings.Join(cls.Questions, "\n")

	if len(cls.ModificationRequests) == 0 {
		if len(cls.Questions) == 0 {
			reply := summary + "What can I help you with?" + rejections
			e.appendChat(p, message, reply)
			return Response{Status: StatusSuccess, Reply: reply}
		}
		return e.processQuestion(ctx, p, message, question, summary, rejections)
	}

	return e.processModification(ctx, p, requests, question, summary, rejections)
}

// ClassifyMessage runs only the classification stage of a turn,
// without routing the result or touching any project.
func (e *Engine) ClassifyMessage(ctx context.Context, message string) (llm.Classification, error) {
	return e.classifyWithRetry(ctx, message)
}

// Answer answers a question against the project's current code and
// data. Unlike a full turn it skips classification and writes nothing,
// not even chat entries.
func (e *Engine) Answer(ctx context.Context, gameName, question string) (string, error) {
	p := e.ws.Project(gameName)
	code, err := p.ReadCode()
	if err != nil {
		return "", err
	}
	data, err := p.ReadData()
	if err != nil {
		return "", err
	}
	return e.answerWithRetry(ctx, question, code, data)
}

// processQuestion answers without touching project files.
func (e *Engine) processQuestion(ctx context.Context, p *project.Project, message, question, summary, rejections string) Response {
	code, err := p.ReadCode()
	if err == nil {
		var data string
		data, err = p.ReadData()
		if err == nil {
			var answer string
			answer, err = e.answerWithRetry(ctx, question, code, data)
			if err == nil {
				reply := summary + answer + rejections
				e.appendChat(p, message, reply)
				return Response{Status: StatusSuccess, Reply: reply}
			}
		}
	}

	reply := summary + fmt.Sprintf("Something went wrong while answering: %v", err) + rejections
	e.appendChat(p, message, reply)
	return Response{Status: StatusFail, Reply: reply}
}

// processModification runs the generation loop and, on success with
// actual output, snapshots the result.
func (e *Engine) processModification(ctx context.Context, p *project.Project, requests, question, summary, rejections string) Response {
	isNew := !p.Exists()

	res, err := e.runGeneration(ctx, p, requests, question)
	if err != nil {
		// Storage failure: the workspace is in an unknown state, so no
		// snapshot and no partial output.
		e.logger.WithField("game", p.Name).WithField("error", err).Error("generation aborted")
		e.metrics.RecordGeneration("aborted", len(res.Attempts))
		reply := summary + fmt.Sprintf("Something went wrong while saving your game: %v", err) + rejections
		e.appendChat(p, requests, reply)
		return Response{Status: StatusFail, Reply: reply}
	}

	if res.FinalError != "" {
		e.metrics.RecordGeneration("exhausted", len(res.Attempts))
		reply := summary + res.Description + "\n\nI could not produce a working version of that change. Last error:\n" + res.FinalError + rejections
		e.appendChat(p, requests, reply)
		return Response{Status: StatusFail, Code: res.Code, Data: res.Data, Reply: reply}
	}

	e.metrics.RecordGeneration("success", len(res.Attempts))
	if res.Code != "" || res.Data != "" {
		if verr := e.versionAfterSuccess(p, requests, isNew); verr != nil {
			e.logger.WithField("game", p.Name).WithField("error", verr).Error("failed to snapshot generated version")
			reply := summary + res.Description + "\n\nThe change was applied but saving a version snapshot failed." + rejections
			e.appendChat(p, requests, reply)
			return Response{Status: StatusFail, Code: res.Code, Data: res.Data, Reply: reply}
		}
	}

	reply := summary + res.Description + rejections
	e.appendChat(p, requests, reply)
	return Response{Status: StatusSuccess, Code: res.Code, Data: res.Data, Reply: reply}
}

// versionAfterSuccess snapshots a successful generation. A project
// created by this very request gets the root version; otherwise the
// snapshot descends from the current version.
func (e *Engine) versionAfterSuccess(p *project.Project, summary string, isNew bool) error {
	parent := ""
	if !isNew {
		current, err := e.versions.Current(p.Dir)
		if err != nil {
			return err
		}
		parent = current.Name
	}
	name, err := e.versions.Create(p.Dir, parent, summary)
	e.metrics.RecordVersionOp("create", opResult(err == nil, err))
	if err != nil {
		return err
	}
	e.logger.WithField("game", p.Name).WithField("version", name).Info("created version")
	return nil
}

// appendChat records the user/bot pair for a finished turn. Chat
// persistence is best effort; a failed append never changes the
// outcome the user already got.
func (e *Engine) appendChat(p *project.Project, userText, botText string) {
	if err := e.chat.Append(p.ChatPath(), project.SpeakerUser, userText); err != nil {
		e.logger.WithField("error", err).Warn("failed to append user chat entry")
	}
	if err := e.chat.Append(p.ChatPath(), project.SpeakerBot, botText); err != nil {
		e.logger.WithField("error", err).Warn("failed to append bot chat entry")
	}
}

func (e *Engine) classifyWithRetry(ctx context.Context, message string) (llm.Classification, error) {
	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		cls, err := e.llm.Classify(ctx, message)
		if err == nil {
			return cls, nil
		}
		if apperr.IsStorage(err) {
			return llm.Classification{}, err
		}
		lastErr = err
		e.logger.WithField("attempt", attempt).WithField("error", err).Warn("classification failed")
	}
	return llm.Classification{}, lastErr
}

func (e *Engine) answerWithRetry(ctx context.Context, question, code, data string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		answer, err := e.llm.AnswerQuestion(ctx, question, code, data)
		if err == nil {
			return answer, nil
		}
		lastErr = err
		e.logger.WithField("attempt", attempt).WithField("error", err).Warn("answer failed")
	}
	return "", lastErr
}

// classificationSummary restates how the message was understood, so
// every reply opens with the same breakdown the router acted on.
func classificationSummary(cls llm.Classification) string {
	var b strings.Builder
	if len(cls.ModificationRequests) > 0 {
		b.WriteString("Requests:\n")
		for _, r := range cls.ModificationRequests {
			b.WriteString("- " + r + "\n")
		}
	}
	if len(cls.Questions) > 0 {
		b.WriteString("Questions:\n")
		for _, q := range cls.Questions {
			b.WriteString("- " + q + "\n")
		}
	}
	if b.Len() == 0 {
		return ""
	}
	b.WriteString("\n")
	return b.String()
}

// formatRejections turns refused items into the trailing notice every
// reply carries when the message mixed allowed and disallowed content.
func formatRejections(items []string) string {
	if len(items) == 0 {
		return ""
	}
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = fmt.Sprintf("Sorry, I can't help with '%s'.", item)
	}
	return "\n\n" + strings.Join(lines, "\n")
}
