package core

import (
	"context"
	"encoding/json"
	"strings"

	"gamesmith/apperr"
	"gamesmith/assets"
	"gamesmith/llm"
	"gamesmith/project"
)

// GenerationAttempt records one iteration of the retry loop.
type GenerationAttempt struct {
	Index       int
	Request     string
	Question    string
	Code        string
	Data        string
	Description string
	Error       string
}

// GenerationResult is the loop's terminal state. FinalError empty
// means the last attempt compiled cleanly; Code and Data hold what
// that attempt produced, which may be empty when the model left a
// file untouched.
type GenerationResult struct {
	Code        string
	Data        string
	Description string
	FinalError  string
	Attempts    []GenerationAttempt
}

// runGeneration drives up to MaxAttempts generation rounds. Each
// failed round feeds its error text back in as the next round's
// request, so the model sees exactly what broke. The user's question
// rides along only on the first round. A storage error aborts the
// loop immediately; any other error consumes the attempt.
func (e *Engine) runGeneration(ctx context.Context, p *project.Project, request, question string) (GenerationResult, error) {
	var result GenerationResult
	message, q := request, question

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		e.logger.WithField("game", p.Name).WithField("attempt", attempt).Info("generation attempt")
		rec := GenerationAttempt{Index: attempt, Request: message, Question: q}

		code, data, desc, roundErr, err := e.generateRound(ctx, p, message, q)
		if err != nil {
			if apperr.IsStorage(err) {
				return result, err
			}
			rec.Error = err.Error()
			result.Attempts = append(result.Attempts, rec)
			result.FinalError = err.Error()
			e.logger.WithField("attempt", attempt).WithField("error", err).Warn("generation round failed")
			q = ""
			continue
		}

		rec.Code, rec.Data, rec.Description, rec.Error = code, data, desc, roundErr
		result.Attempts = append(result.Attempts, rec)
		result.Code, result.Data = code, data
		result.Description += desc

		if roundErr == "" {
			result.FinalError = ""
			return result, nil
		}

		result.FinalError = roundErr
		result.Description += "\n========Compile Error========\n" + roundErr + "\n"
		message, q = roundErr, ""
	}

	return result, nil
}

// generateRound performs a single model call and applies its output:
// write the code, validate and write the data, materialize any assets
// the data references, then compile-check the result. The returned
// roundErr aggregates data-validation and compiler diagnostics; a
// non-nil err means the round itself could not run.
func (e *Engine) generateRound(ctx context.Context, p *project.Project, request, question string) (code, data, desc, roundErr string, err error) {
	if err = p.Scaffold(); err != nil {
		return "", "", "", "", err
	}
	curCode, err := p.ReadCode()
	if err != nil {
		return "", "", "", "", err
	}
	curData, err := p.ReadData()
	if err != nil {
		return "", "", "", "", err
	}

	resp, err := e.llm.GenerateGame(ctx, llm.GenerationRequest{
		Request:  request,
		Question: question,
		Code:     curCode,
		Data:     curData,
	})
	if err != nil {
		return "", "", "", "", err
	}
	code, data, desc = resp.Code, resp.Data, resp.Description

	codeState := "unchanged"
	if code != "" {
		if err = p.WriteCode(code); err != nil {
			return code, data, desc, "", err
		}
		codeState = "modified"
	}

	dataState := "unchanged"
	var dataErr string
	if data != "" {
		if verr := validateGameData(data); verr != "" {
			// Invalid data never reaches disk; the message goes back
			// to the model instead.
			dataErr = verr
			dataState = "rejected"
		} else {
			if m, perr := assets.ParseManifest(data); perr == nil {
				e.assets.Materialize(ctx, p.Dir, "", m)
			}
			if err = p.WriteData(data); err != nil {
				return code, data, desc, "", err
			}
			dataState = "modified"
		}
	}

	desc = "< " + project.CodeFile + ": " + codeState + " > < " + project.DataFile + ": " + dataState + " >\n" + desc

	diag, err := e.checker.Check(ctx, p.CodePath())
	if err != nil {
		return code, data, desc, "", err
	}

	roundErr = joinErrors(dataErr, diag)
	return code, data, desc, roundErr, nil
}

func validateGameData(data string) string {
	var v interface{}
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return "data.json is not valid JSON: " + err.Error()
	}
	return ""
}

func joinErrors(parts ...string) string {
	nonEmpty := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "\n")
}
