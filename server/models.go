package server

import "gamesmith/core"

// ProcessRequest is the body of POST /process-code.
type ProcessRequest struct {
	Message  string `json:"message"`
	GameName string `json:"game_name"`
}

// CategoryRequest is the body of POST /category.
type CategoryRequest struct {
	Message string `json:"message"`
}

// AnswerRequest is the body of POST /answer.
type AnswerRequest struct {
	GameName string `json:"game_name"`
	Question string `json:"question"`
}

// RestoreRequest is the body of POST /restore-version.
type RestoreRequest struct {
	GameName string `json:"game_name"`
	Version  string `json:"version"`
}

// RevertRequest is the body of POST /revert.
type RevertRequest struct {
	GameName string `json:"game_name"`
}

// DataUpdateRequest is the body of POST /data-update.
type DataUpdateRequest struct {
	GameName string                 `json:"game_name"`
	Data     map[string]interface{} `json:"data"`
}

// QnARequest is the body of POST /qna.
type QnARequest struct {
	GameName string                `json:"game_name"`
	Answers  core.InterviewAnswers `json:"answers"`
}

// SpecQuestionRequest is the body of POST /spec-question.
type SpecQuestionRequest struct {
	GameName string `json:"game_name"`
	Message  string `json:"message"`
}

// ClientErrorRequest is the body of POST /client-error.
type ClientErrorRequest struct {
	GameName string `json:"game_name"`
	Error    string `json:"error"`
}

// ReplyResponse is the generic {status, reply} payload.
type ReplyResponse struct {
	Status string `json:"status"`
	Reply  string `json:"reply"`
}

// ErrorResponse is the generic failure payload.
type ErrorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

func failure(message string) ErrorResponse {
	return ErrorResponse{Status: "fail", Error: message}
}
