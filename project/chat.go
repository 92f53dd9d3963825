package project

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"gamesmith/fs"
)

// Chat speakers.
const (
	SpeakerUser = "user"
	SpeakerBot  = "bot"
)

// ChatEntry is one turn of the per-game transcript.
type ChatEntry struct {
	ID        string    `json:"id"`
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatLog is the append-only transcript store keyed by chat file path.
type ChatLog struct {
	fs *fs.FileSystem
}

func NewChatLog(fsys *fs.FileSystem) *ChatLog {
	return &ChatLog{fs: fsys}
}

// Load returns the transcript in order. An absent or unreadable file
// yields an empty transcript, never an error.
func (c *ChatLog) Load(path string) []ChatEntry {
	data, err := c.fs.ReadFile(path)
	if err != nil {
		return []ChatEntry{}
	}
	var entries []ChatEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return []ChatEntry{}
	}
	return entries
}

// Append adds one turn to the transcript.
func (c *ChatLog) Append(path, speaker, text string) error {
	entries := c.Load(path)
	entries = append(entries, ChatEntry{
		ID:        uuid.NewString(),
		Speaker:   speaker,
		Text:      text,
		Timestamp: time.Now().UTC(),
	})

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return c.fs.WriteFile(path, data)
}
