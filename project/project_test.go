package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamesmith/fs"
)

func TestScaffoldIdempotent(t *testing.T) {
	ws := NewWorkspace(fs.NewMemoryFileSystem(), "games")
	p := ws.Project("runner")

	require.NoError(t, p.Scaffold())
	require.NoError(t, p.WriteCode("let a = 1;"))

	// A second scaffold must not disturb existing files.
	require.NoError(t, p.Scaffold())

	code, err := p.ReadCode()
	require.NoError(t, err)
	assert.Equal(t, "let a = 1;", code)
	assert.True(t, ws.FS.IsDir(p.AssetsDir()))
}

func TestReadAbsentFilesAreEmpty(t *testing.T) {
	ws := NewWorkspace(fs.NewMemoryFileSystem(), "games")
	p := ws.Project("unknown")

	code, err := p.ReadCode()
	require.NoError(t, err)
	assert.Empty(t, code)

	data, err := p.ReadData()
	require.NoError(t, err)
	assert.Empty(t, data)

	assert.False(t, p.Exists())
}

func TestIsValidName(t *testing.T) {
	assert.True(t, IsValidName("my-game_2"))
	assert.False(t, IsValidName(""))
	assert.False(t, IsValidName("../escape"))
	assert.False(t, IsValidName("-leading"))
}

func TestChatLogAppendAndLoad(t *testing.T) {
	fsys := fs.NewMemoryFileSystem()
	log := NewChatLog(fsys)
	path := "games/runner/chat.json"

	assert.Empty(t, log.Load(path), "absent transcript loads empty")

	require.NoError(t, log.Append(path, SpeakerUser, "add a jump button"))
	require.NoError(t, log.Append(path, SpeakerBot, "done"))

	entries := log.Load(path)
	require.Len(t, entries, 2)
	assert.Equal(t, SpeakerUser, entries[0].Speaker)
	assert.Equal(t, "add a jump button", entries[0].Text)
	assert.Equal(t, SpeakerBot, entries[1].Speaker)
	assert.NotEmpty(t, entries[0].ID)
}

func TestChatLogCorruptFileLoadsEmpty(t *testing.T) {
	fsys := fs.NewMemoryFileSystem()
	require.NoError(t, fsys.WriteString("games/runner/chat.json", "{not json"))

	log := NewChatLog(fsys)
	assert.Empty(t, log.Load("games/runner/chat.json"))
}
