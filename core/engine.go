// Package core drives the chat-to-game flow: message classification,
// the bounded generation retry loop with compile-error feedback, and
// the snapshot bookkeeping around project state.
package core

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"gamesmith/apperr"
	"gamesmith/assets"
	"gamesmith/compiler"
	"gamesmith/llm"
	"gamesmith/logger"
	"gamesmith/metrics"
	"gamesmith/project"
	"gamesmith/version"
)

// MaxAttempts caps retry iterations for both classification and
// generation calls.
const MaxAttempts = 5

// Deps carries the engine's collaborators.
type Deps struct {
	LLM       llm.Client
	Checker   compiler.Checker
	Workspace *project.Workspace
	Versions  *version.Store
	Chat      *project.ChatLog
	Assets    *assets.Scaffolder
	Metrics   *metrics.Metrics
	Logger    logger.Logger
}

// Engine is constructed once per process and shared by every request
// handler. Flows that mutate a project hold that project's lock for
// their full duration, so the server dispatching requests
// concurrently never interleaves two writers on the same game.
type Engine struct {
	llm      llm.Client
	checker  compiler.Checker
	ws       *project.Workspace
	versions *version.Store
	chat     *project.ChatLog
	assets   *assets.Scaffolder
	metrics  *metrics.Metrics
	logger   logger.Logger
	games    sync.Map // game name -> *sync.Mutex
}

func NewEngine(d Deps) *Engine {
	l := d.Logger
	if l == nil {
		l = logger.NewNullLogger()
	}
	m := d.Metrics
	if m == nil {
		m = metrics.New()
	}
	return &Engine{
		llm:      d.LLM,
		checker:  d.Checker,
		ws:       d.Workspace,
		versions: d.Versions,
		chat:     d.Chat,
		assets:   d.Assets,
		metrics:  m,
		logger:   l,
	}
}

// lockGame serializes mutating flows on one game. The caller must
// call the returned unlock function.
func (e *Engine) lockGame(gameName string) func() {
	v, _ := e.games.LoadOrStore(gameName, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Restore overwrites the project's live files with the named
// snapshot. A missing version reports false, not an error.
func (e *Engine) Restore(gameName, versionName string) (bool, error) {
	unlock := e.lockGame(gameName)
	defer unlock()

	p := e.ws.Project(gameName)
	ok, err := e.versions.Restore(p.Dir, versionName)
	e.metrics.RecordVersionOp("restore", opResult(ok, err))
	return ok, err
}

// Revert restores the parent of the current version and reports what
// happened in user-facing text.
func (e *Engine) Revert(gameName string) (string, bool, error) {
	unlock := e.lockGame(gameName)
	defer unlock()

	p := e.ws.Project(gameName)
	ok, err := e.versions.Revert(p.Dir)
	e.metrics.RecordVersionOp("revert", opResult(ok, err))
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "There is no earlier version to revert to.", false, nil
	}

	reply := "Reverted the game to the previous version."
	if cerr := e.chat.Append(p.ChatPath(), project.SpeakerBot, reply); cerr != nil {
		e.logger.WithField("error", cerr).Warn("failed to record revert in chat")
	}
	return reply, true, nil
}

// CurrentVersion returns the record the current pointer references,
// zero-valued when the project has no history.
func (e *Engine) CurrentVersion(gameName string) (version.Record, error) {
	return e.versions.Current(e.ws.Project(gameName).Dir)
}

// SnapshotLog returns the project's full version history.
func (e *Engine) SnapshotLog(gameName string) (version.Log, error) {
	return e.versions.ChangeLog(e.ws.Project(gameName).Dir)
}

// Chat returns the project's transcript, empty when absent.
func (e *Engine) Chat(gameName string) []project.ChatEntry {
	return e.chat.Load(e.ws.Project(gameName).ChatPath())
}

// Spec returns the stored natural-language specification.
func (e *Engine) Spec(gameName string) (string, error) {
	return e.ws.Project(gameName).ReadSpec()
}

// GameData returns the parsed data.json, or an empty object when the
// project has none.
func (e *Engine) GameData(gameName string) (map[string]interface{}, error) {
	raw, err := e.ws.Project(gameName).ReadData()
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return map[string]interface{}{}, nil
	}
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("stored game data is not valid JSON: %w", err)
	}
	return data, nil
}

// UpdateData overwrites data.json with a manual edit and snapshots
// the result.
func (e *Engine) UpdateData(gameName string, data map[string]interface{}) error {
	unlock := e.lockGame(gameName)
	defer unlock()

	p := e.ws.Project(gameName)
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	if err := p.WriteData(string(encoded)); err != nil {
		return err
	}
	return e.snapshot(p, "manual data edit")
}

// ReplaceAsset stores an uploaded asset under the standard extension
// for its type, removes the file it supersedes, and snapshots the
// project. Uploads are stored as-is; transcoding is not supported, so
// the upload's extension must already match.
func (e *Engine) ReplaceAsset(gameName, oldName, assetType, uploadName string, content []byte) (string, error) {
	var wantExt string
	switch assetType {
	case "image":
		wantExt = ".png"
	case "sound":
		wantExt = ".mp3"
	default:
		return "", fmt.Errorf("type must be 'image' or 'sound'")
	}

	if oldName != filepath.Base(oldName) || strings.ContainsAny(oldName, "/\\") {
		return "", fmt.Errorf("invalid asset filename")
	}
	if strings.ToLower(filepath.Ext(uploadName)) != wantExt {
		return "", fmt.Errorf("upload must be a %s file", wantExt)
	}

	unlock := e.lockGame(gameName)
	defer unlock()

	p := e.ws.Project(gameName)
	if err := p.Scaffold(); err != nil {
		return "", err
	}

	stem := strings.TrimSuffix(oldName, filepath.Ext(oldName))
	newName := stem + wantExt

	if err := e.ws.FS.WriteFile(filepath.Join(p.AssetsDir(), newName), content); err != nil {
		return "", err
	}
	if oldName != newName {
		if err := e.ws.FS.Remove(filepath.Join(p.AssetsDir(), oldName)); err != nil {
			e.logger.WithField("error", err).Warn("failed to remove superseded asset")
		}
	}

	if err := e.snapshot(p, fmt.Sprintf("replaced asset %s", newName)); err != nil {
		return "", err
	}
	return newName, nil
}

// AssetListing names the files under a project's assets directory,
// split by kind.
type AssetListing struct {
	Images []string `json:"images"`
	Sounds []string `json:"sounds"`
}

// ListAssets enumerates the project's asset files. A project without
// an assets directory lists as empty.
func (e *Engine) ListAssets(gameName string) (AssetListing, error) {
	listing := AssetListing{Images: []string{}, Sounds: []string{}}
	dir := e.ws.Project(gameName).AssetsDir()
	if !e.ws.FS.IsDir(dir) {
		return listing, nil
	}
	infos, err := e.ws.FS.ReadDir(dir)
	if err != nil {
		return listing, err
	}
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(info.Name())) {
		case ".png", ".jpg", ".jpeg", ".gif":
			listing.Images = append(listing.Images, info.Name())
		case ".mp3", ".wav", ".ogg":
			listing.Sounds = append(listing.Sounds, info.Name())
		}
	}
	return listing, nil
}

// ReadAsset returns the bytes of one asset file. Only bare filenames
// inside the assets directory are served.
func (e *Engine) ReadAsset(gameName, name string) ([]byte, error) {
	if name != filepath.Base(name) || strings.ContainsAny(name, "/\\") || strings.HasPrefix(name, ".") {
		return nil, apperr.ErrNotFound
	}
	p := e.ws.Project(gameName)
	path := filepath.Join(p.AssetsDir(), name)
	if !e.ws.FS.FileExists(path) {
		return nil, apperr.ErrNotFound
	}
	return e.ws.FS.ReadFile(path)
}

// ReportClientError records a runtime error report from the running
// game as a bot turn so the user sees it in the transcript.
func (e *Engine) ReportClientError(gameName, report string) error {
	unlock := e.lockGame(gameName)
	defer unlock()

	e.logger.WithField("game", gameName).Warn("client runtime error reported")
	return e.chat.Append(e.ws.Project(gameName).ChatPath(), project.SpeakerBot, report)
}

// snapshot creates a version whose parent is the project's current
// version (or the root when there is no history yet).
func (e *Engine) snapshot(p *project.Project, summary string) error {
	current, err := e.versions.Current(p.Dir)
	if err != nil {
		return err
	}
	name, err := e.versions.Create(p.Dir, current.Name, summary)
	e.metrics.RecordVersionOp("create", opResult(err == nil, err))
	if err != nil {
		return err
	}
	e.logger.WithField("game", p.Name).WithField("version", name).Info("created version")
	return nil
}

func opResult(ok bool, err error) string {
	switch {
	case err != nil:
		return "error"
	case ok:
		return "ok"
	default:
		return "noop"
	}
}
