// Package project owns the on-disk layout of one game and the
// durable writes the generation flow performs against it.
package project

import (
	"path/filepath"
	"regexp"

	"gamesmith/fs"
)

// File names inside a game directory.
const (
	CodeFile      = "game.ts"
	DataFile      = "data.json"
	SpecFile      = "spec.md"
	ChatFile      = "chat.json"
	AssetsDirName = "assets"
	ArchiveDir    = "archive"
	ChangeLogFile = "change_log.json"
)

var nameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9\-_]*$`)

// IsValidName checks if the given game name is path-segment safe.
func IsValidName(name string) bool {
	return len(name) <= 64 && nameRe.MatchString(name)
}

// Workspace is the root directory holding every game.
type Workspace struct {
	FS   *fs.FileSystem
	Root string
}

func NewWorkspace(fsys *fs.FileSystem, root string) *Workspace {
	return &Workspace{FS: fsys, Root: root}
}

// Project addresses one game's directory tree.
type Project struct {
	Name string
	Dir  string
	fs   *fs.FileSystem
}

func (w *Workspace) Project(name string) *Project {
	return &Project{Name: name, Dir: filepath.Join(w.Root, name), fs: w.FS}
}

func (p *Project) CodePath() string      { return filepath.Join(p.Dir, CodeFile) }
func (p *Project) DataPath() string      { return filepath.Join(p.Dir, DataFile) }
func (p *Project) SpecPath() string      { return filepath.Join(p.Dir, SpecFile) }
func (p *Project) ChatPath() string      { return filepath.Join(p.Dir, ChatFile) }
func (p *Project) AssetsDir() string     { return filepath.Join(p.Dir, AssetsDirName) }
func (p *Project) ChangeLogPath() string {
	return filepath.Join(p.Dir, ArchiveDir, ChangeLogFile)
}

// Exists reports whether the game has generated source on disk.
func (p *Project) Exists() bool {
	return p.fs.FileExists(p.CodePath())
}

// Scaffold creates the directory skeleton for the game. It is
// idempotent and never touches existing files.
func (p *Project) Scaffold() error {
	for _, dir := range []string{p.Dir, p.AssetsDir(), filepath.Join(p.Dir, ArchiveDir)} {
		if err := p.fs.EnsureDir(dir); err != nil {
			return err
		}
	}
	return nil
}

// ReadCode returns the current generated source, or "" when absent.
func (p *Project) ReadCode() (string, error) {
	return p.fs.ReadFileIfExists(p.CodePath())
}

// ReadData returns the current generated data, or "" when absent.
func (p *Project) ReadData() (string, error) {
	return p.fs.ReadFileIfExists(p.DataPath())
}

// ReadSpec returns the stored specification, or "" when absent.
func (p *Project) ReadSpec() (string, error) {
	return p.fs.ReadFileIfExists(p.SpecPath())
}

// WriteCode persists freshly generated source.
func (p *Project) WriteCode(code string) error {
	return p.fs.WriteString(p.CodePath(), code)
}

// WriteData persists freshly generated data.
func (p *Project) WriteData(data string) error {
	return p.fs.WriteString(p.DataPath(), data)
}

// WriteSpec persists the natural-language specification.
func (p *Project) WriteSpec(spec string) error {
	return p.fs.WriteString(p.SpecPath(), spec)
}
