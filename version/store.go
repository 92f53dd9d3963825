// Package version keeps the append-only history of project snapshots.
//
// Each project carries an archive/ directory holding one immutable
// snapshot per version plus change_log.json: the version records
// (name, parent, summary, timestamp) and the current-version pointer.
// Records are never edited after being appended; only the pointer
// moves.
package version

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"gamesmith/apperr"
	"gamesmith/fs"
	"gamesmith/logger"
)

const (
	archiveDir    = "archive"
	changeLogFile = "change_log.json"
)

// Record is one node of the history graph. The root has Parent "".
type Record struct {
	Name      string    `json:"name"`
	Parent    string    `json:"parent"`
	Summary   string    `json:"summary"`
	Timestamp time.Time `json:"timestamp"`
}

// Log is the persisted history of one project.
type Log struct {
	Current  string   `json:"current"`
	Versions []Record `json:"versions"`
}

func (l Log) find(name string) (Record, bool) {
	for _, r := range l.Versions {
		if r.Name == name {
			return r, true
		}
	}
	return Record{}, false
}

// Store persists version snapshots under a project's archive directory.
// Operations on the same project are mutually exclusive: the log is a
// read-modify-write file, so overlapping writers would drop records.
type Store struct {
	fs     *fs.FileSystem
	logger logger.Logger
	locks  sync.Map // project dir -> *sync.Mutex
}

func NewStore(fsys *fs.FileSystem, l logger.Logger) *Store {
	if l == nil {
		l = logger.NewNullLogger()
	}
	return &Store{fs: fsys, logger: l}
}

func logPath(projectDir string) string {
	return filepath.Join(projectDir, archiveDir, changeLogFile)
}

func snapshotDir(projectDir, name string) string {
	return filepath.Join(projectDir, archiveDir, name)
}

// lockProject serializes access to one project's archive. The caller
// must call the returned unlock function.
func (s *Store) lockProject(projectDir string) func() {
	v, _ := s.locks.LoadOrStore(filepath.Clean(projectDir), &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *Store) readLog(projectDir string) (Log, error) {
	path := logPath(projectDir)
	if !s.fs.FileExists(path) {
		return Log{}, nil
	}
	data, err := s.fs.ReadFile(path)
	if err != nil {
		return Log{}, err
	}
	var lg Log
	if err := json.Unmarshal(data, &lg); err != nil {
		return Log{}, apperr.NewStorageError("decode", path, err)
	}
	return lg, nil
}

func (s *Store) writeLog(projectDir string, lg Log) error {
	data, err := json.MarshalIndent(lg, "", "  ")
	if err != nil {
		return apperr.NewStorageError("encode", logPath(projectDir), err)
	}
	return s.fs.WriteFile(logPath(projectDir), data)
}

// Current returns the record the current-version pointer references,
// or a zero Record when the project has no history yet.
func (s *Store) Current(projectDir string) (Record, error) {
	unlock := s.lockProject(projectDir)
	defer unlock()
	return s.currentLocked(projectDir)
}

func (s *Store) currentLocked(projectDir string) (Record, error) {
	lg, err := s.readLog(projectDir)
	if err != nil {
		return Record{}, err
	}
	if lg.Current == "" {
		return Record{}, nil
	}
	rec, ok := lg.find(lg.Current)
	if !ok {
		return Record{}, apperr.NewStorageError("lookup", logPath(projectDir),
			fmt.Errorf("current pointer %q references no record", lg.Current))
	}
	return rec, nil
}

// ChangeLog returns the full persisted history, empty when absent.
func (s *Store) ChangeLog(projectDir string) (Log, error) {
	unlock := s.lockProject(projectDir)
	defer unlock()
	return s.readLog(projectDir)
}

// Create snapshots the project's live file tree into a new version
// whose parent is parent ("" only for the very first version),
// appends the record, and advances the current pointer. The new
// version's name is derived from the parent and never reuses an
// existing one.
func (s *Store) Create(projectDir, parent, summary string) (string, error) {
	unlock := s.lockProject(projectDir)
	defer unlock()

	lg, err := s.readLog(projectDir)
	if err != nil {
		return "", err
	}

	if parent == "" {
		if len(lg.Versions) > 0 {
			return "", errors.New("parent version required: project already has history")
		}
	} else if _, ok := lg.find(parent); !ok {
		return "", fmt.Errorf("parent version %q: %w", parent, apperr.ErrNotFound)
	}

	name := nextName(lg, parent)

	if err := s.copyTree(projectDir, snapshotDir(projectDir, name)); err != nil {
		return "", err
	}

	lg.Versions = append(lg.Versions, Record{
		Name:      name,
		Parent:    parent,
		Summary:   summary,
		Timestamp: time.Now().UTC(),
	})
	lg.Current = name
	if err := s.writeLog(projectDir, lg); err != nil {
		if rmErr := s.fs.RemoveAll(snapshotDir(projectDir, name)); rmErr != nil {
			s.logger.WithField("version", name).Warn("orphan snapshot left behind: " + rmErr.Error())
		}
		return "", err
	}

	s.logger.WithField("version", name).Debug("created snapshot")
	return name, nil
}

// Restore overwrites the live project files with the named snapshot
// and points the current version at it. It reports false, without
// mutating anything, when the version or its snapshot is missing.
func (s *Store) Restore(projectDir, name string) (bool, error) {
	unlock := s.lockProject(projectDir)
	defer unlock()
	return s.restoreLocked(projectDir, name)
}

func (s *Store) restoreLocked(projectDir, name string) (bool, error) {
	if name == "" {
		return false, nil
	}
	lg, err := s.readLog(projectDir)
	if err != nil {
		return false, err
	}
	if _, ok := lg.find(name); !ok {
		return false, nil
	}
	snap := snapshotDir(projectDir, name)
	if !s.fs.IsDir(snap) {
		return false, nil
	}

	if err := s.copyTree(snap, projectDir); err != nil {
		return false, err
	}

	lg.Current = name
	if err := s.writeLog(projectDir, lg); err != nil {
		return false, err
	}

	s.logger.WithField("version", name).Debug("restored snapshot")
	return true, nil
}

// Revert restores the parent of the current version. It reports
// false when there is no history or the current version is the root.
func (s *Store) Revert(projectDir string) (bool, error) {
	unlock := s.lockProject(projectDir)
	defer unlock()

	current, err := s.currentLocked(projectDir)
	if err != nil {
		return false, err
	}
	if current.Name == "" || current.Parent == "" {
		return false, nil
	}
	return s.restoreLocked(projectDir, current.Parent)
}

// copyTree copies the top-level entries of src into dst, leaving the
// archive directory itself out of snapshots.
func (s *Store) copyTree(src, dst string) error {
	entries, err := s.fs.ReadDir(src)
	if err != nil {
		return err
	}
	if err := s.fs.EnsureDir(dst); err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.Name() == archiveDir {
			continue
		}
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := s.fs.CopyDir(srcPath, dstPath, nil); err != nil {
				return err
			}
		} else {
			if err := s.fs.CopyFile(srcPath, dstPath); err != nil {
				return err
			}
		}
	}
	return nil
}

var trailingNum = regexp.MustCompile(`^(.*?)(\d+)$`)

// nextName derives the next version name deterministically: the root
// is "v1"; a child increments its parent's trailing number; when that
// name is taken (the parent already branched) the parent name gains a
// "-1", "-2", ... suffix instead.
func nextName(lg Log, parent string) string {
	exists := func(n string) bool {
		_, ok := lg.find(n)
		return ok
	}

	if parent == "" {
		if !exists("v1") {
			return "v1"
		}
		parent = "v1"
	} else if m := trailingNum.FindStringSubmatch(parent); m != nil {
		n, _ := strconv.Atoi(m[2])
		candidate := m[1] + strconv.Itoa(n+1)
		if !exists(candidate) {
			return candidate
		}
	}

	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d", parent, i)
		if !exists(candidate) {
			return candidate
		}
	}
}
