package version

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamesmith/apperr"
	"gamesmith/fs"
)

func newTestStore(t *testing.T) (*Store, *fs.FileSystem, string) {
	t.Helper()
	fsys := fs.NewMemoryFileSystem()
	dir := "games/runner"
	require.NoError(t, fsys.WriteString(filepath.Join(dir, "game.ts"), "let a = 1;"))
	require.NoError(t, fsys.WriteString(filepath.Join(dir, "data.json"), `{"assets":{}}`))
	require.NoError(t, fsys.WriteString(filepath.Join(dir, "assets", "hero.png"), "png"))
	return NewStore(fsys, nil), fsys, dir
}

func TestCreateRootAndChain(t *testing.T) {
	s, fsys, dir := newTestStore(t)

	name, err := s.Create(dir, "", "first version")
	require.NoError(t, err)
	assert.Equal(t, "v1", name)

	name, err = s.Create(dir, "v1", "second")
	require.NoError(t, err)
	assert.Equal(t, "v2", name)

	name, err = s.Create(dir, "v2", "third")
	require.NoError(t, err)
	assert.Equal(t, "v3", name)

	current, err := s.Current(dir)
	require.NoError(t, err)
	assert.Equal(t, "v3", current.Name)
	assert.Equal(t, "v2", current.Parent)

	// Snapshots hold the project files but never the archive itself.
	assert.True(t, fsys.FileExists(filepath.Join(dir, "archive", "v2", "game.ts")))
	assert.True(t, fsys.FileExists(filepath.Join(dir, "archive", "v2", "assets", "hero.png")))
	assert.False(t, fsys.IsDir(filepath.Join(dir, "archive", "v2", "archive")))
}

func TestCreateRejectsAbsentParent(t *testing.T) {
	s, _, dir := newTestStore(t)

	_, err := s.Create(dir, "", "root")
	require.NoError(t, err)

	_, err = s.Create(dir, "v9", "orphan")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	// A rootless create is only valid on an empty log.
	_, err = s.Create(dir, "", "second root")
	require.Error(t, err)

	lg, err := s.ChangeLog(dir)
	require.NoError(t, err)
	assert.Len(t, lg.Versions, 1, "failed creates must not append records")
}

func TestGraphWellFormedness(t *testing.T) {
	s, _, dir := newTestStore(t)

	_, err := s.Create(dir, "", "root")
	require.NoError(t, err)
	_, err = s.Create(dir, "v1", "a")
	require.NoError(t, err)
	_, err = s.Create(dir, "v2", "b")
	require.NoError(t, err)

	lg, err := s.ChangeLog(dir)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, rec := range lg.Versions {
		if rec.Parent != "" {
			assert.True(t, seen[rec.Parent], "parent %q must precede child %q", rec.Parent, rec.Name)
		}
		assert.False(t, seen[rec.Name], "duplicate version name %q", rec.Name)
		seen[rec.Name] = true
	}
}

func TestBranchNaming(t *testing.T) {
	s, _, dir := newTestStore(t)

	_, err := s.Create(dir, "", "root")
	require.NoError(t, err)
	_, err = s.Create(dir, "v1", "straight line")
	require.NoError(t, err)

	// A second child of v1: "v2" is taken, so the name branches.
	name, err := s.Create(dir, "v1", "branch")
	require.NoError(t, err)
	assert.Equal(t, "v1-1", name)

	// A child of the branch increments its trailing number.
	name, err = s.Create(dir, "v1-1", "branch child")
	require.NoError(t, err)
	assert.Equal(t, "v1-2", name)
}

func TestRestoreIdempotent(t *testing.T) {
	s, fsys, dir := newTestStore(t)

	_, err := s.Create(dir, "", "root")
	require.NoError(t, err)

	require.NoError(t, fsys.WriteString(filepath.Join(dir, "game.ts"), "let a = 2;"))
	_, err = s.Create(dir, "v1", "change")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		ok, err := s.Restore(dir, "v1")
		require.NoError(t, err)
		require.True(t, ok)

		code, err := fsys.ReadFile(filepath.Join(dir, "game.ts"))
		require.NoError(t, err)
		assert.Equal(t, "let a = 1;", string(code))

		current, err := s.Current(dir)
		require.NoError(t, err)
		assert.Equal(t, "v1", current.Name)
	}
}

func TestRestoreUnknownVersion(t *testing.T) {
	s, fsys, dir := newTestStore(t)

	_, err := s.Create(dir, "", "root")
	require.NoError(t, err)

	ok, err := s.Restore(dir, "v9")
	require.NoError(t, err)
	assert.False(t, ok)

	current, err := s.Current(dir)
	require.NoError(t, err)
	assert.Equal(t, "v1", current.Name, "failed restore must not move the pointer")

	_ = fsys
}

func TestRevert(t *testing.T) {
	s, fsys, dir := newTestStore(t)

	_, err := s.Create(dir, "", "root")
	require.NoError(t, err)

	// Revert at the root is a no-op.
	ok, err := s.Revert(dir)
	require.NoError(t, err)
	assert.False(t, ok)
	current, err := s.Current(dir)
	require.NoError(t, err)
	assert.Equal(t, "v1", current.Name)

	require.NoError(t, fsys.WriteString(filepath.Join(dir, "game.ts"), "let a = 2;"))
	_, err = s.Create(dir, "v1", "change")
	require.NoError(t, err)

	ok, err = s.Revert(dir)
	require.NoError(t, err)
	require.True(t, ok)

	code, err := fsys.ReadFile(filepath.Join(dir, "game.ts"))
	require.NoError(t, err)
	assert.Equal(t, "let a = 1;", string(code))

	current, err = s.Current(dir)
	require.NoError(t, err)
	assert.Equal(t, "v1", current.Name)
}

func TestRevertWithoutHistory(t *testing.T) {
	s, _, dir := newTestStore(t)

	ok, err := s.Revert(dir)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCurrentWithoutLog(t *testing.T) {
	s, _, dir := newTestStore(t)

	rec, err := s.Current(dir)
	require.NoError(t, err)
	assert.Empty(t, rec.Name)
	assert.Empty(t, rec.Parent)
}

func TestCreateConcurrentSiblings(t *testing.T) {
	s, _, dir := newTestStore(t)

	_, err := s.Create(dir, "", "root")
	require.NoError(t, err)

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Create(dir, "v1", "branch")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "writer %d", i)
	}

	lg, err := s.ChangeLog(dir)
	require.NoError(t, err)
	assert.Len(t, lg.Versions, writers+1, "every create must append its record")

	names := map[string]bool{}
	for _, rec := range lg.Versions {
		assert.False(t, names[rec.Name], "duplicate version name %q", rec.Name)
		names[rec.Name] = true
	}
}

// changeLogWriteFailFs passes everything through to the wrapped
// filesystem except writes to change_log.json once armed.
type changeLogWriteFailFs struct {
	afero.Fs
	armed bool
}

func (f *changeLogWriteFailFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if f.armed && strings.HasSuffix(name, changeLogFile) && flag&(os.O_WRONLY|os.O_RDWR) != 0 {
		return nil, errors.New("disk full")
	}
	return f.Fs.OpenFile(name, flag, perm)
}

func TestCreateRemovesSnapshotWhenLogWriteFails(t *testing.T) {
	s, fsys, dir := newTestStore(t)

	_, err := s.Create(dir, "", "root")
	require.NoError(t, err)

	failing := &changeLogWriteFailFs{Fs: fsys.Fs}
	fsys.Fs = failing
	failing.armed = true

	_, err = s.Create(dir, "v1", "doomed")
	require.Error(t, err)

	failing.armed = false
	assert.False(t, fsys.IsDir(filepath.Join(dir, "archive", "v2")),
		"snapshot directory must be cleaned up when the log append fails")

	lg, err := s.ChangeLog(dir)
	require.NoError(t, err)
	assert.Len(t, lg.Versions, 1)
	assert.Equal(t, "v1", lg.Current)
}
