package fs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"gamesmith/apperr"
)

// FileSystem wraps the Afero Fs interface
type FileSystem struct {
	Fs afero.Fs
}

// NewMemoryFileSystem creates a new in-memory file system
func NewMemoryFileSystem() *FileSystem {
	return &FileSystem{
		Fs: afero.NewMemMapFs(),
	}
}

// NewOsFileSystem creates a new OS-based file system
func NewOsFileSystem() *FileSystem {
	return &FileSystem{
		Fs: afero.NewOsFs(),
	}
}

// WriteFile creates a new file with the given content or overwrites an
// existing file, creating parent directories as needed.
func (fs *FileSystem) WriteFile(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := fs.Fs.MkdirAll(dir, 0755); err != nil {
		return apperr.NewStorageError("mkdir", dir, err)
	}
	if err := afero.WriteFile(fs.Fs, path, content, 0644); err != nil {
		return apperr.NewStorageError("write", path, err)
	}
	return nil
}

// WriteString writes string content to path.
func (fs *FileSystem) WriteString(path, content string) error {
	return fs.WriteFile(path, []byte(content))
}

// ReadFile reads a file's full contents.
func (fs *FileSystem) ReadFile(path string) ([]byte, error) {
	data, err := afero.ReadFile(fs.Fs, path)
	if err != nil {
		return nil, apperr.NewStorageError("read", path, err)
	}
	return data, nil
}

// ReadFileIfExists returns the file's contents as a string, or the
// empty string when the file does not exist.
func (fs *FileSystem) ReadFileIfExists(path string) (string, error) {
	if !fs.FileExists(path) {
		return "", nil
	}
	data, err := fs.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// CopyFile copies a file from src to dst
func (fs *FileSystem) CopyFile(src, dst string) error {
	sourceFile, err := fs.Fs.Open(src)
	if err != nil {
		return apperr.NewStorageError("open", src, err)
	}
	defer sourceFile.Close()

	if err := fs.Fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return apperr.NewStorageError("mkdir", filepath.Dir(dst), err)
	}
	dstFile, err := fs.Fs.Create(dst)
	if err != nil {
		return apperr.NewStorageError("create", dst, err)
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, sourceFile); err != nil {
		return apperr.NewStorageError("copy", dst, err)
	}
	return nil
}

// CopyDir recursively copies a directory tree, skipping entries for
// which the skip callback returns true. A nil skip copies everything.
func (fs *FileSystem) CopyDir(src, dst string, skip func(name string) bool) error {
	src = filepath.Clean(src)
	dst = filepath.Clean(dst)

	si, err := fs.Fs.Stat(src)
	if err != nil {
		return apperr.NewStorageError("stat", src, err)
	}
	if !si.IsDir() {
		return apperr.NewStorageError("stat", src, fmt.Errorf("source is not a directory"))
	}

	if err := fs.Fs.MkdirAll(dst, si.Mode()); err != nil {
		return apperr.NewStorageError("mkdir", dst, err)
	}

	entries, err := afero.ReadDir(fs.Fs, src)
	if err != nil {
		return apperr.NewStorageError("readdir", src, err)
	}

	for _, entry := range entries {
		if skip != nil && skip(entry.Name()) {
			continue
		}
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		if entry.IsDir() {
			if err := fs.CopyDir(srcPath, dstPath, skip); err != nil {
				return err
			}
		} else {
			if err := fs.CopyFile(srcPath, dstPath); err != nil {
				return err
			}
		}
	}

	return nil
}

// EnsureDir ensures that the specified directory exists
func (fs *FileSystem) EnsureDir(dir string) error {
	if err := fs.Fs.MkdirAll(dir, 0755); err != nil {
		return apperr.NewStorageError("mkdir", dir, err)
	}
	return nil
}

// RemoveAll removes a path and any children it contains.
func (fs *FileSystem) RemoveAll(path string) error {
	if err := fs.Fs.RemoveAll(path); err != nil {
		return apperr.NewStorageError("remove", path, err)
	}
	return nil
}

// Remove removes a single file, ignoring a missing one.
func (fs *FileSystem) Remove(path string) error {
	err := fs.Fs.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return apperr.NewStorageError("remove", path, err)
	}
	return nil
}

// FileExists checks if a file exists
func (fs *FileSystem) FileExists(path string) bool {
	_, err := fs.Fs.Stat(path)
	return err == nil
}

// IsDir checks if a path is a directory
func (fs *FileSystem) IsDir(path string) bool {
	info, err := fs.Fs.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// ReadDir lists directory entries.
func (fs *FileSystem) ReadDir(path string) ([]os.FileInfo, error) {
	entries, err := afero.ReadDir(fs.Fs, path)
	if err != nil {
		return nil, apperr.NewStorageError("readdir", path, err)
	}
	return entries, nil
}
