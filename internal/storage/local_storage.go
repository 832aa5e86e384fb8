package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrUnsafeName marks a client-supplied name or path segment that would
// escape the owner's subtree. Callers map it to a Forbidden response.
var ErrUnsafeName = errors.New("unsafe file or path name")

var folderNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9-_]`)

// LocalStorage resolves (owner, relative path, name) triples to
// locations under a single uploads root and performs the filesystem
// mutations on them. Layout: root/{owner}/{relPath...}/{name}.
type LocalStorage struct {
	basePath string
}

func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, os.ModePerm); err != nil {
		return nil, err
	}
	return &LocalStorage{basePath: basePath}, nil
}

// SanitizeFolderName replaces every character outside [a-zA-Z0-9-_]
// with an underscore. Folder names are rewritten rather than rejected.
func SanitizeFolderName(name string) string {
	return folderNameSanitizer.ReplaceAllString(name, "_")
}

// ValidateSegment rejects a single path segment that could traverse out
// of the owner's subtree. Uploaded file names and every client-supplied
// path segment pass through here before any filesystem or metadata
// mutation.
func ValidateSegment(segment string) error {
	if segment == "" || segment == "." || segment == ".." {
		return ErrUnsafeName
	}
	if strings.ContainsAny(segment, `/\`) || strings.ContainsRune(segment, 0) {
		return ErrUnsafeName
	}
	return nil
}

// ValidateRelPath validates every segment of a client-supplied relative
// path. The empty path (owner root) is valid.
func ValidateRelPath(relPath string) error {
	if relPath == "" {
		return nil
	}
	for _, segment := range strings.Split(relPath, "/") {
		if err := ValidateSegment(segment); err != nil {
			return err
		}
	}
	return nil
}

// Resolve maps the triple to an absolute on-disk path, validating every
// segment on the way.
func (ls *LocalStorage) Resolve(owner, relPath, name string) (string, error) {
	if err := ValidateSegment(owner); err != nil {
		return "", err
	}
	if err := ValidateRelPath(relPath); err != nil {
		return "", err
	}
	if err := ValidateSegment(name); err != nil {
		return "", err
	}

	parts := []string{ls.basePath, owner}
	if relPath != "" {
		parts = append(parts, strings.Split(relPath, "/")...)
	}
	parts = append(parts, name)
	return filepath.Join(parts...), nil
}

// OwnerRoot returns the directory holding everything the owner stores.
func (ls *LocalStorage) OwnerRoot(owner string) (string, error) {
	if err := ValidateSegment(owner); err != nil {
		return "", err
	}
	return filepath.Join(ls.basePath, owner), nil
}

// SaveFile writes the reader's content to the resolved location and
// returns the number of bytes written. Parent directories are created
// as needed; a failed copy removes the partial file.
func (ls *LocalStorage) SaveFile(owner, relPath, name string, data io.Reader) (int64, error) {
	filePath, err := ls.Resolve(owner, relPath, name)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(filePath), os.ModePerm); err != nil {
		return 0, err
	}

	file, err := os.Create(filePath)
	if err != nil {
		return 0, err
	}

	written, err := io.Copy(file, data)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(filePath)
		return 0, err
	}

	return written, nil
}

func (ls *LocalStorage) CreateFolder(owner, relPath, name string) error {
	folderPath, err := ls.Resolve(owner, relPath, name)
	if err != nil {
		return err
	}
	return os.MkdirAll(folderPath, os.ModePerm)
}

func (ls *LocalStorage) Open(owner, relPath, name string) (io.ReadCloser, error) {
	filePath, err := ls.Resolve(owner, relPath, name)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file %s not found: %w", name, err)
		}
		return nil, err
	}

	return file, nil
}

func (ls *LocalStorage) Stat(owner, relPath, name string) (fs.FileInfo, error) {
	filePath, err := ls.Resolve(owner, relPath, name)
	if err != nil {
		return nil, err
	}
	return os.Stat(filePath)
}

func (ls *LocalStorage) Exists(owner, relPath, name string) (bool, error) {
	_, err := ls.Stat(owner, relPath, name)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete removes a file, or a folder with everything beneath it.
// Deleting something already gone is not an error.
func (ls *LocalStorage) Delete(owner, relPath, name string) error {
	targetPath, err := ls.Resolve(owner, relPath, name)
	if err != nil {
		return err
	}

	info, err := os.Stat(targetPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if info.IsDir() {
		return os.RemoveAll(targetPath)
	}
	return os.Remove(targetPath)
}

// UsageInfo is the result of a full walk over an owner's subtree.
type UsageInfo struct {
	TotalFiles   int64
	TotalFolders int64
	UsedBytes    int64
}

// Usage recursively walks the owner's directory, counting every
// directory as a folder and every other entry as a file and summing
// file sizes. A missing owner root is zero usage, not an error.
func (ls *LocalStorage) Usage(owner string) (UsageInfo, error) {
	root, err := ls.OwnerRoot(owner)
	if err != nil {
		return UsageInfo{}, err
	}

	var info UsageInfo
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if path == root {
			return nil
		}
		if d.IsDir() {
			info.TotalFolders++
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		info.TotalFiles++
		info.UsedBytes += fi.Size()
		return nil
	})
	if err != nil {
		return UsageInfo{}, err
	}

	return info, nil
}
