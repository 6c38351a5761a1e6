// Package storage keeps verification artifacts on the local filesystem.
//
// All artifacts live flat in a single upload directory. Videos are written
// in one streaming pass that also counts bytes and computes a SHA-256 digest.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrInvalidName is returned for names that are not a single path element.
var ErrInvalidName = errors.New("invalid file name")

// stagingPrefix marks in-flight writes inside the upload directory.
const stagingPrefix = ".incoming-"

// Store is a flat directory of stored artifacts.
type Store struct {
	dir      string
	spoolDir string
}

// WriteResult describes a completed streaming write.
type WriteResult struct {
	Size   int64
	SHA256 string
}

// FileInfo is one entry of a directory listing.
type FileInfo struct {
	Name     string
	Size     int64
	Modified time.Time
}

// New returns a Store rooted at dir. spoolDir holds videos until their
// request has been read in full; when empty the OS temp directory is used.
func New(dir, spoolDir string) *Store {
	if spoolDir == "" {
		spoolDir = os.TempDir()
	}
	return &Store{dir: dir, spoolDir: spoolDir}
}

// Dir returns the upload directory.
func (s *Store) Dir() string { return s.dir }

// Ensure creates the upload directory if it does not exist.
func (s *Store) Ensure() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	return nil
}

// Check reports whether the upload directory exists and is a directory.
func (s *Store) Check() error {
	fi, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}

// WriteStream copies r into name, returning the byte count and digest.
// The bytes land in a temporary file that is renamed over name only once r
// is exhausted, so a failed write leaves any existing name untouched.
func (s *Store) WriteStream(name string, r io.Reader) (WriteResult, error) {
	if err := validName(name); err != nil {
		return WriteResult{}, err
	}

	f, err := os.CreateTemp(s.dir, stagingPrefix+"*")
	if err != nil {
		return WriteResult{}, err
	}
	tmp := f.Name()

	res, err := copyHashed(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmp, 0o644)
	}
	if err == nil {
		err = os.Rename(tmp, filepath.Join(s.dir, name))
	}
	if err != nil {
		_ = os.Remove(tmp)
		return WriteResult{}, err
	}
	return res, nil
}

// WriteFile writes a small artifact in one call.
func (s *Store) WriteFile(name string, data []byte) error {
	if err := validName(name); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, name), data, 0o644)
}

// Remove deletes name from the upload directory. A missing file is not an error.
func (s *Store) Remove(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// List returns the regular files in the upload directory sorted by name.
// Entries that vanish while listing are skipped.
func (s *Store) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), stagingPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		files = append(files, FileInfo{
			Name:     e.Name(),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Open opens a stored file for reading. Names that would resolve outside
// the upload directory, and directories, report fs.ErrNotExist.
func (s *Store) Open(name string) (*os.File, fs.FileInfo, error) {
	if err := validName(name); err != nil {
		return nil, nil, fs.ErrNotExist
	}

	root, err := os.OpenRoot(s.dir)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = root.Close() }()

	f, err := root.Open(name)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, nil, fs.ErrNotExist
	}
	return f, info, nil
}

// Spooled is a video held outside the upload directory until it can be named.
type Spooled struct {
	path   string
	Result WriteResult
}

// Spool streams r into a temporary file in the spool directory.
func (s *Store) Spool(r io.Reader) (*Spooled, error) {
	if err := os.MkdirAll(s.spoolDir, 0o700); err != nil {
		return nil, fmt.Errorf("create spool dir: %w", err)
	}
	f, err := os.CreateTemp(s.spoolDir, "liveness-*.part")
	if err != nil {
		return nil, err
	}

	res, err := copyHashed(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return nil, err
	}
	return &Spooled{path: f.Name(), Result: res}, nil
}

// Commit moves a spooled video into the upload directory as name, replacing
// any file of that name. A cross-device rename falls back to WriteStream.
func (s *Store) Commit(sp *Spooled, name string) error {
	if err := validName(name); err != nil {
		return err
	}
	dst := filepath.Join(s.dir, name)
	if err := os.Rename(sp.path, dst); err == nil {
		return nil
	}

	src, err := os.Open(sp.path)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	if _, err := s.WriteStream(name, src); err != nil {
		return err
	}
	_ = os.Remove(sp.path)
	return nil
}

// Discard removes the spooled file.
func (sp *Spooled) Discard() {
	if sp != nil {
		_ = os.Remove(sp.path)
	}
}

func copyHashed(dst io.Writer, src io.Reader) (WriteResult, error) {
	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(dst, h), src)
	if err != nil {
		return WriteResult{}, err
	}
	return WriteResult{Size: n, SHA256: hex.EncodeToString(h.Sum(nil))}, nil
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`+"\x00") {
		return ErrInvalidName
	}
	return nil
}
