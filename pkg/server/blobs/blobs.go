// Package blobs keeps artifact files of the reference API server on the
// local filesystem, grouped per test.
package blobs

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const maxNameLength = 200

// File describes a stored blob. Path is relative to the storage root and
// is what gets persisted on the artifact row.
type File struct {
	Path string
	Size int64
}

// Store writes, reads and removes artifact files.
type Store interface {
	// Save copies r into the directory of testID under a sanitized name.
	// An existing file of the same name is never overwritten.
	Save(testID int64, name string, r io.Reader) (File, error)

	// Open opens a previously stored file by its relative path.
	Open(relPath string) (*os.File, error)

	// Abs resolves a relative path to an absolute one under the root.
	Abs(relPath string) (string, error)

	// RemoveTest deletes every file stored for testID.
	RemoveTest(testID int64) error
}

// Ensure interface compliance.
var _ Store = (*localStore)(nil)

type localStore struct {
	log   logrus.FieldLogger
	root  string
	owner *owner
}

// NewLocalStore creates a Store rooted at dir. ownerID is an optional
// "UID:GID" applied to created files and directories.
func NewLocalStore(log logrus.FieldLogger, dir, ownerID string) (Store, error) {
	o, err := parseOwner(ownerID)
	if err != nil {
		return nil, fmt.Errorf("parsing storage owner: %w", err)
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving storage path %s: %w", dir, err)
	}

	if err := mkdirAll(root, o); err != nil {
		return nil, fmt.Errorf("creating storage path %s: %w", root, err)
	}

	return &localStore{
		log:   log.WithField("component", "blobs"),
		root:  filepath.Clean(root),
		owner: o,
	}, nil
}

func (s *localStore) Save(testID int64, name string, r io.Reader) (File, error) {
	dir := testDir(testID)
	if err := mkdirAll(filepath.Join(s.root, dir), s.owner); err != nil {
		return File{}, fmt.Errorf("creating test directory: %w", err)
	}

	rel := path.Join(dir, SafeName(name))

	full := filepath.Join(s.root, filepath.FromSlash(rel))
	if _, err := os.Stat(full); err == nil {
		rel = path.Join(dir, uuid.NewString()[:8]+"_"+SafeName(name))
		full = filepath.Join(s.root, filepath.FromSlash(rel))
	}

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) //nolint:gosec // sanitized name
	if err != nil {
		return File{}, fmt.Errorf("creating %s: %w", rel, err)
	}

	defer func() { _ = f.Close() }()

	chown(full, s.owner)

	n, err := io.Copy(f, r)
	if err != nil {
		_ = os.Remove(full)

		return File{}, fmt.Errorf("writing %s: %w", rel, err)
	}

	s.log.WithFields(logrus.Fields{
		"path": rel,
		"size": n,
	}).Debug("Stored file")

	return File{Path: rel, Size: n}, nil
}

func (s *localStore) Open(relPath string) (*os.File, error) {
	full, err := s.Abs(relPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(full) //nolint:gosec // path checked by Abs
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", relPath, err)
	}

	return f, nil
}

func (s *localStore) Abs(relPath string) (string, error) {
	if !isAllowedPath(relPath) {
		return "", fmt.Errorf("path %q is not allowed", relPath)
	}

	full := filepath.Join(s.root, filepath.FromSlash(relPath))
	if !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes storage root", relPath)
	}

	return full, nil
}

func (s *localStore) RemoveTest(testID int64) error {
	if err := os.RemoveAll(filepath.Join(s.root, testDir(testID))); err != nil {
		return fmt.Errorf("removing files of test %d: %w", testID, err)
	}

	return nil
}

func testDir(testID int64) string {
	return path.Join("artifacts", strconv.FormatInt(testID, 10))
}

// SafeName replaces every character outside [A-Za-z0-9.-_] with an
// underscore and truncates the result.
func SafeName(name string) string {
	var b strings.Builder

	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '.', c == '-', c == '_':
			b.WriteRune(c)
		default:
			b.WriteByte('_')
		}
	}

	out := strings.TrimLeft(b.String(), ".")
	if len(out) > maxNameLength {
		out = out[:maxNameLength]
	}

	if out == "" {
		out = "file"
	}

	return out
}

// isAllowedPath rejects empty, absolute, unclean, or traversal paths.
func isAllowedPath(p string) bool {
	if p == "" {
		return false
	}

	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return false
		}
	}

	if filepath.IsAbs(p) || strings.HasPrefix(p, "/") {
		return false
	}

	return path.Clean(p) == p
}
