package services

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/amirphl/Kappa/utils"
)

// ErrOutsideUploadDir is returned for references escaping the upload root
var ErrOutsideUploadDir = errors.New("path is outside the upload directory")

var dataURLMimeTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
}

// FileStore persists uploads and rendered documents and resolves their
// public /uploads/... references
type FileStore interface {
	// Save writes data to <dir>/<name> and returns the public URL
	Save(dir, name string, data []byte) (string, error)
	Remove(publicURL string) error
	Read(publicURL string) ([]byte, error)
	// DataURL inlines a local reference; see LocalFileStore.DataURL
	DataURL(ref string) string
}

// LocalFileStore keeps files under a root directory served at /uploads
type LocalFileStore struct {
	root string
}

func NewLocalFileStore(root string) (*LocalFileStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &LocalFileStore{root: abs}, nil
}

// Root returns the absolute upload directory
func (s *LocalFileStore) Root() string {
	return s.root
}

func (s *LocalFileStore) Save(dir, name string, data []byte) (string, error) {
	rel := path.Join(dir, name)
	full, err := s.resolve(rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", rel, err)
	}
	return utils.PublicUploadsPrefix + rel, nil
}

func (s *LocalFileStore) Remove(publicURL string) error {
	full, err := s.fromPublic(publicURL)
	if err != nil {
		return err
	}
	return os.Remove(full)
}

func (s *LocalFileStore) Read(publicURL string) ([]byte, error) {
	full, err := s.fromPublic(publicURL)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(full)
}

// DataURL returns ref unchanged unless it is a local /uploads/ reference,
// in which case the file is inlined as data:<mime>;base64,.... A missing or
// unsafe local file yields "".
func (s *LocalFileStore) DataURL(ref string) string {
	if !isLocalUpload(ref) {
		return ref
	}

	data, err := s.Read(ref)
	if err != nil {
		return ""
	}

	mimeType, ok := dataURLMimeTypes[strings.ToLower(path.Ext(ref))]
	if !ok {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func isLocalUpload(ref string) bool {
	return strings.HasPrefix(ref, utils.PublicUploadsPrefix) || strings.HasPrefix(ref, "/api"+utils.PublicUploadsPrefix)
}

func (s *LocalFileStore) fromPublic(publicURL string) (string, error) {
	rel := strings.TrimPrefix(publicURL, "/api")
	if !strings.HasPrefix(rel, utils.PublicUploadsPrefix) {
		return "", fmt.Errorf("not an upload reference: %q", publicURL)
	}
	return s.resolve(strings.TrimPrefix(rel, utils.PublicUploadsPrefix))
}

func (s *LocalFileStore) resolve(rel string) (string, error) {
	if rel == "" || strings.Contains(rel, "\x00") {
		return "", ErrOutsideUploadDir
	}
	full := filepath.Join(s.root, filepath.FromSlash(path.Clean("/"+rel)))
	if full == s.root || !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", ErrOutsideUploadDir
	}
	// Reject raw traversal even when Clean would fold it back inside the root
	if strings.Contains(rel, "..") {
		return "", ErrOutsideUploadDir
	}
	return full, nil
}
