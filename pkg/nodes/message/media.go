package message

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/dukex/botflow/pkg/gateway"
)

const uploadsPrefix = "/uploads/"

// mediaSource is a resolved media reference plus the closer of any opened file.
type mediaSource struct {
	media  *gateway.Media
	ref    string
	closer io.Closer
}

func (m *mediaSource) Close() {
	if m != nil && m.closer != nil {
		_ = m.closer.Close()
	}
}

// resolveMedia picks the media source in this order: a file under the upload
// root, a remote URL, a platform file id. URLs whose path points into /uploads/
// are served from the local root since the platform cannot reach internal hosts.
// A nil source means nothing resolved.
func resolveMedia(uploadRoot string, cfg *Config) (*mediaSource, error) {
	if cfg.FilePath != "" {
		rel := cfg.FilePath
		if trimmed, ok := uploadPath(rel); ok {
			rel = trimmed
		}

		source, err := openLocal(uploadRoot, rel)
		if err != nil || source != nil {
			return source, err
		}
	}

	if cfg.MediaURL != "" {
		if rel, ok := uploadPath(cfg.MediaURL); ok {
			source, err := openLocal(uploadRoot, rel)
			if err != nil || source != nil {
				return source, err
			}
		}

		if isRemote(cfg.MediaURL) {
			return &mediaSource{media: &gateway.Media{URL: cfg.MediaURL}, ref: cfg.MediaURL}, nil
		}
	}

	if cfg.FileID != "" {
		return &mediaSource{media: &gateway.Media{FileID: cfg.FileID}, ref: cfg.FileID}, nil
	}

	return nil, nil
}

// uploadPath extracts the path relative to the upload root from a URL or path.
func uploadPath(raw string) (string, bool) {
	path := raw

	if isRemote(raw) {
		parsed, err := url.Parse(raw)
		if err != nil {
			return "", false
		}

		path = parsed.Path
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	rel, ok := strings.CutPrefix(path, uploadsPrefix)
	if !ok || rel == "" {
		return "", false
	}

	return rel, true
}

func isRemote(raw string) bool {
	return strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://")
}

// openLocal opens rel under root. Paths escaping the root are rejected; a
// missing file yields a nil source.
func openLocal(root, rel string) (*mediaSource, error) {
	if root == "" {
		return nil, nil
	}

	full := filepath.Join(root, filepath.Clean("/"+rel))

	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to stat %s: %w", rel, err)
	}

	if !info.Mode().IsRegular() {
		return nil, nil
	}

	file, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", rel, err)
	}

	return &mediaSource{
		media:  &gateway.Media{Name: filepath.Base(full), Reader: file},
		ref:    rel,
		closer: file,
	}, nil
}
