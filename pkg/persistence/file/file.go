// Package file provides file-based persistence for bots, identities, conversations,
// workflow graphs and transcripts.
//
// Uniqueness is enforced by the file system: rows keyed by a unique column are
// published with a hard link, which fails when the target already exists. Several
// processes may therefore share one root without creating duplicate identities.
// The first-touch start parameter of a user is claimed the same way. Other
// updates are read-modify-write and serialized only within a process.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dukex/botflow/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root           string
	botRepo        *BotRepository
	userRepo       *UserRepository
	conversationRe *ConversationRepository
	workflowRepo   *WorkflowRepository
	transcriptRepo *TranscriptRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:           cleanRoot,
		botRepo:        NewBotRepository(cleanRoot),
		userRepo:       NewUserRepository(cleanRoot),
		conversationRe: NewConversationRepository(cleanRoot),
		workflowRepo:   NewWorkflowRepository(cleanRoot),
		transcriptRepo: NewTranscriptRepository(cleanRoot),
	}
}

func (fp *Persistence) BotRepository() persistence.BotRepository {
	return fp.botRepo
}

func (fp *Persistence) UserRepository() persistence.UserRepository {
	return fp.userRepo
}

func (fp *Persistence) ConversationRepository() persistence.ConversationRepository {
	return fp.conversationRe
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

func (fp *Persistence) TranscriptRepository() persistence.TranscriptRepository {
	return fp.transcriptRepo
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// writeJSON replaces the file atomically.
func writeJSON(path string, value any) error {
	tmp, err := stage(path, value)
	if err != nil {
		return err
	}

	err = os.Rename(tmp, path)
	if err != nil {
		_ = os.Remove(tmp)

		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	return nil
}

// writeJSONExclusive publishes the file only if it does not exist yet.
// A collision is reported as persistence.ErrAlreadyExists.
func writeJSONExclusive(path string, value any) error {
	tmp, err := stage(path, value)
	if err != nil {
		return err
	}

	defer func() { _ = os.Remove(tmp) }()

	err = os.Link(tmp, path)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return persistence.ErrAlreadyExists
		}

		return fmt.Errorf("failed to publish %s: %w", path, err)
	}

	return nil
}

func stage(path string, value any) (string, error) {
	dir := filepath.Dir(path)

	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(tmp.Name())

		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	return tmp.Name(), nil
}

// readJSON decodes the file into value. A missing file yields fs.ErrNotExist.
func readJSON(path string, value any) error {
	body, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return err
	}

	err = json.Unmarshal(body, value)
	if err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}

	return nil
}

// readAll decodes every *.json file matched by pattern under dir.
func readAll[T any](dir, pattern string) ([]*T, error) {
	matches, err := fs.Glob(os.DirFS(dir), pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	items := make([]*T, 0, len(matches))

	for _, match := range matches {
		var item T

		err := readJSON(filepath.Join(dir, match), &item)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}

			return nil, err
		}

		items = append(items, &item)
	}

	return items, nil
}
