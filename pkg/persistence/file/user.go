package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/dukex/botflow/pkg/models"
	"github.com/dukex/botflow/pkg/persistence"
	"github.com/google/uuid"
)

// UserRepository stores one file per external user id.
type UserRepository struct {
	root string
	mu   sync.Mutex
}

// NewUserRepository creates a new remote user repository.
func NewUserRepository(root string) *UserRepository {
	return &UserRepository{root: filepath.Join(root, "users")}
}

func (r *UserRepository) path(externalID int64) string {
	return filepath.Join(r.root, strconv.FormatInt(externalID, 10)+".json")
}

// idPath indexes users by internal id.
func (r *UserRepository) idPath(id string) string {
	return filepath.Join(r.root, "ids", filepath.Base(id)+".json")
}

// startPath holds the first start parameter seen for a user. It is published
// exclusively, so the first writer wins across processes.
func (r *UserRepository) startPath(id string) string {
	return filepath.Join(r.root, "start", filepath.Base(id)+".json")
}

type userIndex struct {
	ExternalID int64 `json:"external_id"`
}

type startMarker struct {
	Param string `json:"param"`
}

func (r *UserRepository) GetByExternalID(_ context.Context, externalID int64) (*models.RemoteUser, error) {
	var user models.RemoteUser

	err := readJSON(r.path(externalID), &user)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewEntityError("GetByExternalID", "remote_user", strconv.FormatInt(externalID, 10), persistence.ErrUserNotFound)
		}

		return nil, err
	}

	if user.StartParam == "" {
		var marker startMarker

		err = readJSON(r.startPath(user.ID), &marker)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}

		user.StartParam = marker.Param
	}

	return &user, nil
}

func (r *UserRepository) Create(_ context.Context, user *models.RemoteUser) error {
	if user.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate user ID: %w", err)
		}

		user.ID = id.String()
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	err := writeJSONExclusive(r.path(user.ExternalID), user)
	if err != nil {
		return persistence.NewEntityError("Create", "remote_user", strconv.FormatInt(user.ExternalID, 10), err)
	}

	err = writeJSONExclusive(r.idPath(user.ID), userIndex{ExternalID: user.ExternalID})
	if err != nil {
		return persistence.NewEntityError("Create", "remote_user", user.ID, err)
	}

	return nil
}

// SetStartParam records param unless the user already has one. The record
// is rewritten only by the writer that published the start marker.
func (r *UserRepository) SetStartParam(_ context.Context, id, param string) (bool, error) {
	var index userIndex

	err := readJSON(r.idPath(id), &index)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, persistence.NewEntityError("SetStartParam", "remote_user", id, persistence.ErrUserNotFound)
		}

		return false, err
	}

	err = writeJSONExclusive(r.startPath(id), startMarker{Param: param})
	if errors.Is(err, persistence.ErrAlreadyExists) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var user models.RemoteUser

	err = readJSON(r.path(index.ExternalID), &user)
	if err != nil {
		return false, err
	}

	if user.StartParam != "" {
		return false, nil
	}

	user.StartParam = param
	user.UpdatedAt = time.Now().UTC()

	err = writeJSON(r.path(index.ExternalID), &user)
	if err != nil {
		return false, err
	}

	return true, nil
}
