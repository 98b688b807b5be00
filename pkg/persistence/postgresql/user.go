package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dukex/botflow/pkg/models"
	"github.com/dukex/botflow/pkg/persistence"
	"github.com/google/uuid"
)

// UserRepository handles remote user database operations.
type UserRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewUserRepository creates a new remote user repository.
func NewUserRepository(db *sql.DB, logger *slog.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger}
}

func (r *UserRepository) GetByExternalID(ctx context.Context, externalID int64) (*models.RemoteUser, error) {
	query := `
		SELECT
			id
		  , external_id
		  , first_name
		  , last_name
		  , username
		  , language_code
		  , COALESCE(start_param, '')
		  , is_bot
		  , created_at
		  , updated_at
		FROM remote_users
		WHERE external_id = $1
	`

	var user models.RemoteUser

	err := r.db.QueryRowContext(ctx, query, externalID).Scan(
		&user.ID,
		&user.ExternalID,
		&user.FirstName,
		&user.LastName,
		&user.Username,
		&user.LanguageCode,
		&user.StartParam,
		&user.IsBot,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("GetByExternalID", "remote_user", strconv.FormatInt(externalID, 10), persistence.ErrUserNotFound)
		}

		return nil, fmt.Errorf("failed to scan remote user: %w", err)
	}

	return &user, nil
}

func (r *UserRepository) Create(ctx context.Context, user *models.RemoteUser) error {
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

	query := `
		INSERT INTO remote_users (id, external_id, first_name, last_name, username, language_code, start_param, is_bot, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.ExternalID,
		user.FirstName,
		user.LastName,
		user.Username,
		user.LanguageCode,
		user.StartParam,
		user.IsBot,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		key := strconv.FormatInt(user.ExternalID, 10)
		if isUniqueViolation(err) {
			return persistence.NewEntityError("Create", "remote_user", key, persistence.ErrAlreadyExists)
		}

		return persistence.NewEntityError("Create", "remote_user", key, err)
	}

	return nil
}

func (r *UserRepository) SetStartParam(ctx context.Context, id, param string) (bool, error) {
	query := `
		UPDATE remote_users
		SET start_param = $2, updated_at = $3
		WHERE id = $1 AND (start_param IS NULL OR start_param = '')
	`

	result, err := r.db.ExecContext(ctx, query, id, param, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to set start param: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected > 0 {
		return true, nil
	}

	var exists bool

	err = r.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM remote_users WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check remote user: %w", err)
	}

	if !exists {
		return false, persistence.NewEntityError("SetStartParam", "remote_user", id, persistence.ErrUserNotFound)
	}

	return false, nil
}
