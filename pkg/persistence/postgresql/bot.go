package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/botflow/pkg/models"
	"github.com/dukex/botflow/pkg/persistence"
	"github.com/google/uuid"
)

const botColumns = `
	id
  , token
  , external_id
  , username
  , display_name
  , is_active
  , created_at
  , updated_at
`

// BotRepository handles bot-related database operations.
type BotRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewBotRepository creates a new bot repository.
func NewBotRepository(db *sql.DB, logger *slog.Logger) *BotRepository {
	return &BotRepository{db: db, logger: logger}
}

func (r *BotRepository) GetByID(ctx context.Context, id string) (*models.Bot, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+botColumns+" FROM bots WHERE id = $1", id)

	bot, err := scanBot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("GetByID", "bot", id, persistence.ErrBotNotFound)
		}

		return nil, fmt.Errorf("failed to scan bot: %w", err)
	}

	return bot, nil
}

func (r *BotRepository) GetByExternalID(ctx context.Context, externalID int64) (*models.Bot, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+botColumns+" FROM bots WHERE external_id = $1", externalID)

	bot, err := scanBot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("GetByExternalID", "bot", fmt.Sprint(externalID), persistence.ErrBotNotFound)
		}

		return nil, fmt.Errorf("failed to scan bot: %w", err)
	}

	return bot, nil
}

func (r *BotRepository) ListActive(ctx context.Context) ([]*models.Bot, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+botColumns+" FROM bots WHERE is_active ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("failed to query bots: %w", err)
	}
	defer closeRows(ctx, r.logger, rows)

	bots := make([]*models.Bot, 0)

	for rows.Next() {
		bot, err := scanBot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bot: %w", err)
		}

		bots = append(bots, bot)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating bots: %w", err)
	}

	return bots, nil
}

// Save upserts by external id. A bot re-registered under a new id keeps its
// original row and gets the new token. The active flag of an existing row is
// only changed by SetActive.
func (r *BotRepository) Save(ctx context.Context, bot *models.Bot) error {
	now := time.Now().UTC()

	if bot.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate bot ID: %w", err)
		}

		bot.ID = id.String()
	}

	if bot.CreatedAt.IsZero() {
		bot.CreatedAt = now
	}

	bot.UpdatedAt = now

	query := `
		INSERT INTO bots (id, token, external_id, username, display_name, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (external_id) DO UPDATE SET
			token = EXCLUDED.token,
			username = EXCLUDED.username,
			display_name = EXCLUDED.display_name,
			updated_at = EXCLUDED.updated_at
		RETURNING id, is_active, created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		bot.ID,
		bot.Token,
		bot.ExternalID,
		bot.Username,
		bot.DisplayName,
		bot.IsActive,
		bot.CreatedAt,
		bot.UpdatedAt,
	).Scan(&bot.ID, &bot.IsActive, &bot.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save bot: %w", err)
	}

	return nil
}

func (r *BotRepository) SetActive(ctx context.Context, id string, active bool) (*models.Bot, error) {
	query := "UPDATE bots SET is_active = $2, updated_at = $3 WHERE id = $1 RETURNING " + botColumns

	bot, err := scanBot(r.db.QueryRowContext(ctx, query, id, active, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("SetActive", "bot", id, persistence.ErrBotNotFound)
		}

		return nil, fmt.Errorf("failed to update bot: %w", err)
	}

	return bot, nil
}

func scanBot(scanner rowScanner) (*models.Bot, error) {
	var bot models.Bot

	err := scanner.Scan(
		&bot.ID,
		&bot.Token,
		&bot.ExternalID,
		&bot.Username,
		&bot.DisplayName,
		&bot.IsActive,
		&bot.CreatedAt,
		&bot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &bot, nil
}
