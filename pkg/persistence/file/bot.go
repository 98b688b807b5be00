package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dukex/botflow/pkg/models"
	"github.com/dukex/botflow/pkg/persistence"
	"github.com/google/uuid"
)

// BotRepository handles bot-related file operations.
type BotRepository struct {
	root string
	mu   sync.Mutex
}

// NewBotRepository creates a new bot repository.
func NewBotRepository(root string) *BotRepository {
	return &BotRepository{root: filepath.Join(root, "bots")}
}

func (r *BotRepository) path(id string) string {
	return filepath.Join(r.root, filepath.Base(id)+".json")
}

func (r *BotRepository) GetByID(_ context.Context, id string) (*models.Bot, error) {
	var bot models.Bot

	err := readJSON(r.path(id), &bot)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewEntityError("GetByID", "bot", id, persistence.ErrBotNotFound)
		}

		return nil, err
	}

	return &bot, nil
}

func (r *BotRepository) GetByExternalID(_ context.Context, externalID int64) (*models.Bot, error) {
	bots, err := readAll[models.Bot](r.root, "*.json")
	if err != nil {
		return nil, err
	}

	for _, bot := range bots {
		if bot.ExternalID == externalID {
			return bot, nil
		}
	}

	return nil, persistence.NewEntityError("GetByExternalID", "bot", fmt.Sprint(externalID), persistence.ErrBotNotFound)
}

func (r *BotRepository) ListActive(_ context.Context) ([]*models.Bot, error) {
	bots, err := readAll[models.Bot](r.root, "*.json")
	if err != nil {
		return nil, err
	}

	active := make([]*models.Bot, 0, len(bots))

	for _, bot := range bots {
		if bot.IsActive {
			active = append(active, bot)
		}
	}

	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})

	return active, nil
}

// Save inserts the bot or refreshes its credential and profile. The active
// flag of a stored bot is only changed by SetActive.
func (r *BotRepository) Save(ctx context.Context, bot *models.Bot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()

	if bot.ID != "" {
		stored, err := r.GetByID(ctx, bot.ID)
		if err != nil && !persistence.IsNotFound(err) {
			return err
		}

		if stored != nil {
			bot.IsActive = stored.IsActive
			bot.CreatedAt = stored.CreatedAt
		}
	}

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

	return writeJSON(r.path(bot.ID), bot)
}

func (r *BotRepository) SetActive(ctx context.Context, id string, active bool) (*models.Bot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bot, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	bot.IsActive = active
	bot.UpdatedAt = time.Now().UTC()

	err = writeJSON(r.path(id), bot)
	if err != nil {
		return nil, err
	}

	return bot, nil
}
