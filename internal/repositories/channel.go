package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/eventory/internal/models"
	"github.com/desertthunder/eventory/internal/shared"
	"github.com/jmoiron/sqlx"
)

const channelColumns = `uid, channel_id, title, description, custom_url, thumbnail_url, subscriber_count, video_count, created_at, updated_at`

// ChannelRepository implements [models.Repository] for the [models.Channel] linked to each user.
type ChannelRepository struct {
	db *sqlx.DB
}

// NewChannelRepository creates a new [ChannelRepository] with the given database connection
func NewChannelRepository(db *sqlx.DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

// Create links a channel to a user that has none yet.
func (r *ChannelRepository) Create(ctx context.Context, channel *models.Channel) error {
	if err := channel.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	channel.Created, channel.Updated = now, now

	query := `INSERT INTO channels (` + channelColumns + `) VALUES (` + namedChannelValues + `)`
	if _, err := r.db.NamedExecContext(ctx, query, channel); err != nil {
		return insertError("channel", channel.UID, err)
	}
	return nil
}

const namedChannelValues = `:uid, :channel_id, :title, :description, :custom_url, :thumbnail_url, :subscriber_count, :video_count, :created_at, :updated_at`

// Upsert links channel to its owner, replacing any previously linked channel.
func (r *ChannelRepository) Upsert(ctx context.Context, channel *models.Channel) error {
	if err := channel.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	if existing, err := r.Get(ctx, channel.UID); err == nil {
		channel.Created = existing.Created
	} else if !isNotFound(err) {
		return err
	} else {
		channel.Created = now
	}
	channel.Updated = now

	query := `
		INSERT INTO channels (` + channelColumns + `) VALUES (` + namedChannelValues + `)
		ON CONFLICT (uid) DO UPDATE SET
			channel_id = excluded.channel_id,
			title = excluded.title,
			description = excluded.description,
			custom_url = excluded.custom_url,
			thumbnail_url = excluded.thumbnail_url,
			subscriber_count = excluded.subscriber_count,
			video_count = excluded.video_count,
			updated_at = excluded.updated_at
	`
	if _, err := r.db.NamedExecContext(ctx, query, channel); err != nil {
		return fmt.Errorf("failed to upsert channel: %w", err)
	}
	return nil
}

// Get retrieves the channel linked to the user with the given UID.
func (r *ChannelRepository) Get(ctx context.Context, uid string) (*models.Channel, error) {
	var channel models.Channel
	query := `SELECT ` + channelColumns + ` FROM channels WHERE uid = ?`

	if err := getOne(ctx, r.db, &channel, fmt.Errorf("%w: %s", shared.ErrChannelNotFound, uid), query, uid); err != nil {
		return nil, err
	}
	return &channel, nil
}

// Update replaces the stored details of an already linked channel.
func (r *ChannelRepository) Update(ctx context.Context, channel *models.Channel) error {
	if err := channel.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	channel.Updated = time.Now().UTC()

	query := `
		UPDATE channels
		SET channel_id = ?, title = ?, description = ?, custom_url = ?, thumbnail_url = ?,
			subscriber_count = ?, video_count = ?, updated_at = ?
		WHERE uid = ?
	`
	err := execAffecting(ctx, r.db, fmt.Errorf("%w: %s", shared.ErrChannelNotFound, channel.UID), query,
		channel.ChannelID, channel.Title, channel.Description, channel.CustomURL, channel.ThumbnailURL,
		channel.SubscriberCount, channel.VideoCount, channel.Updated, channel.UID)
	if err != nil {
		return fmt.Errorf("failed to update channel: %w", err)
	}
	return nil
}

// Delete unlinks the channel of the user with the given UID.
func (r *ChannelRepository) Delete(ctx context.Context, uid string) error {
	err := execAffecting(ctx, r.db, fmt.Errorf("%w: %s", shared.ErrChannelNotFound, uid), `DELETE FROM channels WHERE uid = ?`, uid)
	if err != nil {
		return fmt.Errorf("failed to delete channel: %w", err)
	}
	return nil
}

// List retrieves linked channels, optionally filtered by "channel_id".
func (r *ChannelRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels`
	args := []any{}

	if id, ok := criteria["channel_id"].(string); ok && id != "" {
		query += " WHERE channel_id = ?"
		args = append(args, id)
	}
	query += " ORDER BY created_at ASC, uid ASC"

	channels := []*models.Channel{}
	if err := r.db.SelectContext(ctx, &channels, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query channels: %w", err)
	}
	return channels, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}
