package models

import (
	"fmt"
	"time"
)

// Channel is the YouTube channel linked to a user.
//
// A user has at most one linked channel, so ID returns the owner's UID.
type Channel struct {
	UID             string    `json:"uid" db:"uid" validate:"required"`
	ChannelID       string    `json:"channelId" db:"channel_id" validate:"required"`
	Title           string    `json:"title" db:"title" validate:"required"`
	Description     string    `json:"description" db:"description"`
	CustomURL       string    `json:"customUrl" db:"custom_url"`
	ThumbnailURL    string    `json:"thumbnailURL" db:"thumbnail_url" validate:"omitempty,url"`
	SubscriberCount int64     `json:"subscriberCount" db:"subscriber_count" validate:"gte=0"`
	VideoCount      int64     `json:"videoCount" db:"video_count" validate:"gte=0"`
	Created         time.Time `json:"createdAt" db:"created_at"`
	Updated         time.Time `json:"updatedAt" db:"updated_at"`
}

func (c *Channel) ID() string           { return c.UID }
func (c *Channel) CreatedAt() time.Time { return c.Created }
func (c *Channel) UpdatedAt() time.Time { return c.Updated }

// Validate checks the owner, channel ID, and title, and that counts are not negative.
func (c *Channel) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid channel: %w", err)
	}
	return nil
}

// URL returns the public address of the channel.
func (c *Channel) URL() string {
	if c.CustomURL != "" {
		return "https://www.youtube.com/" + c.CustomURL
	}
	return "https://www.youtube.com/channel/" + c.ChannelID
}
