package models

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofrs/uuid"
)

const (
	DefaultCampaignTitle = "Bildirim"
	MaxCampaignTitle     = 40
	MaxCampaignBody      = 120
)

// Campaign is the single current broadcast. Each send overwrites it, clients
// fetch it when they receive a wake push.
type Campaign struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title" validate:"max=40"`
	Body  string `json:"body" validate:"max=120"`
	// Unix milliseconds
	SentAt int64 `json:"sentAt" validate:"gte=0"`
}

// NewCampaign builds a campaign stamped with sentAt, applying the title/body limits.
func NewCampaign(title string, body string, sentAt time.Time) (*Campaign, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	title = Truncate(title, MaxCampaignTitle)
	if title == "" {
		title = DefaultCampaignTitle
	}
	return &Campaign{
		ID:     id.String(),
		Title:  title,
		Body:   Truncate(body, MaxCampaignBody),
		SentAt: sentAt.UnixMilli(),
	}, nil
}

// EmptyCampaign is what clients get before anything has been sent.
func EmptyCampaign() *Campaign {
	return &Campaign{Title: DefaultCampaignTitle}
}

// ParseCampaign decodes and validates a campaign record.
func ParseCampaign(data []byte) (*Campaign, error) {
	var campaign Campaign
	if err := json.Unmarshal(data, &campaign); err != nil {
		return nil, fmt.Errorf("decoding campaign: %w", err)
	}
	if err := validate.Struct(&campaign); err != nil {
		return nil, fmt.Errorf("invalid campaign: %w", err)
	}
	return &campaign, nil
}

// Encode serializes the campaign for storage.
func (c *Campaign) Encode() ([]byte, error) {
	return json.Marshal(c)
}
