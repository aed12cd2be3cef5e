package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/khidmaapp/availability/internal/storage"
	"github.com/segmentio/kafka-go"
)

// TopicListingDrafted is published by the marketplace when a provider
// creates a listing draft. Each drafted listing gets an all-closed
// schedule seeded so the editor has something to load.
const TopicListingDrafted = "marketplace.listing.drafted.v1"

type listingDraftedPayload struct {
	ListingID string `json:"listingId"`
	Timezone  string `json:"timezone"`
}

func ListingDraftedHandler(logger *slog.Logger, repo *storage.Repository) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var payload listingDraftedPayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("malformed listing drafted payload", "err", err)
			// Poison messages are dropped, not retried.
			return nil
		}
		if strings.TrimSpace(payload.ListingID) == "" {
			return errors.New("listing drafted event missing listingId")
		}
		if err := repo.SeedSchedule(ctx, payload.ListingID, payload.Timezone); err != nil {
			return err
		}
		logger.Info("seeded draft schedule", "listing_id", payload.ListingID)
		return nil
	}
}
