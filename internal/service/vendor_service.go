package service

import (
	"context"

	"eventmarket/internal/apperrors"
	"eventmarket/internal/client"
	"eventmarket/internal/domain"
	"eventmarket/internal/events"
	"eventmarket/internal/models"
	"eventmarket/internal/query"

	"github.com/rs/zerolog"
)

type VendorService struct {
	client   *client.Client
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewVendorService(c *client.Client, eventBus domain.EventPublisher, logger *zerolog.Logger) *VendorService {
	return &VendorService{
		client:   c,
		eventBus: eventBus,
		logger:   logger,
	}
}

// Onboard creates the vendor profile of userID and promotes the user to the
// VENDOR role. Both writes commit together.
func (s *VendorService) Onboard(ctx context.Context, userID string, profile query.Data) (*models.Vendor, error) {
	if _, ok := profile["userId"]; ok {
		return nil, apperrors.Validation("vendor profile must not set userId")
	}
	data := make(query.Data, len(profile)+1)
	for k, v := range profile {
		data[k] = v
	}
	data["userId"] = userID

	var vendor *models.Vendor
	err := s.client.Transaction(ctx, func(ctx context.Context, tx *client.Client) error {
		user, err := tx.User.FindUniqueOrThrow(ctx, query.ID(userID))
		if err != nil {
			return err
		}

		vendor, err = tx.Vendor.Create(ctx, data)
		if err != nil {
			return err
		}

		if user.Role == models.RoleUser {
			_, err = tx.User.Update(ctx, query.ID(userID), query.Update{query.Set("role", models.RoleVendor)})
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("vendor_id", vendor.ID).Str("user_id", userID).Msg("Vendor onboarded")
	publishEvent(s.eventBus, s.logger, events.EventVendorOnboarded, events.VendorEventPayload{
		VendorID: vendor.ID,
		UserID:   userID,
	})
	return vendor, nil
}
